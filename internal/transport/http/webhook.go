package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jessebugclark-dot/Jesselovesmovies/internal/app"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/domain"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/venmo"
)

// PaymentReconciler is the minimal interface needed to settle one payment.
type PaymentReconciler interface {
	Reconcile(ctx context.Context, payment domain.Payment) (app.ReconcileResult, error)
}

// HandleVenmoWebhook returns an HTTP handler for push-delivered payment
// notifications. The body carries the raw email; extraction runs the same
// parser as the inbox poll.
func HandleVenmoWebhook(svc PaymentReconciler, parser *venmo.Parser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req webhookRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		payment, parseRes := parser.Parse(req.Subject, req.Body)
		switch parseRes {
		case venmo.NotAPayment:
			writeJSON(w, http.StatusOK, webhookResponse{Outcome: "ignored", Detail: "not a payment notification"})
			return
		case venmo.NoReference:
			writeJSON(w, http.StatusOK, webhookResponse{Outcome: "ignored", Detail: "no order reference in note"})
			return
		}

		res, err := svc.Reconcile(r.Context(), payment)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		switch res.Outcome {
		case app.OutcomeSettled, app.OutcomeAlreadySettled, app.OutcomeSkipped:
			writeJSON(w, http.StatusOK, webhookResponse{
				Outcome:   res.Outcome.String(),
				OrderCode: payment.OrderCode,
			})
		case app.OutcomeNotFound:
			writeError(w, http.StatusNotFound, codeOrderNotFound, "no order matches the payment reference")
		case app.OutcomeAmountMismatch:
			writeJSON(w, http.StatusBadRequest, webhookResponse{
				Outcome:   res.Outcome.String(),
				OrderCode: payment.OrderCode,
				Expected:  res.Expected.StringFixed(2),
				Received:  res.Received.StringFixed(2),
			})
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
	}
}

type webhookRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type webhookResponse struct {
	Outcome   string `json:"outcome"`
	OrderCode string `json:"order_code,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Expected  string `json:"expected,omitempty"`
	Received  string `json:"received,omitempty"`
}
