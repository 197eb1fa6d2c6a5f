package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jessebugclark-dot/Jesselovesmovies/internal/app"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/domain"
)

// AdminOrderService is the minimal interface needed for the admin endpoints.
type AdminOrderService interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	CancelOrder(ctx context.Context, orderCode string) error
	MarkPaid(ctx context.Context, orderCode string) (app.MarkPaidResult, error)
	ResendTicket(ctx context.Context, orderCode string) error
	CreateManualTicket(ctx context.Context, in app.ManualTicketInput) (app.ManualTicketResult, error)
}

// HandleAdminListOrders returns an HTTP handler for the dashboard order list.
func HandleAdminListOrders(svc AdminOrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := svc.ListOrders(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]adminOrderResponse, 0, len(orders))
		for _, order := range orders {
			resp = append(resp, toAdminOrder(order))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleAdminCancelOrder returns an HTTP handler for releasing a pending
// order's seats.
func HandleAdminCancelOrder(svc AdminOrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeOrderCodeRequest(w, r)
		if !ok {
			return
		}

		if err := svc.CancelOrder(r.Context(), req.OrderCode); err != nil {
			switch err {
			case domain.ErrOrderCodeRequired:
				writeError(w, http.StatusBadRequest, codeOrderCodeRequired, err.Error())
			case domain.ErrOrderNotFound:
				writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
			case domain.ErrOrderAlreadyCancelled:
				writeError(w, http.StatusConflict, codeOrderCancelled, err.Error())
			case domain.ErrOrderNotPending:
				writeError(w, http.StatusConflict, codeOrderNotPending, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	}
}

// HandleAdminMarkPaid returns an HTTP handler for the manual payment
// override.
func HandleAdminMarkPaid(svc AdminOrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeOrderCodeRequest(w, r)
		if !ok {
			return
		}

		res, err := svc.MarkPaid(r.Context(), req.OrderCode)
		if err != nil {
			switch err {
			case domain.ErrOrderCodeRequired:
				writeError(w, http.StatusBadRequest, codeOrderCodeRequired, err.Error())
			case domain.ErrOrderNotFound:
				writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
			case domain.ErrOrderNotPending:
				writeError(w, http.StatusConflict, codeOrderNotPending, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, markPaidResponse{
			Order:       toAdminOrder(res.Order),
			AlreadyPaid: res.AlreadyPaid,
			EmailSent:   res.EmailSent,
		})
	}
}

// HandleAdminResendTicket returns an HTTP handler for re-sending a paid
// order's ticket email.
func HandleAdminResendTicket(svc AdminOrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeOrderCodeRequest(w, r)
		if !ok {
			return
		}

		if err := svc.ResendTicket(r.Context(), req.OrderCode); err != nil {
			switch err {
			case domain.ErrOrderCodeRequired:
				writeError(w, http.StatusBadRequest, codeOrderCodeRequired, err.Error())
			case domain.ErrOrderNotFound:
				writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
			case domain.ErrOrderNotPaid:
				writeError(w, http.StatusConflict, codeOrderNotPaid, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "email delivery failed")
			}
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

// HandleAdminManualTicket returns an HTTP handler for issuing a paid order
// directly, for comp tickets and door sales.
func HandleAdminManualTicket(svc AdminOrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req manualTicketRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.CreateManualTicket(r.Context(), app.ManualTicketInput{
			Name:       req.Name,
			Email:      req.Email,
			NumTickets: req.NumTickets,
			ShowTime:   req.ShowTime,
		})
		if err != nil {
			switch err {
			case domain.ErrEmailRequired:
				writeError(w, http.StatusBadRequest, codeEmailRequired, err.Error())
			case domain.ErrInvalidEmail:
				writeError(w, http.StatusBadRequest, codeInvalidEmail, err.Error())
			case domain.ErrInvalidTicketCount:
				writeError(w, http.StatusBadRequest, codeInvalidTicketCount, err.Error())
			case domain.ErrOrderCodeExhausted:
				writeError(w, http.StatusConflict, codeOrderCodeExhausted, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, manualTicketResponse{
			Order:     toAdminOrder(res.Order),
			EmailSent: res.EmailSent,
		})
	}
}

type orderCodeRequest struct {
	OrderCode string `json:"order_code"`
}

func decodeOrderCodeRequest(w http.ResponseWriter, r *http.Request) (orderCodeRequest, bool) {
	var req orderCodeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return orderCodeRequest{}, false
	}
	return req, true
}

type manualTicketRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	NumTickets int    `json:"num_tickets"`
	ShowTime   string `json:"show_time"`
}

type adminOrderResponse struct {
	ID            string     `json:"id"`
	OrderCode     string     `json:"order_code"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	NumTickets    int        `json:"num_tickets"`
	TotalAmount   string     `json:"total_amount"`
	ShowTime      string     `json:"show_time"`
	Status        string     `json:"status"`
	ReservedUntil time.Time  `json:"reserved_until"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	PayerName     string     `json:"payer_name,omitempty"`
	PaymentNote   string     `json:"payment_note,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toAdminOrder(order domain.Order) adminOrderResponse {
	return adminOrderResponse{
		ID:            order.ID,
		OrderCode:     order.OrderCode,
		Name:          order.Name,
		Email:         order.Email,
		NumTickets:    order.NumTickets,
		TotalAmount:   order.TotalAmount.StringFixed(2),
		ShowTime:      order.ShowTime,
		Status:        string(order.Status),
		ReservedUntil: order.ReservedUntil,
		PaidAt:        order.PaidAt,
		PayerName:     order.PayerName,
		PaymentNote:   order.PaymentNote,
		CreatedAt:     order.CreatedAt,
	}
}

type markPaidResponse struct {
	Order       adminOrderResponse `json:"order"`
	AlreadyPaid bool               `json:"already_paid"`
	EmailSent   bool               `json:"email_sent"`
}

type manualTicketResponse struct {
	Order     adminOrderResponse `json:"order"`
	EmailSent bool               `json:"email_sent"`
}
