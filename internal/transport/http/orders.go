package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jessebugclark-dot/Jesselovesmovies/internal/app"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/domain"
)

// OrderCreator is the minimal interface needed to create an order.
type OrderCreator interface {
	CreateOrder(ctx context.Context, in app.CreateOrderInput) (app.CreateOrderResult, error)
}

// OrderStatusReader is the minimal interface needed for status polling.
type OrderStatusReader interface {
	GetStatus(ctx context.Context, orderCode string) (app.OrderStatusResult, error)
}

// SeatLister is the minimal interface needed for the availability endpoint.
type SeatLister interface {
	Seats(ctx context.Context) ([]app.ShowTimeSeats, error)
}

// HandleCreateOrder returns an HTTP handler for creating orders.
func HandleCreateOrder(svc OrderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.CreateOrder(r.Context(), app.CreateOrderInput{
			Name:       req.Name,
			Email:      req.Email,
			NumTickets: req.NumTickets,
			ShowTime:   req.ShowTime,
		})
		if err != nil {
			switch err {
			case domain.ErrNameRequired:
				writeError(w, http.StatusBadRequest, codeNameRequired, err.Error())
			case domain.ErrEmailRequired:
				writeError(w, http.StatusBadRequest, codeEmailRequired, err.Error())
			case domain.ErrInvalidEmail:
				writeError(w, http.StatusBadRequest, codeInvalidEmail, err.Error())
			case domain.ErrInvalidTicketCount:
				writeError(w, http.StatusBadRequest, codeInvalidTicketCount, err.Error())
			case domain.ErrInvalidShowTime:
				writeError(w, http.StatusBadRequest, codeInvalidShowTime, err.Error())
			case domain.ErrInsufficientSeats:
				writeError(w, http.StatusConflict, codeInsufficientSeats, err.Error())
			case domain.ErrOrderCodeExhausted:
				writeError(w, http.StatusConflict, codeOrderCodeExhausted, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		order := res.Order
		writeJSON(w, http.StatusCreated, createOrderResponse{
			OrderCode:     order.OrderCode,
			Status:        string(order.Status),
			NumTickets:    order.NumTickets,
			ShowTime:      order.ShowTime,
			TotalAmount:   order.TotalAmount.StringFixed(2),
			ReservedUntil: order.ReservedUntil,
			Payment: paymentInstructions{
				VenmoHandle: res.VenmoHandle,
				Amount:      order.TotalAmount.StringFixed(2),
				Note:        res.VenmoNote,
			},
		})
	}
}

// HandleOrderStatus returns an HTTP handler for buyer-side status polling.
func HandleOrderStatus(svc OrderStatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.GetStatus(r.Context(), r.URL.Query().Get("orderCode"))
		if err != nil {
			switch err {
			case domain.ErrOrderCodeRequired:
				writeError(w, http.StatusBadRequest, codeOrderCodeRequired, err.Error())
			case domain.ErrOrderNotFound:
				writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, orderStatusResponse{
			OrderCode: res.OrderCode,
			Status:    string(res.Status),
			IsPaid:    res.IsPaid,
			PaidAt:    res.PaidAt,
		})
	}
}

// HandleSeats returns an HTTP handler for per-showtime availability.
func HandleSeats(svc SeatLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seats, err := svc.Seats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]seatsResponse, 0, len(seats))
		for _, st := range seats {
			resp = append(resp, seatsResponse{
				ShowTime:  st.ShowTime,
				Total:     st.Total,
				Reserved:  st.Reserved,
				Available: st.Available,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type createOrderRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	NumTickets int    `json:"num_tickets"`
	ShowTime   string `json:"show_time"`
}

type paymentInstructions struct {
	VenmoHandle string `json:"venmo_handle"`
	Amount      string `json:"amount"`
	Note        string `json:"note"`
}

type createOrderResponse struct {
	OrderCode     string              `json:"order_code"`
	Status        string              `json:"status"`
	NumTickets    int                 `json:"num_tickets"`
	ShowTime      string              `json:"show_time"`
	TotalAmount   string              `json:"total_amount"`
	ReservedUntil time.Time           `json:"reserved_until"`
	Payment       paymentInstructions `json:"payment"`
}

type orderStatusResponse struct {
	OrderCode string     `json:"order_code"`
	Status    string     `json:"status"`
	IsPaid    bool       `json:"is_paid"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

type seatsResponse struct {
	ShowTime  string `json:"show_time"`
	Total     int    `json:"total"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}
