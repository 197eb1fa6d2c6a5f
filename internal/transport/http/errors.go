package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeNameRequired       = "name_required"
	codeEmailRequired      = "email_required"
	codeInvalidEmail       = "invalid_email"
	codeInvalidTicketCount = "invalid_ticket_count"
	codeInvalidShowTime    = "invalid_show_time"
	codeInsufficientSeats  = "insufficient_seats"
	codeOrderCodeRequired  = "order_code_required"
	codeOrderNotFound      = "order_not_found"
	codeOrderNotPending    = "order_not_pending"
	codeOrderCancelled     = "order_already_cancelled"
	codeOrderNotPaid       = "order_not_paid"
	codeOrderCodeExhausted = "order_code_exhausted"
	codeUnauthorized       = "unauthorized"
	codeForbidden          = "forbidden"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
