package http

import (
	"context"
	"net/http"

	"github.com/jessebugclark-dot/Jesselovesmovies/internal/app"
)

// PassRunner is the minimal interface needed to run one reconciliation pass.
type PassRunner interface {
	RunOnce(ctx context.Context) (app.Summary, error)
}

// HandleCheckVenmo returns an HTTP handler that runs the expiry sweep plus
// one inbox reconciliation pass. Scheduled callers hit this when the poll
// loop is not running.
func HandleCheckVenmo(svc PassRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.RunOnce(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "reconciliation pass failed")
			return
		}

		writeJSON(w, http.StatusOK, passSummaryResponse{
			Settled: summary.Settled,
			Errors:  summary.Errors,
			Expired: summary.Expired,
		})
	}
}

type passSummaryResponse struct {
	Settled int `json:"settled"`
	Errors  int `json:"errors"`
	Expired int `json:"expired"`
}
