package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/jessebugclark-dot/Jesselovesmovies/internal/venmo"
)

type stubRouterReconciler struct {
	stubReconciler
	stubPassRunner
}

func testRouter() http.Handler {
	return NewRouter(RouterConfig{
		Orders:        &stubOrderService{},
		Reconciler:    &stubRouterReconciler{},
		Admin:         &stubAdminService{},
		Parser:        venmo.NewParser("DA25"),
		Logger:        zap.NewNop().Sugar(),
		WebhookSecret: "hook-secret",
		CronSecret:    "cron-secret",
		AdminToken:    "admin-token",
	})
}

func TestRouter_UnknownRoute(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != codeNotFound {
		t.Fatalf("expected code %s, got %s", codeNotFound, resp.Code)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodDelete, "/api/orders", nil)
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestRouter_SecretsGateRoutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"admin without token", http.MethodGet, "/api/admin/orders", "", http.StatusUnauthorized},
		{"admin with token", http.MethodGet, "/api/admin/orders", "admin-token", http.StatusOK},
		{"cron without token", http.MethodGet, "/api/cron/check-venmo", "", http.StatusUnauthorized},
		{"cron with token", http.MethodGet, "/api/cron/check-venmo", "cron-secret", http.StatusOK},
		{"webhook with admin token", http.MethodPost, "/api/venmo-payment-hook", "admin-token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			testRouter().ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
