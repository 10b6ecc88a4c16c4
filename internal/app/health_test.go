package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/atomic"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name     string
		ready    bool
		wantCode int
		wantBody string
	}{
		{name: "Ready", ready: true, wantCode: http.StatusOK, wantBody: `"ok"`},
		{name: "NotReady", ready: false, wantCode: http.StatusServiceUnavailable, wantBody: `"unavailable"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {

			// Arrange
			h := healthHandler(atomic.NewBool(tt.ready))
			rec := httptest.NewRecorder()

			// Act
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			// Assert
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("unexpected body %q", rec.Body.String())
			}
		})
	}
}
