package app

import (
	"encoding/json"
	"net/http"

	"go.uber.org/atomic"
)

type healthResponse struct {
	Status string `json:"status"`
}

// healthHandler reports 200 while ready is set and 503 otherwise.
func healthHandler(ready *atomic.Bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		code, status := http.StatusOK, "ok"
		if !ready.Load() {
			code, status = http.StatusServiceUnavailable, "unavailable"
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(healthResponse{Status: status})
	})
}
