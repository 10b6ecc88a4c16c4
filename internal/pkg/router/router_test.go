package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/gomotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gomotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gomotp/internal/pkg/jwt"
)

type fakeJWT struct{}

func (fakeJWT) Generate(string) (string, time.Time, error) { return "", time.Time{}, nil }

func (fakeJWT) Verify(token string) (jwt.Claims, error) {
	if token == "good" {
		return jwt.Claims{Username: "alice"}, nil
	}
	return jwt.Claims{}, errors.New("bad token")
}

type fixedID string

func (f fixedID) Generate() string { return string(f) }

func newTestRouter() *Router {
	return NewRouter(Config{UUID: fixedID("cid-1"), JWT: fakeJWT{}, Instrument: instrument.NewNoop()})
}

func serve(t *testing.T, h http.Handler, method, target, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(`{}`))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("response is not json: %q", rec.Body.String())
		}
	}
	return rec, body
}

func TestRouter(t *testing.T) {

	t.Run("PublicEndpointSkipsAuth", func(t *testing.T) {

		// Arrange
		ro := newTestRouter()
		ro.Public(http.MethodPost, "/open")
		ro.POST("/open", func(*Request) (any, error) { return map[string]string{"ok": "yes"}, nil })

		// Act
		rec, body := serve(t, ro, http.MethodPost, "/open", "")

		// Assert
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Header().Get(HeaderCorrelationID) != "cid-1" {
			t.Fatalf("expected correlation id header, got %q", rec.Header().Get(HeaderCorrelationID))
		}
		if body["data"].(map[string]any)["ok"] != "yes" {
			t.Fatalf("unexpected body %v", body)
		}
	})

	t.Run("ProtectedEndpointNeedsToken", func(t *testing.T) {

		// Arrange
		ro := newTestRouter()
		ro.GET("/me", func(r *Request) (any, error) { return jwt.GetAuth(r.Context()).Username, nil })

		// Act
		missing, _ := serve(t, ro, http.MethodGet, "/me", "")
		invalid, _ := serve(t, ro, http.MethodGet, "/me", "bad")
		ok, body := serve(t, ro, http.MethodGet, "/me", "good")

		// Assert
		if missing.Code != http.StatusUnauthorized || invalid.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401s, got %d and %d", missing.Code, invalid.Code)
		}
		if ok.Code != http.StatusOK || body["data"] != "alice" {
			t.Fatalf("unexpected response %d %v", ok.Code, body)
		}
	})

	t.Run("ErrorDetails", func(t *testing.T) {

		// Arrange
		ro := newTestRouter()
		ro.Public(http.MethodPost, "/pin")
		ro.POST("/pin", func(*Request) (any, error) {
			return nil, goerror.NewInvalidInputDetails([]string{"first", "second"})
		})

		// Act
		rec, body := serve(t, ro, http.MethodPost, "/pin", "")

		// Assert
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		details, _ := body["details"].([]any)
		if len(details) != 2 || details[0] != "first" {
			t.Fatalf("unexpected details %v", body)
		}
	})

	t.Run("UnknownErrorIsInternal", func(t *testing.T) {

		// Arrange
		ro := newTestRouter()
		ro.Public(http.MethodGet, "/boom")
		ro.GET("/boom", func(*Request) (any, error) { return nil, errors.New("raw") })

		// Act
		rec, body := serve(t, ro, http.MethodGet, "/boom", "")

		// Assert
		if rec.Code != http.StatusInternalServerError || body["message"] != "Internal server error" {
			t.Fatalf("unexpected response %d %v", rec.Code, body)
		}
	})

	t.Run("PanicIsRecovered", func(t *testing.T) {

		// Arrange
		ro := newTestRouter()
		ro.Public(http.MethodGet, "/panic")
		ro.GET("/panic", func(*Request) (any, error) { panic("oops") })

		// Act
		rec, _ := serve(t, ro, http.MethodGet, "/panic", "")

		// Assert
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("NotFound", func(t *testing.T) {

		// Act
		rec, body := serve(t, newTestRouter(), http.MethodGet, "/nope", "")

		// Assert
		if rec.Code != http.StatusNotFound || body["message"] != "endpoint not found" {
			t.Fatalf("unexpected response %d %v", rec.Code, body)
		}
	})
}

func TestChain(t *testing.T) {

	t.Run("FirstIsOutermost", func(t *testing.T) {

		// Arrange
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}
		h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "h") }), mw("a"), mw("b"))

		// Act
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		// Assert
		if strings.Join(order, ",") != "a,b,h" {
			t.Fatalf("unexpected order %v", order)
		}
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "ForwardedFor", header: map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, remote: "1.1.1.1:80", want: "10.0.0.1"},
		{name: "RealIPWins", header: map[string]string{"X-Real-IP": "10.0.0.9", "X-Forwarded-For": "10.0.0.1"}, remote: "1.1.1.1:80", want: "10.0.0.9"},
		{name: "GarbageFallsBack", header: map[string]string{"X-Real-IP": "nope"}, remote: "1.1.1.1:80", want: "1.1.1.1"},
		{name: "NoPeer", remote: "pipe", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {

			// Arrange
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}

			// Act
			got := clientIP(req)

			// Assert
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
