package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type staticValidator map[string]string

func (v staticValidator) ValidateJWT(token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid")
}

func TestAuthMiddleware(t *testing.T) {
	var gotUser string
	h := AuthMiddleware(staticValidator{"good": "user-1"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer bad", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("Expected WWW-Authenticate challenge")
			}
			if tt.want == http.StatusOK && gotUser != "user-1" {
				t.Errorf("user = %q, want user-1", gotUser)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	h := CORS([]string{"https://partner.example.com"}, "X-Geocode-Degraded")(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://partner.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://partner.example.com" {
		t.Errorf("allowed origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); got != "X-Geocode-Degraded" {
		t.Errorf("exposed headers = %q", got)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want request to reach handler", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow origin %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec = httptest.NewRecorder()
	CORS(nil)(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestPrometheusLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Prometheus)
	r.Get("/users/{userId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/users/{userId}", "204")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("counter increased by %v, want 2", got)
	}
}

func TestPrometheusCollapsesUnmatchedPaths(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Prometheus)
	r.Get("/known", func(w http.ResponseWriter, r *http.Request) {})

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")
	before := testutil.ToFloat64(counter)

	for _, path := range []string{"/wp-admin", "/.env", "/random/scan"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("unmatched counter increased by %v, want 3", got)
	}
	if testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/wp-admin", "404")) != 0 {
		t.Error("raw path leaked into the path label")
	}
}
