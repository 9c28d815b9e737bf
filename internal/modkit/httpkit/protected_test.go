package httpkit_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"otp4gb/internal/modkit/httpkit"
	phttp "otp4gb/internal/platform/net/http"
)

func TestProtected_GuardGatesGroupOnly(t *testing.T) {
	m := chi.NewRouter()
	r := phttp.AdaptChi(m)

	r.Get("/open", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "open")
	})
	httpkit.Protected(r, httpkit.NewTokenGuard("s3cret"), func(gr httpkit.Router) {
		gr.Post("/locked", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "locked")
		})
	})

	// open route needs no token
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "open" {
		t.Fatalf("open route: %d %q", rec.Code, rec.Body.String())
	}

	// locked route without token is rejected
	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/locked", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// locked route with the right token passes
	req := httptest.NewRequest(http.MethodPost, "/locked", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "locked" {
		t.Fatalf("locked route with token: %d %q", rec.Code, rec.Body.String())
	}
}
