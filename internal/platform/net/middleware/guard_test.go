package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/platform/net/middleware"
)

type fakeGuardPort struct {
	err error
}

func (f fakeGuardPort) Check(r *http.Request) error { return f.err }

func writeStub(w http.ResponseWriter, status int, body any) {
	w.WriteHeader(status)
}

func TestGuard_NilPortPassesThrough(t *testing.T) {
	var nextCalled bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(200)
	})

	mw := middleware.Guard(nil, writeStub)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)

	if !nextCalled {
		t.Fatal("expected next to be called")
	}
	if rr.Code != 200 {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
}

func TestGuard_ErrorFromPortWritesMappedError(t *testing.T) {
	p := fakeGuardPort{err: perr.Unauthorizedf("missing bearer token")}
	mw := middleware.Guard(p, writeStub)

	var nextCalled bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)

	if nextCalled {
		t.Fatal("did not expect next to be called on guard error")
	}
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestGuard_AllowedRequestProceeds(t *testing.T) {
	p := fakeGuardPort{err: nil}
	mw := middleware.Guard(p, writeStub)

	var nextCalled bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(200)
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)

	if !nextCalled {
		t.Fatal("expected next to be called")
	}
	if rr.Code != 200 {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
}
