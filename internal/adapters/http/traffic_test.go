package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestRateLimitMiddleware(t *testing.T) {
	handler := rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), 1, 1)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("expected a Retry-After header on the shed request")
	}
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	handler := rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), 0, 0)

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}
}

func TestBackpressureMiddlewareShedsWhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	handler := backpressureMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	}), 1, 20*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	slow := httptest.NewRecorder()
	go func() {
		defer wg.Done()
		handler.ServeHTTP(slow, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	}()
	<-started

	shed := httptest.NewRecorder()
	handler.ServeHTTP(shed, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if shed.Code != http.StatusServiceUnavailable {
		t.Fatalf("saturated request status = %d, want 503", shed.Code)
	}

	close(release)
	wg.Wait()
	if slow.Code != http.StatusOK {
		t.Fatalf("slot-holding request status = %d, want 200", slow.Code)
	}
}

func TestBackpressureMiddlewareReleasesSlot(t *testing.T) {
	handler := backpressureMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), 1, 20*time.Millisecond)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("sequential request %d status = %d, want 200", i, rec.Code)
		}
	}
}
