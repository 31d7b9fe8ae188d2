package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestJSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(nil)
	resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := resp.Data.(map[string]any)
	if !ok || m["ok"] != true {
		t.Fatalf("unexpected data: %v", resp.Data)
	}
	if resp.CorrelationID == "" {
		t.Fatal("expected a generated correlation id")
	}
}

func TestCorrelationIDPropagatesWhenCallerSuppliesOne(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Request-Id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(nil)
	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodGet, URL: srv.URL,
		Headers: map[string]string{"X-Request-Id": "caller-supplied"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != "caller-supplied" || resp.CorrelationID != "caller-supplied" {
		t.Fatalf("expected caller-supplied correlation id to propagate, got header=%q resp=%q", seen, resp.CorrelationID)
	}
}

func TestMaxAttemptsZeroMeansOneAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(nil)
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL, Retries: 0})
	if err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
}

func TestRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(nil)
	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodGet, URL: srv.URL, Retries: 2, Delay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
}

func TestRetryDelayDoublesUnderExponentialBackoff(t *testing.T) {
	req := Request{Delay: 10 * time.Millisecond, Backoff: BackoffExponential}
	got := []time.Duration{retryDelay(req, 1), retryDelay(req, 2), retryDelay(req, 3)}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("attempt %d: got %v, want %v", i+1, got[i], want[i])
		}
	}
}

func TestRetryDelayFixedIgnoresAttempt(t *testing.T) {
	req := Request{Delay: 10 * time.Millisecond, Backoff: BackoffFixed}
	if got := retryDelay(req, 3); got != 10*time.Millisecond {
		t.Fatalf("got %v, want fixed 10ms", got)
	}
	req2 := Request{Delay: 10 * time.Millisecond}
	if got := retryDelay(req2, 3); got != 10*time.Millisecond {
		t.Fatalf("got %v, want fixed 10ms when Backoff unset", got)
	}
}

func TestDoesNotRetryOnOther4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(nil)
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL, Retries: 3, Delay: time.Millisecond})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected no retries on 403, got %d calls", calls)
	}
}

func TestRetriesOn408(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusRequestTimeout)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(nil)
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL, Retries: 1, Delay: time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestGetBodyIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 {
			t.Errorf("expected no body on GET, got content-length %d", r.ContentLength)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(nil)
	_, err := c.Do(context.Background(), Request{
		Method: http.MethodGet, URL: srv.URL, Body: map[string]any{"a": 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNon2xxAfterRetriesIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(nil)
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL, Retries: 1, Delay: time.Millisecond})
	if err == nil {
		t.Fatalf("expected error")
	}
	te, ok := err.(*TransportError)
	if !ok || te.Status != http.StatusBadGateway {
		t.Fatalf("expected TransportError with 502, got %#v", err)
	}
}
