package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// hit sends one request from remoteAddr through h and returns the recorder.
func hit(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/documents", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestClientLimiter_BurstThenRefuse(t *testing.T) {
	t.Parallel()

	var got reasons
	h := newClientLimiter(0.001, 3, got.record).wrap(passThrough)

	for i := range 3 {
		if w := hit(h, "10.0.0.1:4000"); w.Code != http.StatusOK {
			t.Fatalf("request %d inside the burst: status %d", i, w.Code)
		}
	}

	w := hit(h, "10.0.0.1:4001")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("request over the burst: status %d, want 429", w.Code)
	}
	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || secs < 1 || secs > maxRetryAfter {
		t.Errorf("Retry-After = %q, want 1..%d seconds", w.Header().Get("Retry-After"), maxRetryAfter)
	}
	if len(got) != 1 || got[0] != "rate_limited" {
		t.Errorf("reject reasons = %v, want [rate_limited]", got)
	}
}

func TestClientLimiter_ClientsAreIndependent(t *testing.T) {
	t.Parallel()

	h := newClientLimiter(0.001, 1, nil).wrap(passThrough)

	hit(h, "192.168.1.1:1111")
	if w := hit(h, "192.168.1.1:1112"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("first client not limited: status %d", w.Code)
	}
	if w := hit(h, "192.168.1.2:1111"); w.Code != http.StatusOK {
		t.Errorf("second client limited by the first: status %d", w.Code)
	}
}

func TestClientLimiter_PurgeForgetsClients(t *testing.T) {
	t.Parallel()

	cl := newClientLimiter(0.001, 1, nil)
	h := cl.wrap(passThrough)

	hit(h, "10.0.0.9:1")
	if w := hit(h, "10.0.0.9:1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429 before purge", w.Code)
	}
	cl.purge()
	if w := hit(h, "10.0.0.9:1"); w.Code != http.StatusOK {
		t.Errorf("status %d, want 200 after purge", w.Code)
	}
}

func TestClientLimiter_BucketReused(t *testing.T) {
	t.Parallel()

	cl := newClientLimiter(1, 1, nil)
	if cl.bucket("10.0.0.1") != cl.bucket("10.0.0.1") {
		t.Error("same client got two buckets")
	}
	if cl.bucket("10.0.0.1") == cl.bucket("10.0.0.2") {
		t.Error("different clients share a bucket")
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	for d, want := range map[time.Duration]int{
		0:                       1,
		300 * time.Millisecond:  1,
		1500 * time.Millisecond: 2,
		90 * time.Second:        90,
		48 * time.Hour:          maxRetryAfter,
	} {
		if got := retryAfterSeconds(d); got != want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", d, got, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"127.0.0.1:54321", "127.0.0.1"},
		{"[::1]:8080", "::1"},
		{"[::ffff:10.1.2.3]:443", "10.1.2.3"},
		{"10.0.0.7", "10.0.0.7"},
		{"client.local:80", "client.local"},
		{"noport", "noport"},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remoteAddr
		if got := clientIP(req); got != tc.want {
			t.Errorf("clientIP(%q) = %q, want %q", tc.remoteAddr, got, tc.want)
		}
	}
}
