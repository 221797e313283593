package server

import (
	"log/slog"
	"math"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/54b3r/promptdoc-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained requests/second per client IP.
	defaultRateLimit = 10
	// defaultRateBurst is the bucket size per client IP.
	defaultRateBurst = 20
	// limiterIdleTTL is how long a client's bucket survives without traffic.
	limiterIdleTTL = 5 * time.Minute
	// maxTrackedClients bounds the number of buckets held at once; the least
	// recently seen client is dropped first.
	maxTrackedClients = 10_000
	// maxRetryAfter caps the Retry-After hint, in seconds.
	maxRetryAfter = 3600
)

// clientLimiter applies a token bucket per client IP to the expensive routes
// (uploads and chat).
type clientLimiter struct {
	// mu makes the lookup-or-create of a bucket atomic.
	mu sync.Mutex
	// buckets maps client IP to its bucket; idle entries expire.
	buckets *expirable.LRU[string, *rate.Limiter]
	// rps is the sustained rate per client.
	rps rate.Limit
	// burst is the bucket size per client.
	burst int
	// reject records a refused request for metrics.
	reject func(reason string)
}

// newClientLimiter builds a clientLimiter allowing rps requests/second with
// the given burst for each client.
func newClientLimiter(rps float64, burst int, reject func(reason string)) *clientLimiter {
	return &clientLimiter{
		buckets: expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, limiterIdleTTL),
		rps:     rate.Limit(rps),
		burst:   burst,
		reject:  reject,
	}
}

// bucket returns the limiter for ip and renews its idle deadline.
func (c *clientLimiter) bucket(ip string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	lim, ok := c.buckets.Get(ip)
	if !ok {
		lim = rate.NewLimiter(c.rps, c.burst)
	}
	c.buckets.Add(ip, lim)
	return lim
}

// purge forgets every client.
func (c *clientLimiter) purge() {
	c.buckets.Purge()
}

// wrap returns next behind the per-client limit. Refused requests get 429
// with a Retry-After hint derived from the bucket's refill time.
func (c *clientLimiter) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		res := c.bucket(ip).Reserve()
		delay := res.Delay()
		if res.OK() && delay == 0 {
			next.ServeHTTP(w, r)
			return
		}
		res.Cancel()

		logging.FromContext(r.Context()).Warn("rate limit exceeded",
			slog.String("ip", ip),
			slog.String("path", r.URL.Path),
			slog.Duration("retry_in", delay),
		)
		if c.reject != nil {
			c.reject("rate_limited")
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(delay)))
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	})
}

// retryAfterSeconds rounds d up to whole seconds within [1, maxRetryAfter].
func retryAfterSeconds(d time.Duration) int {
	secs := math.Ceil(d.Seconds())
	if secs < 1 {
		return 1
	}
	if secs > maxRetryAfter {
		return maxRetryAfter
	}
	return int(secs)
}

// clientIP returns the IP of the peer. X-Forwarded-For is not trusted; the
// server binds to a private interface or sits behind a proxy that sets
// RemoteAddr.
func clientIP(r *http.Request) string {
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().Unmap().String()
	}
	if addr, err := netip.ParseAddr(r.RemoteAddr); err == nil {
		return addr.Unmap().String()
	}
	if i := strings.LastIndexByte(r.RemoteAddr, ':'); i > 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
