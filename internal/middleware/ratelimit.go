package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/code-debugger/internal/metrics"
)

// LimiterConfig bounds how much code the server runs.
type LimiterConfig struct {
	// RatePerSec and Burst apply to each client IP.
	RatePerSec float64
	Burst      int
	// GlobalRatePerSec caps all clients together. Zero means four times the
	// per-IP rate.
	GlobalRatePerSec float64
	// MaxConcurrent is the number of executions allowed in flight at once.
	MaxConcurrent int
	// IdleTTL is how long an IP's limiter is kept after its last request.
	IdleTTL time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter rejects execution requests that arrive too fast, globally or from
// one IP, or that would exceed the concurrency cap. Rejected requests get a
// 429 with a JSON body in the same shape the handlers use for errors.
type Limiter struct {
	cfg    LimiterConfig
	global *rate.Limiter
	slots  chan struct{}
	now    func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewLimiter creates a Limiter. Non-positive values fall back to one request
// per second, a burst of one and a single execution slot.
func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.GlobalRatePerSec <= 0 {
		cfg.GlobalRatePerSec = 4 * cfg.RatePerSec
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}

	return &Limiter{
		cfg:      cfg,
		global:   rate.NewLimiter(rate.Limit(cfg.GlobalRatePerSec), 2*cfg.Burst),
		slots:    make(chan struct{}, cfg.MaxConcurrent),
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// Handler wraps next with the rate and concurrency checks.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowAll(l.visitor(clientIP(r)), l.global) {
			l.reject(w, "too many requests, slow down")
			return
		}

		select {
		case l.slots <- struct{}{}:
		default:
			l.reject(w, "the server is busy running other programs, try again shortly")
			return
		}
		defer func() { <-l.slots }()

		next.ServeHTTP(w, r)
	})
}

// allowAll takes one token from every limiter, or from none of them. A
// request the per-IP limiter turns away must not spend the global budget.
func allowAll(limiters ...*rate.Limiter) bool {
	now := time.Now()
	taken := make([]*rate.Reservation, 0, len(limiters))
	for _, lim := range limiters {
		res := lim.ReserveN(now, 1)
		if !res.OK() || res.DelayFrom(now) > 0 {
			res.CancelAt(now)
			for _, prev := range taken {
				prev.CancelAt(now)
			}
			return false
		}
		taken = append(taken, res)
	}
	return true
}

func (l *Limiter) visitor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.cfg.RatePerSec), l.cfg.Burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = l.now()
	return v.limiter
}

// Sweep forgets IPs idle for longer than IdleTTL and returns how many were
// removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.IdleTTL)
	removed := 0
	for ip, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, ip)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func (l *Limiter) reject(w http.ResponseWriter, message string) {
	metrics.RateLimitHits.Inc()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(1))
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "rate_limited",
		"message": message,
	})
}

// clientIP is the host part of RemoteAddr. chimiddleware.RealIP, when it runs
// earlier in the chain, has already replaced RemoteAddr with the forwarded
// address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
