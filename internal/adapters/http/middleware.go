package httpadapter

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-Id"

type requestIDContextKey struct{}

func requestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDContextKey{}, requestID)))
	})
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		remoteAddr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			remoteAddr = host
		}

		logAttrs := []any{
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes", ww.BytesWritten(),
			"remote_addr", remoteAddr,
		}
		if ua := r.UserAgent(); ua != "" {
			logAttrs = append(logAttrs, "user_agent", ua)
		}

		switch {
		case status >= 500:
			slog.Error("http_request", logAttrs...)
		case status >= 400:
			slog.Warn("http_request", logAttrs...)
		default:
			slog.Info("http_request", logAttrs...)
		}
	})
}

// rateLimitMiddleware applies one token bucket to all clients.
func rateLimitMiddleware(next http.Handler, rps float64, burst int) http.Handler {
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	retryAfter := int(1 / rps)
	if retryAfter < 1 {
		retryAfter = 1
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type slotLeaseContextKey struct{}

// slotLease is one backpressure slot. A handler whose work outlives the
// request detaches the lease and releases it when that work is done.
type slotLease struct {
	release  func()
	once     sync.Once
	detached atomic.Bool
}

func (l *slotLease) Release() {
	l.once.Do(l.release)
}

// detachSlot hands the caller's slot over to background work. The returned
// func must be called exactly when that work finishes.
func detachSlot(ctx context.Context) func() {
	lease, ok := ctx.Value(slotLeaseContextKey{}).(*slotLease)
	if !ok {
		return func() {}
	}
	lease.detached.Store(true)
	return lease.Release
}

// backpressureMiddleware caps concurrent pipelines. A request waits up to
// wait for a slot and is rejected with 503 otherwise. The slot stays taken
// until the pipeline finishes, even after a 504 has been sent.
func backpressureMiddleware(next http.Handler, maxInFlight int, wait time.Duration) http.Handler {
	if maxInFlight <= 0 {
		return next
	}
	slots := make(chan struct{}, maxInFlight)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case slots <- struct{}{}:
		case <-timer.C:
			slog.Warn("upload_rejected_overloaded",
				"request_id", requestIDFromContext(r.Context()),
				"max_in_flight", maxInFlight,
			)
			writeError(w, http.StatusServiceUnavailable, "server is busy, retry later")
			return
		case <-r.Context().Done():
			return
		}
		lease := &slotLease{release: func() { <-slots }}
		defer func() {
			if !lease.detached.Load() {
				lease.Release()
			}
		}()

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), slotLeaseContextKey{}, lease)))
	})
}
