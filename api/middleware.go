package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/shop-engine/auth"
	"github.com/warp/shop-engine/logger"
	"github.com/warp/shop-engine/metrics"
	"github.com/warp/shop-engine/shop"
)

type principalKey struct{}

// principalFrom returns the caller set by authenticate. Routes outside the
// authenticated group get the anonymous principal.
func principalFrom(r *http.Request) shop.Principal {
	p, _ := r.Context().Value(principalKey{}).(shop.Principal)
	return p
}

// authenticate requires a valid bearer token.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		p, err := h.Auth.Authenticate(strings.TrimSpace(raw))
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
				return
			}
			h.writeDomainError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, p)
		l := logger.FromContext(ctx, h.logger).With(zap.Int64("actor", int64(p.UserID)))
		ctx = logger.WithContext(ctx, l)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs one line per request with the chi request id.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		l := h.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
		next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), l)))

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", r.RemoteAddr),
		}
		switch {
		case ww.Status() >= http.StatusInternalServerError:
			l.Error("HTTP request failed", fields...)
		default:
			l.Info("HTTP request completed", fields...)
		}
	})
}

// instrument records request count and latency by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, route, strconv.Itoa(status)}
		metrics.RequestCounter.WithLabelValues(labels...).Inc()
		metrics.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}
