// Package handler exposes a read-only HTTP inspection API over a
// running simulation: market registries, order-book depth, and trade
// history. It submits nothing and mutates nothing; order flow stays
// entirely in-process.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/efreitasn/clearsim/internal/clearing"
	"github.com/efreitasn/clearsim/internal/domain"
)

// NewRouter creates a chi router with the inspection routes and
// request logging registered.
func NewRouter(ch *clearing.ClearingHouse, registry *domain.StockRegistry, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogging(logger))

	h := NewInspectHandler(ch, registry)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/markets", h.ListMarkets)
	r.Get("/markets/{market}/instruments", h.ListInstruments)
	r.Get("/markets/{market}/instruments/{key}/book", h.GetBook)
	r.Get("/markets/{market}/instruments/{key}/history", h.GetHistory)
	r.Get("/participants", h.ListParticipants)
	r.Get("/stocks", h.ListStocks)

	return r
}

// requestLogging returns middleware that logs each request's method,
// path, status code, and duration.
func requestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}
