package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iamzubin/dodo-ledger/internal/authgate"
	"github.com/iamzubin/dodo-ledger/internal/logging"
	"github.com/iamzubin/dodo-ledger/internal/metrics"
	"github.com/iamzubin/dodo-ledger/internal/ratelimit"
)

// NewRouter wires every route the teacher's cmd/api/main.go registered,
// generalized to the tenant-scoped surface spec §6 names. Authenticated
// routes pass through the auth gate and the per-key rate limiter before
// reaching their handler.
func NewRouter(s *Server, gate *authgate.Gate, limiter *ratelimit.Limiter) *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)
	r.Use(loggingMiddleware(s.log))

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/auth/signup", s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/auth/generate-api-key", s.handleGenerateAPIKey).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(gate.Middleware)
	authed.Use(rateLimitMiddleware(limiter))

	authed.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	authed.HandleFunc("/accounts/create", s.handleCreateAccount).Methods(http.MethodPost)
	authed.HandleFunc("/accounts/transfer", s.handleTransfer).Methods(http.MethodPost)
	authed.HandleFunc("/accounts/credit-debit", s.handleCreditDebit).Methods(http.MethodPost)
	authed.HandleFunc("/webhooks/register", s.handleRegisterWebhook).Methods(http.MethodPost)
	authed.HandleFunc("/webhooks/list", s.handleListWebhooks).Methods(http.MethodGet)

	return r
}

// metricsMiddleware records the request counter/histogram pair the teacher
// already exposed on /metrics (SPEC_FULL §2).
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// loggingMiddleware attaches a request-scoped logger carrying the route and
// method to the request context, then logs the status and observed latency
// once the handler returns (SPEC_FULL §2), the way midaz's
// mlog pattern threads one logger instance through context rather than a
// package-level global.
func loggingMiddleware(base *zap.SugaredLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := base.With("route", r.URL.Path, "method", r.Method)
			ctx := logging.WithContext(r.Context(), reqLog)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			reqLog.Infow("request handled", "status", rec.status, "latency_ms", time.Since(start).Milliseconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// rateLimitMiddleware enforces the per-API-key token bucket (spec §4.1/§5),
// keyed on the SHA-256 hash of the Authorization header value (the same
// hash the auth gate looks up), so the limiter never holds the plaintext key.
func rateLimitMiddleware(limiter *ratelimit.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := authgate.HashKey(authgate.RawKey(r))
			if !limiter.Allow(key) {
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
