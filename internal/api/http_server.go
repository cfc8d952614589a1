// Package api is the single inbound HTTP entry point: datastore webhooks,
// chat platform updates, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"candypic/internal/config"
	"candypic/internal/logging"
	"candypic/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// WebhookHandler receives one classified inbound event.
type WebhookHandler interface {
	NotifyNewBooking(ctx context.Context, record *models.Booking) error
	HandleBookingUpdate(ctx context.Context, record, old *models.Booking) error
	HandleDeviceRegistration(ctx context.Context, device *models.Device) (*models.DeliveryReport, error)
	SendDebug(ctx context.Context) error
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// Pinger reports datastore health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HTTPServer struct {
	handler WebhookHandler
	db      Pinger
	secrets secretCheck
	limiter *rateLimiter
	logger  *zerolog.Logger
	server  *http.Server
}

func NewHTTPServer(cfg *config.Config, handler WebhookHandler, db Pinger, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		handler: handler,
		db:      db,
		secrets: secretCheck{
			webhookSecret:  cfg.API.WebhookSecret,
			telegramSecret: cfg.Telegram.WebhookSecret,
		},
		limiter: newRateLimiter(cfg.API.RateLimit),
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", srv.handleWebhook)
	mux.HandleFunc("POST /{$}", srv.handleWebhook)
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	if cfg.Monitoring.PrometheusEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           srv.loggingMiddleware(srv.rateLimitMiddleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      handlerTimeout + 5*time.Second,
	}

	return srv
}

// Handler exposes the routed handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, requestID := logging.WithRequest(r.Context(), s.logger, "http")
		w.Header().Set("X-Request-ID", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))

		zerolog.Ctx(ctx).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
