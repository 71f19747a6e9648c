package api

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/openstage/internal/middleware"
)

// RouterConfig bundles everything needed to assemble the HTTP routes.
type RouterConfig struct {
	Server         *Server
	Health         *HealthHandlers
	MetricsHandler http.Handler

	// Rate limiting, applied per route group. Nil disables limiting.
	RateLimitStore middleware.RateLimitStore
	GlobalLimit    middleware.RateLimitConfig
	CreationLimit  middleware.RateLimitConfig
	RateLimitKeyFn middleware.KeyFunc
}

// NewRouter wires the control-plane routes onto a ServeMux.
// Room and ingress creation get a tighter rate limit than the rest of the
// API because each call fans out to the media service.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	// Registering plain paths and checking the method explicitly yields 405
	// for wrong-method requests; method patterns would fall through to the
	// catch-all and report 404 instead.
	limit := func(config middleware.RateLimitConfig, h http.HandlerFunc) http.Handler {
		post := postOnly(h)
		if cfg.RateLimitStore == nil {
			return post
		}
		return middleware.RateLimiter(cfg.RateLimitStore, config, cfg.RateLimitKeyFn)(post)
	}

	s := cfg.Server
	mux.Handle("/api/create_stream", limit(cfg.CreationLimit, s.CreateStream))
	mux.Handle("/api/create_ingress", limit(cfg.CreationLimit, s.CreateIngress))
	mux.Handle("/api/join_stream", limit(cfg.GlobalLimit, s.JoinStream))
	mux.Handle("/api/stop_stream", limit(cfg.GlobalLimit, s.StopStream))
	mux.Handle("/api/invite_to_stage", limit(cfg.GlobalLimit, s.InviteToStage))
	mux.Handle("/api/raise_hand", limit(cfg.GlobalLimit, s.RaiseHand))
	mux.Handle("/api/remove_from_stage", limit(cfg.GlobalLimit, s.RemoveFromStage))

	mux.HandleFunc("/health", cfg.Health.Health)
	mux.HandleFunc("/ready", cfg.Health.Ready)
	if cfg.MetricsHandler != nil {
		mux.Handle("/metrics", cfg.MetricsHandler)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"openstage-api","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	return mux
}

// postOnly rejects non-POST requests with 405 before the handler runs.
func postOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
			return
		}
		h(w, r)
	}
}
