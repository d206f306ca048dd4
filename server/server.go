// Package server is the HTTP boundary: a shared-secret webhook endpoint
// that runs one scrape invocation synchronously, plus a liveness probe.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bbscraper/auth"
	"bbscraper/config"
	"bbscraper/log"
	"bbscraper/scraper"
	"bbscraper/types"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// SecretHeader carries the shared webhook secret.
const SecretHeader = "X-Webhook-Secret"

// ScrapeFunc runs one scrape invocation. Each call gets a fresh,
// independent browser session.
type ScrapeFunc func(ctx context.Context) (*types.ScrapeResult, error)

type Server struct {
	cfg    *config.Config
	scrape ScrapeFunc
}

func New(cfg *config.Config, scrape ScrapeFunc) *Server {
	return &Server{cfg: cfg, scrape: scrape}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/scrape", s.handleScrape).Methods(http.MethodPost)
	r.Use(s.logMiddleware)
	return cors.Default().Handler(r)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logger := slog.With(slog.String("method", req.Method), slog.String("path", req.URL.Path))
		next.ServeHTTP(w, req.WithContext(log.ContextWithLogger(req.Context(), logger)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleScrape(w http.ResponseWriter, req *http.Request) {
	logger := log.LoggerFromContext(req.Context())

	// exact, case sensitive comparison after trimming whitespace on
	// both sides
	got := strings.TrimSpace(req.Header.Get(SecretHeader))
	want := strings.TrimSpace(s.cfg.WebhookSecret)
	if want == "" || got != want {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := s.cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := req.Context()
	if s.cfg.ScrapeTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.ScrapeTimeoutSeconds)*time.Second)
		defer cancel()
	}

	start := time.Now()
	result, err := s.scrape(ctx)
	if err != nil {
		var authErr *auth.FailedError
		var navErr *scraper.NoAssignmentsError
		switch {
		case errors.As(err, &authErr):
			logger.Error("authentication failed", slog.String("last_url", authErr.LastURL))
		case errors.As(err, &navErr):
			logger.Error("no assignments found", slog.String("url", navErr.URL))
		default:
			logger.Error("scrape failed", slog.String("err", err.Error()))
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("scrape finished",
		slog.Int("assignments", len(result.Assignments)),
		slog.Duration("took", time.Since(start)))
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("err", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
