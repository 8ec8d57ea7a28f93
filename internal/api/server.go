// Package api exposes the loan assistant over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"loan-assistant/internal/common/config"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/conversation"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ChatService is the conversation surface the handlers drive.
type ChatService interface {
	ProcessTurn(ctx context.Context, threadID, text string) (*conversation.TurnResult, error)
	ResolveUpload(ctx context.Context, threadID string, doc conversation.Document) (*conversation.UploadResult, error)
	ResetSession(ctx context.Context, threadID string) error
}

type Server struct {
	cfg         config.ServerConfig
	chat        ChatService
	sanctionDir string
	logger      logger.Logger
}

func NewServer(cfg config.ServerConfig, chat ChatService, sanctionDir string, log logger.Logger) *Server {
	return &Server{
		cfg:         cfg,
		chat:        chat,
		sanctionDir: sanctionDir,
		logger:      logger.ForComponent(log, "api"),
	}
}

// Routes builds the router with the middleware stack applied.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit.Requests > 0 {
			r.Use(RateLimit(s.cfg.RateLimit.Requests, time.Duration(s.cfg.RateLimit.Window)*time.Millisecond))
		}
		r.Post("/chat", s.handleChat)
		r.Post("/upload", s.handleUpload)
		r.Post("/reset/{threadID}", s.handleReset)
		r.Get("/offers", s.handleOffers)
		r.Get("/sanction/{name}", s.handleSanction)
	})

	return r
}

// HTTPServer wraps the router with the configured timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.Routes(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Millisecond,
	}
}
