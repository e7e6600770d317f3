// internal/server/server.go
// Package server exposes the deliberation pipeline over HTTP. The stream
// endpoint writes newline-delimited event lines and flushes after each so
// clients see progress as it happens.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"council-orchestrator/internal/common/config"
	commonerrors "council-orchestrator/internal/common/errors"
	"council-orchestrator/internal/common/logger"
	"council-orchestrator/internal/judgments"
	"council-orchestrator/internal/models"
)

// Deliberator is the orchestrator surface the server needs.
type Deliberator interface {
	Deliberate(ctx context.Context, q models.Query) <-chan models.StreamEvent
}

type Server struct {
	cfg          config.ServerConfig
	orchestrator Deliberator
	downloader   *judgments.Downloader
	logger       logger.Logger
	httpServer   *http.Server
}

func New(cfg config.ServerConfig, orchestrator Deliberator, downloader *judgments.Downloader, log logger.Logger) *Server {
	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		downloader:   downloader,
		logger:       log.With(map[string]interface{}{"component": "server"}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/judgments/download", s.handleJudgmentDownload)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", map[string]interface{}{"address": s.cfg.Address})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleStream runs one deliberation and writes its events as they arrive.
// A client disconnect cancels the request context; the pipeline stops
// without emitting an error event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		http.Error(w, "query parameter is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	q := models.Query{
		Text:           query,
		ConversationID: r.URL.Query().Get("conversation_id"),
		UserID:         r.URL.Query().Get("user_id"),
		Mode:           models.ParseMode(r.URL.Query().Get("mode")),
		WebSearch:      r.URL.Query().Get("web_search") == "true",
	}
	if window, err := strconv.Atoi(r.URL.Query().Get("context_window")); err == nil {
		q.ContextWindow = window
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for event := range s.orchestrator.Deliberate(r.Context(), q) {
		if _, err := fmt.Fprintf(w, "%s\n", event.Encode()); err != nil {
			// Client is gone; the context cancellation unwinds the pipeline.
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleJudgmentDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "url parameter is required", http.StatusBadRequest)
		return
	}

	filename, year, err := judgments.ResolveFilename(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if err := s.downloader.Stream(r.Context(), filename, year, w); err != nil {
		s.logger.Warn("judgment download failed", map[string]interface{}{
			"filename": filename,
			"error":    err.Error(),
		})
		// Headers may already be written; only map to a status when the
		// failure happened before any body bytes.
		var stdErr *commonerrors.StandardError
		if errors.As(err, &stdErr) && stdErr.Code == commonerrors.ErrCodeJudgmentNotFound {
			http.Error(w, stdErr.Message, http.StatusNotFound)
			return
		}
		http.Error(w, "download failed", http.StatusBadGateway)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
