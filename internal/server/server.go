// Package server exposes the transformation core over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"eolsweep/internal/core"
	"eolsweep/internal/fleet"
	"eolsweep/internal/ledger"
)

// MaxBodyBytes caps the size of a submitted workflow.
const MaxBodyBytes = 1 << 20

// Server handles transform requests with a fixed default version set.
type Server struct {
	transformer core.Transformer
	versions    core.VersionSet
	ledger      *ledger.Ledger
	logger      *slog.Logger
}

// New builds a server. l may be nil, in which case the ledger routes
// answer 404.
func New(t core.Transformer, vs core.VersionSet, l *ledger.Ledger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{transformer: t, versions: vs, ledger: l, logger: logger}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/transform", s.handleTransform)
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/records", s.handleLedgerRecords)
		r.Get("/verify", s.handleLedgerVerify)
	})
	return r
}

// ListenAndServe serves until ctx is canceled, then drains for up to five
// seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Transform server starting.", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("Transform server draining.")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served.",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok\n")
}

// TransformResponse is the JSON body returned by POST /transform.
type TransformResponse struct {
	Status   string        `json:"status"`
	Output   string        `json:"output"`
	Changes  []core.Change `json:"changes"`
	Warnings []string      `json:"warnings"`
	Error    string        `json:"error,omitempty"`
}

// handleTransform rewrites the workflow in the request body. The query
// parameters remove and install override the server's version set, and
// encoding=base64 accepts API-style encoded content.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	vs, err := s.versionSet(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	data, err := fleet.DecodeContent(body, r.URL.Query().Get("encoding"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res := s.transformer.Transform(data, vs)
	resp := TransformResponse{
		Status:   res.Status.String(),
		Output:   string(res.Output),
		Changes:  res.Changes,
		Warnings: make([]string, 0, len(res.Warnings)),
	}
	if resp.Changes == nil {
		resp.Changes = []core.Change{}
	}
	for _, warn := range res.Warnings {
		resp.Warnings = append(resp.Warnings, warn.String())
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}

	code := http.StatusOK
	if res.Status == core.StatusParseFailed {
		s.logger.Warn("Rejected malformed workflow.", "reason", res.Err, "request_id", middleware.GetReqID(r.Context()))
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, resp)
}

func (s *Server) versionSet(r *http.Request) (core.VersionSet, error) {
	vs := s.versions
	q := r.URL.Query()
	if !q.Has("remove") && !q.Has("install") {
		return vs, nil
	}
	if q.Has("remove") {
		vs.Remove = core.ParseVersionList(q.Get("remove"))
	}
	if q.Has("install") {
		vs.Install = core.ParseVersionList(q.Get("install"))
	}
	return vs, vs.Validate()
}

func (s *Server) handleLedgerRecords(w http.ResponseWriter, _ *http.Request) {
	if s.ledger == nil {
		writeError(w, http.StatusNotFound, errors.New("ledger not configured"))
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.Records())
}

func (s *Server) handleLedgerVerify(w http.ResponseWriter, _ *http.Request) {
	if s.ledger == nil {
		writeError(w, http.StatusNotFound, errors.New("ledger not configured"))
		return
	}
	if err := s.ledger.VerifyChain(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "records": s.ledger.NextIndex()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
