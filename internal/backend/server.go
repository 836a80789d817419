/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"goformbuilder/internal/form"
	applog "goformbuilder/internal/log"
	"goformbuilder/internal/storage"
	"goformbuilder/internal/version"
)

// Forms is the document store the server exposes. Both the local file store
// and PGStore satisfy it.
type Forms interface {
	Save(ctx context.Context, doc form.Document) (string, error)
	Update(ctx context.Context, id string, doc form.Document) error
	Load(ctx context.Context, id string) (form.Document, error)
	List(ctx context.Context) ([]storage.Summary, error)
	Delete(ctx context.Context, id string) error
}

// Pinger reports backing store readiness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Config holds server configuration.
type Config struct {
	Addr    string // http bind address, e.g., ":8080"
	Secret  string
	Origins []string // browser origins allowed by CORS; empty disables CORS
}

// ConfigFromEnv reads GFB_ADDR (or PORT), GFB_AUTH_SECRET and GFB_CORS_ORIGINS.
func ConfigFromEnv() Config {
	cfg := Config{Addr: ":8080", Secret: os.Getenv("GFB_AUTH_SECRET")}
	for _, o := range strings.Split(os.Getenv("GFB_CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.Origins = append(cfg.Origins, o)
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	if v := os.Getenv("GFB_ADDR"); v != "" {
		cfg.Addr = v
	}
	return cfg
}

const maxBody = 4 << 20

// Server is the HTTP API over a form store.
type Server struct {
	forms    Forms
	ready    Pinger
	secret   string
	log      *slog.Logger
	now      func() time.Time
	metrics  *metrics
	validate *validator.Validate
	origins  []string
}

// NewServer builds a server. ready may be nil when the store has no health check.
func NewServer(forms Forms, ready Pinger, secret string) *Server {
	l := applog.WithComponent("backend")
	if secret == "" {
		secret = "dev-secret-change-me"
		l.Warn("GFB_AUTH_SECRET not set; using insecure dev secret")
	}
	return &Server{
		forms:    forms,
		ready:    ready,
		secret:   secret,
		log:      l,
		now:      time.Now,
		metrics:  newMetrics(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// AllowOrigins enables CORS for the given browser origins. Wildcards such as
// "https://*.example.com" are accepted.
func (s *Server) AllowOrigins(origins ...string) *Server {
	s.origins = append(s.origins[:0:0], origins...)
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.logRequests)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.metrics.instrument)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.handleReady)
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(version.String()))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/token", s.handleToken)
		r.Route("/forms", func(r chi.Router) {
			r.Get("/", s.withAuth(s.handleList))
			r.Post("/", s.withAuth(s.handleCreate))
			r.Get("/{id}", s.withAuth(s.handleGet))
			r.Put("/{id}", s.withAuth(s.handlePut))
			r.Delete("/{id}", s.withAuth(s.handleDelete))
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(start)),
			slog.String("req", chimiddleware.GetReqID(r.Context())),
		)
	})
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", slog.String("addr", addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type tokenRequest struct {
	Subject    string `json:"subject" validate:"omitempty,max=128,printascii"`
	TTLSeconds int64  `json:"ttl_seconds" validate:"gte=0,lte=86400"`
}

// POST /api/auth/token → { token, expires_at }
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode token request: %w", err))
			return
		}
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("token request: %w", err))
		return
	}
	if req.Subject == "" {
		req.Subject = "dev"
	}
	if req.TTLSeconds == 0 {
		req.TTLSeconds = 3600
	}
	now := s.now()
	exp := now.Add(time.Duration(req.TTLSeconds) * time.Second)
	tok, err := signToken(s.secret, req.Subject, now, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.metrics.tokens.Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

// summaryJSON is the wire form of storage.Summary.
type summaryJSON struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Elements    int       `json:"elements"`
	Pages       int       `json:"pages"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, _ string) {
	list, err := s.forms.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]summaryJSON, 0, len(list))
	for _, sm := range list {
		out = append(out, summaryJSON(sm))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, sub string) {
	doc, err := readDocument(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	id, err := s.forms.Save(r.Context(), doc)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.metrics.saves.WithLabelValues("create").Inc()
	s.log.Info("form created", slog.String("form", id), slog.String("sub", sub))
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, _ string) {
	doc, err := s.forms.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, _ string) {
	doc, err := readDocument(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.forms.Update(r.Context(), id, doc); err != nil {
		s.fail(w, err)
		return
	}
	s.metrics.saves.WithLabelValues("update").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, _ string) {
	if err := s.forms.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readDocument(r *http.Request) (form.Document, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return form.Document{}, err
	}
	if err := storage.Validate(b); err != nil {
		return form.Document{}, err
	}
	var doc form.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return form.Document{}, fmt.Errorf("%w: decode form: %v", storage.ErrInvalidDocument, err)
	}
	return doc, nil
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, storage.ErrInvalidDocument):
		writeError(w, http.StatusUnprocessableEntity, err)
	case strings.Contains(err.Error(), "invalid form id"):
		writeError(w, http.StatusBadRequest, err)
	default:
		s.log.Error("request failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err)
	}
}
