package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/reconpipe/internal/config"
	apimw "github.com/hamed0406/reconpipe/internal/httpapi/middleware"
	"github.com/hamed0406/reconpipe/internal/pipeline"
	"github.com/hamed0406/reconpipe/internal/probe"
	"github.com/hamed0406/reconpipe/internal/sink"
	"github.com/hamed0406/reconpipe/internal/source"
)

const (
	maxBodyBytes = 4 << 20
	maxTargets   = 10000
)

type Server struct {
	Logger  *zap.Logger
	MaxRuns int // concurrent /api runs, 0 = unlimited

	// Defaults holds the base configuration of each pipeline; request
	// fields are overlaid on a copy.
	Defaults map[config.Variant]config.Config

	// NewResolver builds the resolver for /api/resolve; defaults to probe.NewResolver.
	NewResolver func(cfg config.Config) (probe.Resolver, error)
}

func NewServer(l *zap.Logger, maxRuns int, resolve, fetch config.Config) *Server {
	return &Server{
		Logger:  l,
		MaxRuns: maxRuns,
		Defaults: map[config.Variant]config.Config{
			config.VariantResolve: resolve,
			config.VariantFetch:   fetch,
		},
		NewResolver: func(cfg config.Config) (probe.Resolver, error) {
			return probe.NewResolver(cfg.Resolver, cfg.DNSServer, cfg.Timeout)
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.MaxInFlight(s.MaxRuns))
		r.Post("/api/resolve", s.handleResolve)
		r.Post("/api/fetch", s.handleFetch)
	})

	return r
}

type runRequest struct {
	Targets         []string          `json:"targets"`
	Concurrency     int               `json:"concurrency,omitempty"`
	TimeoutSeconds  int               `json:"timeout_seconds,omitempty"`
	Resolver        string            `json:"resolver,omitempty"`
	Method          string            `json:"method,omitempty"`
	FollowRedirects *bool             `json:"follow_redirects,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
}

// options decodes the request and overlays it on the defaults for v.
func (s *Server) options(w http.ResponseWriter, r *http.Request, v config.Variant) (runRequest, config.Config, error) {
	var p runRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&p); err != nil {
		return p, config.Config{}, fmt.Errorf("bad payload: %w", err)
	}
	if len(p.Targets) == 0 {
		return p, config.Config{}, errors.New("targets must not be empty")
	}
	if len(p.Targets) > maxTargets {
		return p, config.Config{}, fmt.Errorf("at most %d targets per request", maxTargets)
	}

	cfg := s.Defaults[v]
	cfg.ExtraHeaders = append([]string(nil), cfg.ExtraHeaders...)
	if p.Concurrency != 0 {
		cfg.MaxConcurrency = p.Concurrency
	}
	if p.TimeoutSeconds != 0 {
		cfg.Timeout = time.Duration(p.TimeoutSeconds) * time.Second
	}
	if p.Resolver != "" {
		cfg.Resolver = p.Resolver
	}
	if p.Method != "" {
		cfg.Method = p.Method
	}
	if p.FollowRedirects != nil {
		cfg.FollowRedirects = *p.FollowRedirects
	}
	for k, v := range p.Headers {
		cfg.ExtraHeaders = append(cfg.ExtraHeaders, k+": "+v)
	}
	if err := cfg.Validate(); err != nil {
		return p, cfg, err
	}
	return p, cfg, nil
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	p, cfg, err := s.options(w, r, config.VariantResolve)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.NewResolver(cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.stream(w, r, "resolve", p.Targets, cfg, probe.NewDNSProber(res, cfg.Timeout, s.Logger))
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	p, cfg, err := s.options(w, r, config.VariantFetch)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	prober, err := probe.ForFetch(cfg, s.Logger)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.stream(w, r, "fetch", p.Targets, cfg, prober)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, op string, targets []string, cfg config.Config, prober probe.Prober) {
	pool, err := pipeline.NewPool(pipeline.PoolConfig{
		Workers: cfg.MaxConcurrency,
		Prober:  prober,
		Logger:  s.Logger,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	in, _ := source.Stream(r.Context(), targets, nil)
	sum, err := pipeline.Run(r.Context(), in, pool, sink.NewNDJSONSink(w))

	fields := []zap.Field{
		zap.String("op", op),
		zap.Int("targets", len(targets)),
		zap.Int("workers", cfg.MaxConcurrency),
		zap.Int64("succeeded", sum.Succeeded),
		zap.Int64("empty", sum.Empty),
		zap.Int64("failed", sum.Failed),
		zap.Duration("elapsed", sum.Elapsed),
	}
	if err != nil {
		s.Logger.Warn("api_run_incomplete", append(fields, zap.Error(err))...)
		return
	}
	s.Logger.Info("api_run", fields...)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
