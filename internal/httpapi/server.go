package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/ncprobe/internal/domain"
	apimw "github.com/hamed0406/ncprobe/internal/httpapi/middleware"
	"github.com/hamed0406/ncprobe/internal/probe"
	"github.com/hamed0406/ncprobe/internal/repo"
)

// maxTimeout caps timeout_ms so a single request cannot hold a worker for long.
const maxTimeout = 30 * time.Second

// Defaults fill in what an ad-hoc check request leaves out.
type Defaults struct {
	Timeout   time.Duration
	ProxyMode string
	ProxyURL  string
}

func (d Defaults) proxy() domain.ProxyDefaults {
	return domain.ProxyDefaults{Mode: d.ProxyMode, URL: d.ProxyURL}
}

type Server struct {
	Logger   *zap.Logger
	Targets  repo.TargetStore
	Results  repo.ResultStore
	Runner   probe.Runner
	Defaults Defaults
}

func NewServer(l *zap.Logger, ts repo.TargetStore, rs repo.ResultStore, runner probe.Runner, d Defaults) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	if d.Timeout <= 0 {
		d.Timeout = probe.DefaultTimeout
	}
	return &Server{Logger: l, Targets: ts, Results: rs, Runner: runner, Defaults: d}
}

type RouterOptions struct {
	Keys           apimw.Keys
	AllowedOrigins []string // empty allows any origin
	RatePerMin     int      // 0 disables rate limiting
	RateBurst      int
}

func (s *Server) Router(o RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.accessLog)
	if len(o.AllowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: o.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	limit := apimw.RateLimit(o.RatePerMin, o.RateBurst)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAny(o.Keys))
			r.Get("/targets", s.handleListTargets)
			r.Get("/results/latest", s.handleLatest)
			r.With(limit).Post("/check", s.handleCheck)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(o.Keys))
			r.With(limit).Post("/targets", s.handleAddTarget)
			r.Delete("/targets/{id}", s.handleDeleteTarget)
		})
	})

	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}

// checkPayload is the body of POST /api/check and POST /api/targets.
type checkPayload struct {
	Destination string `json:"destination"`
	Port        *int   `json:"port,omitempty"`
	TimeoutMS   int    `json:"timeout_ms,omitempty"`
	Proxy       string `json:"proxy,omitempty"`
	ProxyMode   string `json:"proxy_mode,omitempty"`
}

// outcomeView is the API rendering of a probe.Outcome.
type outcomeView struct {
	Reachable   bool               `json:"reachable"`
	Outcome     string             `json:"outcome"`
	Destination *probe.Destination `json:"destination,omitempty"`
	Proxy       *probe.ProxyConfig `json:"proxy,omitempty"`
	ViaProxy    bool               `json:"via_proxy"`
	HTTPStatus  int                `json:"http_status,omitempty"`
	LatencyMS   float64            `json:"latency_ms"`
	Reason      string             `json:"reason,omitempty"`
	Message     string             `json:"message"`
}

func viewOf(o probe.Outcome) outcomeView {
	v := outcomeView{
		Reachable:  o.OK(),
		Outcome:    o.Kind.String(),
		Proxy:      o.Proxy,
		ViaProxy:   o.ViaProxy,
		HTTPStatus: o.Status,
		LatencyMS:  o.LatencyMS(),
		Reason:     o.Reason,
		Message:    probe.Describe(o),
	}
	if o.Target.Host != "" {
		d := o.Target
		v.Destination = &d
	}
	return v
}

func (s *Server) request(p checkPayload) probe.Request {
	req := probe.NewRequest(strings.TrimSpace(p.Destination))
	if p.Port != nil {
		req.Port = *p.Port
	}
	req.Timeout = s.Defaults.Timeout
	if p.TimeoutMS > 0 {
		req.Timeout = min(time.Duration(p.TimeoutMS)*time.Millisecond, maxTimeout)
	}
	req.Proxy, req.Mode = strings.TrimSpace(p.Proxy), probe.ProxyMode(p.ProxyMode)
	if p.Proxy == "" && p.ProxyMode == "" {
		req.Proxy, req.Mode = s.Defaults.ProxyURL, probe.ProxyMode(s.Defaults.ProxyMode)
	}
	// An unknown mode is left as-is so the outcome reports it.
	if m, err := probe.ParseProxyMode(string(req.Mode)); err == nil {
		req.Mode = m
	}
	req.Logger = probe.NopLogger
	return req
}

func decode(w http.ResponseWriter, r *http.Request, p *checkPayload) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return false
	}
	if p.TimeoutMS < 0 {
		writeError(w, http.StatusBadRequest, "timeout_ms must not be negative")
		return false
	}
	return true
}

// handleCheck probes once and always answers 200 with the outcome; only a
// malformed body is a client error.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var p checkPayload
	if !decode(w, r, &p) {
		return
	}
	out := s.Runner.Run(r.Context(), s.request(p))
	s.Logger.Info("adhoc_check",
		zap.String("destination", p.Destination),
		zap.String("outcome", out.Kind.String()),
		zap.Bool("via_proxy", out.ViaProxy),
		zap.Float64("latency_ms", out.LatencyMS()),
	)
	writeJSON(w, http.StatusOK, viewOf(out))
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p checkPayload
	if !decode(w, r, &p) {
		return
	}
	t, err := validateTarget(p)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Targets.Add(r.Context(), t); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.Logger.Warn("add_target_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not add target")
		return
	}

	// One synchronous check for immediate feedback.
	req := t.Request(s.Defaults.Timeout, s.Defaults.proxy())
	req.Logger = probe.NopLogger
	out := s.Runner.Run(r.Context(), req)
	cr := domain.NewCheckResult(t.ID, out, time.Now().UTC())
	if err := s.Results.Append(r.Context(), cr); err != nil {
		s.Logger.Warn("append_result_error", zap.String("target_id", string(t.ID)), zap.Error(err))
	}

	s.Logger.Info("added_target",
		zap.String("target_id", string(t.ID)),
		zap.String("destination", t.Destination),
		zap.String("outcome", cr.Outcome),
		zap.Float64("latency_ms", cr.LatencyMS),
	)

	writeJSON(w, http.StatusCreated, map[string]any{"target": t, "result": cr})
}

// validateTarget rejects what a check could never succeed on, so that
// broken targets are not stored.
func validateTarget(p checkPayload) (*domain.Target, error) {
	dest := strings.TrimSpace(p.Destination)
	port := probe.NoPort
	if p.Port != nil {
		port = *p.Port
	}
	if _, err := probe.ResolveTarget(dest, port); err != nil {
		return nil, err
	}
	mode, err := probe.ParseProxyMode(p.ProxyMode)
	if err != nil {
		return nil, err
	}
	proxyURL := strings.TrimSpace(p.Proxy)
	if proxyURL != "" {
		if _, err := probe.ParseProxyURL(proxyURL); err != nil {
			return nil, err
		}
	} else if mode == probe.ModeExplicit {
		return nil, errors.New("proxy_mode explicit requires proxy")
	}

	t := &domain.Target{Destination: dest, Proxy: proxyURL}
	if p.ProxyMode != "" {
		t.ProxyMode = string(mode)
	}
	// A URL carries its own port; an explicit one would be ignored anyway.
	if p.Port != nil && !strings.Contains(dest, "://") {
		v := *p.Port
		t.Port = &v
	}
	return t, nil
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.List(r.Context())
	if err != nil {
		s.Logger.Warn("list_targets_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if ts == nil {
		ts = []*domain.Target{}
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	if err := s.Targets.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.Logger.Warn("delete_target_error", zap.String("target_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete error")
		return
	}
	s.Logger.Info("deleted_target", zap.String("target_id", string(id)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Results.Latest(r.Context())
	if err != nil {
		s.Logger.Warn("latest_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "latest error")
		return
	}
	if rows == nil {
		rows = []repo.LatestRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
