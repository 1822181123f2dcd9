// Package web serves the dashboard page and the htmx fragments that
// re-render its panels when the sidebar controls change.
package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"golang.org/x/text/language"

	"penguinboard/internal/metrics"
	"penguinboard/internal/platform/logging"
	"penguinboard/internal/session"
	"penguinboard/pkg/penguins"
)

// SessionCookie carries the session id between page loads.
const SessionCookie = "penguinboard_session"

// speciesPresentField marks that the species checkbox group was submitted,
// so an empty group means "no species" rather than "unchanged".
const speciesPresentField = "species_present"

const htmxRequestHeader = "HX-Request"

// Config wires the dashboard.
type Config struct {
	Sessions *session.Manager
	// API is mounted under /api/ when set.
	API http.Handler
	// Metrics is mounted at /metrics when set.
	Metrics       http.Handler
	Logger        logging.Logger
	Recorder      metrics.Recorder
	Language      language.Tag
	SecureCookies bool
}

// Server is the dashboard HTTP surface.
type Server struct {
	cfg    Config
	logger logging.Logger
	rec    metrics.Recorder
	format cellFormatter
	mux    *http.ServeMux
}

// NewServer builds the routes for cfg.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("web: session manager required")
	}
	if cfg.Language == language.Und {
		cfg.Language = language.English
	}
	s := &Server{
		cfg:    cfg,
		logger: logging.OrNop(cfg.Logger),
		rec:    metrics.OrNop(cfg.Recorder),
		format: newCellFormatter(cfg.Language),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /{$}", s.handlePage)
	s.mux.HandleFunc("POST /controls", s.handleControls)
	s.mux.HandleFunc("GET /panels/{name}", s.handlePanel)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if cfg.Metrics != nil {
		s.mux.Handle("GET /metrics", cfg.Metrics)
	}
	if cfg.API != nil {
		s.mux.Handle("/api/", cfg.API)
	}
	return s, nil
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return Instrument(s.mux, s.rec, s.logger)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, created := s.cfg.Sessions.GetOrCreate(r.Context(), id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.cfg.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

func (s *Server) panelData(r *http.Request, sess *session.Session, sort gridSort) panelData {
	return panelData{
		Selection: sess.State.Selection(),
		Records:   sess.View.FilteredDataContext(r.Context()),
		Sort:      sort,
		Format:    s.format,
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.render(w, r, http.StatusOK, page(pageView{Panels: s.panelData(r, sess, parseGridSort(r.URL.Query()))}))
}

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePanel(r.PathValue("name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	sess := s.session(w, r)
	s.render(w, r, http.StatusOK, renderPanel(p, s.panelData(r, sess, parseGridSort(r.URL.Query())), false))
}

func (s *Server) handleControls(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	sess := s.session(w, r)

	var mu sync.Mutex
	changed := make(map[string]bool)
	unsubscribe := sess.State.Subscribe(func(c session.Change) {
		mu.Lock()
		changed[c.Key] = true
		mu.Unlock()
	})
	start := time.Now()
	errs := sess.State.Apply(controlParams(r.PostForm))
	unsubscribe()
	s.rec.Observe(r.Context(), metrics.OpSelectionSet, len(errs) == 0, time.Since(start))

	htmx := strings.EqualFold(r.Header.Get(htmxRequestHeader), "true")
	if len(errs) > 0 {
		s.logger.Debug("controls rejected", "session_id", sess.ID, "errors", len(errs))
		status := http.StatusBadRequest
		if htmx {
			// htmx only swaps 2xx responses
			status = http.StatusOK
		}
		s.render(w, r, status, errorList(errs, true))
		return
	}
	s.logger.Debug("controls applied",
		"session_id", sess.ID,
		"version", sess.State.Version(),
		"view_stale", sess.View.Stale(),
		"recomputes", sess.View.Recomputes(),
	)
	if !htmx {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	mu.Lock()
	panels := panelsFor(changed)
	mu.Unlock()
	data := s.panelData(r, sess, gridSort{})
	parts := []templ.Component{errorList(nil, true)}
	for _, p := range panels {
		parts = append(parts, renderPanel(p, data, true))
	}
	s.render(w, r, http.StatusOK, templ.Join(parts...))
}

// controlParams maps submitted form fields to parameter values. Fields that
// were not submitted are left out so they keep their current value.
func controlParams(form url.Values) map[string]any {
	params := make(map[string]any)
	for _, key := range []string{penguins.KeySelectedAttribute, penguins.KeyPlotlyBinCount, penguins.KeySeabornBinCount} {
		if form.Has(key) {
			params[key] = form.Get(key)
		}
	}
	if form.Has(speciesPresentField) || form.Has(penguins.KeySelectedSpecies) {
		species := form[penguins.KeySelectedSpecies]
		if species == nil {
			species = []string{}
		}
		params[penguins.KeySelectedSpecies] = species
	}
	// hidden "false" precedes the checkbox; the last value wins
	if vals := form[penguins.KeyShowSex]; len(vals) > 0 {
		params[penguins.KeyShowSex] = vals[len(vals)-1]
	}
	return params
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Records  int    `json:"records"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:   "ok",
		Sessions: s.cfg.Sessions.Len(),
		Records:  s.cfg.Sessions.Dataset().Len(),
	})
}

// render buffers c so a failed render can still produce a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		s.renderFailed(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) renderFailed(w http.ResponseWriter, err error) {
	s.logger.Error("render failed", "error", err)
	http.Error(w, "render failed", http.StatusInternalServerError)
}
