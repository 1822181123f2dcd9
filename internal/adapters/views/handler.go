// Package views exposes sessions, their selections and derived views over a
// JSON/CSV HTTP API, and renders exports asynchronously into blob storage.
package views

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"penguinboard/internal/dataset"
	"penguinboard/internal/platform/logging"
	"penguinboard/internal/session"
	"penguinboard/pkg/penguins"
)

const apiPrefix = "/api/v1"

// Handler serves the /api/v1 routes.
type Handler struct {
	Sessions *session.Manager
	Exports  ExportScheduler
	Logger   logging.Logger
}

// NewHandler constructs a views HTTP handler over sessions.
func NewHandler(sessions *session.Manager) *Handler {
	return &Handler{Sessions: sessions}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Sessions == nil {
		writeError(w, http.StatusInternalServerError, "session manager not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == apiPrefix+"/dataset":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleDataset(w, r)
	case path == apiPrefix+"/sessions":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleSessionCreate(w, r)
	case strings.HasPrefix(path, apiPrefix+"/sessions/"):
		h.handleSession(w, r, strings.TrimPrefix(path, apiPrefix+"/sessions/"))
	case strings.HasPrefix(path, apiPrefix+"/exports/"):
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExport(w, r, strings.TrimPrefix(path, apiPrefix+"/exports/"))
	default:
		http.NotFound(w, r)
	}
}

type datasetResponse struct {
	Columns    []penguins.Column        `json:"columns"`
	Rows       int                      `json:"rows"`
	Species    map[penguins.Species]int `json:"species"`
	Parameters []penguins.Parameter     `json:"parameters"`
}

func (h *Handler) handleDataset(w http.ResponseWriter, _ *http.Request) {
	ds := h.Sessions.Dataset()
	writeJSON(w, http.StatusOK, datasetResponse{
		Columns:    penguins.Columns(),
		Rows:       ds.Len(),
		Species:    ds.SpeciesCounts(),
		Parameters: penguins.Parameters(),
	})
}

type sessionPayload struct {
	ID        string             `json:"id"`
	Selection penguins.Selection `json:"selection"`
	Rows      int                `json:"rows"`
	// Version counts accepted changes; SpeciesVersion is the version of the
	// last species change, which is when the view was last invalidated.
	Version        uint64    `json:"version"`
	SpeciesVersion uint64    `json:"species_version"`
	CreatedAt      time.Time `json:"created_at"`
	LastSeen       time.Time `json:"last_seen"`
}

func describeSession(r *http.Request, s *session.Session) sessionPayload {
	return sessionPayload{
		ID:        s.ID,
		Selection: s.State.Selection(),
		Rows:      len(s.View.FilteredDataContext(r.Context())),

		Version:        s.State.Version(),
		SpeciesVersion: s.State.KeyVersion(penguins.KeySelectedSpecies),
		CreatedAt:      s.CreatedAt,
		LastSeen:       s.LastSeen(),
	}
}

func (h *Handler) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	s := h.Sessions.Create(r.Context())
	w.Header().Set("Location", apiPrefix+"/sessions/"+s.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"session": describeSession(r, s)})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	id := segments[0]
	if id == "" || len(segments) > 2 {
		writeError(w, http.StatusNotFound, "session endpoint not found")
		return
	}

	if len(segments) == 1 && r.Method == http.MethodDelete {
		if err := h.Sessions.Delete(id); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s, err := h.Sessions.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	if len(segments) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": describeSession(r, s)})
		return
	}

	switch segments[1] {
	case "selection":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"selection": s.State.Selection()})
		case http.MethodPatch:
			h.handleSelectionPatch(w, r, s)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case "view":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleView(w, r, s)
	case "exports":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExportCreate(w, r, s)
	default:
		writeError(w, http.StatusNotFound, "session endpoint not found")
	}
}

type selectionErrorResponse struct {
	Errors []penguins.ParameterError `json:"errors"`
}

func (h *Handler) handleSelectionPatch(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid selection payload")
		return
	}
	if errs := s.State.Apply(params); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, selectionErrorResponse{Errors: errs})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"selection": s.State.Selection()})
}

type viewPayload struct {
	Selection penguins.Selection `json:"selection"`
	Rows      int                `json:"rows"`
	Records   []penguins.Record  `json:"records"`
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request, s *session.Session) {
	format := negotiateFormat(r)
	if format == "" {
		writeError(w, http.StatusNotAcceptable, "requested format not supported")
		return
	}
	records := s.View.FilteredDataContext(r.Context())
	switch format {
	case FormatCSV:
		filename := fmt.Sprintf("penguins-%s.csv", time.Now().UTC().Format("20060102T150405Z"))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
		if err := dataset.WriteCSV(w, records); err != nil {
			logging.OrNop(h.Logger).Warn("stream csv", "session_id", s.ID, "error", err)
		}
	default:
		writeJSON(w, http.StatusOK, viewPayload{
			Selection: s.State.Selection(),
			Rows:      len(records),
			Records:   records,
		})
	}
}

type exportRequest struct {
	Formats []string `json:"formats"`
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}
	formats := make([]Format, 0, len(req.Formats))
	for _, raw := range req.Formats {
		f, err := ParseFormat(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		formats = append(formats, f)
	}

	record, err := h.Exports.EnqueueExport(r.Context(), ExportInput{
		SessionID: s.ID,
		Selection: s.State.Selection(),
		Records:   s.View.FilteredDataContext(r.Context()),
		Formats:   formats,
	})
	if errors.Is(err, ErrQueueFull) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Location", apiPrefix+"/exports/"+record.ID)
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, remainder string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	segments := strings.Split(remainder, "/")
	id := segments[0]
	switch {
	case id == "":
		http.NotFound(w, r)
	case len(segments) == 1:
		record, ok := h.Exports.GetExport(id)
		if !ok {
			writeError(w, http.StatusNotFound, ErrExportNotFound.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"export": record})
	case len(segments) == 3 && segments[1] == "artifacts":
		h.handleArtifact(w, r, id, segments[2])
	default:
		writeError(w, http.StatusNotFound, "export endpoint not found")
	}
}

func (h *Handler) handleArtifact(w http.ResponseWriter, r *http.Request, id, rawFormat string) {
	format, err := ParseFormat(rawFormat)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	artifact, rc, err := h.Exports.OpenArtifact(r.Context(), id, format, r.URL.Query().Get("chart"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	defer func() { _ = rc.Close() }()
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(artifact.SizeBytes, 10))
	if artifact.ETag != "" {
		w.Header().Set("ETag", strconv.Quote(artifact.ETag))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logging.OrNop(h.Logger).Warn("stream artifact", "export_id", id, "error", err)
	}
}

func negotiateFormat(r *http.Request) Format {
	wanted := strings.ToLower(r.URL.Query().Get("format"))
	if wanted == "" {
		if strings.Contains(r.Header.Get("Accept"), "text/csv") {
			return FormatCSV
		}
		return FormatJSON
	}
	switch Format(wanted) {
	case FormatCSV, FormatJSON:
		return Format(wanted)
	}
	return ""
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
