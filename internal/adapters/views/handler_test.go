package views_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"penguinboard/internal/adapters/views"
	"penguinboard/internal/dataset"
	"penguinboard/internal/session"
	"penguinboard/pkg/penguins"
)

type sessionResponse struct {
	Session struct {
		ID             string             `json:"id"`
		Rows           int                `json:"rows"`
		Selection      penguins.Selection `json:"selection"`
		Version        uint64             `json:"version"`
		SpeciesVersion uint64             `json:"species_version"`
	} `json:"session"`
}

type viewResponse struct {
	Rows    int               `json:"rows"`
	Records []penguins.Record `json:"records"`
}

func setupHandler(t *testing.T) (*session.Manager, *views.Handler) {
	t.Helper()
	manager := session.NewManager(dataset.Sample())
	t.Cleanup(manager.Close)
	return manager, views.NewHandler(manager)
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	resp := serve(h, http.MethodPost, "/api/v1/sessions", "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("create session: status %d", resp.Code)
	}
	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if body.Session.ID == "" || body.Session.Rows != 31 {
		t.Fatalf("unexpected session payload %+v", body.Session)
	}
	if resp.Header().Get("Location") != "/api/v1/sessions/"+body.Session.ID {
		t.Fatalf("unexpected location %q", resp.Header().Get("Location"))
	}
	return body.Session.ID
}

func TestHandlerDataset(t *testing.T) {
	_, handler := setupHandler(t)
	resp := serve(handler, http.MethodGet, "/api/v1/dataset", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.Code)
	}
	var body struct {
		Columns    []penguins.Column    `json:"columns"`
		Rows       int                  `json:"rows"`
		Species    map[string]int       `json:"species"`
		Parameters []penguins.Parameter `json:"parameters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Rows != 31 || len(body.Columns) != 8 || body.Species["Gentoo"] != 11 || len(body.Parameters) != 5 {
		t.Fatalf("unexpected dataset payload %+v", body)
	}
	if resp := serve(handler, http.MethodPost, "/api/v1/dataset", ""); resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}

func TestHandlerSessionLifecycle(t *testing.T) {
	manager, handler := setupHandler(t)
	id := createSession(t, handler)

	if resp := serve(handler, http.MethodGet, "/api/v1/sessions/"+id, ""); resp.Code != http.StatusOK {
		t.Fatalf("get session: %d", resp.Code)
	}
	if resp := serve(handler, http.MethodDelete, "/api/v1/sessions/"+id, ""); resp.Code != http.StatusNoContent {
		t.Fatalf("delete session: %d", resp.Code)
	}
	if manager.Len() != 0 {
		t.Fatalf("session should be gone")
	}
	if resp := serve(handler, http.MethodGet, "/api/v1/sessions/"+id, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
	if resp := serve(handler, http.MethodDelete, "/api/v1/sessions/"+id, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", resp.Code)
	}
	if resp := serve(handler, http.MethodGet, "/api/v1/sessions/"+id+"/bogus", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown endpoint, got %d", resp.Code)
	}
}

func TestHandlerSelectionPatch(t *testing.T) {
	_, handler := setupHandler(t)
	id := createSession(t, handler)

	resp := serve(handler, http.MethodPatch, "/api/v1/sessions/"+id+"/selection",
		`{"selected_species_list": ["Adelie", "Chinstrap"], "plotly_bin_count": 20}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", resp.Code, resp.Body.String())
	}
	var sel struct {
		Selection penguins.Selection `json:"selection"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sel); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sel.Selection.PlotlyBins != 20 || !sel.Selection.Species.Equal(penguins.NewSpeciesSet(penguins.SpeciesAdelie, penguins.SpeciesChinstrap)) {
		t.Fatalf("unexpected selection %+v", sel.Selection)
	}

	resp = serve(handler, http.MethodGet, "/api/v1/sessions/"+id+"/view", "")
	var view viewResponse
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Rows != 20 || len(view.Records) != 20 {
		t.Fatalf("expected 20 Adelie+Chinstrap rows, got %d", view.Rows)
	}
	for _, r := range view.Records {
		if r.Species == penguins.SpeciesGentoo {
			t.Fatalf("gentoo leaked into view")
		}
	}
}

func TestHandlerSessionReportsVersions(t *testing.T) {
	_, handler := setupHandler(t)
	id := createSession(t, handler)

	getSession := func() sessionResponse {
		t.Helper()
		resp := serve(handler, http.MethodGet, "/api/v1/sessions/"+id, "")
		var body sessionResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode session: %v", err)
		}
		return body
	}
	if got := getSession(); got.Session.Version != 0 || got.Session.SpeciesVersion != 0 {
		t.Fatalf("fresh session should be at version 0: %+v", got.Session)
	}

	if resp := serve(handler, http.MethodPatch, "/api/v1/sessions/"+id+"/selection", `{"selected_species_list": ["Gentoo"]}`); resp.Code != http.StatusOK {
		t.Fatalf("patch species: %d", resp.Code)
	}
	if got := getSession(); got.Session.Version != 1 || got.Session.SpeciesVersion != 1 || got.Session.Rows != 11 {
		t.Fatalf("species change should bump both versions: %+v", got.Session)
	}

	if resp := serve(handler, http.MethodPatch, "/api/v1/sessions/"+id+"/selection", `{"seaborn_bin_count": 12}`); resp.Code != http.StatusOK {
		t.Fatalf("patch bins: %d", resp.Code)
	}
	if got := getSession(); got.Session.Version != 2 || got.Session.SpeciesVersion != 1 {
		t.Fatalf("bin change must not move the species version: %+v", got.Session)
	}
}

func TestHandlerSelectionPatchRejectsBadValues(t *testing.T) {
	_, handler := setupHandler(t)
	id := createSession(t, handler)

	resp := serve(handler, http.MethodPatch, "/api/v1/sessions/"+id+"/selection",
		`{"show_sex": "perhaps", "selected_species_list": ["Emperor"], "plotly_bin_count": 3}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var body struct {
		Errors []penguins.ParameterError `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Errors) != 2 || body.Errors[0].Name != penguins.KeySelectedSpecies || body.Errors[1].Name != penguins.KeyShowSex {
		t.Fatalf("unexpected errors %+v", body.Errors)
	}

	resp = serve(handler, http.MethodGet, "/api/v1/sessions/"+id+"/selection", "")
	var sel struct {
		Selection penguins.Selection `json:"selection"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sel); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sel.Selection.PlotlyBins != penguins.DefaultPlotlyBins {
		t.Fatalf("failed patch should leave selection untouched")
	}

	if resp := serve(handler, http.MethodPatch, "/api/v1/sessions/"+id+"/selection", "{"); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.Code)
	}
}

func TestHandlerEmptySelectionYieldsEmptyView(t *testing.T) {
	_, handler := setupHandler(t)
	id := createSession(t, handler)
	if resp := serve(handler, http.MethodPatch, "/api/v1/sessions/"+id+"/selection", `{"selected_species_list": []}`); resp.Code != http.StatusOK {
		t.Fatalf("patch: %d", resp.Code)
	}
	resp := serve(handler, http.MethodGet, "/api/v1/sessions/"+id+"/view", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("view: %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"records":[]`) {
		t.Fatalf("expected empty records array, got %s", resp.Body.String())
	}
}

func TestHandlerViewCSVNegotiation(t *testing.T) {
	_, handler := setupHandler(t)
	id := createSession(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/view", nil)
	req.Header.Set("Accept", "text/csv")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || resp.Header().Get("Content-Type") != "text/csv" {
		t.Fatalf("unexpected csv response %d %q", resp.Code, resp.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(resp.Header().Get("Content-Disposition"), "attachment; filename=\"penguins-") {
		t.Fatalf("missing content disposition")
	}
	rows, err := csv.NewReader(bytes.NewReader(resp.Body.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 32 || rows[0][0] != "species" {
		t.Fatalf("expected header plus 31 rows, got %d", len(rows))
	}

	if resp := serve(handler, http.MethodGet, "/api/v1/sessions/"+id+"/view?format=csv", ""); resp.Header().Get("Content-Type") != "text/csv" {
		t.Fatalf("format query should select csv")
	}
	if resp := serve(handler, http.MethodGet, "/api/v1/sessions/"+id+"/view?format=xml", ""); resp.Code != http.StatusNotAcceptable {
		t.Fatalf("expected 406, got %d", resp.Code)
	}
}

func TestHandlerExportsDisabled(t *testing.T) {
	_, handler := setupHandler(t)
	id := createSession(t, handler)
	if resp := serve(handler, http.MethodPost, "/api/v1/sessions/"+id+"/exports", `{}`); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without scheduler, got %d", resp.Code)
	}
	if resp := serve(handler, http.MethodGet, "/api/v1/exports/abc", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without scheduler, got %d", resp.Code)
	}
}

func TestHandlerWithoutManager(t *testing.T) {
	handler := &views.Handler{}
	if resp := serve(handler, http.MethodGet, "/api/v1/dataset", ""); resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}
