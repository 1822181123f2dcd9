package web

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"penguinboard/internal/dataset"
	"penguinboard/internal/metrics"
	"penguinboard/internal/session"
	"penguinboard/pkg/penguins"
)

func newTestServer(t *testing.T) (*Server, *session.Manager, *metrics.Expvar) {
	t.Helper()
	manager := session.NewManager(dataset.Sample())
	t.Cleanup(manager.Close)
	rec := metrics.NewExpvar("")
	srv, err := NewServer(Config{
		Sessions: manager,
		Recorder: rec,
		Metrics:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("metrics")) }),
		API:      http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) }),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, manager, rec
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func sessionCookie(t *testing.T, resp *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range resp.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatalf("session cookie not set")
	return nil
}

func postControls(t *testing.T, h http.Handler, cookie *http.Cookie, form url.Values, htmx bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/controls", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set(htmxRequestHeader, "true")
	}
	req.AddCookie(cookie)
	return do(t, h, req)
}

func TestPageRendersLayout(t *testing.T) {
	srv, manager, rec := newTestServer(t)
	resp := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	body := resp.Body.String()
	for _, want := range []string{
		"<title>Nollettecs Penguins</title>",
		`<label for="selected_attribute">Selected Attribute</label>`,
		`<label for="plotly_bin_count">Plotly Bin Count</label>`,
		`<label for="seaborn_bin_count">Seaborn Bin Count</label>`,
		"<label>Species</label>", "> Show Sex</label>",
		`href="https://github.com/nollettecs/cintel-02-data"`,
		"Data Table", "Data Grid",
		"Plotly Histogram", "Seaborn Histogram", "Plotly Scatterplot",
		`id="panel-table"`, `id="panel-scatter"`,
		`name="selected_species_list" value="Gentoo" checked`,
		`<option value="bill_length_mm" selected>`,
		`max="100" value="30"`,
		"31 rows",
		"3,750",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("page missing %q", want)
		}
	}
	cookie := sessionCookie(t, resp)
	if !cookie.HttpOnly || manager.Len() != 1 {
		t.Fatalf("expected one http-only session, got %d", manager.Len())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	again := do(t, srv.Handler(), req)
	if len(again.Result().Cookies()) != 0 || manager.Len() != 1 {
		t.Fatalf("existing session should be reused")
	}
	if rec.Snapshot().Results[metrics.OpHTTPRequest]["success"] != 2 {
		t.Fatalf("requests not instrumented")
	}
}

func TestPageHidesSexColumnByDefault(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/panels/table", nil))
	if strings.Contains(resp.Body.String(), "<th>sex</th>") {
		t.Fatalf("sex column should be hidden until show_sex is set")
	}
}

func TestControlsSwapOnlyAffectedPanels(t *testing.T) {
	srv, manager, _ := newTestServer(t)
	first := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := sessionCookie(t, first)
	sess, err := manager.Get(cookie.Value)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}

	resp := postControls(t, srv.Handler(), cookie, url.Values{penguins.KeyPlotlyBinCount: {"20"}}, true)
	body := resp.Body.String()
	if resp.Code != http.StatusOK || !strings.Contains(body, `id="panel-plotly-histogram" class="panel" hx-swap-oob="true"`) {
		t.Fatalf("expected plotly histogram swap, got %d %s", resp.Code, body)
	}
	if strings.Contains(body, `id="panel-table"`) || strings.Contains(body, `id="panel-scatter"`) {
		t.Fatalf("bin count change should not re-render table or scatter")
	}
	if sess.View.Recomputes() != 1 {
		t.Fatalf("bin change must not recompute the view, recomputes=%d", sess.View.Recomputes())
	}

	form := url.Values{speciesPresentField: {"1"}, penguins.KeySelectedSpecies: {"Gentoo"}}
	body = postControls(t, srv.Handler(), cookie, form, true).Body.String()
	for _, p := range allPanels {
		if !strings.Contains(body, `id="panel-`+string(p)+`"`) {
			t.Fatalf("species change should re-render %s", p)
		}
	}
	if !strings.Contains(body, "11 rows") || sess.View.Recomputes() != 2 {
		t.Fatalf("species change should recompute once: %d", sess.View.Recomputes())
	}

	body = postControls(t, srv.Handler(), cookie, url.Values{speciesPresentField: {"1"}}, true).Body.String()
	if !strings.Contains(body, "0 rows") || !strings.Contains(body, "No data for the current selection") {
		t.Fatalf("empty species selection should render empty panels")
	}

	body = postControls(t, srv.Handler(), cookie, url.Values{penguins.KeyShowSex: {"false", "true"}}, true).Body.String()
	if !strings.Contains(body, `id="panel-table"`) || !strings.Contains(body, "<th>sex</th>") || strings.Contains(body, `id="panel-grid"`) {
		t.Fatalf("show_sex should re-render the table with a sex column only")
	}
	if !sess.State.Selection().ShowSex {
		t.Fatalf("show_sex not stored")
	}
}

func TestControlsErrors(t *testing.T) {
	srv, _, _ := newTestServer(t)
	cookie := sessionCookie(t, do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/", nil)))

	resp := postControls(t, srv.Handler(), cookie, url.Values{penguins.KeySeabornBinCount: {"many"}}, true)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `id="control-errors" class="errors" hx-swap-oob="true"`) ||
		!strings.Contains(resp.Body.String(), "seaborn_bin_count") {
		t.Fatalf("expected error fragment, got %d %s", resp.Code, resp.Body.String())
	}
	if resp := postControls(t, srv.Handler(), cookie, url.Values{penguins.KeySeabornBinCount: {"many"}}, false); resp.Code != http.StatusBadRequest {
		t.Fatalf("non-htmx error should be 400, got %d", resp.Code)
	}
	resp = postControls(t, srv.Handler(), cookie, url.Values{penguins.KeySeabornBinCount: {"10"}}, false)
	if resp.Code != http.StatusSeeOther || resp.Header().Get("Location") != "/" {
		t.Fatalf("non-htmx success should redirect, got %d", resp.Code)
	}
}

func TestPanelsAndGridSort(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if resp := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/panels/pie", nil)); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown panel, got %d", resp.Code)
	}
	for _, p := range allPanels {
		resp := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/panels/"+string(p), nil))
		if resp.Code != http.StatusOK || strings.Contains(resp.Body.String(), "hx-swap-oob") {
			t.Fatalf("panel %s: status %d", p, resp.Code)
		}
	}
	resp := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/panels/grid?sort=body_mass_g&dir=desc", nil))
	body := resp.Body.String()
	if !strings.Contains(body, `class="active"`) || !strings.Contains(body, "&#9660;") {
		t.Fatalf("active sort column not marked")
	}
	heaviest := strings.Index(body, "5,700")
	lighter := strings.Index(body, "3,750")
	if heaviest < 0 || lighter < 0 || heaviest > lighter {
		t.Fatalf("grid not sorted by body mass descending")
	}
}

func TestHealthMetricsAndAPI(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"records":31`) {
		t.Fatalf("unexpected health %d %s", resp.Code, resp.Body.String())
	}
	if resp := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/metrics", nil)); resp.Body.String() != "metrics" {
		t.Fatalf("metrics handler not mounted")
	}
	if resp := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/api/v1/dataset", nil)); resp.Code != http.StatusTeapot {
		t.Fatalf("api handler not mounted")
	}
}

func TestNewServerRequiresSessions(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Fatalf("expected error without session manager")
	}
}
