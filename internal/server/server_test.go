package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"kitchenlog/internal/config"
	"kitchenlog/internal/domain"
	"kitchenlog/internal/engine"
	"kitchenlog/internal/metrics"
	"kitchenlog/internal/store"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	st := store.New()
	n := 0
	st.NewID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	st.Now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	st.Seed(store.Snapshot{
		Kitchens: []domain.Kitchen{
			{ID: "k1", LDAP: "LDAP7", OrderNumber: "80110000", ClientName: "Ana Gomez", Seller: "Maybeth", Installer: "Instalador B", InstallationDate: "2024-01-10"},
		},
		Incidents: []domain.Incident{
			{ID: "i1", KitchenID: "k1", Cause: domain.CauseOther, Description: "Puerta rayada", Status: domain.TaskStatusPending, CreatedAt: "2024-01-12T09:00:00Z",
				History: []domain.HistoryEntry{
					{StatusAtTime: domain.TaskStatusPending, Text: "primera"},
					{StatusAtTime: domain.TaskStatusPending, Text: "segunda"},
				}},
		},
	})
	e := engine.New(st, config.Default())
	e.Now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	e.Metrics = metrics.New()
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	handler, err := New(Config{Engine: e, BasePath: "/v0", Logger: e.Logger})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestRegisterAndListKitchens(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/kitchens", map[string]any{
		"ldap":              "LDAP1",
		"order_number":      "80112233",
		"client_name":       "Juan Perez",
		"seller":            "Lara",
		"installer":         "Instalador A",
		"installation_date": "2024-01-15",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d: %s", res.StatusCode, string(data))
	}
	var created domain.Kitchen
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal kitchen: %v", err)
	}
	if created.ID != "id-1" || created.ClientName != "Juan Perez" {
		t.Fatalf("created %+v", created)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/kitchens?q=lara", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var rows []KitchenRowResponse
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("unmarshal rows: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "id-1" || rows[0].NeedsAttention {
		t.Fatalf("rows %+v", rows)
	}

	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/kitchens?q=l", nil)
	rows = nil
	_ = json.Unmarshal(data, &rows)
	if len(rows) != 2 {
		t.Fatalf("short query should list all kitchens, got %d", len(rows))
	}
	if rows[0].ID != "k1" || rows[0].Active != 1 || !rows[0].NeedsAttention || rows[0].Incidents != 1 {
		t.Fatalf("k1 row %+v", rows[0])
	}
}

func TestRegisterValidationError(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/kitchens", map[string]any{
		"ldap":              "LDAP1",
		"order_number":      "80112233",
		"client_name":       "",
		"seller":            "Lara",
		"installer":         "Instalador A",
		"installation_date": "2024-01-15",
	})
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "validation_failed" {
		t.Fatalf("error %+v", envelope.Error)
	}
	if n := len(srv.Engine.Snapshot().Kitchens); n != 1 {
		t.Fatalf("kitchen stored on failure: %d", n)
	}
}

func TestKitchenDetail(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/kitchens/k1", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("detail status %d: %s", res.StatusCode, string(data))
	}
	var detail KitchenDetailResponse
	if err := json.Unmarshal(data, &detail); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	inc := detail.Incidents[0]
	if len(inc.History) != 1 || inc.History[0].Text != "segunda" || inc.History[0].DateLabel != "unknown date" || inc.Earlier != 1 || inc.Badge != "active" {
		t.Fatalf("collapsed incident %+v", inc)
	}

	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/kitchens/k1?expanded=i1", nil)
	detail = KitchenDetailResponse{}
	_ = json.Unmarshal(data, &detail)
	if got := detail.Incidents[0]; !got.Expanded || len(got.History) != 2 {
		t.Fatalf("expanded incident %+v", got)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/kitchens/missing", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing kitchen status %d", res.StatusCode)
	}
}

func TestIncidentEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/kitchens/k1/incidents", map[string]any{
		"cause":       "MISSING_PARTS",
		"description": "Falta zócalo",
		"note":        "Pedido",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create incident %d: %s", res.StatusCode, string(data))
	}
	var inc IncidentResponse
	if err := json.Unmarshal(data, &inc); err != nil {
		t.Fatal(err)
	}
	if inc.Status != "PENDING" || len(inc.History) != 1 || inc.History[0].DateLabel != "2024-05-01 08:00" {
		t.Fatalf("incident %+v", inc)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/incidents/"+inc.ID+"/notes", map[string]any{
		"text":   "Instalado",
		"status": "COMPLETED",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("append note %d: %s", res.StatusCode, string(data))
	}
	inc = IncidentResponse{}
	_ = json.Unmarshal(data, &inc)
	if inc.Status != "COMPLETED" || inc.Badge != "completed" || len(inc.History) != 2 {
		t.Fatalf("after note %+v", inc)
	}

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/kitchens/k1/incidents", map[string]any{
		"cause":       "ALIENS",
		"description": "x",
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad cause status %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/incidents/missing/notes", map[string]any{"text": "x"})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing incident status %d", res.StatusCode)
	}
}

func TestConfigEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/config", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var cfg ConfigResponse
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Defaults.Seller != "Lara" || cfg.Defaults.Installer != "Instalador A" || cfg.Defaults.InstallationDate != "2024-05-01" {
		t.Fatalf("defaults %+v", cfg.Defaults)
	}
	if len(cfg.Statuses) != 3 || len(cfg.Causes) == 0 {
		t.Fatalf("config %+v", cfg)
	}
}

func TestUI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/ui?q=gomez&selected=k1", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("ui status %d", res.StatusCode)
	}
	page := string(data)
	for _, want := range []string{"Ana Gomez", "Project 80110000", "segunda", "show 1 earlier note(s)", "unknown date"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(page, "primera") {
		t.Error("collapsed history should hide earlier notes")
	}

	form := url.Values{
		"ldap":              {"LDAP1"},
		"order_number":      {"80112233"},
		"client_name":       {""},
		"seller":            {"Raquel"},
		"installer":         {"Instalador A"},
		"installation_date": {"2024-01-15"},
	}
	res, err := client.PostForm(srv.URL+"/ui/kitchens", form)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if res.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(string(body), `value="80112233"`) {
		t.Fatalf("rejected form status %d should keep fields", res.StatusCode)
	}

	form.Set("client_name", "Juan Perez")
	res, err = client.PostForm(srv.URL+"/ui/kitchens", form)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusSeeOther || res.Header.Get("Location") != "/ui?selected=id-1" {
		t.Fatalf("register redirect %d %q", res.StatusCode, res.Header.Get("Location"))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	_, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/kitchens?q=ana", nil)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/metrics", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "kitchenlog_searches_total 1") {
		t.Fatalf("metrics %d: %s", res.StatusCode, string(data))
	}
}
