package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/migrate"
	"caseline/internal/repo"
)

const testJWTSecret = "test-secret"

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
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	ctx := context.Background()
	officers := []domain.Officer{
		{ID: "sec-1", DisplayName: "Sarah Kila", Role: "secretary_lands"},
		{ID: "dir-1", DisplayName: "David Kaupa", Role: "director_legal"},
		{ID: "mgr-1", DisplayName: "Mary Toua", Role: "manager_legal"},
		{ID: "lit-1", DisplayName: "Don Rake", Role: "litigation_officer"},
		{ID: "view-1", DisplayName: "Visitor", Role: "viewer"},
	}
	for _, o := range officers {
		o.CreatedAt = "2025-06-01T00:00:00Z"
		if err := e.Repo.InsertOfficer(ctx, o); err != nil {
			t.Fatalf("seed officer: %v", err)
		}
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testJWTSecret, AllowLegacyActorHeader: true},
	})
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
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
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
	for k, v := range headers {
		req.Header.Set(k, v)
	}
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

func asActor(actorID string) map[string]string {
	return map[string]string{"X-Actor-Id": actorID}
}

func createCase(t *testing.T, srv *testServer, number string) string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases", map[string]any{
		"case_number": number,
		"title":       "State v Example",
		"priority":    "high",
	}, asActor("sec-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create case status %d: %s", res.StatusCode, string(data))
	}
	var out struct {
		Case domain.Case `json:"case"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal case: %v", err)
	}
	return out.Case.ID
}

func TestCaseWorkflowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	caseID := createCase(t, srv, "OS 1/2025")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+caseID+"/advice", map[string]any{
		"advice": "Verify boundaries.",
	}, asActor("sec-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("advice status %d: %s", res.StatusCode, string(data))
	}
	var adviceOut struct {
		Entry                     domain.WorkflowEntry `json:"entry"`
		CompiledSnapshotAvailable bool                 `json:"compiled_snapshot_available"`
	}
	if err := json.Unmarshal(data, &adviceOut); err != nil {
		t.Fatal(err)
	}
	if adviceOut.Entry.Status != "completed" || !adviceOut.CompiledSnapshotAvailable {
		t.Fatalf("unexpected advice response: %s", string(data))
	}

	// A second sign-off for the same role is a conflict with the error
	// envelope.
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+caseID+"/advice", map[string]any{
		"advice": "Again.",
	}, asActor("sec-1"))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Error.Code != "no_pending_entry" || envelope.Error.Message == "" {
		t.Fatalf("unexpected envelope: %s", string(data))
	}

	// Assignment by the manager succeeds and embeds the commentary.
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+caseID+"/assign", map[string]any{
		"assignee_id":  "lit-1",
		"instructions": "File defence.",
	}, asActor("mgr-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("assign status %d: %s", res.StatusCode, string(data))
	}
	var assignOut struct {
		Assignment domain.Assignment `json:"assignment"`
	}
	if err := json.Unmarshal(data, &assignOut); err != nil {
		t.Fatal(err)
	}
	if assignOut.Assignment.Metadata.CaseNumber != "OS 1/2025" {
		t.Fatalf("snapshot missing: %s", string(data))
	}
}

func TestAssignForbiddenForViewer(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	caseID := createCase(t, srv, "OS 2/2025")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+caseID+"/assign", map[string]any{
		"assignee_id": "lit-1",
	}, asActor("view-1"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Error.Code != "unauthorized_assigner" {
		t.Fatalf("unexpected code: %s", string(data))
	}
}

func TestCaseNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases/nope", nil, asActor("sec-1"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
}

func TestParseEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/reassignments/parse", map[string]any{
		"text": "02/10/2024. Re-assigned to Don Rake on the 21/03/2025",
	}, asActor("sec-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("parse status %d: %s", res.StatusCode, string(data))
	}
	var out struct {
		Events []struct {
			Date    string  `json:"date"`
			Officer *string `json:"officer"`
			Kind    string  `json:"kind"`
		} `json:"events"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Events) != 2 || out.Events[0].Date != "2024-10-02" || out.Events[1].Officer == nil {
		t.Fatalf("unexpected parse result: %s", string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}

	// Health stays open.
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestJWTAndAPIKeyAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	claims := jwt.RegisteredClaims{
		Subject:   "sec-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatal(err)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("jwt auth status %d: %s", res.StatusCode, string(data))
	}

	rawKey := "ck_live_abc123"
	if err := srv.Engine.Repo.InsertAPIKey(context.Background(), domain.APIKey{
		ID: "key-1", ActorID: "mgr-1", KeyHash: repo.HashAPIKey(rawKey), CreatedAt: "2025-06-01T00:00:00Z",
	}); err != nil {
		t.Fatal(err)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases", nil, map[string]string{
		"X-Api-Key": rawKey,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key auth status %d: %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases", nil, map[string]string{
		"X-Api-Key": "wrong",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad key, got %d", res.StatusCode)
	}
}

func TestComplianceOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	caseID := createCase(t, srv, "OS 3/2025")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+caseID+"/compliance", map[string]any{
		"division_id":       "lands",
		"order_description": "Produce survey plans",
		"deadline":          "2025-01-01T00:00:00Z",
	}, asActor("mgr-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("compliance status %d: %s", res.StatusCode, string(data))
	}
	var recOut struct {
		Record domain.ComplianceRecord `json:"record"`
	}
	if err := json.Unmarshal(data, &recOut); err != nil {
		t.Fatal(err)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/compliance/"+recOut.Record.ID+"/status", map[string]any{
		"status":         "partially_complied",
		"return_to_step": "step_2",
	}, asActor("mgr-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status update %d: %s", res.StatusCode, string(data))
	}

	// Listing derives overdue for records past deadline but reports the
	// stored status for partial compliance.
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases/"+caseID+"/compliance", nil, asActor("mgr-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var listOut struct {
		Records []struct {
			Status          string `json:"status"`
			EffectiveStatus string `json:"effective_status"`
		} `json:"records"`
	}
	if err := json.Unmarshal(data, &listOut); err != nil {
		t.Fatal(err)
	}
	if len(listOut.Records) != 1 || listOut.Records[0].EffectiveStatus != "partially_complied" {
		t.Fatalf("unexpected list: %s", string(data))
	}
}
