package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
)

func doJSON(t *testing.T, method, url string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestSubmitStatuses(t *testing.T) {
	server := newTestServer(t)
	url := server.URL + "/api/responses"

	body := map[string]any{"session_id": "A", "step": 1, "student_name": "Ana", "answer": "first"}
	resp := doJSON(t, http.MethodPost, url, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	row := decode[map[string]any](t, resp)
	if row["case_id"] != "default" || row["answer"] != "first" || row["poll_choice"] != nil {
		t.Fatalf("unexpected row %v", row)
	}

	resp = doJSON(t, http.MethodPost, url, body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if got := decode[errorBody](t, resp); got.Error != "already submitted for this step" {
		t.Fatalf("unexpected conflict body %+v", got)
	}

	resp = doJSON(t, http.MethodPost, url, map[string]any{"session_id": "A", "step": 1, "answer": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", resp.StatusCode)
	}
	if got := decode[errorBody](t, resp); got.Field != "student_name" {
		t.Fatalf("unexpected field %+v", got)
	}

	resp = doJSON(t, http.MethodPost, url, map[string]any{"session_id": "A", "student_name": "Bo", "answer": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing step, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, url, map[string]any{"session_id": "Q", "step": 1, "student_name": "Bo", "answer": "x"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.StatusCode)
	}
}

func TestListResponsesInOrder(t *testing.T) {
	server := newTestServer(t)
	for _, name := range []string{"first", "second", "third"} {
		resp := doJSON(t, http.MethodPost, server.URL+"/api/responses",
			map[string]any{"case_id": "default", "session_id": "b", "step": 4, "student_name": name, "poll_choice": "Option A"})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("submit %s: %d", name, resp.StatusCode)
		}
	}

	resp := doJSON(t, http.MethodGet, server.URL+"/api/responses?case_id=default&session_id=B", nil)
	rows := decode[[]map[string]any](t, resp)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, name := range []string{"first", "second", "third"} {
		if rows[i]["student_name"] != name {
			t.Fatalf("row %d: expected %s, got %v", i, name, rows[i]["student_name"])
		}
	}
}

func TestTransitionsAndReset(t *testing.T) {
	server := newTestServer(t)
	base := server.URL + "/api/cases/default/sessions/a"

	for i := 0; i < 3; i++ {
		if resp := doJSON(t, http.MethodPost, base+"/advance", nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("advance: %d", resp.StatusCode)
		}
	}
	state := decode[map[string]any](t, doJSON(t, http.MethodPost, base+"/toggle-mode", nil))
	if state["current_step"] != float64(3) || state["display_mode"] != "live" {
		t.Fatalf("unexpected state %v", state)
	}

	state = decode[map[string]any](t, doJSON(t, http.MethodPost, base+"/reset", nil))
	if state["current_step"] != float64(0) || state["revealed_step"] != float64(-1) || state["display_mode"] != "controlled" {
		t.Fatalf("unexpected reset state %v", state)
	}

	if resp := doJSON(t, http.MethodPost, base+"/jump", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", resp.StatusCode)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	server := newTestServer(t)
	url := server.URL + "/api/cases/ethics/config"

	cfg := decode[map[string]any](t, doJSON(t, http.MethodGet, url, nil))
	if cfg["id"] != "ethics" {
		t.Fatalf("expected default config for new case, got %v", cfg["id"])
	}

	cfg["title"] = "Ethics"
	cfg["sessions"] = []map[string]any{{"id": "x", "label": "Morning"}}
	resp := doJSON(t, http.MethodPut, url, cfg)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save config: %d", resp.StatusCode)
	}
	saved := decode[map[string]any](t, resp)
	if saved["title"] != "Ethics" {
		t.Fatalf("unexpected saved config %v", saved)
	}

	state := decode[map[string]any](t, doJSON(t, http.MethodGet, server.URL+"/api/cases/ethics/sessions/x/state", nil))
	if state["session_id"] != "X" || state["current_step"] != float64(0) {
		t.Fatalf("expected registered session, got %v", state)
	}

	cfg["steps"] = []any{}
	if resp := doJSON(t, http.MethodPut, url, cfg); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty steps, got %d", resp.StatusCode)
	}
}

func TestRememberedNameCookie(t *testing.T) {
	server := newTestServer(t)
	url := server.URL + "/api/cases/default/sessions/a/name"

	resp := doJSON(t, http.MethodPut, url, map[string]any{"name": " Ana Lee "})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put name: %d", resp.StatusCode)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "student_name_default_A" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("expected name cookie, got %v", resp.Cookies())
	}

	got := decode[nameRequest](t, doJSON(t, http.MethodGet, url, nil, cookie))
	if got.Name != "Ana Lee" {
		t.Fatalf("expected remembered name, got %q", got.Name)
	}

	view := decode[map[string]any](t, doJSON(t, http.MethodGet, server.URL+"/api/cases/default/sessions/a/views/student", nil, cookie))
	if view["name"] != "Ana Lee" {
		t.Fatalf("expected student view to use remembered name, got %v", view["name"])
	}

	resp = doJSON(t, http.MethodDelete, url, nil, cookie)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete name: %d", resp.StatusCode)
	}
	cleared := false
	for _, c := range resp.Cookies() {
		if c.Name == "student_name_default_A" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("expected cookie cleared")
	}
}

func TestViewsEndpoint(t *testing.T) {
	server := newTestServer(t)
	resp := doJSON(t, http.MethodGet, server.URL+"/api/cases/default/sessions/A/views/instructor", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("instructor view: %d", resp.StatusCode)
	}
	view := decode[map[string]any](t, resp)
	if view["canAdvance"] != true || view["canGoBack"] != false {
		t.Fatalf("unexpected flags %v", view)
	}

	if resp := doJSON(t, http.MethodGet, server.URL+"/api/cases/default/sessions/A/views/admin", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", resp.StatusCode)
	}
	if resp := doJSON(t, http.MethodGet, server.URL+"/api/cases/default/sessions/ZZ/views/board", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.StatusCode)
	}

	health, err := http.Get(server.URL + "/healthz")
	if err != nil || health.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", health, err)
	}
	health.Body.Close()
}
