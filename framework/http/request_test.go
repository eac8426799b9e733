package http_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	loomhttp "github.com/loomkit/loom/framework/http"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newJSONRequest(t *testing.T, body string) *loomhttp.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return loomhttp.NewRequest(req)
}

func newFormRequest(t *testing.T, values url.Values) *loomhttp.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return loomhttp.NewRequest(req)
}

func newGetRequest(t *testing.T, rawQuery string) *loomhttp.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/?"+rawQuery, nil)
	return loomhttp.NewRequest(req)
}

// ── Bind JSON ────────────────────────────────────────────────────────────────

func TestRequest_BindJSON(t *testing.T) {
	type user struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	req := newJSONRequest(t, `{"name":"Alice","email":"alice@example.com"}`)

	var u user
	if err := req.Bind(&u); err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	if u.Name != "Alice" {
		t.Errorf("Name: got %q want %q", u.Name, "Alice")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("Email: got %q want %q", u.Email, "alice@example.com")
	}
}

func TestRequest_BindJSON_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/json")
	r := loomhttp.NewRequest(req)

	var v any
	if err := r.Bind(&v); err == nil {
		t.Error("expected error for empty body, got nil")
	}
}

func TestRequest_BindJSON_InvalidJSON(t *testing.T) {
	req := newJSONRequest(t, `{bad json}`)
	var v map[string]any
	if err := req.Bind(&v); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

// ── Bind Form ────────────────────────────────────────────────────────────────

func TestRequest_BindForm(t *testing.T) {
	type login struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	req := newFormRequest(t, url.Values{
		"username": {"alice"},
		"password": {"secret"},
	})

	var l login
	if err := req.Bind(&l); err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	if l.Username != "alice" {
		t.Errorf("Username: got %q want %q", l.Username, "alice")
	}
	if l.Password != "secret" {
		t.Errorf("Password: got %q want %q", l.Password, "secret")
	}
}

// ── Input helpers ────────────────────────────────────────────────────────────

func TestRequest_Input(t *testing.T) {
	req := newGetRequest(t, "name=bob")

	if got := req.Input("name"); got != "bob" {
		t.Errorf("Input(name): got %q want %q", got, "bob")
	}
	if got := req.Input("missing", "fallback"); got != "fallback" {
		t.Errorf("Input fallback: got %q want %q", got, "fallback")
	}
}

func TestRequest_Query(t *testing.T) {
	req := newGetRequest(t, "page=2&sort=name")

	if got := req.Query("page"); got != "2" {
		t.Errorf("Query(page): got %q want %q", got, "2")
	}
	if got := req.Query("limit", "10"); got != "10" {
		t.Errorf("Query fallback: got %q want %q", got, "10")
	}
}

func TestRequest_All(t *testing.T) {
	req := newGetRequest(t, "a=1&b=2")

	all := req.All()
	if all["a"] != "1" || all["b"] != "2" {
		t.Errorf("All: got %v", all)
	}
}

func TestRequest_Has(t *testing.T) {
	req := newGetRequest(t, "present=yes")

	if !req.Has("present") {
		t.Error("Has(present) should be true")
	}
	if req.Has("absent") {
		t.Error("Has(absent) should be false")
	}
}

// ── Headers ──────────────────────────────────────────────────────────────────

func TestRequest_BearerToken(t *testing.T) {
	raw := httptest.NewRequest(http.MethodGet, "/", nil)
	raw.Header.Set("Authorization", "Bearer abc123")
	req := loomhttp.NewRequest(raw)

	if got := req.BearerToken(); got != "abc123" {
		t.Errorf("BearerToken: got %q want %q", got, "abc123")
	}
}

func TestRequest_BearerToken_Missing(t *testing.T) {
	raw := httptest.NewRequest(http.MethodGet, "/", nil)
	req := loomhttp.NewRequest(raw)

	if got := req.BearerToken(); got != "" {
		t.Errorf("BearerToken: got %q want empty", got)
	}
}

func TestRequest_IsJSON(t *testing.T) {
	req := newJSONRequest(t, `{}`)
	if !req.IsJSON() {
		t.Error("IsJSON should be true for application/json body")
	}

	plain := loomhttp.NewRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	if plain.IsJSON() {
		t.Error("IsJSON should be false without JSON headers")
	}
}

func TestRequest_MethodAndPath(t *testing.T) {
	raw := httptest.NewRequest(http.MethodDelete, "/users/7", nil)
	req := loomhttp.NewRequest(raw)

	if req.Method() != http.MethodDelete {
		t.Errorf("Method: got %q", req.Method())
	}
	if req.Path() != "/users/7" {
		t.Errorf("Path: got %q", req.Path())
	}
}
