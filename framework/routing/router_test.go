package routing_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/loomkit/loom/framework/container"
	"github.com/loomkit/loom/framework/routing"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func newRouter(t *testing.T) (*container.Container, *routing.Router) {
	t.Helper()
	c := container.New(container.WithNativeTypes(
		(*http.Request)(nil),
		(*http.ResponseWriter)(nil),
	))
	return c, routing.New(c)
}

func do(t *testing.T, router *routing.Router, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// ── HTTP verbs ────────────────────────────────────────────────────────────────

func TestRouter_Get(t *testing.T) {
	_, r := newRouter(t)
	r.Get("/hello", okHandler)

	rr := do(t, r, http.MethodGet, "/hello")
	if rr.Code != http.StatusOK {
		t.Errorf("GET /hello: got %d want 200", rr.Code)
	}
}

func TestRouter_Post(t *testing.T) {
	_, r := newRouter(t)
	r.Post("/users", okHandler)

	rr := do(t, r, http.MethodPost, "/users")
	if rr.Code != http.StatusOK {
		t.Errorf("POST /users: got %d want 200", rr.Code)
	}
}

func TestRouter_Any(t *testing.T) {
	_, r := newRouter(t)
	r.Any("/ping", okHandler)

	for _, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		rr := do(t, r, m, "/ping")
		if rr.Code != http.StatusOK {
			t.Errorf("%s /ping: got %d want 200", m, rr.Code)
		}
	}
}

func TestRouter_Param(t *testing.T) {
	_, r := newRouter(t)
	r.Get("/users/{id}", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(routing.Param(req, "id")))
	})

	rr := do(t, r, http.MethodGet, "/users/42")
	if rr.Body.String() != "42" {
		t.Errorf("param = %q, want 42", rr.Body.String())
	}
}

func TestRouter_Prefix(t *testing.T) {
	_, r := newRouter(t)
	r.Prefix("/api/v1", func(api *routing.Router) {
		api.Get("/users", okHandler)
	})

	if rr := do(t, r, http.MethodGet, "/api/v1/users"); rr.Code != http.StatusOK {
		t.Errorf("GET /api/v1/users: got %d want 200", rr.Code)
	}
	if rr := do(t, r, http.MethodGet, "/users"); rr.Code == http.StatusOK {
		t.Error("unprefixed path should not match")
	}
}

// ── Injected handlers ─────────────────────────────────────────────────────────

type greeter struct{ prefix string }

func newGreeter() *greeter { return &greeter{prefix: "hello "} }

func TestRouter_Handle_InjectsServices(t *testing.T) {
	c, r := newRouter(t)
	if err := c.Register(newGreeter, container.Scoped); err != nil {
		t.Fatal(err)
	}

	r.Handle("GET", "/greet/{name}", func(w http.ResponseWriter, req *http.Request, g *greeter) {
		_, _ = w.Write([]byte(g.prefix + routing.Param(req, "name")))
	})

	rr := do(t, r, http.MethodGet, "/greet/ada")
	if rr.Body.String() != "hello ada" {
		t.Errorf("body = %q, want %q", rr.Body.String(), "hello ada")
	}
}

func TestRouter_Handle_InvalidSignaturePanicsAtRegistration(t *testing.T) {
	_, r := newRouter(t)
	defer func() {
		if recover() == nil {
			t.Error("registering a non-function handler should panic")
		}
	}()
	r.Handle("GET", "/bad", "not a function")
}

// ── Request scopes ────────────────────────────────────────────────────────────

type requestLog struct {
	disposed *int
}

func (l *requestLog) Dispose() error {
	*l.disposed++
	return nil
}

func TestScopeMiddleware_NewScopePerRequest(t *testing.T) {
	c, r := newRouter(t)
	disposed := 0
	err := c.RegisterFactory((*requestLog)(nil), func(container.Context) (any, error) {
		return &requestLog{disposed: &disposed}, nil
	}, container.Scoped)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[*requestLog]bool)
	r.Handle("GET", "/", func(w http.ResponseWriter, req *http.Request, l *requestLog) {
		seen[l] = true
	})

	do(t, r, http.MethodGet, "/")
	do(t, r, http.MethodGet, "/")

	if len(seen) != 2 {
		t.Errorf("got %d scoped instances across 2 requests, want 2", len(seen))
	}
	if disposed != 2 {
		t.Errorf("dispose hooks ran %d times, want once per request", disposed)
	}
}

func TestScopeFrom_WithoutMiddlewareIsNil(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if routing.ScopeFrom(req) != nil {
		t.Error("ScopeFrom should be nil outside the middleware")
	}
}
