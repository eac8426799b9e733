package routing

import (
	"context"
	"net/http"

	"github.com/loomkit/loom/framework/container"
)

type scopeKey struct{}

// ScopeMiddleware opens one container scope per request and disposes it on
// every exit path, including panics further down the chain, so request-
// scoped dispose hooks always run.
func ScopeMiddleware(c *container.Container) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := c.CreateScope()
			defer scope.Dispose()
			ctx := context.WithValue(r.Context(), scopeKey{}, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ScopeFrom returns the request's container scope, or nil when the request
// did not pass through ScopeMiddleware.
func ScopeFrom(r *http.Request) *container.Scope {
	scope, _ := r.Context().Value(scopeKey{}).(*container.Scope)
	return scope
}
