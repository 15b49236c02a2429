package testutil

import (
	"context"
	"net/http"
)

// gorilla/csrf stores the masked token under this context key.
const csrfTokenKey = "gorilla.csrf.Token"

// WithCSRFToken puts a fixed token in the request context so pages that
// embed csrf.Token(r) render without the csrf middleware in front.
func WithCSRFToken(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), csrfTokenKey, "test-csrf-token"))
}
