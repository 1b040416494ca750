package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/newthinker/stratboard/internal/api/response"
	"github.com/newthinker/stratboard/internal/core"
)

// Headers set by the upstream identity provider.
const (
	UserIDHeader   = "X-User-ID"
	UserNameHeader = "X-User-Name"
)

// User is the caller as asserted by the upstream identity provider.
type User struct {
	ID   string
	Name string
}

type userKey struct{}

// UserIdentity attaches the asserted user, if any, to the request context.
func UserIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		user := User{ID: id, Name: strings.TrimSpace(r.Header.Get(UserNameHeader))}
		if user.Name == "" {
			user.Name = id
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireUser rejects requests without an asserted user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFrom(r.Context()); !ok {
			response.Error(w, http.StatusUnauthorized,
				core.WrapError(core.ErrUnauthorized, errors.New("missing user identity")))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the user attached by UserIdentity.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok
}
