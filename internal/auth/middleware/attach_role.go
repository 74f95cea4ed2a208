package auth

import (
	"errors"
	"net/http"

	"github.com/mind-engage/edutest/internal/api/respond"
	"github.com/mind-engage/edutest/internal/quiz"
	"github.com/mind-engage/edutest/internal/rbac"
)

// AttachUser loads the token subject from the store. The stored role is
// authoritative and replaces the one carried by the token.
func AttachUser(store quiz.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			u, err := store.GetUser(ctx, SubjectFromContext(ctx))
			switch {
			case errors.Is(err, quiz.ErrNotFound):
				respond.Error(w, http.StatusUnauthorized, "unknown user")
				return
			case err != nil:
				respond.Error(w, http.StatusInternalServerError, err.Error())
				return
			}
			ctx = rbac.WithRole(WithUser(ctx, u), u.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
