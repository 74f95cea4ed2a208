package http

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/edutest/internal/api/respond"
	authmw "github.com/mind-engage/edutest/internal/auth/middleware"
	"github.com/mind-engage/edutest/internal/quiz"
)

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func ChangePasswordHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		var req changePasswordReq
		if !decode(w, r, &req) {
			return
		}

		_, storedHash, err := store.GetUserByEmail(r.Context(), u.Email)
		if err != nil {
			writeErr(w, err)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(req.OldPassword)) != nil {
			respond.Error(w, http.StatusForbidden, "incorrect old password")
			return
		}

		hash, err := authmw.HashPassword(req.NewPassword)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := store.SetPasswordHash(r.Context(), u.ID, hash); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
