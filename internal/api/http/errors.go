package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mind-engage/edutest/internal/api/respond"
	"github.com/mind-engage/edutest/internal/attempt"
	authmw "github.com/mind-engage/edutest/internal/auth/middleware"
	"github.com/mind-engage/edutest/internal/catalog"
	"github.com/mind-engage/edutest/internal/quiz"
	"github.com/mind-engage/edutest/internal/storage"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var ineligible *attempt.IneligibleError
	switch {
	case quiz.IsValidation(err), errors.Is(err, attempt.ErrUnknownQuestion):
		return http.StatusBadRequest
	case errors.As(err, &ineligible),
		errors.Is(err, quiz.ErrForbidden),
		errors.Is(err, catalog.ErrNotOnRoster):
		return http.StatusForbidden
	case errors.Is(err, quiz.ErrNotFound),
		errors.Is(err, attempt.ErrNoAttempt),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, quiz.ErrConflict),
		errors.Is(err, attempt.ErrAttemptActive),
		errors.Is(err, attempt.ErrNotInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	respond.Error(w, statusFor(err), err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond.Error(w, http.StatusBadRequest, "bad json: "+err.Error())
		return false
	}
	return true
}

// actor returns the user attached by authmw.AttachUser.
func actor(w http.ResponseWriter, r *http.Request) (quiz.User, bool) {
	u, ok := authmw.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
	}
	return u, ok
}
