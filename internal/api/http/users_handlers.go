package http

import (
	"net/http"

	"github.com/mind-engage/edutest/internal/api/respond"
	"github.com/mind-engage/edutest/internal/catalog"
	"github.com/mind-engage/edutest/internal/quiz"
	"github.com/mind-engage/edutest/internal/rbac"
)

// GET /users?role=student&institution=...
func ListUsersHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()
		users, err := svc.ListUsers(r.Context(), u, quiz.UserFilter{
			Role:        quiz.Role(q.Get("role")),
			Institution: q.Get("institution"),
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, users)
	}
}

type meResponse struct {
	quiz.User
	Permissions []string `json:"permissions"`
}

// GET /users/me  (profile plus the role's permission grants)
func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		respond.JSON(w, http.StatusOK, meResponse{User: u, Permissions: rbac.Patterns(u.Role)})
	}
}

// PUT /users/me  { "fullName"?, "institution"?, "groupNumber"? }
func UpdateMeHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		var p catalog.ProfileUpdate
		if !decode(w, r, &p) {
			return
		}
		p.PhotoURL = nil // set only by the photo upload
		out, err := svc.UpdateProfile(r.Context(), u, p)
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, out)
	}
}
