package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/edutest/internal/api/respond"
	"github.com/mind-engage/edutest/internal/catalog"
	"github.com/mind-engage/edutest/internal/quiz"
)

const (
	minPasswordLen = 6
	bcryptCost     = 12
)

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	User        quiz.User `json:"user"`
}

// HashPassword applies the length rule and returns a bcrypt hash.
func HashPassword(pw string) (string, error) {
	if len(pw) < minPasswordLen {
		return "", &quiz.ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// POST /auth/register
// { "fullName", "email", "password", "role", "institution", "groupNumber", "teacherCode" }
// teacherCode is checked only when the service is configured with one.
func RegisterHandler(a *AuthService, svc *catalog.Service, teacherCode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FullName    string    `json:"fullName"`
			Email       string    `json:"email"`
			Password    string    `json:"password"`
			Role        quiz.Role `json:"role"`
			Institution string    `json:"institution"`
			GroupNumber string    `json:"groupNumber"`
			TeacherCode string    `json:"teacherCode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.Role == quiz.RoleTeacher && teacherCode != "" &&
			subtle.ConstantTimeCompare([]byte(req.TeacherCode), []byte(teacherCode)) != 1 {
			respond.Error(w, http.StatusForbidden, "invalid teacher code")
			return
		}
		hash, err := HashPassword(req.Password)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		u, err := svc.Register(r.Context(), quiz.User{
			FullName:    req.FullName,
			Email:       req.Email,
			Role:        req.Role,
			Institution: req.Institution,
			GroupNumber: req.GroupNumber,
		}, hash)
		switch {
		case err == nil:
		case quiz.IsValidation(err):
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, catalog.ErrNotOnRoster):
			respond.Error(w, http.StatusForbidden, err.Error())
			return
		case errors.Is(err, quiz.ErrConflict):
			respond.Error(w, http.StatusConflict, "user with this email already exists")
			return
		default:
			respond.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		tok, err := a.IssueJWT(u.ID, string(u.Role))
		if err != nil {
			respond.Error(w, http.StatusInternalServerError, "issue token")
			return
		}
		respond.JSON(w, http.StatusCreated, tokenResponse{AccessToken: tok, User: u})
	}
}

// POST /auth/login  { "email": "...", "password": "...", "role": "teacher|student" }
func LoginHandler(a *AuthService, store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string    `json:"email"`
			Password string    `json:"password"`
			Role     quiz.Role `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, http.StatusBadRequest, "bad json")
			return
		}
		u, hash, err := store.GetUserByEmail(r.Context(), strings.TrimSpace(req.Email))
		if err != nil && !errors.Is(err, quiz.ErrNotFound) {
			respond.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err != nil || u.Role != req.Role ||
			bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
			respond.Error(w, http.StatusUnauthorized, "invalid credentials or user not found")
			return
		}
		tok, err := a.IssueJWT(u.ID, string(u.Role))
		if err != nil {
			respond.Error(w, http.StatusInternalServerError, "issue token")
			return
		}
		respond.JSON(w, http.StatusOK, tokenResponse{AccessToken: tok, User: u})
	}
}
