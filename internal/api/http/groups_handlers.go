package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/edutest/internal/api/respond"
	"github.com/mind-engage/edutest/internal/catalog"
	"github.com/mind-engage/edutest/internal/quiz"
)

func ListGroupsHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		gs, err := svc.ListGroups(r.Context(), u)
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, gs)
	}
}

func GetGroupHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		g, err := svc.GetGroup(r.Context(), u, chi.URLParam(r, "groupID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, g)
	}
}

func CreateGroupHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		var g quiz.Group
		if !decode(w, r, &g) {
			return
		}
		out, err := svc.CreateGroup(r.Context(), u, g)
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusCreated, out)
	}
}

func UpdateGroupHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		var g quiz.Group
		if !decode(w, r, &g) {
			return
		}
		g.ID = chi.URLParam(r, "groupID")
		out, err := svc.UpdateGroup(r.Context(), u, g)
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, out)
	}
}

// DELETE /groups/{groupID} also removes the group's tests and results.
func DeleteGroupHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		if err := svc.DeleteGroup(r.Context(), u, chi.URLParam(r, "groupID")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /groups/{groupID}/students
func GroupStudentsHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		users, err := svc.StudentsInGroup(r.Context(), u, chi.URLParam(r, "groupID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, users)
	}
}
