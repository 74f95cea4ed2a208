package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/edutest/internal/api/respond"
	"github.com/mind-engage/edutest/internal/catalog"
	"github.com/mind-engage/edutest/internal/importer"
	"github.com/mind-engage/edutest/internal/quiz"
)

func ListTestsHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		ts, err := svc.ListTests(r.Context(), u)
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, ts)
	}
}

func GetTestHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		t, err := svc.GetTest(r.Context(), u, chi.URLParam(r, "testID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, t)
	}
}

func CreateTestHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		var t quiz.Test
		if !decode(w, r, &t) {
			return
		}
		out, err := svc.CreateTest(r.Context(), u, t)
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusCreated, out)
	}
}

func UpdateTestHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		var t quiz.Test
		if !decode(w, r, &t) {
			return
		}
		t.ID = chi.URLParam(r, "testID")
		out, err := svc.UpdateTest(r.Context(), u, t)
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, out)
	}
}

func DeleteTestHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		if err := svc.DeleteTest(r.Context(), u, chi.URLParam(r, "testID")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /tests/import  (YAML body: groups and tests, owned by the caller)
func ImportTestsHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		b, err := importer.Decode(http.MaxBytesReader(w, r.Body, 2<<20))
		if err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		b.Teacher = nil
		sum, err := importer.Apply(r.Context(), svc, u, b)
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusCreated, sum)
	}
}
