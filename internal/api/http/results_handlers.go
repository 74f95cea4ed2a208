package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/edutest/internal/api/respond"
	"github.com/mind-engage/edutest/internal/catalog"
	"github.com/mind-engage/edutest/internal/grading"
)

// GET /test-results
func ListResultsHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		rs, err := svc.ListResults(r.Context(), u)
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, rs)
	}
}

// GET /test-results/{resultID}
func ReviewResultHandler(svc *catalog.Service, scorer *grading.Scorer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		rev, err := svc.ReviewResult(r.Context(), u, scorer, chi.URLParam(r, "resultID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, rev)
	}
}

// GET /tests/{testID}/results
func TestResultsHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		rs, err := svc.ResultsForTest(r.Context(), u, chi.URLParam(r, "testID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, rs)
	}
}

// GET /tests/{testID}/stats
func TestStatsHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		st, err := svc.TestStats(r.Context(), u, chi.URLParam(r, "testID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, st)
	}
}

// GET /me/tests
func StudentTestsHandler(svc *catalog.Service, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		rows, err := svc.TestsForStudent(r.Context(), u, now())
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, rows)
	}
}
