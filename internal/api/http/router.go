package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/edutest/internal/api/respond"
	"github.com/mind-engage/edutest/internal/attempt"
	authmw "github.com/mind-engage/edutest/internal/auth/middleware"
	"github.com/mind-engage/edutest/internal/catalog"
	"github.com/mind-engage/edutest/internal/grading"
	"github.com/mind-engage/edutest/internal/metrics"
	"github.com/mind-engage/edutest/internal/rbac"
	"github.com/mind-engage/edutest/internal/storage"
)

type Deps struct {
	Auth        *authmw.AuthService
	Catalog     *catalog.Service
	Attempts    *attempt.Manager
	Scorer      *grading.Scorer
	Blobs       storage.BlobStore
	TeacherCode string
	Now         func() time.Time
	Metrics     bool
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

// Mount registers every route on r.
func Mount(r chi.Router, d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Metrics {
		r.Use(metrics.Instrument)
		r.Handle("/metrics", metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				respond.Error(w, http.StatusServiceUnavailable, err.Error())
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	store := d.Catalog.Store()
	r.Post("/auth/register", authmw.RegisterHandler(d.Auth, d.Catalog, d.TeacherCode))
	r.Post("/auth/login", authmw.LoginHandler(d.Auth, store))

	// Protected API (JWT → user and role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth), authmw.AttachUser(store))

		pr.With(rbac.Require("users:list")).Get("/users", ListUsersHandler(d.Catalog))
		pr.With(rbac.Require("user:profile")).Get("/users/me", MeHandler())
		pr.With(rbac.Require("user:profile")).Put("/users/me", UpdateMeHandler(d.Catalog))
		pr.With(rbac.Require("user:profile")).Post("/users/me/photo", UploadPhotoHandler(d.Catalog, d.Blobs))
		pr.With(rbac.Require("user:profile")).Get("/users/{userID}/photo", GetPhotoHandler(d.Blobs))
		pr.With(rbac.Require("user:change_password")).Post("/users/change-password", ChangePasswordHandler(store))

		pr.Route("/groups", func(gr chi.Router) {
			gr.With(rbac.Require("group:view")).Get("/", ListGroupsHandler(d.Catalog))
			gr.With(rbac.Require("group:manage")).Post("/", CreateGroupHandler(d.Catalog))
			gr.With(rbac.Require("group:view")).Get("/{groupID}", GetGroupHandler(d.Catalog))
			gr.With(rbac.Require("group:manage")).Put("/{groupID}", UpdateGroupHandler(d.Catalog))
			gr.With(rbac.Require("group:manage")).Delete("/{groupID}", DeleteGroupHandler(d.Catalog))
			gr.With(rbac.Require("group:manage")).Get("/{groupID}/students", GroupStudentsHandler(d.Catalog))
		})

		pr.Route("/tests", func(tr chi.Router) {
			tr.With(rbac.Require("test:view")).Get("/", ListTestsHandler(d.Catalog))
			tr.With(rbac.Require("test:manage")).Post("/", CreateTestHandler(d.Catalog))
			tr.With(rbac.Require("test:manage")).Post("/import", ImportTestsHandler(d.Catalog))
			tr.With(rbac.Require("test:view")).Get("/{testID}", GetTestHandler(d.Catalog))
			tr.With(rbac.Require("test:manage")).Put("/{testID}", UpdateTestHandler(d.Catalog))
			tr.With(rbac.Require("test:manage")).Delete("/{testID}", DeleteTestHandler(d.Catalog))
			tr.With(rbac.Require("result:view-all")).Get("/{testID}/results", TestResultsHandler(d.Catalog))
			tr.With(rbac.Require("result:stats")).Get("/{testID}/stats", TestStatsHandler(d.Catalog))
		})

		pr.With(rbac.RequireAny("result:view-own", "result:view-all")).
			Get("/test-results", ListResultsHandler(d.Catalog))
		pr.With(rbac.RequireAny("result:view-own", "result:view-all")).
			Get("/test-results/{resultID}", ReviewResultHandler(d.Catalog, d.Scorer))

		// Student flow
		pr.With(rbac.Require("attempt:start")).Get("/me/tests", StudentTestsHandler(d.Catalog, d.Now))
		pr.With(rbac.Require("attempt:view")).Get("/me/attempts", ActiveAttemptsHandler(d.Attempts))
		pr.Route("/attempts", func(ar chi.Router) {
			ar.With(rbac.Require("attempt:start")).Post("/", StartAttemptHandler(d.Attempts))
			ar.With(rbac.Require("attempt:view")).Get("/{attemptID}", GetAttemptHandler(d.Attempts))
			ar.With(rbac.Require("attempt:answer")).Put("/{attemptID}/answers", SaveAnswerHandler(d.Attempts))
			ar.With(rbac.Require("attempt:answer")).Post("/{attemptID}/next", NextQuestionHandler(d.Attempts))
			ar.With(rbac.Require("attempt:answer")).Post("/{attemptID}/previous", PreviousQuestionHandler(d.Attempts))
			ar.With(rbac.Require("attempt:submit")).Post("/{attemptID}/submit", SubmitAttemptHandler(d.Attempts))
			ar.With(rbac.Require("attempt:submit")).Delete("/{attemptID}", CancelAttemptHandler(d.Attempts))
		})
	})
}
