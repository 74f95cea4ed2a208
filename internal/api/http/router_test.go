package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	api "github.com/mind-engage/edutest/internal/api/http"
	"github.com/mind-engage/edutest/internal/attempt"
	authmw "github.com/mind-engage/edutest/internal/auth/middleware"
	"github.com/mind-engage/edutest/internal/catalog"
	"github.com/mind-engage/edutest/internal/grading"
	"github.com/mind-engage/edutest/internal/quiz"
	"github.com/mind-engage/edutest/internal/shuffle"
	"github.com/mind-engage/edutest/internal/storage"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	st := quiz.NewInMemoryStore(nil)
	blobs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("blobs: %v", err)
	}
	mgr := attempt.NewManager(attempt.Config{Store: st, Source: shuffle.NewSource(3)})
	t.Cleanup(mgr.Close)

	r := chi.NewRouter()
	api.Mount(r, api.Deps{
		Auth:     authmw.NewAuthService("test-secret", time.Hour),
		Catalog:  catalog.New(st),
		Attempts: mgr,
		Scorer:   grading.NewScorer(nil),
		Blobs:    blobs,
		Metrics:  true,
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int, out any) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, status, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
}

type tokenOut struct {
	AccessToken string    `json:"access_token"`
	User        quiz.User `json:"user"`
}

func register(t *testing.T, h http.Handler, body map[string]string) tokenOut {
	t.Helper()
	var out tokenOut
	expect(t, do(t, h, http.MethodPost, "/auth/register", "", body), http.StatusCreated, &out)
	return out
}

func TestAssessmentFlow(t *testing.T) {
	h := newServer(t)

	teacher := register(t, h, map[string]string{
		"fullName": "Kuznetsova Olga Sergeevna", "email": "olga@college.edu", "password": "secret1",
		"role": "teacher", "institution": "City College",
	})

	var g quiz.Group
	expect(t, do(t, h, http.MethodPost, "/groups", teacher.AccessToken, map[string]any{
		"groupNumber": "204", "institution": "City College", "specialty": "Networks",
		"students": []map[string]string{{"fullName": "Ivanov Ivan Ivanovich"}},
	}), http.StatusCreated, &g)

	// not on the roster
	rec := do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"fullName": "Stranger Somebody Else", "email": "x@college.edu", "password": "secret1",
		"role": "student", "institution": "City College", "groupNumber": "204",
	})
	expect(t, rec, http.StatusForbidden, nil)

	student := register(t, h, map[string]string{
		"fullName": "Ivanov Ivan Ivanovich", "email": "ivan@college.edu", "password": "secret1",
		"role": "student", "institution": "city college", "groupNumber": "204",
	})

	now := time.Now().UTC()
	var test quiz.Test
	expect(t, do(t, h, http.MethodPost, "/tests", teacher.AccessToken, map[string]any{
		"title": "Routing", "groupIds": []string{g.ID}, "maxAttempts": 1, "timeLimit": 10,
		"startDate": now.Add(-time.Hour), "endDate": now.Add(time.Hour),
		"questions": []map[string]any{
			{"id": "q1", "text": "Layer of IP", "type": "single-choice", "options": []string{"2", "3", "4"}, "correctAnswer": "3"},
			{"id": "q2", "text": "Routing protocols", "type": "multiple-choice", "options": []string{"OSPF", "HTTP", "BGP"}, "correctAnswer": []string{"OSPF", "BGP"}},
			{"id": "q3", "text": "Port of SSH", "type": "text", "correctAnswer": "22"},
		},
	}), http.StatusCreated, &test)

	var visible []quiz.Test
	expect(t, do(t, h, http.MethodGet, "/tests", student.AccessToken, nil), http.StatusOK, &visible)
	if len(visible) != 1 || !visible[0].Questions[0].CorrectAnswer.IsZero() {
		t.Fatalf("student tests = %+v", visible)
	}

	// teachers cannot take tests
	expect(t, do(t, h, http.MethodPost, "/attempts", teacher.AccessToken, map[string]string{"testId": test.ID}), http.StatusForbidden, nil)

	var view attempt.View
	expect(t, do(t, h, http.MethodPost, "/attempts", student.AccessToken, map[string]string{"testId": test.ID}), http.StatusCreated, &view)
	if view.State != attempt.InProgress || view.Countdown != "10:00" || view.Total != 3 {
		t.Fatalf("view = %+v", view)
	}
	expect(t, do(t, h, http.MethodPost, "/attempts", student.AccessToken, map[string]string{"testId": test.ID}), http.StatusConflict, nil)

	answers := map[string]any{"q1": "3", "q2": []string{"BGP", "OSPF"}, "q3": "23"}
	for qid, a := range answers {
		expect(t, do(t, h, http.MethodPut, "/attempts/"+view.ID+"/answers", student.AccessToken,
			map[string]any{"questionId": qid, "answer": a}), http.StatusOK, nil)
	}
	expect(t, do(t, h, http.MethodPut, "/attempts/"+view.ID+"/answers", student.AccessToken,
		map[string]any{"questionId": "nope", "answer": "x"}), http.StatusBadRequest, nil)

	expect(t, do(t, h, http.MethodPost, "/attempts/"+view.ID+"/submit", student.AccessToken, nil), http.StatusOK, &view)
	if view.State != attempt.Submitted || view.Result == nil || view.Result.Score != 2 || view.Result.MaxScore != 3 {
		t.Fatalf("submitted view = %+v", view)
	}

	var rev catalog.Review
	expect(t, do(t, h, http.MethodGet, "/test-results/"+view.Result.ID, student.AccessToken, nil), http.StatusOK, &rev)
	if rev.Band != grading.BandSatisfactory || len(rev.Items) != 3 {
		t.Fatalf("review = %+v", rev)
	}

	// attempt budget spent
	rec = do(t, h, http.MethodPost, "/attempts", student.AccessToken, map[string]string{"testId": test.ID})
	expect(t, rec, http.StatusForbidden, nil)
	var msg map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &msg)
	if msg["message"] == "" {
		t.Fatalf("error body = %s", rec.Body.String())
	}

	var stats grading.TestStats
	expect(t, do(t, h, http.MethodGet, "/tests/"+test.ID+"/stats", teacher.AccessToken, nil), http.StatusOK, &stats)
	if stats.Attempts != 1 || stats.Students != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	var rows []catalog.StudentTest
	expect(t, do(t, h, http.MethodGet, "/me/tests", student.AccessToken, nil), http.StatusOK, &rows)
	if len(rows) != 1 || rows[0].Status != catalog.StatusCompleted {
		t.Fatalf("dashboard = %+v", rows)
	}

	// deleting the group removes its test
	expect(t, do(t, h, http.MethodDelete, "/groups/"+g.ID, teacher.AccessToken, nil), http.StatusNoContent, nil)
	expect(t, do(t, h, http.MethodGet, "/tests/"+test.ID, teacher.AccessToken, nil), http.StatusNotFound, nil)
}

func TestAuthErrors(t *testing.T) {
	h := newServer(t)
	register(t, h, map[string]string{
		"fullName": "Kuznetsova Olga Sergeevna", "email": "olga@college.edu", "password": "secret1",
		"role": "teacher", "institution": "City College",
	})

	expect(t, do(t, h, http.MethodGet, "/tests", "", nil), http.StatusUnauthorized, nil)
	expect(t, do(t, h, http.MethodGet, "/tests", "garbage", nil), http.StatusUnauthorized, nil)

	expect(t, do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "olga@college.edu", "password": "secret1", "role": "student",
	}), http.StatusUnauthorized, nil)
	expect(t, do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "olga@college.edu", "password": "wrong!!", "role": "teacher",
	}), http.StatusUnauthorized, nil)

	var out tokenOut
	expect(t, do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "OLGA@college.edu", "password": "secret1", "role": "teacher",
	}), http.StatusOK, &out)

	expect(t, do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"fullName": "Another Olga Person", "email": "olga@college.edu", "password": "secret1",
		"role": "teacher", "institution": "City College",
	}), http.StatusConflict, nil)
	expect(t, do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"fullName": "Short Password Person", "email": "p@college.edu", "password": "123",
		"role": "teacher", "institution": "City College",
	}), http.StatusBadRequest, nil)

	var me quiz.User
	expect(t, do(t, h, http.MethodPut, "/users/me", out.AccessToken, map[string]string{"institution": "Tech University"}), http.StatusOK, &me)
	if me.Institution != "Tech University" || me.Email != "olga@college.edu" {
		t.Fatalf("me = %+v", me)
	}

	var profile struct {
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}
	expect(t, do(t, h, http.MethodGet, "/users/me", out.AccessToken, nil), http.StatusOK, &profile)
	if profile.Role != "teacher" || len(profile.Permissions) == 0 {
		t.Fatalf("profile = %+v", profile)
	}

	expect(t, do(t, h, http.MethodPost, "/users/change-password", out.AccessToken,
		map[string]string{"old_password": "secret1", "new_password": "secret2"}), http.StatusNoContent, nil)
	expect(t, do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "olga@college.edu", "password": "secret2", "role": "teacher",
	}), http.StatusOK, nil)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newServer(t)
	expect(t, do(t, h, http.MethodGet, "/healthz", "", nil), http.StatusOK, nil)
	expect(t, do(t, h, http.MethodGet, "/readyz", "", nil), http.StatusOK, nil)
	expect(t, do(t, h, http.MethodGet, "/metrics", "", nil), http.StatusOK, nil)
}
