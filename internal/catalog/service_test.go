package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/edutest/internal/catalog"
	"github.com/mind-engage/edutest/internal/grading"
	"github.com/mind-engage/edutest/internal/quiz"
)

var (
	now    = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	opens  = now.Add(-24 * time.Hour)
	closes = now.Add(24 * time.Hour)
)

type env struct {
	svc     *catalog.Service
	store   quiz.Store
	teacher quiz.User
	group   quiz.Group
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	st := quiz.NewInMemoryStore(func() time.Time { return now })
	svc := catalog.New(st)
	teacher, err := svc.Register(ctx, quiz.User{FullName: "Olga Sergeevna Kuznetsova", Email: "olga@uni.edu", Role: quiz.RoleTeacher, Institution: "State University"}, "hash")
	if err != nil {
		t.Fatalf("register teacher: %v", err)
	}
	g, err := svc.CreateGroup(ctx, teacher, quiz.Group{
		GroupNumber: "CS-21",
		Specialty:   "Computer Science",
		Institution: "State University",
		Students: []quiz.GroupStudent{
			{FullName: "Ivanov  Ivan Ivanovich"},
			{FullName: "Petrova Anna Olegovna"},
		},
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return &env{svc: svc, store: st, teacher: teacher, group: g}
}

func (e *env) student(t *testing.T, name, email string) quiz.User {
	t.Helper()
	u, err := e.svc.Register(context.Background(), quiz.User{FullName: name, Email: email, Role: quiz.RoleStudent, Institution: "state university", GroupNumber: "cs-21"}, "hash")
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u
}

func (e *env) test(t *testing.T, maxAttempts int) quiz.Test {
	t.Helper()
	tt, err := e.svc.CreateTest(context.Background(), e.teacher, quiz.Test{
		Title:       "Algorithms",
		GroupIDs:    []string{e.group.ID},
		MaxAttempts: maxAttempts,
		StartDate:   opens,
		EndDate:     closes,
		Questions: []quiz.Question{
			{Text: "2+2", Type: quiz.TextAnswer, CorrectAnswer: quiz.Text("4")},
			{Text: "Pick even", Type: quiz.MultipleChoice, Options: []string{"1", "2", "4"}, CorrectAnswer: quiz.List("2", "4")},
		},
	})
	if err != nil {
		t.Fatalf("create test: %v", err)
	}
	return tt
}

func TestRegisterRequiresRoster(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.svc.Register(ctx, quiz.User{FullName: "Sidorov Petr Petrovich", Email: "x@uni.edu", Role: quiz.RoleStudent, Institution: "State University", GroupNumber: "CS-21"}, "h")
	if !errors.Is(err, catalog.ErrNotOnRoster) {
		t.Fatalf("err = %v, want ErrNotOnRoster", err)
	}

	u := e.student(t, "ivanov ivan ivanovich", "ivan@uni.edu")
	g, err := e.store.GetGroup(ctx, e.group.ID)
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if g.Students[0].UserID != u.ID {
		t.Fatalf("roster not linked: %+v", g.Students)
	}

	_, err = e.svc.Register(ctx, quiz.User{FullName: "Petrova Anna Olegovna", Email: "IVAN@uni.edu", Role: quiz.RoleStudent, Institution: "State University", GroupNumber: "CS-21"}, "h")
	if !errors.Is(err, quiz.ErrConflict) {
		t.Fatalf("duplicate email: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	e := setup(t)
	cases := []quiz.User{
		{FullName: "A B C", Institution: "U", Role: quiz.RoleTeacher},
		{FullName: "A B C", Email: "not-an-email", Institution: "U", Role: quiz.RoleTeacher},
		{FullName: "Two Words", Email: "a@b.c", Institution: "U", Role: quiz.RoleTeacher},
		{FullName: "A B C", Email: "a@b.c", Role: quiz.RoleTeacher},
		{FullName: "A B C", Email: "a@b.c", Institution: "U", Role: "admin"},
		{FullName: "A B C", Email: "a@b.c", Institution: "U", Role: quiz.RoleStudent},
	}
	for _, u := range cases {
		if _, err := e.svc.Register(context.Background(), u, "h"); !quiz.IsValidation(err) {
			t.Errorf("Register(%+v) = %v, want validation error", u, err)
		}
	}
}

func TestGroupRules(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.svc.CreateGroup(ctx, e.teacher, quiz.Group{GroupNumber: "X", Institution: "U", Students: []quiz.GroupStudent{{FullName: "Only Two"}}})
	if !quiz.IsValidation(err) {
		t.Fatalf("two-word name accepted: %v", err)
	}
	_, err = e.svc.CreateGroup(ctx, e.teacher, quiz.Group{GroupNumber: "X", Institution: "U"})
	if !quiz.IsValidation(err) {
		t.Fatalf("empty roster accepted: %v", err)
	}

	other, err := e.svc.Register(ctx, quiz.User{FullName: "Other Teacher Person", Email: "o@uni.edu", Role: quiz.RoleTeacher, Institution: "Elsewhere"}, "h")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	g := e.group
	g.Specialty = "Hijacked"
	if _, err := e.svc.UpdateGroup(ctx, other, g); !errors.Is(err, quiz.ErrForbidden) {
		t.Fatalf("foreign update: %v", err)
	}
	if err := e.svc.DeleteGroup(ctx, other, g.ID); !errors.Is(err, quiz.ErrForbidden) {
		t.Fatalf("foreign delete: %v", err)
	}

	stu := e.student(t, "Petrova Anna Olegovna", "anna@uni.edu")
	if _, err := e.svc.CreateGroup(ctx, stu, quiz.Group{}); !errors.Is(err, quiz.ErrForbidden) {
		t.Fatalf("student create: %v", err)
	}
	mine, err := e.svc.ListGroups(ctx, stu)
	if err != nil || len(mine) != 1 || mine[0].ID != g.ID {
		t.Fatalf("student groups = %+v, %v", mine, err)
	}
	members, err := e.svc.StudentsInGroup(ctx, e.teacher, g.ID)
	if err != nil || len(members) != 1 || members[0].ID != stu.ID {
		t.Fatalf("members = %+v, %v", members, err)
	}
}

func TestDeleteGroupCascades(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	stu := e.student(t, "Ivanov Ivan Ivanovich", "ivan@uni.edu")
	tt := e.test(t, 0)
	if _, err := e.store.AppendResult(ctx, quiz.TestResult{TestID: tt.ID, StudentID: stu.ID, Score: 1, MaxScore: 2}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := e.svc.DeleteGroup(ctx, e.teacher, e.group.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.store.GetTest(ctx, tt.ID); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("test survived: %v", err)
	}
	rs, _ := e.store.ListResults(ctx, quiz.ResultFilter{TestID: tt.ID})
	if len(rs) != 0 {
		t.Fatalf("results survived: %d", len(rs))
	}
}

func TestDeletionReportsRemovedTests(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	var removed [][]string
	e.svc.OnTestsRemoved(func(ids ...string) { removed = append(removed, ids) })

	a, b := e.test(t, 0), e.test(t, 0)
	if err := e.svc.DeleteTest(ctx, e.teacher, a.ID); err != nil {
		t.Fatalf("delete test: %v", err)
	}
	if err := e.svc.DeleteGroup(ctx, e.teacher, e.group.ID); err != nil {
		t.Fatalf("delete group: %v", err)
	}
	if len(removed) != 2 || len(removed[0]) != 1 || removed[0][0] != a.ID ||
		len(removed[1]) != 1 || removed[1][0] != b.ID {
		t.Fatalf("removed = %v", removed)
	}
	if err := e.svc.DeleteTest(ctx, e.teacher, a.ID); err == nil {
		t.Fatal("deleting a missing test succeeded")
	}
	if len(removed) != 2 {
		t.Fatalf("failed delete reported %v", removed)
	}
}

func TestStudentSeesTestsWithoutAnswers(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	stu := e.student(t, "Ivanov Ivan Ivanovich", "ivan@uni.edu")
	tt := e.test(t, 0)

	list, err := e.svc.ListTests(ctx, stu)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %+v, %v", list, err)
	}
	for _, q := range list[0].Questions {
		if !q.CorrectAnswer.IsZero() {
			t.Fatalf("answer key leaked: %+v", q)
		}
	}
	got, err := e.svc.GetTest(ctx, stu, tt.ID)
	if err != nil || !got.Questions[0].CorrectAnswer.IsZero() {
		t.Fatalf("get = %+v, %v", got, err)
	}
	full, err := e.svc.GetTest(ctx, e.teacher, tt.ID)
	if err != nil || full.Questions[0].CorrectAnswer.IsZero() {
		t.Fatalf("teacher view lost key: %v", err)
	}
	if full.Questions[0].ID == "" {
		t.Fatal("question id not assigned")
	}
}

func TestCreateTestRules(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	base := quiz.Test{
		Title:     "T",
		StartDate: opens,
		EndDate:   closes,
		Questions: []quiz.Question{{Text: "q", Type: quiz.TextAnswer, CorrectAnswer: quiz.Text("a")}},
	}

	noGroups := base
	if _, err := e.svc.CreateTest(ctx, e.teacher, noGroups); !quiz.IsValidation(err) {
		t.Fatalf("no groups: %v", err)
	}
	unknown := base
	unknown.GroupIDs = []string{"nope"}
	if _, err := e.svc.CreateTest(ctx, e.teacher, unknown); !quiz.IsValidation(err) {
		t.Fatalf("unknown group: %v", err)
	}
	reversed := base
	reversed.GroupIDs = []string{e.group.ID}
	reversed.StartDate, reversed.EndDate = closes, opens
	if _, err := e.svc.CreateTest(ctx, e.teacher, reversed); !quiz.IsValidation(err) {
		t.Fatalf("reversed window: %v", err)
	}

	other, _ := e.svc.Register(ctx, quiz.User{FullName: "Other Teacher Person", Email: "o@uni.edu", Role: quiz.RoleTeacher, Institution: "Elsewhere"}, "h")
	foreign := base
	foreign.GroupIDs = []string{e.group.ID}
	if _, err := e.svc.CreateTest(ctx, other, foreign); !errors.Is(err, quiz.ErrForbidden) {
		t.Fatalf("foreign group: %v", err)
	}
}

func TestTestsForStudent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	stu := e.student(t, "Ivanov Ivan Ivanovich", "ivan@uni.edu")
	once := e.test(t, 1)
	open := e.test(t, 0)
	if _, err := e.store.AppendResult(ctx, quiz.TestResult{TestID: once.ID, StudentID: stu.ID, Score: 2, MaxScore: 2}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := e.svc.TestsForStudent(ctx, stu, now)
	if err != nil || len(rows) != 2 {
		t.Fatalf("rows = %+v, %v", rows, err)
	}
	byID := map[string]catalog.StudentTest{}
	for _, r := range rows {
		byID[r.Test.ID] = r
	}
	if r := byID[once.ID]; r.Status != catalog.StatusCompleted || r.AttemptsLeft != 0 || r.Best == nil {
		t.Fatalf("once = %+v", r)
	}
	if r := byID[open.ID]; r.Status != catalog.StatusAvailable || r.AttemptsLeft != -1 {
		t.Fatalf("open = %+v", r)
	}

	rows, _ = e.svc.TestsForStudent(ctx, stu, opens.Add(-time.Hour))
	for _, r := range rows {
		if r.Status != catalog.StatusUpcoming {
			t.Fatalf("before window: %+v", r)
		}
	}
}

func TestReviewResult(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	stu := e.student(t, "Ivanov Ivan Ivanovich", "ivan@uni.edu")
	peer := e.student(t, "Petrova Anna Olegovna", "anna@uni.edu")
	tt := e.test(t, 0)
	r, err := e.store.AppendResult(ctx, quiz.TestResult{
		TestID:    tt.ID,
		StudentID: stu.ID,
		Answers:   map[string]quiz.Answer{tt.Questions[0].ID: quiz.Text(" 4 ")},
		Score:     1,
		MaxScore:  2,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	rev, err := e.svc.ReviewResult(ctx, stu, nil, r.ID)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if rev.Band != grading.BandUnsatisfactory || rev.Percentage != 50 || len(rev.Items) != 2 {
		t.Fatalf("review = %+v", rev)
	}
	if !rev.Items[0].Correct || rev.Items[1].Correct {
		t.Fatalf("items = %+v", rev.Items)
	}
	if _, err := e.svc.ReviewResult(ctx, peer, nil, r.ID); !errors.Is(err, quiz.ErrForbidden) {
		t.Fatalf("peer review: %v", err)
	}
	if _, err := e.svc.ReviewResult(ctx, e.teacher, nil, r.ID); err != nil {
		t.Fatalf("teacher review: %v", err)
	}

	stats, err := e.svc.TestStats(ctx, e.teacher, tt.ID)
	if err != nil || stats.Attempts != 1 || stats.AveragePercent != 50 {
		t.Fatalf("stats = %+v, %v", stats, err)
	}
}
