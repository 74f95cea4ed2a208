package eligibility_test

import (
	"testing"
	"time"

	"github.com/mind-engage/edutest/internal/eligibility"
	"github.com/mind-engage/edutest/internal/quiz"
)

var (
	opens = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	shut  = opens.Add(2 * time.Hour)
)

func gateAt(ts time.Time) *eligibility.Gate {
	return eligibility.New(func() time.Time { return ts })
}

func TestCanStart(t *testing.T) {
	tst := quiz.Test{ID: "t1", StartDate: opens, EndDate: shut, MaxAttempts: 2}
	student := quiz.User{ID: "u1", Role: quiz.RoleStudent}
	one := []quiz.TestResult{{TestID: "t1", StudentID: "u1"}}
	two := append(one, quiz.TestResult{TestID: "t1", StudentID: "u1"})
	others := []quiz.TestResult{{TestID: "t1", StudentID: "u2"}, {TestID: "t2", StudentID: "u1"}, {TestID: "t2", StudentID: "u1"}}

	cases := []struct {
		name  string
		now   time.Time
		user  quiz.User
		prior []quiz.TestResult
		want  eligibility.Reason
	}{
		{"inside window", opens.Add(time.Minute), student, nil, ""},
		{"at opening", opens, student, nil, ""},
		{"at closing", shut, student, nil, ""},
		{"before opening", opens.Add(-time.Second), student, nil, eligibility.NotYetOpen},
		{"after closing", shut.Add(time.Second), student, nil, eligibility.WindowClosed},
		{"one attempt used", opens, student, one, ""},
		{"attempts exhausted", opens, student, two, eligibility.AttemptsExhausted},
		{"other results ignored", opens, student, others, ""},
		{"teacher", opens, quiz.User{ID: "t", Role: quiz.RoleTeacher}, nil, eligibility.NotStudent},
	}
	for _, c := range cases {
		d := gateAt(c.now).CanStart(tst, c.user, c.prior)
		if d.Allowed != (c.want == "") || d.Reason != c.want {
			t.Errorf("%s: %+v, want reason %q", c.name, d, c.want)
		}
	}
}

func TestUnlimitedAttempts(t *testing.T) {
	tst := quiz.Test{ID: "t1", StartDate: opens, EndDate: shut}
	prior := make([]quiz.TestResult, 10)
	for i := range prior {
		prior[i] = quiz.TestResult{TestID: "t1", StudentID: "u1"}
	}
	if d := gateAt(opens).CanStart(tst, quiz.User{ID: "u1", Role: quiz.RoleStudent}, prior); !d.Allowed {
		t.Fatalf("unlimited test denied: %+v", d)
	}
	if left := eligibility.AttemptsLeft(tst, "u1", prior); left != -1 {
		t.Fatalf("left = %d", left)
	}
}

func TestCanSubmitUsesStartTime(t *testing.T) {
	tst := quiz.Test{ID: "t1", StartDate: opens, EndDate: shut, MaxAttempts: 1}
	student := quiz.User{ID: "u1", Role: quiz.RoleStudent}
	g := gateAt(shut.Add(time.Hour))

	if d := g.CanSubmit(tst, student, nil, shut.Add(-time.Minute)); !d.Allowed {
		t.Fatalf("attempt started in the window must finish: %+v", d)
	}
	if d := g.CanSubmit(tst, student, nil, shut.Add(time.Minute)); d.Reason != eligibility.WindowClosed {
		t.Fatalf("late start = %+v", d)
	}
	if d := g.CanSubmit(tst, student, nil, opens.Add(-time.Minute)); d.Reason != eligibility.NotYetOpen {
		t.Fatalf("early start = %+v", d)
	}
	used := []quiz.TestResult{{TestID: "t1", StudentID: "u1"}}
	if d := g.CanSubmit(tst, student, used, opens); d.Reason != eligibility.AttemptsExhausted {
		t.Fatalf("exhausted = %+v", d)
	}
}

func TestAttemptsLeft(t *testing.T) {
	tst := quiz.Test{ID: "t1", MaxAttempts: 2}
	prior := []quiz.TestResult{{TestID: "t1", StudentID: "u1"}, {TestID: "t1", StudentID: "u1"}, {TestID: "t1", StudentID: "u1"}}
	if left := eligibility.AttemptsLeft(tst, "u1", prior[:1]); left != 1 {
		t.Fatalf("left = %d", left)
	}
	if left := eligibility.AttemptsLeft(tst, "u1", prior); left != 0 {
		t.Fatalf("over budget left = %d", left)
	}
	if left := eligibility.AttemptsLeft(tst, "u2", prior); left != 2 {
		t.Fatalf("other student left = %d", left)
	}
}

func TestVisible(t *testing.T) {
	g := quiz.Group{ID: "g1", GroupNumber: "101", Institution: "ITMO",
		Students: []quiz.GroupStudent{{FullName: "Ivanova Anna Petrovna"}}}
	anna := quiz.User{ID: "u1", Role: quiz.RoleStudent, FullName: "Ivanova Anna Petrovna", Institution: "ITMO", GroupNumber: "101"}
	tests := []quiz.Test{{ID: "t1", GroupIDs: []string{"g1"}}, {ID: "t2", GroupIDs: []string{"g9"}}}

	got := eligibility.Visible(tests, []quiz.Group{g}, anna)
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("visible = %+v", got)
	}
	stranger := anna
	stranger.FullName = "Sidorov Ivan Ivanovich"
	if got := eligibility.Visible(tests, []quiz.Group{g}, stranger); len(got) != 0 {
		t.Fatalf("stranger sees %+v", got)
	}
}
