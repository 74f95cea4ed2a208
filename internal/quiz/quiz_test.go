package quiz_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mind-engage/edutest/internal/quiz"
)

func TestAnswerJSON(t *testing.T) {
	cases := []struct {
		in     string
		isText bool
		isList bool
		zero   bool
	}{
		{in: `"go"`, isText: true},
		{in: `["map","chan"]`, isList: true},
		{in: `[]`, isList: true},
		{in: `null`, zero: true},
		{in: `42`},
		{in: `{"a":1}`},
		{in: `["ok", 3]`},
	}
	for _, c := range cases {
		var a quiz.Answer
		if err := json.Unmarshal([]byte(c.in), &a); err != nil {
			t.Fatalf("%s: unexpected error %v", c.in, err)
		}
		_, isText := a.String()
		if isText != c.isText || a.IsList() != c.isList || a.IsZero() != c.zero {
			t.Errorf("%s: text=%v list=%v zero=%v", c.in, isText, a.IsList(), a.IsZero())
		}
	}

	b, _ := json.Marshal(map[string]quiz.Answer{"a": quiz.Text("x"), "b": quiz.List("y", "z")})
	if string(b) != `{"a":"x","b":["y","z"]}` {
		t.Fatalf("marshal = %s", b)
	}
}

func TestListCopiesInput(t *testing.T) {
	in := []string{"a", "b"}
	a := quiz.List(in...)
	in[0] = "changed"
	got, _ := a.Strings()
	got[1] = "changed"
	again, _ := a.Strings()
	if again[0] != "a" || again[1] != "b" {
		t.Fatalf("answer aliased caller memory: %v", again)
	}
}

func validTest() quiz.Test {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return quiz.Test{
		Title:     "Go basics",
		StartDate: start,
		EndDate:   start.Add(time.Hour),
		Questions: []quiz.Question{
			{ID: "q1", Text: "Pick one", Type: quiz.SingleChoice, Options: []string{"a", "b"}, CorrectAnswer: quiz.Text("a")},
			{ID: "q2", Text: "Pick some", Type: quiz.MultipleChoice, Options: []string{"a", "b", "c"}, CorrectAnswer: quiz.List("a", "c")},
			{ID: "q3", Text: "Type it", Type: quiz.TextAnswer, CorrectAnswer: quiz.Text("nil")},
		},
	}
}

func TestValidateTest(t *testing.T) {
	if err := quiz.ValidateTest(validTest()); err != nil {
		t.Fatalf("valid test rejected: %v", err)
	}

	cases := map[string]func(*quiz.Test){
		"no title":            func(t *quiz.Test) { t.Title = " " },
		"end before start":    func(t *quiz.Test) { t.EndDate = t.StartDate.Add(-time.Minute) },
		"equal window":        func(t *quiz.Test) { t.EndDate = t.StartDate },
		"missing dates":       func(t *quiz.Test) { t.StartDate = time.Time{} },
		"negative limit":      func(t *quiz.Test) { t.TimeLimit = -1 },
		"negative attempts":   func(t *quiz.Test) { t.MaxAttempts = -1 },
		"no questions":        func(t *quiz.Test) { t.Questions = nil },
		"duplicate ids":       func(t *quiz.Test) { t.Questions[1].ID = "q1" },
		"empty text":          func(t *quiz.Test) { t.Questions[0].Text = "" },
		"one option":          func(t *quiz.Test) { t.Questions[0].Options = []string{"a"} },
		"blank option":        func(t *quiz.Test) { t.Questions[0].Options = []string{"a", " "} },
		"duplicate option":    func(t *quiz.Test) { t.Questions[1].Options = []string{"a", "b", "a"} },
		"multi key repeated":  func(t *quiz.Test) { t.Questions[1].CorrectAnswer = quiz.List("a", "a") },
		"single key not opt":  func(t *quiz.Test) { t.Questions[0].CorrectAnswer = quiz.Text("z") },
		"single key list":     func(t *quiz.Test) { t.Questions[0].CorrectAnswer = quiz.List("a") },
		"multi key string":    func(t *quiz.Test) { t.Questions[1].CorrectAnswer = quiz.Text("a") },
		"multi key empty":     func(t *quiz.Test) { t.Questions[1].CorrectAnswer = quiz.List() },
		"multi key not opt":   func(t *quiz.Test) { t.Questions[1].CorrectAnswer = quiz.List("a", "z") },
		"choice alternatives": func(t *quiz.Test) { t.Questions[0].AlternativeAnswers = []string{"b"} },
		"text with options":   func(t *quiz.Test) { t.Questions[2].Options = []string{"a", "b"} },
		"text blank key":      func(t *quiz.Test) { t.Questions[2].CorrectAnswer = quiz.Text("  ") },
		"unknown type":        func(t *quiz.Test) { t.Questions[2].Type = "essay" },
	}
	for name, mutate := range cases {
		tst := validTest()
		mutate(&tst)
		err := quiz.ValidateTest(tst)
		if err == nil {
			t.Errorf("%s: accepted", name)
			continue
		}
		if !quiz.IsValidation(err) {
			t.Errorf("%s: %v is not a validation error", name, err)
		}
	}
}

func TestValidateTestNamesQuestionField(t *testing.T) {
	tst := validTest()
	tst.Questions[1].Options = []string{"a"}
	err := quiz.ValidateTest(tst)
	if err == nil || err.Error() != "questions[1].options: at least two options required" {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateQuestionDuplicates(t *testing.T) {
	q := quiz.Question{Text: "Pick", Type: quiz.MultipleChoice, Options: []string{"A", "B"}, CorrectAnswer: quiz.List("A", "A")}
	if err := quiz.ValidateQuestion(q); err == nil || err.Error() != `correctAnswer: "A" listed twice` {
		t.Fatalf("repeated key err = %v", err)
	}
	q = quiz.Question{Text: "Pick", Type: quiz.SingleChoice, Options: []string{"A", "A"}, CorrectAnswer: quiz.Text("A")}
	if err := quiz.ValidateQuestion(q); err == nil || err.Error() != `options: duplicate option "A"` {
		t.Fatalf("duplicate option err = %v", err)
	}
}

func TestValidateGroup(t *testing.T) {
	ok := quiz.Group{GroupNumber: "101", Institution: "ITMO", Students: []quiz.GroupStudent{{FullName: "Ivanova Anna Petrovna"}}}
	if err := quiz.ValidateGroup(ok); err != nil {
		t.Fatalf("valid group rejected: %v", err)
	}
	bad := []quiz.Group{
		{Institution: "ITMO", Students: ok.Students},
		{GroupNumber: "101", Students: ok.Students},
		{GroupNumber: "101", Institution: "ITMO"},
		{GroupNumber: "101", Institution: "ITMO", Students: []quiz.GroupStudent{{FullName: "Anna Ivanova"}}},
	}
	for i, g := range bad {
		if err := quiz.ValidateGroup(g); !quiz.IsValidation(err) {
			t.Errorf("case %d: err = %v", i, err)
		}
	}
}

func TestMembership(t *testing.T) {
	g := quiz.Group{
		ID: "g1", GroupNumber: "101", Institution: "ITMO",
		Students: []quiz.GroupStudent{
			{ID: "s1", FullName: "Ivanova Anna Petrovna"},
			{ID: "s2", FullName: "Petrov Petr Petrovich", UserID: "u-petrov"},
		},
	}
	anna := quiz.User{ID: "u-anna", Role: quiz.RoleStudent, FullName: "  ivanova anna PETROVNA ", Institution: "itmo", GroupNumber: " 101"}

	if !quiz.IsMember(g, anna) {
		t.Fatal("name match ignored case and spacing")
	}
	teacher := anna
	teacher.Role = quiz.RoleTeacher
	if quiz.IsMember(g, teacher) {
		t.Fatal("teachers are never roster members")
	}
	moved := anna
	moved.GroupNumber = "102"
	if quiz.IsMember(g, moved) {
		t.Fatal("group number must match")
	}

	// a linked entry matches by id even after the profile drifts
	petrov := quiz.User{ID: "u-petrov", Role: quiz.RoleStudent, FullName: "Petrov P P", GroupNumber: "999"}
	if !quiz.IsMember(g, petrov) {
		t.Fatal("linked student not matched by id")
	}
	// a namesake cannot claim an entry already linked to someone else
	namesake := quiz.User{ID: "u-other", Role: quiz.RoleStudent, FullName: "Petrov Petr Petrovich", Institution: "ITMO", GroupNumber: "101"}
	if quiz.IsMember(g, namesake) {
		t.Fatal("linked entry claimed by another account")
	}

	linked, changed := quiz.LinkStudent(g, anna)
	if !changed || linked.Students[0].UserID != "u-anna" {
		t.Fatalf("link = %+v %v", linked.Students, changed)
	}
	if g.Students[0].UserID != "" {
		t.Fatal("LinkStudent modified its input")
	}
	if _, changed := quiz.LinkStudent(linked, anna); changed {
		t.Fatal("second link reported a change")
	}

	other := quiz.Group{ID: "g2", GroupNumber: "102", Institution: "ITMO"}
	groups := quiz.GroupsFor([]quiz.Group{other, g}, anna)
	if len(groups) != 1 || groups[0].ID != "g1" {
		t.Fatalf("groups = %+v", groups)
	}
	tests := quiz.VisibleTests([]quiz.Test{
		{ID: "t1", GroupIDs: []string{"g2"}},
		{ID: "t2", GroupIDs: []string{"g2", "g1"}},
		{ID: "t3"},
	}, groups)
	if len(tests) != 1 || tests[0].ID != "t2" {
		t.Fatalf("visible = %+v", tests)
	}
}

func TestWithoutAnswers(t *testing.T) {
	tst := validTest()
	tst.Questions[2].AlternativeAnswers = []string{"null"}
	pub := tst.WithoutAnswers()
	for _, q := range pub.Questions {
		if !q.CorrectAnswer.IsZero() || q.AlternativeAnswers != nil {
			t.Fatalf("answer key leaked: %+v", q)
		}
	}
	if tst.Questions[0].CorrectAnswer.IsZero() {
		t.Fatal("input test was modified")
	}
}

func TestPercentage(t *testing.T) {
	if p := (quiz.TestResult{Score: 2, MaxScore: 4}).Percentage(); p != 50 {
		t.Fatalf("pct = %v", p)
	}
	if p := (quiz.TestResult{}).Percentage(); p != 0 {
		t.Fatalf("empty pct = %v", p)
	}
}
