// Package importer loads groups and tests from YAML documents, used for
// seeding a fresh install and for teacher uploads.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mind-engage/edutest/internal/catalog"
	"github.com/mind-engage/edutest/internal/quiz"
)

// Bundle is the document root.
type Bundle struct {
	Teacher *Teacher `yaml:"teacher"`
	Groups  []Group  `yaml:"groups"`
	Tests   []Test   `yaml:"tests"`
}

// Teacher is only honoured when seeding; uploads run as the caller.
type Teacher struct {
	FullName    string `yaml:"fullName"`
	Email       string `yaml:"email"`
	Password    string `yaml:"password"`
	Institution string `yaml:"institution"`
}

type Group struct {
	Ref         string   `yaml:"ref"` // name used by tests in the same document
	GroupNumber string   `yaml:"groupNumber"`
	Specialty   string   `yaml:"specialty"`
	Institution string   `yaml:"institution"`
	Students    []string `yaml:"students"`
}

type Test struct {
	Title              string     `yaml:"title"`
	Subject            string     `yaml:"subject"`
	Description        string     `yaml:"description"`
	Groups             []string   `yaml:"groups"` // refs or existing group ids
	TimeLimit          int        `yaml:"timeLimit"`
	MaxAttempts        int        `yaml:"maxAttempts"`
	StartDate          time.Time  `yaml:"startDate"`
	EndDate            time.Time  `yaml:"endDate"`
	RandomizeQuestions bool       `yaml:"randomizeQuestions"`
	Questions          []Question `yaml:"questions"`
}

type Question struct {
	ID               string            `yaml:"id"`
	Text             string            `yaml:"text"`
	Type             quiz.QuestionType `yaml:"type"`
	Options          []string          `yaml:"options"`
	Answer           answer            `yaml:"answer"`
	Alternatives     []string          `yaml:"alternatives"`
	RandomizeOptions bool              `yaml:"randomizeOptions"`
}

// answer accepts a scalar or a sequence of scalars.
type answer struct{ quiz.Answer }

func (a *answer) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		a.Answer = quiz.Text(n.Value)
	case yaml.SequenceNode:
		var list []string
		if err := n.Decode(&list); err != nil {
			return err
		}
		a.Answer = quiz.List(list...)
	default:
		return fmt.Errorf("line %d: answer must be a string or a list", n.Line)
	}
	return nil
}

// Decode parses one YAML document.
func Decode(r io.Reader) (Bundle, error) {
	var b Bundle
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return Bundle{}, errors.New("empty document")
		}
		return Bundle{}, fmt.Errorf("yaml: %w", err)
	}
	return b, nil
}

// Summary reports what Apply created and skipped.
type Summary struct {
	TeacherID     string   `json:"teacherId"`
	GroupsCreated []string `json:"groupsCreated"`
	TestsCreated  []string `json:"testsCreated"`
	Skipped       []string `json:"skipped"`
}

// Seed applies b as its own teacher, registering the account on first
// use. hash turns the plain password into a stored hash.
func Seed(ctx context.Context, svc *catalog.Service, hash func(string) (string, error), b Bundle) (Summary, error) {
	if b.Teacher == nil {
		return Summary{}, errors.New("seed: teacher section required")
	}
	t := b.Teacher
	owner, _, err := svc.Store().GetUserByEmail(ctx, t.Email)
	if errors.Is(err, quiz.ErrNotFound) {
		h, herr := hash(t.Password)
		if herr != nil {
			return Summary{}, herr
		}
		owner, err = svc.Register(ctx, quiz.User{
			FullName:    t.FullName,
			Email:       t.Email,
			Role:        quiz.RoleTeacher,
			Institution: t.Institution,
		}, h)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("seed teacher: %w", err)
	}
	if owner.Role != quiz.RoleTeacher {
		return Summary{}, fmt.Errorf("seed: %s is not a teacher", t.Email)
	}
	return Apply(ctx, svc, owner, b)
}

// Apply creates the bundle's groups and tests owned by actor. Groups that
// already exist (same number and institution) and tests with an existing
// title are skipped, so a document can be applied repeatedly.
func Apply(ctx context.Context, svc *catalog.Service, actor quiz.User, b Bundle) (Summary, error) {
	sum := Summary{TeacherID: actor.ID, GroupsCreated: []string{}, TestsCreated: []string{}, Skipped: []string{}}

	existing, err := svc.ListGroups(ctx, actor)
	if err != nil {
		return sum, err
	}
	refs := map[string]string{}
	for _, g := range b.Groups {
		id := findGroup(existing, g)
		if id != "" {
			sum.Skipped = append(sum.Skipped, "group "+g.GroupNumber)
		} else {
			created, err := svc.CreateGroup(ctx, actor, g.toQuiz())
			if err != nil {
				return sum, fmt.Errorf("group %s: %w", g.GroupNumber, err)
			}
			id = created.ID
			sum.GroupsCreated = append(sum.GroupsCreated, id)
		}
		if g.Ref != "" {
			refs[g.Ref] = id
		}
		refs[g.GroupNumber] = id
	}

	tests, err := svc.ListTests(ctx, actor)
	if err != nil {
		return sum, err
	}
	titles := map[string]bool{}
	for _, t := range tests {
		titles[strings.ToLower(t.Title)] = true
	}
	for _, t := range b.Tests {
		if titles[strings.ToLower(t.Title)] {
			sum.Skipped = append(sum.Skipped, "test "+t.Title)
			continue
		}
		qt := t.toQuiz()
		for i, ref := range qt.GroupIDs {
			if id, ok := refs[ref]; ok {
				qt.GroupIDs[i] = id
			}
		}
		created, err := svc.CreateTest(ctx, actor, qt)
		if err != nil {
			return sum, fmt.Errorf("test %q: %w", t.Title, err)
		}
		titles[strings.ToLower(t.Title)] = true
		sum.TestsCreated = append(sum.TestsCreated, created.ID)
	}
	return sum, nil
}

func findGroup(groups []quiz.Group, g Group) string {
	for _, x := range groups {
		if strings.EqualFold(strings.TrimSpace(x.GroupNumber), strings.TrimSpace(g.GroupNumber)) &&
			strings.EqualFold(strings.TrimSpace(x.Institution), strings.TrimSpace(g.Institution)) {
			return x.ID
		}
	}
	return ""
}

func (g Group) toQuiz() quiz.Group {
	out := quiz.Group{
		GroupNumber: g.GroupNumber,
		Specialty:   g.Specialty,
		Institution: g.Institution,
	}
	for _, name := range g.Students {
		out.Students = append(out.Students, quiz.GroupStudent{FullName: name})
	}
	return out
}

func (t Test) toQuiz() quiz.Test {
	out := quiz.Test{
		Title:              t.Title,
		Subject:            t.Subject,
		Description:        t.Description,
		GroupIDs:           append([]string(nil), t.Groups...),
		TimeLimit:          t.TimeLimit,
		MaxAttempts:        t.MaxAttempts,
		StartDate:          t.StartDate,
		EndDate:            t.EndDate,
		RandomizeQuestions: t.RandomizeQuestions,
	}
	for _, q := range t.Questions {
		out.Questions = append(out.Questions, quiz.Question{
			ID:                 q.ID,
			Text:               q.Text,
			Type:               q.Type,
			Options:            q.Options,
			CorrectAnswer:      q.Answer.Answer,
			AlternativeAnswers: q.Alternatives,
			RandomizeOptions:   q.RandomizeOptions,
		})
	}
	return out
}
