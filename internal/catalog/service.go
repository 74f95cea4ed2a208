// Package catalog applies ownership, role and validation rules on top of a
// quiz.Store. Handlers call it with the authenticated user as actor.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/mind-engage/edutest/internal/quiz"
)

// ErrNotOnRoster rejects a student registration no group lists.
var ErrNotOnRoster = errors.New("student is not listed in any group")

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Service struct {
	store     quiz.Store
	onRemoved func(testIDs ...string)
}

func New(store quiz.Store) *Service { return &Service{store: store} }

// OnTestsRemoved registers fn to run after tests are deleted, directly or
// through their group.
func (s *Service) OnTestsRemoved(fn func(testIDs ...string)) { s.onRemoved = fn }

func (s *Service) testsRemoved(ids []string) {
	if s.onRemoved != nil && len(ids) > 0 {
		s.onRemoved(ids...)
	}
}

func (s *Service) Store() quiz.Store { return s.store }

func requireTeacher(actor quiz.User) error {
	if actor.Role != quiz.RoleTeacher {
		return fmt.Errorf("teachers only: %w", quiz.ErrForbidden)
	}
	return nil
}

// ---- users ----

// Register creates an account. Students must already appear on some
// group's roster; the matching entries are linked to the new id.
func (s *Service) Register(ctx context.Context, u quiz.User, passwordHash string) (quiz.User, error) {
	u.Email = strings.TrimSpace(u.Email)
	u.FullName = strings.Join(strings.Fields(u.FullName), " ")
	u.Institution = strings.TrimSpace(u.Institution)
	u.GroupNumber = strings.TrimSpace(u.GroupNumber)
	switch {
	case !emailRe.MatchString(u.Email):
		return quiz.User{}, &quiz.ValidationError{Field: "email", Reason: "not a valid address"}
	case len(strings.Fields(u.FullName)) < 3:
		return quiz.User{}, &quiz.ValidationError{Field: "fullName", Reason: "full name must contain surname, name and patronymic"}
	case u.Institution == "":
		return quiz.User{}, &quiz.ValidationError{Field: "institution", Reason: "required"}
	case u.Role != quiz.RoleTeacher && u.Role != quiz.RoleStudent:
		return quiz.User{}, &quiz.ValidationError{Field: "role", Reason: "must be teacher or student"}
	case u.Role == quiz.RoleStudent && u.GroupNumber == "":
		return quiz.User{}, &quiz.ValidationError{Field: "groupNumber", Reason: "required"}
	}
	u.ID = ""

	var matched []quiz.Group
	if u.Role == quiz.RoleStudent {
		all, err := s.store.ListGroups(ctx, quiz.GroupFilter{})
		if err != nil {
			return quiz.User{}, err
		}
		matched = quiz.GroupsFor(all, u)
		if len(matched) == 0 {
			return quiz.User{}, ErrNotOnRoster
		}
	} else {
		u.GroupNumber = ""
	}

	created, err := s.store.CreateUser(ctx, u, passwordHash)
	if err != nil {
		return quiz.User{}, err
	}
	for _, g := range matched {
		if linked, ok := quiz.LinkStudent(g, created); ok {
			if _, err := s.store.UpdateGroup(ctx, linked); err != nil {
				return quiz.User{}, fmt.Errorf("link roster %s: %w", g.ID, err)
			}
		}
	}
	return created, nil
}

// ProfileUpdate holds the editable profile fields; nil leaves a field as is.
type ProfileUpdate struct {
	FullName    *string `json:"fullName"`
	Institution *string `json:"institution"`
	GroupNumber *string `json:"groupNumber"`
	PhotoURL    *string `json:"photoUrl"`
}

func (s *Service) UpdateProfile(ctx context.Context, actor quiz.User, p ProfileUpdate) (quiz.User, error) {
	u, err := s.store.GetUser(ctx, actor.ID)
	if err != nil {
		return quiz.User{}, err
	}
	if p.FullName != nil {
		name := strings.Join(strings.Fields(*p.FullName), " ")
		if name == "" {
			return quiz.User{}, &quiz.ValidationError{Field: "fullName", Reason: "required"}
		}
		u.FullName = name
	}
	if p.Institution != nil {
		u.Institution = strings.TrimSpace(*p.Institution)
	}
	if p.GroupNumber != nil && u.Role == quiz.RoleStudent {
		u.GroupNumber = strings.TrimSpace(*p.GroupNumber)
	}
	if p.PhotoURL != nil {
		u.PhotoURL = *p.PhotoURL
	}
	return s.store.UpdateUser(ctx, u)
}

func (s *Service) ListUsers(ctx context.Context, actor quiz.User, f quiz.UserFilter) ([]quiz.User, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx, f)
}

// ---- groups ----

// ListGroups returns a teacher's own groups or the groups a student is on.
func (s *Service) ListGroups(ctx context.Context, actor quiz.User) ([]quiz.Group, error) {
	if actor.Role == quiz.RoleTeacher {
		return s.store.ListGroups(ctx, quiz.GroupFilter{TeacherID: actor.ID})
	}
	all, err := s.store.ListGroups(ctx, quiz.GroupFilter{})
	if err != nil {
		return nil, err
	}
	out := quiz.GroupsFor(all, actor)
	if out == nil {
		out = []quiz.Group{}
	}
	return out, nil
}

func (s *Service) ownGroup(ctx context.Context, actor quiz.User, id string) (quiz.Group, error) {
	if err := requireTeacher(actor); err != nil {
		return quiz.Group{}, err
	}
	g, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return quiz.Group{}, err
	}
	if g.TeacherID != actor.ID {
		return quiz.Group{}, fmt.Errorf("group %s: %w", id, quiz.ErrForbidden)
	}
	return g, nil
}

func (s *Service) GetGroup(ctx context.Context, actor quiz.User, id string) (quiz.Group, error) {
	if actor.Role == quiz.RoleStudent {
		g, err := s.store.GetGroup(ctx, id)
		if err != nil {
			return quiz.Group{}, err
		}
		if !quiz.IsMember(g, actor) {
			return quiz.Group{}, fmt.Errorf("group %s: %w", id, quiz.ErrForbidden)
		}
		return g, nil
	}
	return s.ownGroup(ctx, actor, id)
}

func (s *Service) CreateGroup(ctx context.Context, actor quiz.User, g quiz.Group) (quiz.Group, error) {
	if err := requireTeacher(actor); err != nil {
		return quiz.Group{}, err
	}
	g.ID = ""
	g.TeacherID = actor.ID
	g = normalizeRoster(g)
	if err := quiz.ValidateGroup(g); err != nil {
		return quiz.Group{}, err
	}
	g, err := s.linkRegistered(ctx, g)
	if err != nil {
		return quiz.Group{}, err
	}
	return s.store.CreateGroup(ctx, g)
}

func (s *Service) UpdateGroup(ctx context.Context, actor quiz.User, g quiz.Group) (quiz.Group, error) {
	cur, err := s.ownGroup(ctx, actor, g.ID)
	if err != nil {
		return quiz.Group{}, err
	}
	g.TeacherID = cur.TeacherID
	g = normalizeRoster(g)
	if err := quiz.ValidateGroup(g); err != nil {
		return quiz.Group{}, err
	}
	if g, err = s.linkRegistered(ctx, g); err != nil {
		return quiz.Group{}, err
	}
	return s.store.UpdateGroup(ctx, g)
}

// DeleteGroup also removes every test assigned to the group and their
// results.
func (s *Service) DeleteGroup(ctx context.Context, actor quiz.User, id string) error {
	if _, err := s.ownGroup(ctx, actor, id); err != nil {
		return err
	}
	tests, err := s.store.ListTests(ctx, quiz.TestFilter{GroupID: id})
	if err != nil {
		return err
	}
	if err := s.store.DeleteGroup(ctx, id); err != nil {
		return err
	}
	ids := make([]string, len(tests))
	for i, t := range tests {
		ids[i] = t.ID
	}
	s.testsRemoved(ids)
	return nil
}

// StudentsInGroup returns the registered students matched to the roster.
func (s *Service) StudentsInGroup(ctx context.Context, actor quiz.User, id string) ([]quiz.User, error) {
	g, err := s.ownGroup(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx, quiz.UserFilter{Role: quiz.RoleStudent})
	if err != nil {
		return nil, err
	}
	out := []quiz.User{}
	for _, u := range users {
		if quiz.IsMember(g, u) {
			out = append(out, u)
		}
	}
	return out, nil
}

// normalizeRoster collapses whitespace in names and gives new entries ids.
func normalizeRoster(g quiz.Group) quiz.Group {
	g = g.Clone()
	for i := range g.Students {
		g.Students[i].FullName = strings.Join(strings.Fields(g.Students[i].FullName), " ")
		if g.Students[i].ID == "" {
			g.Students[i].ID = uuid.NewString()
		}
	}
	return g
}

// linkRegistered links roster entries to accounts that registered before
// they were added to the group.
func (s *Service) linkRegistered(ctx context.Context, g quiz.Group) (quiz.Group, error) {
	users, err := s.store.ListUsers(ctx, quiz.UserFilter{Role: quiz.RoleStudent})
	if err != nil {
		return g, err
	}
	for _, u := range users {
		g, _ = quiz.LinkStudent(g, u)
	}
	return g, nil
}

// ---- tests ----

// ListTests returns a teacher's own tests, or the tests assigned to a
// student's groups with answer keys removed.
func (s *Service) ListTests(ctx context.Context, actor quiz.User) ([]quiz.Test, error) {
	if actor.Role == quiz.RoleTeacher {
		return s.store.ListTests(ctx, quiz.TestFilter{TeacherID: actor.ID})
	}
	visible, err := s.visibleTests(ctx, actor)
	if err != nil {
		return nil, err
	}
	out := make([]quiz.Test, 0, len(visible))
	for _, t := range visible {
		out = append(out, t.WithoutAnswers())
	}
	return out, nil
}

func (s *Service) visibleTests(ctx context.Context, student quiz.User) ([]quiz.Test, error) {
	groups, err := s.ListGroups(ctx, student)
	if err != nil {
		return nil, err
	}
	tests, err := s.store.ListTests(ctx, quiz.TestFilter{})
	if err != nil {
		return nil, err
	}
	return quiz.VisibleTests(tests, groups), nil
}

func (s *Service) ownTest(ctx context.Context, actor quiz.User, id string) (quiz.Test, error) {
	if err := requireTeacher(actor); err != nil {
		return quiz.Test{}, err
	}
	t, err := s.store.GetTest(ctx, id)
	if err != nil {
		return quiz.Test{}, err
	}
	if t.TeacherID != actor.ID {
		return quiz.Test{}, fmt.Errorf("test %s: %w", id, quiz.ErrForbidden)
	}
	return t, nil
}

// GetTest returns the full test to its owner and an answer-free copy to an
// assigned student.
func (s *Service) GetTest(ctx context.Context, actor quiz.User, id string) (quiz.Test, error) {
	if actor.Role != quiz.RoleStudent {
		return s.ownTest(ctx, actor, id)
	}
	t, err := s.store.GetTest(ctx, id)
	if err != nil {
		return quiz.Test{}, err
	}
	groups, err := s.ListGroups(ctx, actor)
	if err != nil {
		return quiz.Test{}, err
	}
	if len(quiz.VisibleTests([]quiz.Test{t}, groups)) == 0 {
		return quiz.Test{}, fmt.Errorf("test %s: %w", id, quiz.ErrForbidden)
	}
	return t.WithoutAnswers(), nil
}

func (s *Service) CreateTest(ctx context.Context, actor quiz.User, t quiz.Test) (quiz.Test, error) {
	if err := requireTeacher(actor); err != nil {
		return quiz.Test{}, err
	}
	t.ID = ""
	t.TeacherID = actor.ID
	t = withQuestionIDs(t)
	if err := s.checkTest(ctx, actor, t); err != nil {
		return quiz.Test{}, err
	}
	return s.store.CreateTest(ctx, t)
}

func (s *Service) UpdateTest(ctx context.Context, actor quiz.User, t quiz.Test) (quiz.Test, error) {
	cur, err := s.ownTest(ctx, actor, t.ID)
	if err != nil {
		return quiz.Test{}, err
	}
	t.TeacherID = cur.TeacherID
	t = withQuestionIDs(t)
	if err := s.checkTest(ctx, actor, t); err != nil {
		return quiz.Test{}, err
	}
	return s.store.UpdateTest(ctx, t)
}

func (s *Service) DeleteTest(ctx context.Context, actor quiz.User, id string) error {
	if _, err := s.ownTest(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteTest(ctx, id); err != nil {
		return err
	}
	s.testsRemoved([]string{id})
	return nil
}

// checkTest validates the definition and that every assigned group exists
// and belongs to the actor.
func (s *Service) checkTest(ctx context.Context, actor quiz.User, t quiz.Test) error {
	if err := quiz.ValidateTest(t); err != nil {
		return err
	}
	if len(t.GroupIDs) == 0 {
		return &quiz.ValidationError{Field: "groupIds", Reason: "assign at least one group"}
	}
	for _, gid := range t.GroupIDs {
		g, err := s.store.GetGroup(ctx, gid)
		if errors.Is(err, quiz.ErrNotFound) {
			return &quiz.ValidationError{Field: "groupIds", Reason: fmt.Sprintf("unknown group %q", gid)}
		}
		if err != nil {
			return err
		}
		if g.TeacherID != actor.ID {
			return fmt.Errorf("group %s: %w", gid, quiz.ErrForbidden)
		}
	}
	return nil
}

func withQuestionIDs(t quiz.Test) quiz.Test {
	t = t.Clone()
	for i := range t.Questions {
		if t.Questions[i].ID == "" {
			t.Questions[i].ID = uuid.NewString()
		}
	}
	return t
}
