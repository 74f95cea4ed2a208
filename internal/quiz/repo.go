package quiz

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
)

type UserFilter struct {
	Role        Role
	Institution string
}

type GroupFilter struct {
	TeacherID string
}

// TestFilter selects tests by owner and/or assigned group. Empty fields
// match everything.
type TestFilter struct {
	TeacherID string
	GroupID   string
}

type ResultFilter struct {
	TestID    string
	StudentID string
}

// Store is the persistence port used by the catalog and the attempt engine.
// Implementations assign ids and creation timestamps on create, replace
// whole records on update and apply cascades atomically.
type Store interface {
	CreateUser(ctx context.Context, u User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	// GetUserByEmail also returns the stored password hash.
	GetUserByEmail(ctx context.Context, email string) (User, string, error)
	UpdateUser(ctx context.Context, u User) (User, error)
	SetPasswordHash(ctx context.Context, userID, hash string) error
	ListUsers(ctx context.Context, f UserFilter) ([]User, error)

	ListGroups(ctx context.Context, f GroupFilter) ([]Group, error)
	GetGroup(ctx context.Context, id string) (Group, error)
	CreateGroup(ctx context.Context, g Group) (Group, error)
	UpdateGroup(ctx context.Context, g Group) (Group, error)
	// DeleteGroup removes the group, every test assigned to it and the
	// results of those tests.
	DeleteGroup(ctx context.Context, id string) error

	ListTests(ctx context.Context, f TestFilter) ([]Test, error)
	GetTest(ctx context.Context, id string) (Test, error)
	CreateTest(ctx context.Context, t Test) (Test, error)
	UpdateTest(ctx context.Context, t Test) (Test, error)
	// DeleteTest removes the test and its results.
	DeleteTest(ctx context.Context, id string) error

	ListResults(ctx context.Context, f ResultFilter) ([]TestResult, error)
	GetResult(ctx context.Context, id string) (TestResult, error)
	AppendResult(ctx context.Context, r TestResult) (TestResult, error)
}
