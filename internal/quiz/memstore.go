package quiz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memUser struct {
	User
	hash string
}

type memoryStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	users   map[string]memUser
	groups  map[string]Group
	tests   map[string]Test
	results map[string]TestResult
	// insertion order, so lists are stable
	seq map[string]int64
	n   int64
}

// NewInMemoryStore returns a Store kept in process memory. now may be nil.
func NewInMemoryStore(now func() time.Time) Store {
	if now == nil {
		now = time.Now
	}
	return &memoryStore{
		now:     now,
		users:   map[string]memUser{},
		groups:  map[string]Group{},
		tests:   map[string]Test{},
		results: map[string]TestResult{},
		seq:     map[string]int64{},
	}
}

func (m *memoryStore) track(id string) {
	m.n++
	m.seq[id] = m.n
}

func (m *memoryStore) CreateUser(_ context.Context, u User, passwordHash string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if strings.EqualFold(x.Email, u.Email) {
			return User{}, fmt.Errorf("email %q: %w", u.Email, ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.users[u.ID] = memUser{User: u, hash: passwordHash}
	m.track(u.ID)
	return u, nil
}

func (m *memoryStore) GetUser(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	return u.User, nil
}

func (m *memoryStore) GetUserByEmail(_ context.Context, email string) (User, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u.User, u.hash, nil
		}
	}
	return User{}, "", fmt.Errorf("user %q: %w", email, ErrNotFound)
}

func (m *memoryStore) UpdateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok {
		return User{}, fmt.Errorf("user %q: %w", u.ID, ErrNotFound)
	}
	u.Role, u.Email = cur.Role, cur.Email
	cur.User = u
	m.users[u.ID] = cur
	return u, nil
}

func (m *memoryStore) SetPasswordHash(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	cur.hash = hash
	m.users[userID] = cur
	return nil
}

func (m *memoryStore) ListUsers(_ context.Context, f UserFilter) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []User{}
	for _, u := range m.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Institution != "" && fold(u.Institution) != fold(f.Institution) {
			continue
		}
		out = append(out, u.User)
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out, nil
}

func (m *memoryStore) ListGroups(_ context.Context, f GroupFilter) ([]Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Group{}
	for _, g := range m.groups {
		if f.TeacherID != "" && g.TeacherID != f.TeacherID {
			continue
		}
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out, nil
}

func (m *memoryStore) GetGroup(_ context.Context, id string) (Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return Group{}, fmt.Errorf("group %q: %w", id, ErrNotFound)
	}
	return g.Clone(), nil
}

func (m *memoryStore) CreateGroup(_ context.Context, g Group) (Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if _, dup := m.groups[g.ID]; dup {
		return Group{}, fmt.Errorf("group %q: %w", g.ID, ErrConflict)
	}
	g.CreatedAt = m.now().UTC()
	m.groups[g.ID] = g.Clone()
	m.track(g.ID)
	return g, nil
}

func (m *memoryStore) UpdateGroup(_ context.Context, g Group) (Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.groups[g.ID]
	if !ok {
		return Group{}, fmt.Errorf("group %q: %w", g.ID, ErrNotFound)
	}
	g.CreatedAt = cur.CreatedAt
	m.groups[g.ID] = g.Clone()
	return g, nil
}

func (m *memoryStore) DeleteGroup(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[id]; !ok {
		return fmt.Errorf("group %q: %w", id, ErrNotFound)
	}
	delete(m.groups, id)
	for tid, t := range m.tests {
		if t.HasGroup(id) {
			m.deleteTestLocked(tid)
		}
	}
	return nil
}

func (m *memoryStore) ListTests(_ context.Context, f TestFilter) ([]Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Test{}
	for _, t := range m.tests {
		if f.TeacherID != "" && t.TeacherID != f.TeacherID {
			continue
		}
		if f.GroupID != "" && !t.HasGroup(f.GroupID) {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out, nil
}

func (m *memoryStore) GetTest(_ context.Context, id string) (Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[id]
	if !ok {
		return Test{}, fmt.Errorf("test %q: %w", id, ErrNotFound)
	}
	return t.Clone(), nil
}

func (m *memoryStore) CreateTest(_ context.Context, t Test) (Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, dup := m.tests[t.ID]; dup {
		return Test{}, fmt.Errorf("test %q: %w", t.ID, ErrConflict)
	}
	t.CreatedAt = m.now().UTC()
	m.tests[t.ID] = t.Clone()
	m.track(t.ID)
	return t, nil
}

func (m *memoryStore) UpdateTest(_ context.Context, t Test) (Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tests[t.ID]
	if !ok {
		return Test{}, fmt.Errorf("test %q: %w", t.ID, ErrNotFound)
	}
	t.CreatedAt = cur.CreatedAt
	m.tests[t.ID] = t.Clone()
	return t, nil
}

func (m *memoryStore) DeleteTest(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tests[id]; !ok {
		return fmt.Errorf("test %q: %w", id, ErrNotFound)
	}
	m.deleteTestLocked(id)
	return nil
}

func (m *memoryStore) deleteTestLocked(id string) {
	delete(m.tests, id)
	for rid, r := range m.results {
		if r.TestID == id {
			delete(m.results, rid)
		}
	}
}

func (m *memoryStore) ListResults(_ context.Context, f ResultFilter) ([]TestResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []TestResult{}
	for _, r := range m.results {
		if f.TestID != "" && r.TestID != f.TestID {
			continue
		}
		if f.StudentID != "" && r.StudentID != f.StudentID {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out, nil
}

func (m *memoryStore) GetResult(_ context.Context, id string) (TestResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[id]
	if !ok {
		return TestResult{}, fmt.Errorf("result %q: %w", id, ErrNotFound)
	}
	return r.Clone(), nil
}

func (m *memoryStore) AppendResult(_ context.Context, r TestResult) (TestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tests[r.TestID]; !ok {
		return TestResult{}, fmt.Errorf("test %q: %w", r.TestID, ErrNotFound)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, dup := m.results[r.ID]; dup {
		return TestResult{}, fmt.Errorf("result %q: %w", r.ID, ErrConflict)
	}
	if r.CompletedAt.IsZero() {
		r.CompletedAt = m.now().UTC()
	}
	m.results[r.ID] = r.Clone()
	m.track(r.ID)
	return r, nil
}
