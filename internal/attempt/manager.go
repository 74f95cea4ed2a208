package attempt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/edutest/internal/eligibility"
	"github.com/mind-engage/edutest/internal/events"
	"github.com/mind-engage/edutest/internal/grading"
	"github.com/mind-engage/edutest/internal/lock"
	"github.com/mind-engage/edutest/internal/metrics"
	"github.com/mind-engage/edutest/internal/quiz"
	"github.com/mind-engage/edutest/internal/shuffle"
)

var (
	ErrAttemptActive = errors.New("an attempt for this test is already in progress")
	ErrNoAttempt     = errors.New("attempt not found")
)

// IneligibleError carries the gate's reason for refusing an attempt.
type IneligibleError struct {
	Reason eligibility.Reason
}

func (e *IneligibleError) Error() string { return "attempt refused: " + string(e.Reason) }

type Config struct {
	Store  quiz.Store
	Gate   *eligibility.Gate
	Scorer *grading.Scorer
	Source shuffle.Source
	Guard  lock.Guard
	Events events.Publisher
	Now    func() time.Time
	// Ticker returns a channel firing once per second and a stop func.
	Ticker func() (<-chan time.Time, func())
	// Retain is how long finished attempts stay readable.
	Retain time.Duration
}

// Manager owns the live attempts of this process.
type Manager struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg Config) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Gate == nil {
		cfg.Gate = eligibility.New(cfg.Now)
	}
	if cfg.Scorer == nil {
		cfg.Scorer = grading.NewScorer(nil)
	}
	if cfg.Source == nil {
		cfg.Source = shuffle.NewTimeSource()
	}
	if cfg.Guard == nil {
		cfg.Guard = lock.NewMemoryGuard(cfg.Now)
	}
	if cfg.Events == nil {
		cfg.Events = events.Nop()
	}
	if cfg.Ticker == nil {
		cfg.Ticker = func() (<-chan time.Time, func()) {
			t := time.NewTicker(time.Second)
			return t.C, t.Stop
		}
	}
	if cfg.Retain <= 0 {
		cfg.Retain = 15 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{cfg: cfg, ctx: ctx, cancel: cancel, sessions: map[string]*Session{}}
}

// lockTTL bounds how long a crashed attempt can block a retry.
func lockTTL(t quiz.Test) time.Duration {
	if t.TimeLimit > 0 {
		return time.Duration(t.TimeLimit)*time.Minute + 5*time.Minute
	}
	return 6 * time.Hour
}

// Start opens a new attempt after checking assignment, the time window and
// the attempt budget.
func (m *Manager) Start(ctx context.Context, testID, studentID string) (*Session, error) {
	st := m.cfg.Store
	student, err := st.GetUser(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student.Role != quiz.RoleStudent {
		return nil, &IneligibleError{Reason: eligibility.NotStudent}
	}
	t, err := st.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	groups, err := st.ListGroups(ctx, quiz.GroupFilter{})
	if err != nil {
		return nil, err
	}
	if len(eligibility.Visible([]quiz.Test{t}, groups, student)) == 0 {
		return nil, &IneligibleError{Reason: eligibility.NotAssigned}
	}
	prior, err := st.ListResults(ctx, quiz.ResultFilter{TestID: t.ID, StudentID: student.ID})
	if err != nil {
		return nil, err
	}
	if d := m.cfg.Gate.CanStart(t, student, prior); !d.Allowed {
		return nil, &IneligibleError{Reason: d.Reason}
	}

	key := lock.AttemptKey(t.ID, student.ID)
	ok, err := m.cfg.Guard.Acquire(ctx, key, lockTTL(t))
	if err != nil {
		return nil, fmt.Errorf("attempt lock: %w", err)
	}
	if !ok {
		return nil, ErrAttemptActive
	}

	s := NewSession(uuid.NewString(), t, student, Options{
		Source:       m.cfg.Source,
		Scorer:       m.cfg.Scorer,
		Sink:         st,
		Now:          m.cfg.Now,
		BeforeSubmit: m.recheck,
		OnFinish:     m.finished,
	})
	if err := s.Start(); err != nil {
		_ = m.cfg.Guard.Release(ctx, key)
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	metrics.AttemptStarted()
	m.publish(events.New(events.TypeAttemptStarted, s.ID, map[string]any{
		"testId":    t.ID,
		"studentId": student.ID,
	}))

	if t.TimeLimit > 0 {
		ticks, stop := m.cfg.Ticker()
		go func() {
			defer stop()
			s.RunCountdown(m.ctx, ticks)
		}()
	}
	return s, nil
}

// recheck runs at submit time against the latest stored results.
func (m *Manager) recheck(ctx context.Context, s *Session, startedAt time.Time) error {
	if _, err := m.cfg.Store.GetTest(ctx, s.Test.ID); err != nil {
		return err
	}
	prior, err := m.cfg.Store.ListResults(ctx, quiz.ResultFilter{TestID: s.Test.ID, StudentID: s.Student.ID})
	if err != nil {
		return err
	}
	if d := m.cfg.Gate.CanSubmit(s.Test, s.Student, prior, startedAt); !d.Allowed {
		return &IneligibleError{Reason: d.Reason}
	}
	return nil
}

func (m *Manager) finished(s *Session, o Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.cfg.Guard.Release(ctx, lock.AttemptKey(s.Test.ID, s.Student.ID)); err != nil {
		log.Printf("attempt %s: release lock: %v", s.ID, err)
	}

	switch o.State {
	case Submitted:
		pct := 0
		if o.Result != nil {
			pct = int(o.Result.Percentage())
		}
		metrics.AttemptSubmitted(string(o.Trigger), pct)
		m.publish(events.New(events.TypeAttemptSubmitted, s.ID, map[string]any{
			"testId":    s.Test.ID,
			"studentId": s.Student.ID,
			"trigger":   o.Trigger,
			"result":    o.Result,
		}))
	case Cancelled:
		metrics.AttemptCancelled()
		m.publish(events.New(events.TypeAttemptCancelled, s.ID, map[string]any{
			"testId":    s.Test.ID,
			"studentId": s.Student.ID,
		}))
	}

	id := s.ID
	time.AfterFunc(m.cfg.Retain, func() {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
	})
}

func (m *Manager) publish(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.cfg.Events.Publish(ctx, e); err != nil {
		log.Printf("attempt %s: publish %s: %v", e.Key, e.Type, err)
	}
}

// Get returns the attempt if it belongs to studentID.
func (m *Manager) Get(attemptID, studentID string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[attemptID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNoAttempt
	}
	if s.Student.ID != studentID {
		return nil, quiz.ErrForbidden
	}
	return s, nil
}

// Active lists the in-progress attempts of a student.
func (m *Manager) Active(studentID string) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.Student.ID == studentID && s.State() == InProgress {
			out = append(out, s)
		}
	}
	return out
}

// CancelTests discards the unfinished attempts of the given tests and
// reports how many were cancelled.
func (m *Manager) CancelTests(testIDs ...string) int {
	want := make(map[string]bool, len(testIDs))
	for _, id := range testIDs {
		want[id] = true
	}
	m.mu.Lock()
	var hit []*Session
	for _, s := range m.sessions {
		if want[s.Test.ID] {
			hit = append(hit, s)
		}
	}
	m.mu.Unlock()
	n := 0
	for _, s := range hit {
		if s.Cancel() == nil {
			n++
		}
	}
	return n
}

// Close stops every countdown and discards unfinished attempts.
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()
	for _, s := range live {
		_ = s.Cancel()
	}
}
