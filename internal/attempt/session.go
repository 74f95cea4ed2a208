package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mind-engage/edutest/internal/grading"
	"github.com/mind-engage/edutest/internal/quiz"
	"github.com/mind-engage/edutest/internal/shuffle"
)

type State string

const (
	NotStarted State = "not_started"
	InProgress State = "in_progress"
	Submitted  State = "submitted"
	Cancelled  State = "cancelled"
)

// Trigger records what ended an attempt.
type Trigger string

const (
	TriggerManual  Trigger = "manual"
	TriggerLast    Trigger = "last_question"
	TriggerTimeout Trigger = "timeout"
)

var (
	ErrNotInProgress   = errors.New("attempt not in progress")
	ErrUnknownQuestion = errors.New("question not in test")
)

// ResultSink persists a finished attempt. quiz.Store satisfies it.
type ResultSink interface {
	AppendResult(ctx context.Context, r quiz.TestResult) (quiz.TestResult, error)
}

type Options struct {
	Source shuffle.Source
	Scorer *grading.Scorer
	Sink   ResultSink
	Now    func() time.Time
	// BeforeSubmit may veto a submission; the attempt is then discarded.
	// It runs with the session locked and must not call its methods.
	BeforeSubmit func(ctx context.Context, s *Session, startedAt time.Time) error
	// OnFinish runs once the attempt reaches Submitted or Cancelled, under
	// the same restriction.
	OnFinish func(s *Session, o Outcome)
}

// Outcome describes how an attempt ended. Result is nil unless Submitted.
type Outcome struct {
	State   State
	Trigger Trigger
	Result  *quiz.TestResult
}

// Session is one student's run through a test. All methods are safe for
// concurrent use; the countdown goroutine and request handlers share it.
type Session struct {
	ID      string
	Test    quiz.Test // canonical definition, used for scoring
	Student quiz.User

	opts Options

	mu        sync.Mutex
	state     State
	order     []quiz.Question
	pos       map[string]int // question id -> canonical index
	index     int
	answers   map[string]quiz.Answer
	remaining int // seconds, -1 when unlimited
	startedAt time.Time
	trigger   Trigger
	result    *quiz.TestResult
	done      chan struct{}
}

func NewSession(id string, t quiz.Test, student quiz.User, opts Options) *Session {
	if opts.Source == nil {
		opts.Source = shuffle.NewTimeSource()
	}
	if opts.Scorer == nil {
		opts.Scorer = grading.NewScorer(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	t = t.Clone()
	pos := make(map[string]int, len(t.Questions))
	for i, q := range t.Questions {
		pos[q.ID] = i
	}
	return &Session{
		ID:        id,
		Test:      t,
		Student:   student,
		opts:      opts,
		state:     NotStarted,
		pos:       pos,
		answers:   map[string]quiz.Answer{},
		remaining: -1,
		done:      make(chan struct{}),
	}
}

// Start captures the presentation order and arms the countdown.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != NotStarted {
		return fmt.Errorf("start: %w", ErrNotInProgress)
	}
	s.order = shuffle.PresentationOrder(s.Test, s.opts.Source)
	s.index = 0
	if s.Test.TimeLimit > 0 {
		s.remaining = s.Test.TimeLimit * 60
	}
	s.startedAt = s.opts.Now()
	s.state = InProgress
	return nil
}

// RecordAnswer stores value for questionID; the last write wins.
func (s *Session) RecordAnswer(questionID string, value quiz.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != InProgress {
		return ErrNotInProgress
	}
	if _, ok := s.pos[questionID]; !ok {
		return fmt.Errorf("%q: %w", questionID, ErrUnknownQuestion)
	}
	s.answers[questionID] = value
	return nil
}

// Next advances to the following question, or submits from the last one.
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != InProgress {
		return ErrNotInProgress
	}
	if s.index < len(s.order)-1 {
		s.index++
		return nil
	}
	return s.submitLocked(ctx, TriggerLast)
}

// Previous steps back, stopping at the first question.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != InProgress {
		return ErrNotInProgress
	}
	if s.index > 0 {
		s.index--
	}
	return nil
}

// Tick advances the countdown by one second and submits when it reaches
// zero. It is a no-op for untimed or finished attempts.
func (s *Session) Tick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != InProgress || s.remaining < 0 {
		return nil
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining == 0 {
		return s.submitLocked(ctx, TriggerTimeout)
	}
	return nil
}

// Submit scores the canonical test and persists the result. Submitting an
// already submitted attempt returns the stored result. Other store errors
// leave the attempt in progress so the submit can be retried; a missing
// test cancels it.
func (s *Session) Submit(ctx context.Context) (quiz.TestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Submitted {
		return *s.result, nil
	}
	if s.state != InProgress {
		return quiz.TestResult{}, ErrNotInProgress
	}
	if err := s.submitLocked(ctx, TriggerManual); err != nil {
		return quiz.TestResult{}, err
	}
	return *s.result, nil
}

func (s *Session) submitLocked(ctx context.Context, trigger Trigger) error {
	if s.opts.BeforeSubmit != nil {
		if err := s.opts.BeforeSubmit(ctx, s, s.startedAt); err != nil {
			s.finishLocked(Cancelled)
			return err
		}
	}
	sc := s.opts.Scorer.Score(s.Test, s.answers)
	r := quiz.TestResult{
		TestID:      s.Test.ID,
		StudentID:   s.Student.ID,
		Answers:     copyAnswers(s.answers),
		Score:       sc.Score,
		MaxScore:    sc.MaxScore,
		CompletedAt: s.opts.Now(),
	}
	if s.opts.Sink != nil {
		saved, err := s.opts.Sink.AppendResult(ctx, r)
		if err != nil {
			// the test is gone; retrying can never succeed
			if errors.Is(err, quiz.ErrNotFound) {
				s.finishLocked(Cancelled)
			}
			return fmt.Errorf("persist result: %w", err)
		}
		r = saved
	}
	s.result = &r
	s.trigger = trigger
	s.finishLocked(Submitted)
	return nil
}

// Cancel discards an unfinished attempt without persisting anything.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Submitted || s.state == Cancelled {
		return ErrNotInProgress
	}
	s.finishLocked(Cancelled)
	return nil
}

func (s *Session) finishLocked(st State) {
	s.state = st
	close(s.done)
	if s.opts.OnFinish != nil {
		o := Outcome{State: st, Trigger: s.trigger}
		if s.result != nil {
			r := s.result.Clone()
			o.Result = &r
		}
		s.opts.OnFinish(s, o)
	}
}

// Done is closed when the attempt leaves InProgress.
func (s *Session) Done() <-chan struct{} { return s.done }

// RunCountdown calls Tick for every value received on ticks until the
// attempt finishes or ctx is cancelled.
func (s *Session) RunCountdown(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticks:
			_ = s.Tick(ctx)
		}
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Remaining returns seconds left, or -1 when the test is untimed.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Order returns the presentation order captured at Start.
func (s *Session) Order() []quiz.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return quiz.Test{Questions: s.order}.Clone().Questions
}

func (s *Session) Answers() map[string]quiz.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyAnswers(s.answers)
}

// Result returns the persisted result once submitted.
func (s *Session) Result() (quiz.TestResult, Trigger, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return quiz.TestResult{}, "", false
	}
	return *s.result, s.trigger, true
}

func copyAnswers(m map[string]quiz.Answer) map[string]quiz.Answer {
	out := make(map[string]quiz.Answer, len(m))
	for k, v := range m {
		if list, ok := v.Strings(); ok {
			v = quiz.List(list...)
		}
		out[k] = v
	}
	return out
}
