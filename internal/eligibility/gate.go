// Package eligibility decides whether a student may start or finish an
// attempt.
package eligibility

import (
	"time"

	"github.com/mind-engage/edutest/internal/quiz"
)

type Reason string

const (
	NotYetOpen        Reason = "not yet open"
	WindowClosed      Reason = "window closed"
	AttemptsExhausted Reason = "attempts exhausted"
	NotAssigned       Reason = "not assigned"
	NotStudent        Reason = "not a student"
)

// Decision is the gate's verdict; Reason is empty when Allowed.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

func allow() Decision { return Decision{Allowed: true} }

func deny(r Reason) Decision { return Decision{Reason: r} }

type Gate struct {
	now func() time.Time
}

// New returns a gate reading the time from now (time.Now when nil).
func New(now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{now: now}
}

// CanStart checks the time window and the attempt budget. Group membership
// is handled upstream by Visible: tests outside the student's groups are
// never offered.
func (g *Gate) CanStart(t quiz.Test, student quiz.User, prior []quiz.TestResult) Decision {
	if student.Role != quiz.RoleStudent {
		return deny(NotStudent)
	}
	now := g.now()
	if now.Before(t.StartDate) {
		return deny(NotYetOpen)
	}
	if now.After(t.EndDate) {
		return deny(WindowClosed)
	}
	if t.MaxAttempts > 0 && countFor(t.ID, student.ID, prior) >= t.MaxAttempts {
		return deny(AttemptsExhausted)
	}
	return allow()
}

// CanSubmit re-checks an attempt that started at startedAt. An attempt that
// began inside the window may finish after endDate; prior must not include
// the attempt being submitted.
func (g *Gate) CanSubmit(t quiz.Test, student quiz.User, prior []quiz.TestResult, startedAt time.Time) Decision {
	if startedAt.Before(t.StartDate) {
		return deny(NotYetOpen)
	}
	if startedAt.After(t.EndDate) {
		return deny(WindowClosed)
	}
	if t.MaxAttempts > 0 && countFor(t.ID, student.ID, prior) >= t.MaxAttempts {
		return deny(AttemptsExhausted)
	}
	return allow()
}

// Visible returns the tests assigned to a group the student belongs to.
func Visible(tests []quiz.Test, groups []quiz.Group, student quiz.User) []quiz.Test {
	return quiz.VisibleTests(tests, quiz.GroupsFor(groups, student))
}

// AttemptsLeft reports remaining attempts, or -1 when unlimited.
func AttemptsLeft(t quiz.Test, studentID string, prior []quiz.TestResult) int {
	if t.MaxAttempts <= 0 {
		return -1
	}
	left := t.MaxAttempts - countFor(t.ID, studentID, prior)
	if left < 0 {
		return 0
	}
	return left
}

func countFor(testID, studentID string, results []quiz.TestResult) int {
	n := 0
	for _, r := range results {
		if r.TestID == testID && r.StudentID == studentID {
			n++
		}
	}
	return n
}
