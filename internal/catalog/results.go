package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/mind-engage/edutest/internal/eligibility"
	"github.com/mind-engage/edutest/internal/grading"
	"github.com/mind-engage/edutest/internal/quiz"
)

// ListResults returns a student's own results, or the results of every
// test a teacher owns.
func (s *Service) ListResults(ctx context.Context, actor quiz.User) ([]quiz.TestResult, error) {
	if actor.Role == quiz.RoleStudent {
		return s.store.ListResults(ctx, quiz.ResultFilter{StudentID: actor.ID})
	}
	tests, err := s.store.ListTests(ctx, quiz.TestFilter{TeacherID: actor.ID})
	if err != nil {
		return nil, err
	}
	out := []quiz.TestResult{}
	for _, t := range tests {
		rs, err := s.store.ListResults(ctx, quiz.ResultFilter{TestID: t.ID})
		if err != nil {
			return nil, err
		}
		out = append(out, rs...)
	}
	return out, nil
}

func (s *Service) ResultsForTest(ctx context.Context, actor quiz.User, testID string) ([]quiz.TestResult, error) {
	if _, err := s.ownTest(ctx, actor, testID); err != nil {
		return nil, err
	}
	return s.store.ListResults(ctx, quiz.ResultFilter{TestID: testID})
}

func (s *Service) TestStats(ctx context.Context, actor quiz.User, testID string) (grading.TestStats, error) {
	rs, err := s.ResultsForTest(ctx, actor, testID)
	if err != nil {
		return grading.TestStats{}, err
	}
	return grading.Stats(testID, rs), nil
}

// Review is a graded result with its per-question breakdown.
type Review struct {
	Result     quiz.TestResult      `json:"result"`
	TestTitle  string               `json:"testTitle"`
	Percentage float64              `json:"percentage"`
	Band       grading.Band         `json:"band"`
	Items      []grading.ItemReview `json:"items"`
}

// ReviewResult is open to the student who took the attempt and to the
// teacher owning the test.
func (s *Service) ReviewResult(ctx context.Context, actor quiz.User, scorer *grading.Scorer, id string) (Review, error) {
	r, err := s.store.GetResult(ctx, id)
	if err != nil {
		return Review{}, err
	}
	t, err := s.store.GetTest(ctx, r.TestID)
	if err != nil {
		return Review{}, err
	}
	switch actor.Role {
	case quiz.RoleStudent:
		if r.StudentID != actor.ID {
			return Review{}, fmt.Errorf("result %s: %w", id, quiz.ErrForbidden)
		}
	default:
		if t.TeacherID != actor.ID {
			return Review{}, fmt.Errorf("result %s: %w", id, quiz.ErrForbidden)
		}
	}
	if scorer == nil {
		scorer = grading.NewScorer(nil)
	}
	pct := r.Percentage()
	return Review{
		Result:     r,
		TestTitle:  t.Title,
		Percentage: pct,
		Band:       grading.BandFor(pct),
		Items:      scorer.Review(t, r),
	}, nil
}

type Status string

const (
	StatusAvailable Status = "available"
	StatusUpcoming  Status = "upcoming"
	StatusCompleted Status = "completed"
	StatusClosed    Status = "closed"
)

// StudentTest is one row of the student dashboard.
type StudentTest struct {
	Test         quiz.Test          `json:"test"`
	Status       Status             `json:"status"`
	Reason       eligibility.Reason `json:"reason,omitempty"`
	AttemptsUsed int                `json:"attemptsUsed"`
	AttemptsLeft int                `json:"attemptsLeft"` // -1 = unlimited
	Best         *quiz.TestResult   `json:"bestResult,omitempty"`
}

// TestsForStudent lists assigned tests with what the student can do next.
// A test with at least one result counts as completed unless more
// attempts are still open.
func (s *Service) TestsForStudent(ctx context.Context, student quiz.User, now time.Time) ([]StudentTest, error) {
	if student.Role != quiz.RoleStudent {
		return nil, fmt.Errorf("students only: %w", quiz.ErrForbidden)
	}
	tests, err := s.visibleTests(ctx, student)
	if err != nil {
		return nil, err
	}
	results, err := s.store.ListResults(ctx, quiz.ResultFilter{StudentID: student.ID})
	if err != nil {
		return nil, err
	}
	gate := eligibility.New(func() time.Time { return now })
	out := make([]StudentTest, 0, len(tests))
	for _, t := range tests {
		row := StudentTest{
			Test:         t.WithoutAnswers(),
			AttemptsLeft: eligibility.AttemptsLeft(t, student.ID, results),
		}
		for i := range results {
			r := results[i]
			if r.TestID != t.ID {
				continue
			}
			row.AttemptsUsed++
			if row.Best == nil || r.Percentage() > row.Best.Percentage() {
				row.Best = &r
			}
		}
		d := gate.CanStart(t, student, results)
		switch {
		case d.Allowed:
			row.Status = StatusAvailable
		case d.Reason == eligibility.NotYetOpen:
			row.Status = StatusUpcoming
		case row.AttemptsUsed > 0:
			row.Status = StatusCompleted
		default:
			row.Status = StatusClosed
		}
		row.Reason = d.Reason
		out = append(out, row)
	}
	return out, nil
}
