package grading

import "github.com/mind-engage/edutest/internal/quiz"

// Score is the outcome of grading one attempt.
type Score struct {
	Score    int `json:"score"`
	MaxScore int `json:"maxScore"`
}

// Scorer aggregates per-question evaluation over the canonical question
// list, so the order an attempt was presented in never matters.
type Scorer struct {
	eval *Evaluator
}

func NewScorer(eval *Evaluator) *Scorer {
	if eval == nil {
		eval = defaultEvaluator
	}
	return &Scorer{eval: eval}
}

func (s *Scorer) Score(t quiz.Test, answers map[string]quiz.Answer) Score {
	out := Score{MaxScore: len(t.Questions)}
	for _, q := range t.Questions {
		a, ok := answers[q.ID]
		if !ok {
			continue
		}
		if s.eval.IsCorrect(q, a) {
			out.Score++
		}
	}
	return out
}

// ItemReview is the per-question breakdown shown after submission.
type ItemReview struct {
	QuestionID    string      `json:"questionId"`
	Text          string      `json:"text"`
	Given         quiz.Answer `json:"given"`
	CorrectAnswer quiz.Answer `json:"correctAnswer"`
	Correct       bool        `json:"correct"`
}

// Review re-evaluates a stored result against the test in canonical order.
func (s *Scorer) Review(t quiz.Test, r quiz.TestResult) []ItemReview {
	out := make([]ItemReview, 0, len(t.Questions))
	for _, q := range t.Questions {
		given := r.Answers[q.ID]
		out = append(out, ItemReview{
			QuestionID:    q.ID,
			Text:          q.Text,
			Given:         given,
			CorrectAnswer: q.CorrectAnswer,
			Correct:       s.eval.IsCorrect(q, given),
		})
	}
	return out
}

type Band string

const (
	BandExcellent      Band = "excellent"
	BandGood           Band = "good"
	BandSatisfactory   Band = "satisfactory"
	BandUnsatisfactory Band = "unsatisfactory"
)

// BandFor maps a percentage (0..100) to a grade band.
func BandFor(pct float64) Band {
	switch {
	case pct >= 90:
		return BandExcellent
	case pct >= 80:
		return BandGood
	case pct >= 60:
		return BandSatisfactory
	default:
		return BandUnsatisfactory
	}
}

// TestStats summarises all results of one test.
type TestStats struct {
	TestID         string  `json:"testId"`
	Attempts       int     `json:"attempts"`
	Students       int     `json:"students"`
	AveragePercent float64 `json:"averagePercent"`
	BestPercent    float64 `json:"bestPercent"`
}

func Stats(testID string, results []quiz.TestResult) TestStats {
	st := TestStats{TestID: testID}
	students := map[string]struct{}{}
	sum := 0.0
	for _, r := range results {
		if r.TestID != testID {
			continue
		}
		st.Attempts++
		students[r.StudentID] = struct{}{}
		p := r.Percentage()
		sum += p
		if p > st.BestPercent {
			st.BestPercent = p
		}
	}
	st.Students = len(students)
	if st.Attempts > 0 {
		st.AveragePercent = sum / float64(st.Attempts)
	}
	return st
}
