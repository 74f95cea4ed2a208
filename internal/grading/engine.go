package grading

import (
	"github.com/mind-engage/edutest/internal/quiz"
)

// Strategy decides whether an answer is correct for one question type.
type Strategy interface {
	Correct(q quiz.Question, answer quiz.Answer) bool
}

// Evaluator routes by question type to the matching Strategy.
type Evaluator struct {
	strategies map[quiz.QuestionType]Strategy
}

type Option func(*Evaluator)

// WithStrategy installs or replaces the strategy for a question type.
func WithStrategy(t quiz.QuestionType, s Strategy) Option {
	return func(e *Evaluator) { e.strategies[t] = s }
}

// NewEvaluator installs built-in strategies.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		strategies: map[quiz.QuestionType]Strategy{
			quiz.SingleChoice:   singleChoiceStrategy{},
			quiz.MultipleChoice: multipleChoiceStrategy{},
			quiz.TextAnswer:     textStrategy{},
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// IsCorrect never fails: unknown types and malformed answers are incorrect.
func (e *Evaluator) IsCorrect(q quiz.Question, answer quiz.Answer) bool {
	s, ok := e.strategies[q.Type]
	if !ok {
		return false
	}
	return s.Correct(q, answer)
}

var defaultEvaluator = NewEvaluator()

// IsCorrect evaluates with the built-in strategies.
func IsCorrect(q quiz.Question, answer quiz.Answer) bool {
	return defaultEvaluator.IsCorrect(q, answer)
}

// --- Strategies ---

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Correct(q quiz.Question, answer quiz.Answer) bool {
	got, ok := answer.String()
	if !ok {
		return false
	}
	want, ok := q.CorrectAnswer.String()
	return ok && got == want
}

type multipleChoiceStrategy struct{}

func (multipleChoiceStrategy) Correct(q quiz.Question, answer quiz.Answer) bool {
	got, ok := answer.Strings()
	if !ok {
		return false
	}
	want, ok := q.CorrectAnswer.Strings()
	if !ok {
		return false
	}
	return sameElements(got, want)
}

type textStrategy struct{}

func (textStrategy) Correct(q quiz.Question, answer quiz.Answer) bool {
	got, ok := answer.String()
	if !ok {
		return false
	}
	got = normalize(got)
	for _, k := range acceptedTexts(q) {
		if normalize(k) == got {
			return true
		}
	}
	return false
}

// acceptedTexts lists the primary answer followed by the alternatives. A
// list-valued key on a text question is treated as a set of alternatives.
func acceptedTexts(q quiz.Question) []string {
	var out []string
	if s, ok := q.CorrectAnswer.String(); ok {
		out = append(out, s)
	} else if list, ok := q.CorrectAnswer.Strings(); ok {
		out = append(out, list...)
	}
	return append(out, q.AlternativeAnswers...)
}

// sameElements compares two lists as multisets.
func sameElements(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		seen[s]--
	}
	for _, v := range seen {
		if v != 0 {
			return false
		}
	}
	return true
}
