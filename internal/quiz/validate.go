package quiz

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError describes why a group or test was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateGroup checks roster rules: at least one student and each student
// given by a full name of at least three words.
func ValidateGroup(g Group) error {
	if strings.TrimSpace(g.GroupNumber) == "" {
		return invalid("groupNumber", "required")
	}
	if strings.TrimSpace(g.Institution) == "" {
		return invalid("institution", "required")
	}
	if len(g.Students) == 0 {
		return invalid("students", "add at least one student")
	}
	for i, s := range g.Students {
		if len(strings.Fields(s.FullName)) < 3 {
			return invalid(fmt.Sprintf("students[%d].fullName", i), "full name must contain surname, name and patronymic")
		}
	}
	return nil
}

// ValidateTest checks the date window and every question.
func ValidateTest(t Test) error {
	if strings.TrimSpace(t.Title) == "" {
		return invalid("title", "required")
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return invalid("startDate", "start and end dates are required")
	}
	if !t.StartDate.Before(t.EndDate) {
		return invalid("endDate", "must be after startDate")
	}
	if t.TimeLimit < 0 {
		return invalid("timeLimit", "must not be negative")
	}
	if t.MaxAttempts < 0 {
		return invalid("maxAttempts", "must not be negative")
	}
	if len(t.Questions) == 0 {
		return invalid("questions", "add at least one question")
	}
	seen := make(map[string]struct{}, len(t.Questions))
	for i, q := range t.Questions {
		if q.ID != "" {
			if _, dup := seen[q.ID]; dup {
				return invalid(fmt.Sprintf("questions[%d].id", i), "duplicate id %q", q.ID)
			}
			seen[q.ID] = struct{}{}
		}
		if err := ValidateQuestion(q); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				ve.Field = fmt.Sprintf("questions[%d].%s", i, ve.Field)
			}
			return err
		}
	}
	return nil
}

func ValidateQuestion(q Question) error {
	if strings.TrimSpace(q.Text) == "" {
		return invalid("text", "required")
	}
	switch q.Type {
	case TextAnswer:
		if len(q.Options) > 0 {
			return invalid("options", "text questions have no options")
		}
		s, ok := q.CorrectAnswer.String()
		if !ok || strings.TrimSpace(s) == "" {
			return invalid("correctAnswer", "text questions need a string answer")
		}
	case SingleChoice, MultipleChoice:
		if len(q.Options) < 2 {
			return invalid("options", "at least two options required")
		}
		opts := make(map[string]struct{}, len(q.Options))
		for _, o := range q.Options {
			if strings.TrimSpace(o) == "" {
				return invalid("options", "options must not be empty")
			}
			if _, dup := opts[o]; dup {
				return invalid("options", "duplicate option %q", o)
			}
			opts[o] = struct{}{}
		}
		if len(q.AlternativeAnswers) > 0 {
			return invalid("alternativeAnswers", "only text questions accept alternatives")
		}
		if q.Type == SingleChoice {
			s, ok := q.CorrectAnswer.String()
			if !ok {
				return invalid("correctAnswer", "single-choice answer must be a string")
			}
			if _, in := opts[s]; !in {
				return invalid("correctAnswer", "%q is not one of the options", s)
			}
			return nil
		}
		list, ok := q.CorrectAnswer.Strings()
		if !ok || len(list) == 0 {
			return invalid("correctAnswer", "multiple-choice answer must be a non-empty list")
		}
		keys := make(map[string]struct{}, len(list))
		for _, s := range list {
			if _, in := opts[s]; !in {
				return invalid("correctAnswer", "%q is not one of the options", s)
			}
			if _, dup := keys[s]; dup {
				return invalid("correctAnswer", "%q listed twice", s)
			}
			keys[s] = struct{}{}
		}
	default:
		return invalid("type", "unknown question type %q", q.Type)
	}
	return nil
}
