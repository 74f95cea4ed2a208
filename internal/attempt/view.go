package attempt

import (
	"fmt"

	"github.com/mind-engage/edutest/internal/quiz"
)

// PublicQuestion is a question as shown to a student: no answer key.
type PublicQuestion struct {
	ID      string            `json:"id"`
	Text    string            `json:"text"`
	Type    quiz.QuestionType `json:"type"`
	Options []string          `json:"options,omitempty"`
}

type View struct {
	ID               string                 `json:"id"`
	TestID           string                 `json:"testId"`
	TestTitle        string                 `json:"testTitle"`
	State            State                  `json:"state"`
	CurrentIndex     int                    `json:"currentIndex"`
	Total            int                    `json:"total"`
	Current          *PublicQuestion        `json:"current,omitempty"`
	Questions        []PublicQuestion       `json:"questions"`
	Answers          map[string]quiz.Answer `json:"answers"`
	RemainingSeconds int                    `json:"remainingSeconds"`
	Countdown        string                 `json:"countdown"`
	Result           *quiz.TestResult       `json:"result,omitempty"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:               s.ID,
		TestID:           s.Test.ID,
		TestTitle:        s.Test.Title,
		State:            s.state,
		CurrentIndex:     s.index,
		Total:            len(s.Test.Questions),
		Questions:        make([]PublicQuestion, 0, len(s.order)),
		Answers:          copyAnswers(s.answers),
		RemainingSeconds: s.remaining,
		Countdown:        FormatCountdown(s.remaining),
	}
	for _, q := range s.order {
		v.Questions = append(v.Questions, PublicQuestion{ID: q.ID, Text: q.Text, Type: q.Type, Options: append([]string(nil), q.Options...)})
	}
	if s.state == InProgress && s.index < len(v.Questions) {
		cur := v.Questions[s.index]
		v.Current = &cur
	}
	if s.result != nil {
		r := s.result.Clone()
		v.Result = &r
	}
	return v
}

// FormatCountdown renders seconds as m:ss; untimed attempts render as
// "unlimited".
func FormatCountdown(sec int) string {
	if sec < 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}
