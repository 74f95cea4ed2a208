package quiz

import "time"

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "single-choice"
	MultipleChoice QuestionType = "multiple-choice"
	TextAnswer     QuestionType = "text"
)

type User struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	Institution string `json:"institution"`
	GroupNumber string `json:"groupNumber,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// GroupStudent is a roster entry typed in by the teacher. Its ID is local to
// the group; UserID is filled once a registered account has been linked to
// the entry.
type GroupStudent struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	UserID   string `json:"userId,omitempty"`
}

type Group struct {
	ID          string         `json:"id"`
	GroupNumber string         `json:"groupNumber"`
	Specialty   string         `json:"specialty"`
	Institution string         `json:"institution"`
	TeacherID   string         `json:"teacherId"`
	Students    []GroupStudent `json:"students"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type Question struct {
	ID                 string       `json:"id"`
	Text               string       `json:"text"`
	Type               QuestionType `json:"type"`
	Options            []string     `json:"options,omitempty"`
	CorrectAnswer      Answer       `json:"correctAnswer"`
	AlternativeAnswers []string     `json:"alternativeAnswers,omitempty"`
	RandomizeOptions   bool         `json:"randomizeOptions,omitempty"`
}

type Test struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Subject            string     `json:"subject"`
	Description        string     `json:"description"`
	TeacherID          string     `json:"teacherId"`
	GroupIDs           []string   `json:"groupIds"`
	Questions          []Question `json:"questions"`
	TimeLimit          int        `json:"timeLimit,omitempty"` // minutes, 0 = unlimited
	MaxAttempts        int        `json:"maxAttempts,omitempty"`
	StartDate          time.Time  `json:"startDate"`
	EndDate            time.Time  `json:"endDate"`
	RandomizeQuestions bool       `json:"randomizeQuestions,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// HasGroup reports whether the test is assigned to groupID.
func (t Test) HasGroup(groupID string) bool {
	for _, id := range t.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

type TestResult struct {
	ID          string            `json:"id"`
	TestID      string            `json:"testId"`
	StudentID   string            `json:"studentId"`
	Answers     map[string]Answer `json:"answers"`
	Score       int               `json:"score"`
	MaxScore    int               `json:"maxScore"`
	CompletedAt time.Time         `json:"completedAt"`
}

// Percentage is score/maxScore scaled to 0..100.
func (r TestResult) Percentage() float64 {
	if r.MaxScore == 0 {
		return 0
	}
	return float64(r.Score) / float64(r.MaxScore) * 100
}
