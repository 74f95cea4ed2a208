package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/edutest/internal/api/respond"
	"github.com/mind-engage/edutest/internal/attempt"
	"github.com/mind-engage/edutest/internal/quiz"
)

// POST /attempts  { "testId": "..." }
func StartAttemptHandler(m *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		var req struct {
			TestID string `json:"testId"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.TestID == "" {
			respond.Error(w, http.StatusBadRequest, "testId required")
			return
		}
		s, err := m.Start(r.Context(), req.TestID, u.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusCreated, s.View())
	}
}

// withSession resolves {attemptID} for the calling student.
func withSession(m *attempt.Manager, fn func(w http.ResponseWriter, r *http.Request, s *attempt.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		s, err := m.Get(chi.URLParam(r, "attemptID"), u.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		fn(w, r, s)
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(m *attempt.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *attempt.Session) {
		respond.JSON(w, http.StatusOK, s.View())
	})
}

// PUT /attempts/{attemptID}/answers  { "questionId": "...", "answer": "x" | ["a","b"] }
func SaveAnswerHandler(m *attempt.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *attempt.Session) {
		var req struct {
			QuestionID string      `json:"questionId"`
			Answer     quiz.Answer `json:"answer"`
		}
		if !decode(w, r, &req) {
			return
		}
		if err := s.RecordAnswer(req.QuestionID, req.Answer); err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, s.View())
	})
}

// POST /attempts/{attemptID}/next  (submits from the last question)
func NextQuestionHandler(m *attempt.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *attempt.Session) {
		if err := s.Next(r.Context()); err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, s.View())
	})
}

func PreviousQuestionHandler(m *attempt.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *attempt.Session) {
		if err := s.Previous(); err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, s.View())
	})
}

func SubmitAttemptHandler(m *attempt.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *attempt.Session) {
		if _, err := s.Submit(r.Context()); err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, s.View())
	})
}

// DELETE /attempts/{attemptID}
func CancelAttemptHandler(m *attempt.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *attempt.Session) {
		if err := s.Cancel(); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// GET /me/attempts  lists the caller's attempts still in progress.
func ActiveAttemptsHandler(m *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		out := []attempt.View{}
		for _, s := range m.Active(u.ID) {
			out = append(out, s.View())
		}
		respond.JSON(w, http.StatusOK, out)
	}
}
