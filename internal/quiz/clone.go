package quiz

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneQuestion(q Question) Question {
	q.Options = cloneStrings(q.Options)
	q.AlternativeAnswers = cloneStrings(q.AlternativeAnswers)
	if list, ok := q.CorrectAnswer.Strings(); ok {
		q.CorrectAnswer = List(list...)
	}
	return q
}

// Clone returns a deep copy of the test.
func (t Test) Clone() Test {
	t.GroupIDs = cloneStrings(t.GroupIDs)
	if t.Questions != nil {
		qs := make([]Question, len(t.Questions))
		for i, q := range t.Questions {
			qs[i] = cloneQuestion(q)
		}
		t.Questions = qs
	}
	return t
}

func (g Group) Clone() Group {
	if g.Students != nil {
		s := make([]GroupStudent, len(g.Students))
		copy(s, g.Students)
		g.Students = s
	}
	return g
}

func (r TestResult) Clone() TestResult {
	if r.Answers != nil {
		m := make(map[string]Answer, len(r.Answers))
		for k, v := range r.Answers {
			if list, ok := v.Strings(); ok {
				v = List(list...)
			}
			m[k] = v
		}
		r.Answers = m
	}
	return r
}

// WithoutAnswers returns a copy safe to show students: answer keys and
// alternatives are cleared.
func (t Test) WithoutAnswers() Test {
	t = t.Clone()
	for i := range t.Questions {
		t.Questions[i].CorrectAnswer = Answer{}
		t.Questions[i].AlternativeAnswers = nil
	}
	return t
}
