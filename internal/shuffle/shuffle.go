// Package shuffle builds per-attempt presentation orders.
package shuffle

import (
	"math/rand"
	"sync"
	"time"

	"github.com/mind-engage/edutest/internal/quiz"
)

// Source yields uniform integers in [0, n). *rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Intn(n)
}

// NewSource returns a goroutine-safe Source seeded with seed.
func NewSource(seed int64) Source {
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

// NewTimeSource seeds from the wall clock.
func NewTimeSource() Source { return NewSource(time.Now().UnixNano()) }

// Permute returns a Fisher–Yates shuffled copy of items.
func Permute[T any](items []T, src Source) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := len(out) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// PresentationOrder returns the questions of t in the order one attempt
// shows them. Questions are permuted when the test asks for it and, for
// choice questions flagged randomizeOptions, so are their options. t is not
// modified; every call draws a fresh order.
func PresentationOrder(t quiz.Test, src Source) []quiz.Question {
	qs := t.Clone().Questions
	if t.RandomizeQuestions {
		qs = Permute(qs, src)
	}
	for i := range qs {
		q := &qs[i]
		if q.Type == quiz.TextAnswer || !q.RandomizeOptions || len(q.Options) < 2 {
			continue
		}
		q.Options = Permute(q.Options, src)
	}
	return qs
}
