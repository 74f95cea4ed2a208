package shuffle_test

import (
	"sort"
	"testing"

	"github.com/mind-engage/edutest/internal/quiz"
	"github.com/mind-engage/edutest/internal/shuffle"
)

func TestPermuteIsBijection(t *testing.T) {
	src := shuffle.NewSource(42)
	in := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	for round := 0; round < 50; round++ {
		out := shuffle.Permute(in, src)
		if len(out) != len(in) {
			t.Fatalf("len = %d", len(out))
		}
		sorted := append([]int(nil), out...)
		sort.Ints(sorted)
		for i, v := range sorted {
			if v != i {
				t.Fatalf("round %d: %v is not a permutation", round, out)
			}
		}
	}
	for i, v := range in {
		if v != i {
			t.Fatalf("input modified: %v", in)
		}
	}
}

func TestPermuteSameSeedSameOrder(t *testing.T) {
	in := []string{"a", "b", "c", "d", "e", "f"}
	a := shuffle.Permute(in, shuffle.NewSource(7))
	b := shuffle.Permute(in, shuffle.NewSource(7))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("%v != %v", a, b)
		}
	}
}

func TestPermuteCoversEveryPosition(t *testing.T) {
	src := shuffle.NewSource(1)
	in := []int{0, 1, 2}
	seen := map[[3]int]bool{}
	for i := 0; i < 300; i++ {
		out := shuffle.Permute(in, src)
		seen[[3]int{out[0], out[1], out[2]}] = true
	}
	if len(seen) != 6 {
		t.Fatalf("saw %d of 6 orders", len(seen))
	}
}

func TestPresentationOrder(t *testing.T) {
	tst := quiz.Test{
		RandomizeQuestions: true,
		Questions: []quiz.Question{
			{ID: "q1", Type: quiz.SingleChoice, Options: []string{"a", "b", "c", "d"}, RandomizeOptions: true},
			{ID: "q2", Type: quiz.MultipleChoice, Options: []string{"w", "x", "y", "z"}},
			{ID: "q3", Type: quiz.TextAnswer, RandomizeOptions: true},
			{ID: "q4", Type: quiz.SingleChoice, Options: []string{"k", "l"}},
		},
	}
	src := shuffle.NewSource(3)

	sawReorder := false
	for i := 0; i < 30; i++ {
		qs := shuffle.PresentationOrder(tst, src)
		ids := map[string]quiz.Question{}
		for _, q := range qs {
			ids[q.ID] = q
		}
		if len(qs) != 4 || len(ids) != 4 {
			t.Fatalf("order = %+v", qs)
		}
		if qs[0].ID != "q1" || qs[1].ID != "q2" {
			sawReorder = true
		}
		if opts := ids["q2"].Options; opts[0] != "w" || opts[3] != "z" {
			t.Fatalf("options shuffled without the flag: %v", opts)
		}
		if got := append([]string(nil), ids["q1"].Options...); len(got) != 4 {
			t.Fatalf("q1 options = %v", got)
		}
	}
	if !sawReorder {
		t.Fatal("questions never reordered")
	}
	if tst.Questions[0].ID != "q1" || tst.Questions[0].Options[0] != "a" {
		t.Fatal("test was modified")
	}
}

func TestPresentationOrderKeepsCanonicalOrder(t *testing.T) {
	tst := quiz.Test{Questions: []quiz.Question{{ID: "q1"}, {ID: "q2"}, {ID: "q3"}}}
	qs := shuffle.PresentationOrder(tst, shuffle.NewSource(9))
	for i, q := range qs {
		if q.ID != tst.Questions[i].ID {
			t.Fatalf("order changed without randomizeQuestions: %+v", qs)
		}
	}
}
