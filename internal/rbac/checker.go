package rbac

import (
	"context"
	"sort"
	"strings"

	"github.com/mind-engage/edutest/internal/quiz"
)

type grants struct {
	exact    map[string]struct{}
	prefixes []string
	patterns []string
}

// Checker answers permission questions against a Policy compiled once.
type Checker struct {
	roles map[quiz.Role]grants
}

// NewChecker compiles p, or DefaultPolicy when p is nil.
func NewChecker(p Policy) *Checker {
	if p == nil {
		p = DefaultPolicy
	}
	c := &Checker{roles: make(map[quiz.Role]grants, len(p))}
	for role, patterns := range p {
		g := grants{exact: map[string]struct{}{}}
		for _, pat := range patterns {
			g.patterns = append(g.patterns, pat)
			if prefix, ok := strings.CutSuffix(pat, "*"); ok {
				g.prefixes = append(g.prefixes, prefix)
				continue
			}
			g.exact[pat] = struct{}{}
		}
		sort.Strings(g.patterns)
		c.roles[role] = g
	}
	return c
}

func (c *Checker) Has(role quiz.Role, perm string) bool {
	g, ok := c.roles[role]
	if !ok {
		return false
	}
	if _, ok := g.exact[perm]; ok {
		return true
	}
	for _, p := range g.prefixes {
		if strings.HasPrefix(perm, p) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role quiz.Role, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

// Patterns lists the role's grants, sorted. Unknown roles get none.
func (c *Checker) Patterns(role quiz.Role) []string {
	return append([]string{}, c.roles[role].patterns...)
}

type ctxKey struct{}

func WithRole(ctx context.Context, role quiz.Role) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) quiz.Role {
	r, _ := ctx.Value(ctxKey{}).(quiz.Role)
	return r
}
