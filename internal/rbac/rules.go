package rbac

import "github.com/mind-engage/edutest/internal/quiz"

// Policy maps a role to its permission patterns. A pattern ending in "*"
// grants every permission with that prefix.
type Policy map[quiz.Role][]string

// DefaultPolicy grants coarse permissions only. Ownership of individual
// groups, tests and results is checked by the catalog.
var DefaultPolicy = Policy{
	quiz.RoleStudent: {
		"test:view",
		"group:view",
		"result:view-own",
		"attempt:*",
		"user:profile",
		"user:change_password",
	},
	quiz.RoleTeacher: {
		"group:*",
		"test:*",
		"result:view-all",
		"result:stats",
		"users:list",
		"user:profile",
		"user:change_password",
	},
}
