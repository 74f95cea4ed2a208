package quiz

import "strings"

func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// IsMember reports whether the student belongs to the group. A roster entry
// linked to the user's id always matches; unlinked entries fall back to the
// (full name, institution, group number) comparison, case-insensitive and
// trimmed.
func IsMember(g Group, u User) bool {
	return rosterIndex(g, u) >= 0
}

func rosterIndex(g Group, u User) int {
	if u.Role != RoleStudent {
		return -1
	}
	for i, s := range g.Students {
		if s.UserID != "" && s.UserID == u.ID {
			return i
		}
	}
	if fold(g.Institution) != fold(u.Institution) || fold(g.GroupNumber) != fold(u.GroupNumber) {
		return -1
	}
	for i, s := range g.Students {
		if s.UserID == "" && fold(s.FullName) == fold(u.FullName) {
			return i
		}
	}
	return -1
}

// GroupsFor returns the groups the student belongs to, in input order.
func GroupsFor(groups []Group, u User) []Group {
	var out []Group
	for _, g := range groups {
		if IsMember(g, u) {
			out = append(out, g)
		}
	}
	return out
}

// VisibleTests keeps the tests assigned to at least one of the given groups.
func VisibleTests(tests []Test, groups []Group) []Test {
	ids := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		ids[g.ID] = struct{}{}
	}
	var out []Test
	for _, t := range tests {
		for _, gid := range t.GroupIDs {
			if _, ok := ids[gid]; ok {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// LinkStudent records u's id on the roster entry that matches u by name.
// It returns the updated group and whether anything changed.
func LinkStudent(g Group, u User) (Group, bool) {
	i := rosterIndex(g, u)
	if i < 0 || g.Students[i].UserID == u.ID {
		return g, false
	}
	students := make([]GroupStudent, len(g.Students))
	copy(students, g.Students)
	students[i].UserID = u.ID
	g.Students = students
	return g, true
}
