package timetable

import "strings"

// RosterEntry is a teacher and the subjects they can take.
type RosterEntry struct {
	TeacherID string   `json:"teacherId,omitempty"`
	Name      string   `json:"name"`
	Subjects  []string `json:"subjects"`
}

// Teaches reports whether the entry lists subject.
func (e RosterEntry) Teaches(subject string) bool {
	subject = strings.TrimSpace(subject)
	for _, s := range e.Subjects {
		if strings.TrimSpace(s) == subject {
			return true
		}
	}
	return false
}

// Roster is an ordered teacher list. Order decides resolver ties.
type Roster []RosterEntry

// FindByName looks a teacher up case-insensitively.
func (r Roster) FindByName(name string) (RosterEntry, bool) {
	name = strings.TrimSpace(name)
	for _, entry := range r {
		if strings.EqualFold(strings.TrimSpace(entry.Name), name) {
			return entry, true
		}
	}
	return RosterEntry{}, false
}

// FindByID looks a teacher up by directory identifier.
func (r Roster) FindByID(id string) (RosterEntry, bool) {
	if id == "" {
		return RosterEntry{}, false
	}
	for _, entry := range r {
		if entry.TeacherID == id {
			return entry, true
		}
	}
	return RosterEntry{}, false
}

// Subjects returns the distinct subjects taught across the roster in first-seen order.
func (r Roster) Subjects() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, entry := range r {
		for _, s := range entry.Subjects {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// ResolvePolicy selects how ties between teachers of the same subject are handled.
type ResolvePolicy string

const (
	// PolicyFirstMatch takes the first roster entry teaching the subject.
	PolicyFirstMatch ResolvePolicy = "first_match"
	// PolicyUnique resolves only when exactly one entry teaches the subject.
	PolicyUnique ResolvePolicy = "unique"
)

// ParseResolvePolicy maps a config value to a policy, defaulting to first match.
func ParseResolvePolicy(raw string) ResolvePolicy {
	if ResolvePolicy(strings.ToLower(strings.TrimSpace(raw))) == PolicyUnique {
		return PolicyUnique
	}
	return PolicyFirstMatch
}

// Resolver picks the default teacher for a subject.
type Resolver struct {
	Policy ResolvePolicy
}

// Resolve returns the teacher for subject, or false when none (or, under PolicyUnique, more than one) matches.
func (r Resolver) Resolve(subject string, roster Roster) (string, bool) {
	var match string
	found := false
	for _, entry := range roster {
		if !entry.Teaches(subject) {
			continue
		}
		if r.Policy != PolicyUnique {
			return entry.Name, true
		}
		if found {
			return "", false
		}
		match, found = entry.Name, true
	}
	return match, found
}
