package dice

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Requirement is a multiset of cost tokens. Values are treated as immutable
// once built; use Clone before changing a shared requirement.
type Requirement map[RequirementType]int

// Entry is one (type, count) pair of a Requirement.
type Entry struct {
	Type  RequirementType `json:"type"`
	Count int             `json:"count"`
}

var symbolPattern = regexp.MustCompile(`\{([^}]+)\}`)

// ParseRequirement parses a cost string such as "{pyro}{pyro}{void}",
// "{3}{cryo}" (a bare number means that many void dice), "{same:2}" or
// "{energy:3}".
func ParseRequirement(costStr string) (Requirement, error) {
	req := Requirement{}
	if strings.TrimSpace(costStr) == "" {
		return req, nil
	}

	matches := symbolPattern.FindAllStringSubmatch(costStr, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("invalid dice cost %q", costStr)
	}
	for _, match := range matches {
		symbol := strings.TrimSpace(match[1])
		if n, err := strconv.Atoi(symbol); err == nil {
			if n < 0 {
				return nil, fmt.Errorf("negative dice count {%s}", symbol)
			}
			req[Void] += n
			continue
		}
		count := 1
		if name, num, ok := strings.Cut(symbol, ":"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(num))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid dice count {%s}", symbol)
			}
			symbol, count = name, n
		}
		t, ok := ParseRequirementType(symbol)
		if !ok {
			return nil, fmt.Errorf("unknown dice symbol: {%s}", symbol)
		}
		req[t] += count
	}
	req.normalize()
	return req, nil
}

// MustParseRequirement is like ParseRequirement but panics on error. It is
// meant for static definition tables.
func MustParseRequirement(costStr string) Requirement {
	req, err := ParseRequirement(costStr)
	if err != nil {
		panic(err)
	}
	return req
}

func (r Requirement) normalize() {
	for t, c := range r {
		if c <= 0 {
			delete(r, t)
		}
	}
}

// Clone returns an independent copy.
func (r Requirement) Clone() Requirement {
	out := make(Requirement, len(r))
	for t, c := range r {
		if c > 0 {
			out[t] = c
		}
	}
	return out
}

// Add returns a copy with count tokens of type t added.
func (r Requirement) Add(t RequirementType, count int) Requirement {
	out := r.Clone()
	out[t] += count
	out.normalize()
	return out
}

// Deduct returns a copy with up to count tokens of type t removed.
func (r Requirement) Deduct(t RequirementType, count int) Requirement {
	out := r.Clone()
	if out[t] <= count {
		delete(out, t)
	} else {
		out[t] -= count
	}
	return out
}

// DiceCount is the number of dice needed to pay the requirement, ignoring
// energy and legend tokens.
func (r Requirement) DiceCount() int {
	n := 0
	for t, c := range r {
		if t.IsDice() {
			n += c
		}
	}
	return n
}

// Entries returns the requirement ordered by type.
func (r Requirement) Entries() []Entry {
	entries := make([]Entry, 0, len(r))
	for t, c := range r {
		if c > 0 {
			entries = append(entries, Entry{Type: t, Count: c})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Type < entries[j].Type })
	return entries
}

// FromEntries builds a Requirement from wire entries.
func FromEntries(entries []Entry) Requirement {
	req := Requirement{}
	for _, e := range entries {
		req[e.Type] += e.Count
	}
	req.normalize()
	return req
}

// Equal reports whether both requirements hold the same tokens.
func (r Requirement) Equal(other Requirement) bool {
	a, b := r.Entries(), other.Entries()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (r Requirement) String() string {
	var sb strings.Builder
	for _, e := range r.Entries() {
		fmt.Fprintf(&sb, "{%s:%d}", e.Type, e.Count)
	}
	return sb.String()
}
