// Package variables holds the named integer bags carried by characters and
// entities.
package variables

import "sort"

// Name is a variable key.
type Name string

// Engine-recognized names.
const (
	Health        Name = "health"
	MaxHealth     Name = "maxHealth"
	Energy        Name = "energy"
	MaxEnergy     Name = "maxEnergy"
	Aura          Name = "aura"
	Alive         Name = "alive"
	Usage         Name = "usage"
	UsagePerRound Name = "usagePerRound"
	Duration      Name = "duration"
	Shield        Name = "shield"
)

// Reserved reports whether the engine manages name itself on characters.
func (n Name) Reserved() bool {
	switch n {
	case Health, MaxHealth, Energy, MaxEnergy, Aura, Alive:
		return true
	default:
		return false
	}
}

// Bag maps variable names to values. A Bag stored in a game state is never
// written in place; With returns a modified copy.
type Bag map[Name]int

// Get returns the value of name, 0 when unset.
func (b Bag) Get(name Name) int {
	return b[name]
}

// Has reports whether name is set.
func (b Bag) Has(name Name) bool {
	_, ok := b[name]
	return ok
}

// With returns a copy of b with name set to value.
func (b Bag) With(name Name, value int) Bag {
	out := b.Clone()
	out[name] = value
	return out
}

// Clone creates a copy of the bag.
func (b Bag) Clone() Bag {
	out := make(Bag, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Names returns the keys in lexical order.
func (b Bag) Names() []Name {
	names := make([]Name, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Entry is one named value, used where a stable order is needed.
type Entry struct {
	Name  Name `json:"name"`
	Value int  `json:"value"`
}

// Entries returns the bag ordered by name.
func (b Bag) Entries() []Entry {
	names := b.Names()
	out := make([]Entry, len(names))
	for i, n := range names {
		out[i] = Entry{Name: n, Value: b[n]}
	}
	return out
}

// Equal reports whether both bags hold the same values.
func (b Bag) Equal(other Bag) bool {
	if len(b) != len(other) {
		return false
	}
	for k, v := range b {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
