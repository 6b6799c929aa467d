package variables

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBagWithDoesNotAlias(t *testing.T) {
	base := Bag{Health: 10, MaxHealth: 10}
	hurt := base.With(Health, 8)

	assert.Equal(t, 10, base.Get(Health))
	assert.Equal(t, 8, hurt.Get(Health))
	assert.Equal(t, 10, hurt.Get(MaxHealth))
	assert.False(t, base.Equal(hurt))
}

func TestBagEntriesOrdered(t *testing.T) {
	b := Bag{Usage: 2, Duration: 1, "stacks": 3}
	assert.Equal(t, []Entry{{Duration, 1}, {"stacks", 3}, {Usage, 2}}, b.Entries())
	assert.True(t, b.Has(Usage))
	assert.False(t, b.Has(UsagePerRound))
	assert.Equal(t, 0, b.Get(UsagePerRound))
}

func TestReserved(t *testing.T) {
	assert.True(t, Health.Reserved())
	assert.True(t, Alive.Reserved())
	assert.False(t, Usage.Reserved())
	assert.False(t, Name("stacks").Reserved())
}
