package dice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		input    string
		expected Requirement
		err      bool
	}{
		{"", Requirement{}, false},
		{"{pyro}", Requirement{RequirePyro: 1}, false},
		{"{pyro}{pyro}{void}", Requirement{RequirePyro: 2, Void: 1}, false},
		{"{3}", Requirement{Void: 3}, false},
		{"{2}{cryo}", Requirement{Void: 2, RequireCryo: 1}, false},
		{"{same:2}", Requirement{Aligned: 2}, false},
		{"{aligned:3}{energy:2}", Requirement{Aligned: 3, Energy: 2}, false},
		{"{legend}", Requirement{Legend: 1}, false},
		{"{0}", Requirement{}, false},
		{"{mana}", nil, true},
		{"pyro", nil, true},
		{"{pyro:x}", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseRequirement(tt.input)
			if tt.err {
				if err == nil {
					t.Errorf("Expected error for %s, got nil", tt.input)
				}
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(result), "expected %s, got %s", tt.expected, result)
		})
	}
}

func TestRequirementArithmetic(t *testing.T) {
	base := MustParseRequirement("{hydro:3}")

	cheaper := base.Deduct(RequireHydro, 1)
	assert.Equal(t, 2, cheaper[RequireHydro])
	assert.Equal(t, 3, base[RequireHydro], "Deduct must not change the receiver")

	free := base.Deduct(RequireHydro, 5)
	assert.Empty(t, free)

	withEnergy := base.Add(Energy, 2)
	assert.Equal(t, 3, withEnergy.DiceCount())
	assert.Equal(t, []Entry{{RequireHydro, 3}, {Energy, 2}}, withEnergy.Entries())
	assert.True(t, withEnergy.Equal(FromEntries(withEnergy.Entries())))
}

func TestCheckDice(t *testing.T) {
	tests := []struct {
		name      string
		req       string
		selection []Type
		ok        bool
	}{
		{"empty", "", nil, true},
		{"exact element", "{pyro:2}", []Type{Pyro, Pyro}, true},
		{"omni substitutes element", "{pyro:2}", []Type{Pyro, Omni}, true},
		{"wrong element", "{pyro:2}", []Type{Pyro, Hydro}, false},
		{"too many dice", "{pyro}", []Type{Pyro, Pyro}, false},
		{"too few dice", "{pyro:3}", []Type{Pyro, Pyro}, false},
		{"void accepts anything", "{3}", []Type{Geo, Cryo, Omni}, true},
		{"element plus void", "{cryo}{2}", []Type{Anemo, Cryo, Dendro}, true},
		{"element plus void missing element", "{cryo}{2}", []Type{Anemo, Hydro, Dendro}, false},
		{"aligned same face", "{same:3}", []Type{Electro, Electro, Electro}, true},
		{"aligned with omni", "{same:3}", []Type{Electro, Omni, Electro}, true},
		{"aligned all omni", "{same:2}", []Type{Omni, Omni}, true},
		{"aligned mixed faces", "{same:2}", []Type{Electro, Pyro}, false},
		{"energy ignored", "{geo}{energy:3}", []Type{Geo}, true},
		{"hidden die", "{1}", []Type{Unspecified}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := MustParseRequirement(tt.req)
			assert.Equal(t, tt.ok, CheckDice(req, tt.selection))
		})
	}
}

func TestCheckDiceOrderIndependent(t *testing.T) {
	req := MustParseRequirement("{hydro}{same:2}{1}")
	selection := []Type{Omni, Hydro, Pyro, Pyro}
	require.True(t, CheckDice(req, selection))

	permute(selection, 0, func(p []Type) {
		assert.True(t, CheckDice(req, p), "permutation %v rejected", p)
	})
}

func permute(ds []Type, k int, visit func([]Type)) {
	if k == len(ds) {
		visit(append([]Type(nil), ds...))
		return
	}
	for i := k; i < len(ds); i++ {
		ds[k], ds[i] = ds[i], ds[k]
		permute(ds, k+1, visit)
		ds[k], ds[i] = ds[i], ds[k]
	}
}

func TestAutoSelect(t *testing.T) {
	pool := []Type{Omni, Pyro, Pyro, Hydro, Geo, Geo, Cryo}

	t.Run("element prefers own face", func(t *testing.T) {
		got, ok := AutoSelect(MustParseRequirement("{pyro:2}"), pool, Pyro)
		require.True(t, ok)
		assert.Equal(t, []Type{Pyro, Pyro}, got)
	})

	t.Run("element falls back to omni", func(t *testing.T) {
		got, ok := AutoSelect(MustParseRequirement("{hydro:2}"), pool, Pyro)
		require.True(t, ok)
		assert.ElementsMatch(t, []Type{Omni, Hydro}, got)
	})

	t.Run("void spends rare off-element dice first", func(t *testing.T) {
		got, ok := AutoSelect(MustParseRequirement("{2}"), pool, Pyro)
		require.True(t, ok)
		assert.ElementsMatch(t, []Type{Hydro, Cryo}, got)
	})

	t.Run("aligned avoids preferred element", func(t *testing.T) {
		got, ok := AutoSelect(MustParseRequirement("{same:2}"), pool, Pyro)
		require.True(t, ok)
		assert.Equal(t, []Type{Geo, Geo}, got)
	})

	t.Run("insufficient", func(t *testing.T) {
		_, ok := AutoSelect(MustParseRequirement("{electro:3}"), pool, Pyro)
		assert.False(t, ok)
	})

	t.Run("selection always passes CheckDice", func(t *testing.T) {
		for _, cost := range []string{"{cryo}{2}", "{same:3}", "{geo:2}{1}", "{7}"} {
			req := MustParseRequirement(cost)
			got, ok := AutoSelect(req, pool, Pyro)
			require.True(t, ok, cost)
			assert.True(t, CheckDice(req, got), cost)
			assert.True(t, Contains(pool, got), cost)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		req := MustParseRequirement("{same:2}{1}")
		first, _ := AutoSelect(req, pool, Hydro)
		for i := 0; i < 10; i++ {
			again, _ := AutoSelect(req, pool, Hydro)
			assert.Equal(t, first, again)
		}
	})
}

func TestSort(t *testing.T) {
	got := Sort([]Type{Geo, Cryo, Omni, Pyro, Geo, Cryo, Cryo, Anemo}, Pyro)
	assert.Equal(t, []Type{Omni, Pyro, Cryo, Cryo, Cryo, Geo, Geo, Anemo}, got)
}

func TestRemove(t *testing.T) {
	rest, ok := Remove([]Type{Omni, Pyro, Pyro, Geo}, []Type{Pyro, Omni})
	require.True(t, ok)
	assert.Equal(t, []Type{Pyro, Geo}, rest)

	_, ok = Remove([]Type{Omni, Pyro}, []Type{Hydro})
	assert.False(t, ok)
}
