package dice

import "sort"

// counts is a histogram of dice faces indexed by Type.
type counts [Omni + 1]int

func histogram(ds []Type) counts {
	var h counts
	for _, d := range ds {
		if d >= Unspecified && d <= Omni {
			h[d]++
		}
	}
	return h
}

// CheckDice reports whether selection pays the dice part of req exactly:
// every die is used and every token is covered. Omni substitutes for any
// token, aligned tokens must all be paid with one elemental face (plus
// omni), void accepts anything. The result does not depend on the order of
// selection.
func CheckDice(req Requirement, selection []Type) bool {
	if req.DiceCount() != len(selection) {
		return false
	}
	h := histogram(selection)
	if h[Unspecified] > 0 {
		return false
	}
	for _, t := range ElementalTypes {
		need := req[RequirementOf(t)]
		own := min(need, h[t])
		h[t] -= own
		need -= own
		if need > h[Omni] {
			return false
		}
		h[Omni] -= need
	}
	if aligned := req[Aligned]; aligned > 0 {
		best := 0
		for _, t := range ElementalTypes {
			best = max(best, h[t])
		}
		if best+h[Omni] < aligned {
			return false
		}
	}
	// the remainder equals req[Void] because the totals match.
	return true
}

// AutoSelect picks dice from the pool that pay req, or reports false when
// the pool cannot. preferred is the active character's element; dice of
// that element are kept back from void and aligned tokens where possible.
// Identical inputs always give identical selections.
func AutoSelect(req Requirement, pool []Type, preferred Type) ([]Type, bool) {
	h := histogram(pool)
	var picked counts

	take := func(t Type, n int) int {
		got := min(n, h[t])
		h[t] -= got
		picked[t] += got
		return n - got
	}

	for _, t := range ElementalTypes {
		need := req[RequirementOf(t)]
		need = take(t, need)
		if take(Omni, need) > 0 {
			return nil, false
		}
	}

	if aligned := req[Aligned]; aligned > 0 {
		chosen := Unspecified
		for _, t := range alignedPreference(h, preferred) {
			if h[t]+h[Omni] >= aligned {
				chosen = t
				break
			}
		}
		need := aligned
		if chosen != Unspecified {
			need = take(chosen, need)
		}
		if take(Omni, need) > 0 {
			return nil, false
		}
	}

	need := req[Void]
	for _, t := range voidPreference(h, preferred) {
		need = take(t, need)
		if need == 0 {
			break
		}
	}
	if need > 0 {
		return nil, false
	}

	out := make([]Type, 0, req.DiceCount())
	for _, t := range Sort(pool, preferred) {
		if picked[t] > 0 {
			picked[t]--
			out = append(out, t)
		}
	}
	return out, true
}

// alignedPreference orders elemental faces for an aligned token: non
// preferred faces with more dice first, lower type value on ties, the
// preferred face last.
func alignedPreference(h counts, preferred Type) []Type {
	order := make([]Type, 0, len(ElementalTypes))
	for _, t := range ElementalTypes {
		if t != preferred && h[t] > 0 {
			order = append(order, t)
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return h[order[i]] > h[order[j]] })
	if preferred.IsElemental() {
		order = append(order, preferred)
	}
	return order
}

// voidPreference orders faces for void tokens: rarest non preferred faces
// first, then the preferred face, then omni.
func voidPreference(h counts, preferred Type) []Type {
	order := make([]Type, 0, len(ElementalTypes)+1)
	for _, t := range ElementalTypes {
		if t != preferred && h[t] > 0 {
			order = append(order, t)
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return h[order[i]] < h[order[j]] })
	if preferred.IsElemental() {
		order = append(order, preferred)
	}
	return append(order, Omni)
}

// Sort returns a sorted copy of ds: omni first, then the preferred element,
// then faces by descending count, then by type value.
func Sort(ds []Type, preferred Type) []Type {
	h := histogram(ds)
	rank := func(t Type) int {
		switch {
		case t == Omni:
			return 0
		case t == preferred:
			return 1
		default:
			return 2
		}
	}
	out := append([]Type(nil), ds...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra < rb
		}
		if h[a] != h[b] {
			return h[a] > h[b]
		}
		return a < b
	})
	return out
}

// Remove returns pool without the dice in selection, or false when
// selection is not a sub-multiset of pool.
func Remove(pool, selection []Type) ([]Type, bool) {
	rest := histogram(selection)
	out := make([]Type, 0, len(pool))
	for _, d := range pool {
		if rest[d] > 0 {
			rest[d]--
			continue
		}
		out = append(out, d)
	}
	for _, n := range rest {
		if n != 0 {
			return nil, false
		}
	}
	return out, true
}

// Contains reports whether selection is a sub-multiset of pool.
func Contains(pool, selection []Type) bool {
	_, ok := Remove(pool, selection)
	return ok
}
