package champion

import "fmt"

// Composition is a duplicate-free set of up to five champion ids, the unit a
// team's draft is scored in.
type Composition []int

// NewComposition collapses duplicates in first-seen order and rejects sets
// larger than a team.
func NewComposition(ids ...int) (Composition, error) {
	seen := make(map[int]struct{}, len(ids))
	c := make(Composition, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		c = append(c, id)
	}
	if len(c) > 5 {
		return nil, fmt.Errorf("composition has %d champions, a team holds at most 5", len(c))
	}
	return c, nil
}

// Contains reports membership.
func (c Composition) Contains(id int) bool {
	for _, have := range c {
		if have == id {
			return true
		}
	}
	return false
}

// Vector is an indicator vector over the champion catalog: one position per
// champion index, 1 marking membership in a composition.
type Vector []int

// Encode converts a set of champion ids into an indicator vector. Duplicate
// ids collapse to a single flag. An unknown id fails the call and names the
// offending id.
func (r *Registry) Encode(ids []int) (Vector, error) {
	v := make(Vector, len(r.champions))
	for _, id := range ids {
		i, err := r.IndexOf(id)
		if err != nil {
			return nil, fmt.Errorf("encode composition: %w", err)
		}
		v[i] = 1
	}
	return v, nil
}

// Decode recovers the champion id set from an indicator vector. Indices are
// assigned in ascending id order, so the result is ascending by id.
// Decode(Encode(S)) == S for every valid set S.
func (r *Registry) Decode(v Vector) []int {
	ids := make([]int, 0, 5)
	for i, flag := range v {
		if flag != 0 && i < len(r.champions) {
			ids = append(ids, r.champions[i].ID)
		}
	}
	return ids
}
