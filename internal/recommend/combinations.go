package recommend

// Combinations enumerates every k-element subset of pool, preserving pool
// order inside each subset. Subsets that fix earlier pool elements come
// first, so the output order is deterministic for a given pool. Returns nil
// when k <= 0 or k exceeds the pool size.
func Combinations[T any](pool []T, k int) [][]T {
	if k <= 0 || k > len(pool) {
		return nil
	}

	var out [][]T
	pick := make([]T, 0, k)

	var walk func(start, remaining int)
	walk = func(start, remaining int) {
		if remaining == 0 {
			out = append(out, append([]T(nil), pick...))
			return
		}
		// Stop once too few elements remain to fill the subset.
		for i := start; i <= len(pool)-remaining; i++ {
			pick = append(pick, pool[i])
			walk(i+1, remaining-1)
			pick = pick[:len(pick)-1]
		}
	}
	walk(0, k)
	return out
}
