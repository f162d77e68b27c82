package concurrent

// Range is a half-open index interval [Lo, Hi).
type Range struct {
	Lo, Hi int32
}

// SplitRange cuts [0, n) into near-equal chunks, one job per chunk, so
// data-parallel passes over dense vectors touch disjoint slices.
func SplitRange(n, parts int) []Range {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}

	chunk := (n + parts - 1) / parts
	ranges := make([]Range, 0, parts)
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		ranges = append(ranges, Range{Lo: int32(lo), Hi: int32(hi)})
	}
	return ranges
}
