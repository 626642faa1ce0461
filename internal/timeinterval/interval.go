// Package timeinterval implements the pure interval algebra behind room
// adjustment: intersecting ordered ranges and deriving cut gaps from a
// stream of cut-start/cut-stop events. Nothing here touches I/O.
package timeinterval

import "sort"

// Range is a half-open interval [Start, Stop). Units are whatever the caller
// is working in (ms for recording segments, ns for event gaps).
type Range struct {
	Start int64
	Stop  int64
}

// Intersect computes the intersection of two ordered, non-overlapping range
// sequences. Both a and b must already be sorted by Start with no internal
// overlaps, which is how callers in this package always construct them.
func Intersect(a, b []Range) []Range {
	var result []Range

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		s := max64(a[i].Start, b[j].Start)
		e := min64(a[i].Stop, b[j].Stop)
		if s < e {
			result = append(result, Range{Start: s, Stop: e})
		}
		if a[i].Stop < b[j].Stop {
			i++
		} else {
			j++
		}
	}

	return result
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Union merges two sorted, non-overlapping range sequences into their
// sorted, non-overlapping union. Adjacent or overlapping ranges are coalesced.
func Union(a, b []Range) []Range {
	merged := make([]Range, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	if len(merged) == 0 {
		return merged
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Start < merged[j].Start })

	result := make([]Range, 0, len(merged))
	current := merged[0]
	for _, r := range merged[1:] {
		if r.Start <= current.Stop {
			if r.Stop > current.Stop {
				current.Stop = r.Stop
			}
			continue
		}
		result = append(result, current)
		current = r
	}
	result = append(result, current)

	return result
}

// Invert turns a sorted, non-overlapping set of ranges over [0, bound) into
// the complementary set of gaps between them — used to turn "segments the
// recording should keep" into "gaps the recording drops", and to turn cut
// gaps into the ranges they leave standing.
func Invert(ranges []Range, bound int64) []Range {
	var result []Range
	cursor := int64(0)

	for _, r := range ranges {
		if r.Start > cursor {
			result = append(result, Range{Start: cursor, Stop: r.Start})
		}
		if r.Stop > cursor {
			cursor = r.Stop
		}
	}

	if cursor < bound {
		result = append(result, Range{Start: cursor, Stop: bound})
	}

	return result
}
