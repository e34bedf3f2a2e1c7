package result

import "sort"

// ReadingOrder returns regions sorted top-to-bottom, then left-to-right within a row band.
//
// A band is seeded by the topmost unassigned region and spans that region's vertical
// extent; a region belongs to the band when its vertical centre lies inside it. Bands are
// emitted top-down, regions inside a band by left edge. Ties fall back to the input
// index, so the order is a pure function of the input.
func ReadingOrder(regions []TextRegion) []TextRegion {
	n := len(regions)
	idx := make([]int, n)
	bounds := make([]Rect, n)
	for i := range regions {
		idx[i] = i
		bounds[i] = regions[i].Polygon.Bounds()
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := bounds[idx[a]], bounds[idx[b]]
		if ra.Y1 != rb.Y1 {
			return ra.Y1 < rb.Y1
		}
		if ra.X1 != rb.X1 {
			return ra.X1 < rb.X1
		}
		return idx[a] < idx[b]
	})

	assigned := make([]bool, n)
	out := make([]TextRegion, 0, n)
	for _, seed := range idx {
		if assigned[seed] {
			continue
		}
		top, bottom := bounds[seed].Y1, bounds[seed].Y2
		var band []int
		for _, j := range idx {
			if assigned[j] {
				continue
			}
			cy := (bounds[j].Y1 + bounds[j].Y2) / 2
			if j == seed || (cy >= top && cy <= bottom) {
				band = append(band, j)
				assigned[j] = true
			}
		}
		sort.SliceStable(band, func(a, b int) bool {
			ra, rb := bounds[band[a]], bounds[band[b]]
			if ra.X1 != rb.X1 {
				return ra.X1 < rb.X1
			}
			if ra.Y1 != rb.Y1 {
				return ra.Y1 < rb.Y1
			}
			return band[a] < band[b]
		})
		for _, j := range band {
			out = append(out, regions[j])
		}
	}
	return out
}
