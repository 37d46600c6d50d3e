package engine

import (
	"context"
	"math"

	"github.com/piwi3910/bompack/internal/model"
)

// SkylineNester places every shape on top of the lowest feasible span of a
// bin's skyline. With LookAhead > 0 each candidate is scored together with
// a greedy simulation of the next pending shapes.
type SkylineNester struct {
	Settings model.Settings
	Observer Observer
}

// segment is one horizontal piece of the skyline.
type segment struct {
	x, y, w float64
}

// skyline is a height profile tiling the full bin width in ascending x.
// Without spanning a box may only start on a segment at least as wide as
// itself; with spanning it may rest across several segments.
type skyline struct {
	width, height float64
	segs          []segment
	spanning      bool
}

func newSkyline(w, h float64) *skyline {
	return &skyline{width: w, height: h, segs: []segment{{0, 0, w}}}
}

func (s *skyline) clone() *skyline {
	c := *s
	c.segs = append([]segment(nil), s.segs...)
	return &c
}

// fit returns the y at which a w x h box starting at segment i rests.
func (s *skyline) fit(i int, w, h float64) (float64, bool) {
	x := s.segs[i].x
	if x+w > s.width+model.Epsilon {
		return 0, false
	}
	if !s.spanning && s.segs[i].w < w-model.Epsilon {
		return 0, false
	}
	y := 0.0
	remaining := w
	for j := i; remaining > model.Epsilon; j++ {
		if j >= len(s.segs) {
			return 0, false
		}
		y = math.Max(y, s.segs[j].y)
		remaining -= s.segs[j].w
	}
	if y+h > s.height+model.Epsilon {
		return 0, false
	}
	return y, true
}

// waste is the area left empty below a box resting at y, measured against
// its start segment. With spanning every covered segment counts.
func (s *skyline) waste(i int, w, y float64) float64 {
	if !s.spanning {
		return (y - s.segs[i].y) * w
	}
	x := s.segs[i].x
	end := x + w
	var total float64
	for j := i; j < len(s.segs) && s.segs[j].x < end-model.Epsilon; j++ {
		seg := s.segs[j]
		overlap := math.Min(seg.x+seg.w, end) - math.Max(seg.x, x)
		total += (y - seg.y) * overlap
	}
	return total
}

// contact is the length of the box perimeter touching bin edges or
// existing material.
func (s *skyline) contact(i int, w, h, y float64) float64 {
	x := s.segs[i].x
	end := x + w
	var total float64

	for j := i; j < len(s.segs) && s.segs[j].x < end-model.Epsilon; j++ {
		seg := s.segs[j]
		if math.Abs(seg.y-y) <= model.Epsilon {
			total += math.Min(seg.x+seg.w, end) - math.Max(seg.x, x)
		}
	}

	if x <= model.Epsilon {
		total += h
	} else if i > 0 && s.segs[i-1].y > y {
		total += math.Min(s.segs[i-1].y, y+h) - y
	}

	if end >= s.width-model.Epsilon {
		total += h
	} else {
		for _, seg := range s.segs {
			if seg.x <= end+model.Epsilon && end < seg.x+seg.w-model.Epsilon {
				if seg.y > y {
					total += math.Min(seg.y, y+h) - y
				}
				break
			}
		}
	}

	if y+h >= s.height-model.Epsilon {
		total += w
	}
	return total
}

// place raises the skyline over [x, x+w) to y+h and merges equal heights.
func (s *skyline) place(x, y, w, h float64) {
	end := x + w
	out := make([]segment, 0, len(s.segs)+2)
	inserted := false
	for _, seg := range s.segs {
		segEnd := seg.x + seg.w
		if segEnd <= x+model.Epsilon || seg.x >= end-model.Epsilon {
			if !inserted && seg.x >= end-model.Epsilon {
				out = append(out, segment{x, y + h, w})
				inserted = true
			}
			out = append(out, seg)
			continue
		}
		if seg.x < x-model.Epsilon {
			out = append(out, segment{seg.x, seg.y, x - seg.x})
		}
		if !inserted {
			out = append(out, segment{x, y + h, w})
			inserted = true
		}
		if segEnd > end+model.Epsilon {
			out = append(out, segment{end, seg.y, segEnd - end})
		}
	}
	if !inserted {
		out = append(out, segment{x, y + h, w})
	}

	merged := out[:1]
	for _, seg := range out[1:] {
		last := &merged[len(merged)-1]
		if math.Abs(last.y-seg.y) <= model.Epsilon {
			last.w = seg.x + seg.w - last.x
			continue
		}
		merged = append(merged, seg)
	}
	s.segs = merged
}

// skylineCandidate is one feasible position on a skyline.
type skylineCandidate struct {
	seg         int
	orientation model.Orientation
	x, y, w, h  float64
	score       float64
}

// better orders candidates by score, then lower y, then lower x.
func (c skylineCandidate) better(o skylineCandidate) bool {
	if c.score != o.score {
		return c.score < o.score
	}
	if c.y != o.y {
		return c.y < o.y
	}
	return c.x < o.x
}

// candidates lists every feasible position of r on the skyline, scored by
// wasted area, or by negated contact length when contact is set.
func (s *skyline) candidates(r model.Rectangle, orientations []model.Orientation, contact bool) []skylineCandidate {
	var out []skylineCandidate
	for _, o := range orientations {
		w, h := o.Extents(r)
		for i := range s.segs {
			y, ok := s.fit(i, w, h)
			if !ok {
				continue
			}
			c := skylineCandidate{seg: i, orientation: o, x: s.segs[i].x, y: y, w: w, h: h}
			if contact {
				c.score = -s.contact(i, w, h, y)
			} else {
				c.score = s.waste(i, w, y)
			}
			out = append(out, c)
		}
	}
	return out
}

// best returns the best candidate for r, first found on ties.
func (s *skyline) best(r model.Rectangle, orientations []model.Orientation, contact bool) (skylineCandidate, bool) {
	var best skylineCandidate
	found := false
	for _, c := range s.candidates(r, orientations, contact) {
		if !found || c.better(best) {
			best = c
			found = true
		}
	}
	return best, found
}

// Nest packs rects in sorted order, trying bins first-fit in creation order.
func (n *SkylineNester) Nest(ctx context.Context, rects []model.Rectangle) (model.Result, error) {
	items, err := prepare(n.Settings, rects)
	if err != nil {
		return model.Result{}, err
	}
	log := &runLog{observer: n.Observer}
	orientations := model.Orientations(n.Settings.RotationSteps, n.Settings.AllowFlip)
	contact := n.Settings.PlacementStrategy == model.StrategyBestFit

	var bins []model.Bin
	var lines []*skyline
	var unplaced []model.Unplaced
	for k, it := range items {
		if err := ctx.Err(); err != nil {
			return model.Result{}, err
		}
		pending := items[k+1:]
		if len(pending) > n.Settings.LookAhead {
			pending = pending[:n.Settings.LookAhead]
		}

		placed := false
		for bi, sl := range lines {
			if c, ok := n.choose(sl, it, pending, orientations, contact); ok {
				bins[bi].Placements = append(bins[bi].Placements, n.commit(sl, c, it))
				placed = true
				break
			}
		}
		if placed {
			continue
		}

		sl := newSkyline(n.Settings.BinWidth, n.Settings.BinHeight)
		sl.spanning = n.Settings.SkylineSpanning
		c, ok := n.choose(sl, it, pending, orientations, contact)
		if !ok {
			unplaced = append(unplaced, log.tooLarge(it, n.Settings))
			continue
		}
		bin := model.NewBin(n.Settings.BinWidth, n.Settings.BinHeight)
		bin.Placements = append(bin.Placements, n.commit(sl, c, it))
		bins = append(bins, bin)
		lines = append(lines, sl)
	}
	return finish(model.AlgorithmSkyline, bins, unplaced, log), nil
}

// choose picks the candidate for it on sl, including the lookahead score of
// the pending items when lookahead is enabled.
func (n *SkylineNester) choose(sl *skyline, it item, pending []item, orientations []model.Orientation, contact bool) (skylineCandidate, bool) {
	if len(pending) == 0 {
		return sl.best(it.rect, orientations, contact)
	}

	penalty := n.Settings.BinWidth * n.Settings.BinHeight
	var best skylineCandidate
	found := false
	for _, c := range sl.candidates(it.rect, orientations, contact) {
		sim := sl.clone()
		sim.place(c.x, c.y, c.w, c.h)
		total := c.score
		for _, p := range pending {
			pc, ok := sim.best(p.rect, orientations, contact)
			if !ok {
				total += penalty
				continue
			}
			total += pc.score
			sim.place(pc.x, pc.y, pc.w, pc.h)
		}
		scored := c
		scored.score = total
		if !found || scored.better(best) {
			best = scored
			found = true
		}
	}
	return best, found
}

func (n *SkylineNester) commit(sl *skyline, c skylineCandidate, it item) model.Placement {
	sl.place(c.x, c.y, c.w, c.h)
	return model.Placement{
		X: c.x, Y: c.y, Width: c.w, Height: c.h,
		Rotation: c.orientation.Rotation, Flipped: c.orientation.Flipped,
		SourceIndex: it.index,
	}
}
