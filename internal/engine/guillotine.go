package engine

import (
	"context"
	"sort"

	"github.com/piwi3910/bompack/internal/model"
)

// GuillotineNester places every shape at the globally best free space across
// all open bins and splits the consumed space with a guillotine cut.
type GuillotineNester struct {
	Settings model.Settings
	Observer Observer
}

// freeSpace is an unoccupied rectangle of a bin.
type freeSpace struct {
	x, y, w, h float64
}

func (s freeSpace) area() float64 {
	return s.w * s.h
}

// guillotineBin is a bin together with its free-space list for one run.
type guillotineBin struct {
	bin    model.Bin
	spaces []freeSpace
}

func newGuillotineBin(w, h float64) *guillotineBin {
	return &guillotineBin{
		bin:    model.NewBin(w, h),
		spaces: []freeSpace{{0, 0, w, h}},
	}
}

// guillotineCandidate is one feasible placement of a shape into a space.
type guillotineCandidate struct {
	bin, space int
	placement  model.Placement
	leftover   float64 // Space area not covered by the placement
}

// Nest packs rects in sorted order. Shapes too large for an empty bin are
// reported as unplaced.
func (g *GuillotineNester) Nest(ctx context.Context, rects []model.Rectangle) (model.Result, error) {
	items, err := prepare(g.Settings, rects)
	if err != nil {
		return model.Result{}, err
	}
	log := &runLog{observer: g.Observer}
	orientations := model.Orientations(g.Settings.RotationSteps, g.Settings.AllowFlip)

	var bins []*guillotineBin
	var unplaced []model.Unplaced
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return model.Result{}, err
		}

		best, found := g.findGlobalBest(bins, it, orientations)
		if !found {
			nb := newGuillotineBin(g.Settings.BinWidth, g.Settings.BinHeight)
			c, ok := g.findBestPlacement(it, nb.spaces[0], orientations)
			if !ok {
				unplaced = append(unplaced, log.tooLarge(it, g.Settings))
				continue
			}
			bins = append(bins, nb)
			c.bin, c.space = len(bins)-1, 0
			best = c
		}
		bins[best.bin].commit(best)
	}

	out := make([]model.Bin, len(bins))
	for i, b := range bins {
		out[i] = b.bin
	}
	return finish(model.AlgorithmGuillotine, out, unplaced, log), nil
}

// findGlobalBest scans every free space of every bin, keeping the first
// candidate that no later candidate beats.
func (g *GuillotineNester) findGlobalBest(bins []*guillotineBin, it item, orientations []model.Orientation) (guillotineCandidate, bool) {
	var best guillotineCandidate
	found := false
	for bi, b := range bins {
		for si, sp := range b.spaces {
			c, ok := g.findBestPlacement(it, sp, orientations)
			if !ok {
				continue
			}
			c.bin, c.space = bi, si
			if !found || betterGuillotine(g.Settings.PlacementStrategy, c, best) {
				best = c
				found = true
			}
		}
	}
	return best, found
}

// findBestPlacement returns the best orientation of it that fits space.
func (g *GuillotineNester) findBestPlacement(it item, space freeSpace, orientations []model.Orientation) (guillotineCandidate, bool) {
	var best guillotineCandidate
	found := false
	for _, o := range orientations {
		w, h := o.Extents(it.rect)
		if w > space.w+model.Epsilon || h > space.h+model.Epsilon {
			continue
		}
		c := guillotineCandidate{
			placement: model.Placement{
				X: space.x, Y: space.y, Width: w, Height: h,
				Rotation: o.Rotation, Flipped: o.Flipped, SourceIndex: it.index,
			},
			leftover: space.area() - w*h,
		}
		if !found || betterGuillotine(g.Settings.PlacementStrategy, c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

// betterGuillotine reports whether a is strictly better than b.
func betterGuillotine(strategy model.PlacementStrategy, a, b guillotineCandidate) bool {
	pa, pb := a.placement, b.placement
	switch strategy {
	case model.StrategyBestShortSide:
		return min(pa.Width, pa.Height) > min(pb.Width, pb.Height)
	case model.StrategyBestLongSide:
		return max(pa.Width, pa.Height) > max(pb.Width, pb.Height)
	case model.StrategyBestFit:
		if a.leftover != b.leftover {
			return a.leftover < b.leftover
		}
		return bottomLeftOf(pa, pb)
	default:
		return bottomLeftOf(pa, pb)
	}
}

func bottomLeftOf(a, b model.Placement) bool {
	return a.Y < b.Y || (a.Y == b.Y && a.X < b.X)
}

// commit places the candidate and replaces its space with the right and
// top leftovers of a guillotine cut. Both leftovers are as tall or as wide
// as the placement only; the area diagonally beyond it is not reused.
func (b *guillotineBin) commit(c guillotineCandidate) {
	p := c.placement
	b.bin.Placements = append(b.bin.Placements, p)

	sp := b.spaces[c.space]
	b.spaces = append(b.spaces[:c.space], b.spaces[c.space+1:]...)

	right := freeSpace{x: sp.x + p.Width, y: sp.y, w: sp.w - p.Width, h: p.Height}
	top := freeSpace{x: sp.x, y: sp.y + p.Height, w: p.Width, h: sp.h - p.Height}
	for _, s := range []freeSpace{right, top} {
		if s.w > model.Epsilon && s.h > model.Epsilon {
			b.spaces = append(b.spaces, s)
		}
	}

	sort.SliceStable(b.spaces, func(i, j int) bool {
		si, sj := b.spaces[i], b.spaces[j]
		if si.area() != sj.area() {
			return si.area() > sj.area()
		}
		if si.y != sj.y {
			return si.y < sj.y
		}
		return si.x < sj.x
	})
}
