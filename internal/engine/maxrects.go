package engine

import (
	"context"
	"math"
	"sort"

	"github.com/ForeverZer0/rectpack"

	"github.com/piwi3910/bompack/internal/model"
)

// MaxRectsNester delegates packing to the rectpack maximal-rectangles
// packer, one bin at a time. Dimensions are scaled onto an integer grid:
// item sizes round up and bin sizes round down, so every integer packing is
// also valid in the original units.
type MaxRectsNester struct {
	Settings model.Settings
	Observer Observer
}

// maxRectsHeuristic maps a placement strategy onto a rectpack heuristic.
func maxRectsHeuristic(strategy model.PlacementStrategy) rectpack.Heuristic {
	switch strategy {
	case model.StrategyBestShortSide:
		return rectpack.MaxRectsBSSF
	case model.StrategyBestLongSide:
		return rectpack.MaxRectsBLSF
	case model.StrategyBestFit:
		return rectpack.MaxRectsBAF
	default:
		return rectpack.MaxRectsBL
	}
}

// Nest packs rects bin by bin until everything is packed or an empty bin
// accepts nothing. Shapes the library leaves out are reported as unplaced
// together with a warning naming their indices; this is never an error.
func (m *MaxRectsNester) Nest(ctx context.Context, rects []model.Rectangle) (model.Result, error) {
	items, err := prepare(m.Settings, rects)
	if err != nil {
		return model.Result{}, err
	}
	log := &runLog{observer: m.Observer}

	scale := m.Settings.Scale
	if scale <= 0 {
		scale = model.DefaultSettings().Scale
	}
	binW := int(math.Floor(m.Settings.BinWidth*scale + model.Epsilon))
	binH := int(math.Floor(m.Settings.BinHeight*scale + model.Epsilon))

	// Swapped extents are reachable by a 90 degree rotation or by a flip.
	quarterTurn := m.Settings.RotationSteps%4 == 0
	allowSwap := quarterTurn || m.Settings.AllowFlip

	pending := make([]rectpack.Size, len(items))
	scaled := make(map[int]rectpack.Size, len(items))
	for i, it := range items {
		pending[i] = rectpack.NewSizeID(it.index,
			int(math.Ceil(it.rect.Width*scale-model.Epsilon)),
			int(math.Ceil(it.rect.Height*scale-model.Epsilon)))
		scaled[it.index] = pending[i]
	}

	var bins []model.Bin
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return model.Result{}, err
		}
		packer := rectpack.NewPacker(binW, binH, maxRectsHeuristic(m.Settings.PlacementStrategy))
		packer.AllowFlip(allowSwap)
		packer.Sorter(nil, false)
		packer.Insert(pending...)
		packer.Pack()

		packed := packer.Rects()
		if len(packed) == 0 {
			break
		}

		bin := model.NewBin(m.Settings.BinWidth, m.Settings.BinHeight)
		for _, r := range packed {
			src := rects[r.ID]
			p := model.Placement{
				X: float64(r.X) / scale, Y: float64(r.Y) / scale,
				Width: src.Width, Height: src.Height,
				SourceIndex: r.ID,
			}
			// The packed extents tell the orientation; the Flipped flag
			// is not reset when an upright fit wins later.
			if sz := scaled[r.ID]; r.Width != sz.Width || r.Height != sz.Height {
				p.Width, p.Height = src.Height, src.Width
				if quarterTurn {
					p.Rotation = 90
				} else {
					p.Flipped = true
				}
			}
			bin.Placements = append(bin.Placements, p)
		}
		sort.SliceStable(bin.Placements, func(i, j int) bool {
			return bottomLeftOf(bin.Placements[i], bin.Placements[j])
		})
		bins = append(bins, bin)

		pending = append([]rectpack.Size(nil), packer.Unpacked()...)
	}

	var unplaced []model.Unplaced
	if placed := len(items) - len(pending); placed != len(items) {
		dropped := make([]int, len(pending))
		for i, s := range pending {
			dropped[i] = s.ID
		}
		sort.Ints(dropped)
		log.warnf(dropped, "maxrects: packed %d of %d shapes, unpacked indices %v", placed, len(items), dropped)
		for _, idx := range dropped {
			r := rects[idx]
			unplaced = append(unplaced, model.Unplaced{
				Index: idx, Width: r.Width, Height: r.Height,
				Reason: "not packed by the maximal-rectangles packer",
			})
		}
	}
	return finish(model.AlgorithmMaxRects, bins, unplaced, log), nil
}
