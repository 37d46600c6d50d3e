package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/bompack/internal/model"
)

// assertTiles checks that the segments cover the full width in ascending
// order, without gaps and with no two neighbours at the same height.
func assertTiles(t *testing.T, s *skyline) {
	t.Helper()
	x := 0.0
	for i, seg := range s.segs {
		assert.InDelta(t, x, seg.x, 1e-9, "segment %d starts at the previous end", i)
		assert.Greater(t, seg.w, 0.0)
		if i > 0 {
			assert.NotEqual(t, s.segs[i-1].y, seg.y, "segments %d and %d should be merged", i-1, i)
		}
		x = seg.x + seg.w
	}
	assert.InDelta(t, s.width, x, 1e-9)
}

func TestSkyline_PlaceClipsAndMerges(t *testing.T) {
	s := newSkyline(10, 10)

	s.place(0, 0, 4, 3)
	assert.Equal(t, []segment{{0, 3, 4}, {4, 0, 6}}, s.segs)
	assertTiles(t, s)

	s.place(4, 0, 6, 3)
	assert.Equal(t, []segment{{0, 3, 10}}, s.segs)

	s.place(2, 3, 3, 2)
	assert.Equal(t, []segment{{0, 3, 2}, {2, 5, 3}, {5, 3, 5}}, s.segs)
	assertTiles(t, s)

	s.place(0, 5, 5, 1)
	assert.Equal(t, []segment{{0, 6, 5}, {5, 3, 5}}, s.segs)
	assertTiles(t, s)
}

func TestSkyline_FitNeedsAWideEnoughStartSegment(t *testing.T) {
	s := newSkyline(10, 10)
	s.place(0, 0, 4, 3)

	_, ok := s.fit(0, 6, 2)
	assert.False(t, ok, "the 4 wide segment cannot start a 6 wide box")

	y, ok := s.fit(0, 4, 2)
	require.True(t, ok)
	assert.Equal(t, 3.0, y)

	y, ok = s.fit(1, 6, 2)
	require.True(t, ok)
	assert.Equal(t, 0.0, y)

	_, ok = s.fit(1, 7, 2)
	assert.False(t, ok, "runs past the right edge")

	_, ok = s.fit(0, 2, 8)
	assert.False(t, ok, "runs past the top edge")
}

func TestSkyline_FitSpansSegmentsWhenEnabled(t *testing.T) {
	s := newSkyline(10, 10)
	s.spanning = true
	s.place(0, 0, 4, 3)

	y, ok := s.fit(0, 6, 2)
	require.True(t, ok)
	assert.Equal(t, 3.0, y, "rests on the highest spanned segment")

	_, ok = s.fit(0, 2, 8)
	assert.False(t, ok, "runs past the top edge")
}

func TestSkyline_WasteAndContact(t *testing.T) {
	s := newSkyline(10, 10)
	s.place(0, 0, 4, 3)

	assert.Equal(t, 0.0, s.waste(0, 6, 3), "measured against the start segment only")
	assert.Equal(t, 12.0, s.waste(1, 6, 2))
	assert.Equal(t, 0.0, s.waste(1, 6, 0))

	s.spanning = true
	assert.Equal(t, 6.0, s.waste(0, 6, 3), "3 units high gap under the 2 units past x=4")

	// Bottom 6, left wall against the 3 high block (2 of the 2 unit height),
	// right bin edge 2.
	assert.Equal(t, 10.0, s.contact(1, 6, 2, 0))
	// On top of the block at the left edge: bottom 4, left edge 7, top edge 4.
	assert.Equal(t, 15.0, s.contact(0, 4, 7, 3))
}

func TestSkyline_NarrowTopNeedsSecondBin(t *testing.T) {
	rects := []model.Rectangle{{6, 6}, {8, 2}}
	s := defaultTestSettings(model.AlgorithmSkyline)
	s.RotationSteps = 1
	s.AllowFlip = false

	result, err := (&SkylineNester{Settings: s}).Nest(context.Background(), rects)
	require.NoError(t, err)
	require.NoError(t, Verify(result, 2))
	assert.Len(t, result.Bins, 2, "the 8x2 has no start segment 8 wide")

	s.SkylineSpanning = true
	result, err = (&SkylineNester{Settings: s}).Nest(context.Background(), rects)
	require.NoError(t, err)
	require.NoError(t, Verify(result, 2))
	require.Len(t, result.Bins, 1)
	p := result.Bins[0].Placements[1]
	assert.Equal(t, [2]float64{0, 6}, [2]float64{p.X, p.Y}, "spans the block and the floor beside it")
}

func TestSkyline_ScenarioD_PerfectTiling(t *testing.T) {
	rects := []model.Rectangle{{5, 5}, {5, 5}, {5, 5}, {5, 5}}
	for _, strategy := range []model.PlacementStrategy{model.StrategyBottomLeft, model.StrategyBestFit} {
		for _, la := range []int{0, 1, 3} {
			for _, method := range []model.SortMethod{model.SortArea, model.SortHeight, model.SortWidth, model.SortPerimeter} {
				s := defaultTestSettings(model.AlgorithmSkyline)
				s.PlacementStrategy = strategy
				s.LookAhead = la
				s.SortMethod = method

				result, err := (&SkylineNester{Settings: s}).Nest(context.Background(), rects)
				require.NoError(t, err)
				require.NoError(t, Verify(result, len(rects)))
				require.Len(t, result.Bins, 1, "%s lookahead %d", strategy, la)
				assert.InDelta(t, 1.0, result.Bins[0].Utilization(), 1e-12)
			}
		}
	}
}

func TestSkyline_LowestSpanWins(t *testing.T) {
	s := defaultTestSettings(model.AlgorithmSkyline)
	s.RotationSteps = 1
	s.AllowFlip = false

	result, err := (&SkylineNester{Settings: s}).Nest(context.Background(),
		[]model.Rectangle{{4, 6}, {6, 2}, {3, 3}})
	require.NoError(t, err)
	require.NoError(t, Verify(result, 3))
	require.Len(t, result.Bins, 1)

	ps := result.Bins[0].Placements
	assert.Equal(t, [2]float64{0, 0}, [2]float64{ps[0].X, ps[0].Y})
	assert.Equal(t, [2]float64{4, 0}, [2]float64{ps[1].X, ps[1].Y})
	assert.Equal(t, [2]float64{4, 2}, [2]float64{ps[2].X, ps[2].Y}, "the lower of two spots without waste")
}

func TestSkyline_LookAheadStaysValid(t *testing.T) {
	rects := makeTestRects(21, 30, 6)
	for _, la := range []int{1, 2, 4} {
		s := defaultTestSettings(model.AlgorithmSkyline)
		s.BinWidth = 18
		s.BinHeight = 12
		s.LookAhead = la

		result, err := (&SkylineNester{Settings: s}).Nest(context.Background(), rects)
		require.NoError(t, err)
		require.NoError(t, Verify(result, len(rects)))
		assert.Empty(t, result.Unplaced)
	}
}

func TestSkyline_LookAheadPenalisesBlockedItems(t *testing.T) {
	s := defaultTestSettings(model.AlgorithmSkyline)
	s.RotationSteps = 1
	s.AllowFlip = false
	s.LookAhead = 1
	n := &SkylineNester{Settings: s}
	sl := newSkyline(10, 10)
	orientations := model.Orientations(1, false)

	// Without lookahead both spots of the 5x5 have zero waste; the pending
	// 5x10 only fits when the 5x5 does not take the bottom of the free half.
	sl.place(0, 0, 5, 5)
	c, ok := n.choose(sl, item{rect: model.Rectangle{Width: 5, Height: 5}},
		[]item{{index: 1, rect: model.Rectangle{Width: 5, Height: 10}}}, orientations, false)
	require.True(t, ok)
	assert.Equal(t, 0.0, c.x)
	assert.Equal(t, 5.0, c.y)
	assert.Less(t, c.score, 10*10.0)
}

func TestSkyline_CloneIsIndependent(t *testing.T) {
	s := newSkyline(10, 10)
	c := s.clone()
	c.place(0, 0, 5, 5)
	assert.Equal(t, []segment{{0, 0, 10}}, s.segs)
	assert.Equal(t, []segment{{0, 5, 5}, {5, 0, 5}}, c.segs)
}
