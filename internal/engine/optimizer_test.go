package engine

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/bompack/internal/model"
)

func defaultTestSettings(algo model.Algorithm) model.Settings {
	s := model.DefaultSettings()
	s.Algorithm = algo
	s.BinWidth = 10
	s.BinHeight = 10
	s.PopulationSize = 8
	s.Generations = 5
	s.NumWorkers = 2
	s.Seed = 42
	return s
}

// makeTestRects returns a reproducible batch of n rectangles with sides in
// [1, maxSide).
func makeTestRects(seed int64, n int, maxSide float64) []model.Rectangle {
	rng := rand.New(rand.NewSource(seed))
	rects := make([]model.Rectangle, n)
	for i := range rects {
		rects[i] = model.Rectangle{
			Width:  1 + rng.Float64()*(maxSide-1),
			Height: 1 + rng.Float64()*(maxSide-1),
		}
	}
	return rects
}

func nest(t *testing.T, s model.Settings, rects []model.Rectangle) model.Result {
	t.Helper()
	result, err := New(s).Nest(context.Background(), rects)
	require.NoError(t, err)
	require.NoError(t, Verify(result, len(rects)))
	return result
}

func TestSortRectangles(t *testing.T) {
	rects := []model.Rectangle{{2, 3}, {4, 1}, {1, 6}, {3, 2}}

	assert.Equal(t, []int{0, 2, 3, 1}, SortRectangles(rects, model.SortArea), "ties keep input order")
	assert.Equal(t, []int{2, 0, 3, 1}, SortRectangles(rects, model.SortHeight))
	assert.Equal(t, []int{1, 3, 0, 2}, SortRectangles(rects, model.SortWidth))
	assert.Equal(t, []int{2, 0, 1, 3}, SortRectangles(rects, model.SortPerimeter))
	assert.Empty(t, SortRectangles(nil, model.SortArea))
}

func TestOptimize_ScenarioA_SingleRectangle(t *testing.T) {
	for _, algo := range model.Algorithms {
		t.Run(string(algo), func(t *testing.T) {
			s := defaultTestSettings(algo)
			s.RotationSteps = 1

			result := nest(t, s, []model.Rectangle{{4, 4}})

			require.Len(t, result.Bins, 1)
			require.Len(t, result.Bins[0].Placements, 1)
			assert.Equal(t, model.Placement{X: 0, Y: 0, Width: 4, Height: 4, Rotation: 0}, result.Bins[0].Placements[0])
			assert.InDelta(t, 0.16, result.Bins[0].Utilization(), 1e-12)
			assert.Empty(t, result.Unplaced)
			assert.Equal(t, algo, result.Algorithm)
		})
	}
}

func TestOptimize_ScenarioB_SecondSquareNeedsNewBin(t *testing.T) {
	for _, algo := range model.Algorithms {
		t.Run(string(algo), func(t *testing.T) {
			s := defaultTestSettings(algo)
			s.PlacementStrategy = model.StrategyBottomLeft

			result := nest(t, s, []model.Rectangle{{6, 6}, {6, 6}})

			require.Len(t, result.Bins, 2)
			for _, b := range result.Bins {
				require.Len(t, b.Placements, 1)
				assert.Equal(t, 0.0, b.Placements[0].X)
				assert.Equal(t, 0.0, b.Placements[0].Y)
			}
		})
	}
}

func TestOptimize_ScenarioC_FitsUnrotated(t *testing.T) {
	for _, algo := range []model.Algorithm{model.AlgorithmGuillotine, model.AlgorithmSkyline, model.AlgorithmGenetic} {
		t.Run(string(algo), func(t *testing.T) {
			s := defaultTestSettings(algo)
			s.BinHeight = 5
			s.AllowFlip = true
			s.RotationSteps = 1

			result := nest(t, s, []model.Rectangle{{9, 2}})

			require.Len(t, result.Bins, 1)
			p := result.Bins[0].Placements[0]
			assert.Equal(t, 9.0, p.Width)
			assert.Equal(t, 2.0, p.Height)
			assert.False(t, p.Flipped)
		})
	}
}

func TestOptimize_InvariantsHoldForEveryAlgorithm(t *testing.T) {
	rects := makeTestRects(7, 40, 6)
	for _, algo := range model.Algorithms {
		for _, strategy := range []model.PlacementStrategy{
			model.StrategyBottomLeft, model.StrategyBestShortSide,
			model.StrategyBestLongSide, model.StrategyBestFit,
		} {
			t.Run(string(algo)+"/"+string(strategy), func(t *testing.T) {
				s := defaultTestSettings(algo)
				s.BinWidth = 20
				s.BinHeight = 15
				s.PlacementStrategy = strategy

				result := nest(t, s, rects)

				assert.Empty(t, result.Unplaced)
				for _, b := range result.Bins {
					u := b.Utilization()
					assert.Greater(t, u, 0.0)
					assert.LessOrEqual(t, u, 1.0)
				}
				est := model.EstimateSheets(rects, s.BinWidth, s.BinHeight, 0)
				assert.GreaterOrEqual(t, len(result.Bins), est.SheetsNeededMin)
			})
		}
	}
}

func TestOptimize_InvariantsHoldWithEightRotationSteps(t *testing.T) {
	rects := makeTestRects(11, 25, 5)
	for _, algo := range []model.Algorithm{model.AlgorithmGuillotine, model.AlgorithmSkyline, model.AlgorithmGenetic} {
		t.Run(string(algo), func(t *testing.T) {
			s := defaultTestSettings(algo)
			s.RotationSteps = 8
			nest(t, s, rects)
		})
	}
}

func TestOptimize_DeterministicPlacements(t *testing.T) {
	rects := makeTestRects(3, 30, 7)
	for _, algo := range model.Algorithms {
		t.Run(string(algo), func(t *testing.T) {
			s := defaultTestSettings(algo)
			s.LookAhead = 1
			first := nest(t, s, rects)
			second := nest(t, s, rects)
			assert.Equal(t, first.Bins, second.Bins)
			assert.Equal(t, first.Unplaced, second.Unplaced)
		})
	}
}

func TestOptimize_OversizedShapeIsReportedAndPackingContinues(t *testing.T) {
	rects := []model.Rectangle{{4, 4}, {12, 3}, {3, 3}}
	for _, algo := range model.Algorithms {
		t.Run(string(algo), func(t *testing.T) {
			s := defaultTestSettings(algo)

			result := nest(t, s, rects)

			require.Len(t, result.Unplaced, 1)
			assert.Equal(t, 1, result.Unplaced[0].Index)
			assert.NotEmpty(t, result.Unplaced[0].Reason)
			assert.Equal(t, 2, result.PlacedCount())

			var warned bool
			for _, e := range result.Events {
				if e.Level == model.EventWarning && len(e.Indices) == 1 && e.Indices[0] == 1 {
					warned = true
				}
			}
			assert.True(t, warned, "expected a warning naming index 1, got %+v", result.Events)
		})
	}
}

func TestOptimize_EmptyInput(t *testing.T) {
	for _, algo := range model.Algorithms {
		result := nest(t, defaultTestSettings(algo), nil)
		assert.Empty(t, result.Bins, string(algo))
		assert.Empty(t, result.Unplaced, string(algo))
	}
}

func TestOptimize_InvalidConfigurationIsRejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Settings)
		rects  []model.Rectangle
		want   error
	}{
		{"zero bin width", func(s *model.Settings) { s.BinWidth = 0 }, []model.Rectangle{{1, 1}}, model.ErrInvalidBin},
		{"negative bin height", func(s *model.Settings) { s.BinHeight = -2 }, []model.Rectangle{{1, 1}}, model.ErrInvalidBin},
		{"zero rotation steps", func(s *model.Settings) { s.RotationSteps = 0 }, []model.Rectangle{{1, 1}}, model.ErrInvalidRotationSteps},
		{"zero width rectangle", func(s *model.Settings) {}, []model.Rectangle{{1, 1}, {0, 3}}, model.ErrInvalidRectangle},
		{"negative height rectangle", func(s *model.Settings) {}, []model.Rectangle{{1, -1}}, model.ErrInvalidRectangle},
	}
	for _, algo := range model.Algorithms {
		for _, tt := range tests {
			t.Run(string(algo)+"/"+tt.name, func(t *testing.T) {
				s := defaultTestSettings(algo)
				tt.mutate(&s)
				_, err := New(s).Nest(context.Background(), tt.rects)
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.want), "got %v", err)
			})
		}
	}
}

func TestOptimize_UnknownAlgorithm(t *testing.T) {
	s := defaultTestSettings("annealing")
	_, err := New(s).Nest(context.Background(), []model.Rectangle{{1, 1}})
	assert.ErrorIs(t, err, model.ErrUnknownAlgorithm)
}

func TestOptimize_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, algo := range model.Algorithms {
		_, err := New(defaultTestSettings(algo)).Nest(ctx, []model.Rectangle{{1, 1}})
		assert.ErrorIs(t, err, context.Canceled, string(algo))
	}
}

func TestOptimize_ObserverSeesEveryEvent(t *testing.T) {
	var seen []model.Event
	opt := New(defaultTestSettings(model.AlgorithmGuillotine))
	opt.Observer = func(e model.Event) { seen = append(seen, e) }

	result, err := opt.Nest(context.Background(), []model.Rectangle{{4, 4}, {20, 20}})
	require.NoError(t, err)
	assert.Equal(t, result.Events, seen)
	assert.NotEmpty(t, seen)
}

func TestVerify_DetectsViolations(t *testing.T) {
	result := model.Result{
		Bins: []model.Bin{
			{Width: 10, Height: 10, Placements: []model.Placement{
				{X: 0, Y: 0, Width: 5, Height: 5, SourceIndex: 0},
				{X: 4, Y: 4, Width: 5, Height: 5, SourceIndex: 1},
				{X: 8, Y: 0, Width: 5, Height: 1, SourceIndex: 1},
			}},
			{Width: 10, Height: 10},
		},
	}
	err := Verify(result, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverlap)
	assert.ErrorIs(t, err, ErrOutOfBin)
	assert.ErrorIs(t, err, ErrEmptyBin)
	assert.ErrorIs(t, err, ErrConservation)

	assert.NoError(t, Verify(model.Result{Unplaced: []model.Unplaced{{Index: 0}}}, 1))
}

func TestFitsEmptyBin(t *testing.T) {
	s := defaultTestSettings(model.AlgorithmGuillotine)
	s.BinHeight = 5
	assert.True(t, fitsEmptyBin(model.Rectangle{Width: 2, Height: 9}, s), "rotated 90 degrees")

	s.RotationSteps = 1
	s.AllowFlip = false
	assert.False(t, fitsEmptyBin(model.Rectangle{Width: 2, Height: 9}, s))
}
