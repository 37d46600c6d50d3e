package engine

import (
	"context"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/bompack/internal/model"
)

func makeGeneticRun(s model.Settings, rects []model.Rectangle) *geneticRun {
	return &geneticRun{
		settings:     s,
		rects:        rects,
		orientations: model.Orientations(s.RotationSteps, s.AllowFlip),
	}
}

func TestGeneticOptimizerScenarioE_SingleGenerationIsTheSeedDecoding(t *testing.T) {
	s := defaultTestSettings(model.AlgorithmGenetic)
	s.PopulationSize = 1
	s.Generations = 1
	rects := []model.Rectangle{{6, 6}, {4, 4}, {4, 4}, {5, 3}}

	result, err := (&GeneticNester{Settings: s}).Nest(context.Background(), rects)
	require.NoError(t, err)
	require.NoError(t, Verify(result, len(rects)))

	seed := genome{{shape: 0}, {shape: 1}, {shape: 2}, {shape: 3}}
	want, dropped := makeGeneticRun(s, rects).decode(seed)
	require.Empty(t, dropped)
	assert.Equal(t, want, result.Bins)

	require.Len(t, result.Bins, 1)
	got := make([][4]float64, 0, 4)
	for _, p := range result.Bins[0].Placements {
		got = append(got, [4]float64{p.X, p.Y, p.Width, p.Height})
	}
	assert.Equal(t, [][4]float64{{0, 0, 6, 6}, {6, 0, 4, 4}, {6, 4, 4, 4}, {0, 6, 5, 3}}, got)
	assert.InDelta(t, 0.83, result.Bins[0].Utilization(), 1e-12)
}

func TestGeneticOptimizerSeededRunsAreReproducible(t *testing.T) {
	rects := makeTestRects(5, 25, 6)
	s := defaultTestSettings(model.AlgorithmGenetic)
	s.NumWorkers = 4
	s.Generations = 8

	first, err := (&GeneticNester{Settings: s}).Nest(context.Background(), rects)
	require.NoError(t, err)
	second, err := (&GeneticNester{Settings: s}).Nest(context.Background(), rects)
	require.NoError(t, err)

	assert.Equal(t, first.Bins, second.Bins)
}

func TestGeneticOptimizerBestFitnessNeverDrops(t *testing.T) {
	rects := makeTestRects(9, 30, 6)
	s := defaultTestSettings(model.AlgorithmGenetic)
	s.Generations = 12
	s.MutationRate = 0.5

	var fitness []float64
	n := &GeneticNester{Settings: s, Observer: func(e model.Event) {
		if e.Generation > 0 {
			fitness = append(fitness, e.Fitness)
		}
	}}
	result, err := n.Nest(context.Background(), rects)
	require.NoError(t, err)
	require.NoError(t, Verify(result, len(rects)))

	require.Len(t, fitness, s.Generations)
	for i := 1; i < len(fitness); i++ {
		assert.GreaterOrEqual(t, fitness[i], fitness[i-1], "generation %d", i+1)
	}
	assert.InDelta(t, fitness[len(fitness)-1], result.TotalUtilization(), 1e-12)
}

func TestGeneticOptimizerNeverWorseThanSeed(t *testing.T) {
	rects := makeTestRects(13, 20, 7)
	s := defaultTestSettings(model.AlgorithmGenetic)
	s.Generations = 10

	result, err := (&GeneticNester{Settings: s}).Nest(context.Background(), rects)
	require.NoError(t, err)

	items := sortedItems(rects, s.SortMethod)
	seed := make(genome, len(items))
	for i, it := range items {
		seed[i] = gene{shape: it.index}
	}
	seedEval := makeGeneticRun(s, rects).evaluate(seed)
	assert.GreaterOrEqual(t, result.TotalUtilization(), seedEval.fitness-1e-12)
}

func TestGeneticOptimizerStopsOnPlateau(t *testing.T) {
	s := defaultTestSettings(model.AlgorithmGenetic)
	s.Generations = 10
	s.Patience = 2

	var generations int
	n := &GeneticNester{Settings: s, Observer: func(e model.Event) {
		if e.Generation > 0 {
			generations++
		}
	}}
	result, err := n.Nest(context.Background(), []model.Rectangle{{3, 3}})
	require.NoError(t, err)

	// The first generation sets the best; two flat ones end the run.
	assert.Equal(t, 3, generations)
	assert.Equal(t, 1, result.PlacedCount())
}

func TestGeneticOptimizerDropsShapesTooLarge(t *testing.T) {
	s := defaultTestSettings(model.AlgorithmGenetic)
	run := makeGeneticRun(s, []model.Rectangle{{3, 3}, {20, 20}})

	bins, dropped := run.decode(genome{{shape: 1}, {shape: 0}})
	assert.Equal(t, []int{1}, dropped)
	require.Len(t, bins, 1)
	assert.Equal(t, 0, bins[0].Placements[0].SourceIndex)
}

func TestOrientRepairsOrientationsThatDoNotFit(t *testing.T) {
	s := defaultTestSettings(model.AlgorithmGenetic)
	s.BinHeight = 5
	s.AllowFlip = false
	run := makeGeneticRun(s, []model.Rectangle{{2, 9}})

	o, w, h, ok := run.orient(gene{shape: 0, step: 2})
	require.True(t, ok)
	assert.Equal(t, 90.0, o.Rotation)
	assert.Equal(t, 9.0, w)
	assert.Equal(t, 2.0, h)

	// Flip bits are ignored when flipping is disabled.
	o, _, _, ok = run.orient(gene{shape: 0, step: 1, flipped: true})
	require.True(t, ok)
	assert.False(t, o.Flipped)
}

func TestFirstFitPrefersLowestThenLeftmost(t *testing.T) {
	bin := model.NewBin(10, 10)
	bin.Placements = []model.Placement{{X: 0, Y: 0, Width: 6, Height: 6}}

	x, y, ok := firstFit(bin, 4, 4)
	require.True(t, ok)
	assert.Equal(t, [2]float64{6, 0}, [2]float64{x, y})

	x, y, ok = firstFit(bin, 5, 3)
	require.True(t, ok)
	assert.Equal(t, [2]float64{0, 6}, [2]float64{x, y})

	_, _, ok = firstFit(bin, 5, 5)
	assert.False(t, ok)
}

func TestOrderCrossoverPreservesAllGenes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := genome{{shape: 0}, {shape: 1, step: 1}, {shape: 2}, {shape: 3}, {shape: 4}, {shape: 5}}
	b := genome{{shape: 5, flipped: true}, {shape: 3}, {shape: 1}, {shape: 0, step: 3}, {shape: 4}, {shape: 2}}

	for i := 0; i < 50; i++ {
		child := crossover(rng, a, b, 6)
		require.Len(t, child, 6)
		shapes := make([]int, len(child))
		for j, g := range child {
			shapes[j] = g.shape
		}
		sort.Ints(shapes)
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, shapes)
	}

	assert.Empty(t, crossover(rng, genome{}, genome{}, 0))
}

func TestCrossoverKeepsPrefixOfFirstParent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := genome{{shape: 0, step: 1}, {shape: 1, step: 1}, {shape: 2, step: 1}}
	b := genome{{shape: 2}, {shape: 1}, {shape: 0}}

	for i := 0; i < 20; i++ {
		child := crossover(rng, a, b, 3)
		cut := 0
		for cut < len(child) && child[cut] == a[cut] {
			cut++
		}
		// Everything after the prefix comes from b, in b's order.
		var rest genome
		for _, g := range b {
			taken := false
			for _, p := range child[:cut] {
				if p.shape == g.shape {
					taken = true
				}
			}
			if !taken {
				rest = append(rest, g)
			}
		}
		assert.Equal(t, rest, child[cut:])
	}
}

func TestRouletteSelect(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	seen := make(map[int]bool)
	zero := make([]evaluation, 4)
	for i := 0; i < 200; i++ {
		seen[rouletteSelect(rng, zero)] = true
	}
	assert.Len(t, seen, 4, "zero fitness selects uniformly")

	only := []evaluation{{fitness: 0}, {fitness: 0.7}, {fitness: 0}}
	for i := 0; i < 50; i++ {
		assert.Equal(t, 1, rouletteSelect(rng, only))
	}
}

func TestMutate(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	s := defaultTestSettings(model.AlgorithmGenetic)
	s.RotationSteps = 1
	s.AllowFlip = false
	g := genome{{shape: 0}}
	makeGeneticRun(s, []model.Rectangle{{1, 1}}).mutate(rng, g)
	assert.Equal(t, genome{{shape: 0}}, g, "no mutation is possible")

	s.AllowFlip = true
	makeGeneticRun(s, []model.Rectangle{{1, 1}}).mutate(rng, g)
	assert.True(t, g[0].flipped, "flip is the only possible mutation")

	s = defaultTestSettings(model.AlgorithmGenetic)
	s.RotationSteps = 8
	run := makeGeneticRun(s, makeTestRects(1, 5, 4))
	g = genome{{shape: 0}, {shape: 1}, {shape: 2}, {shape: 3}, {shape: 4}}
	for i := 0; i < 100; i++ {
		run.mutate(rng, g)
	}
	shapes := make([]int, len(g))
	for i, gn := range g {
		shapes[i] = gn.shape
		assert.GreaterOrEqual(t, gn.step, 0)
		assert.Less(t, gn.step, 8)
	}
	sort.Ints(shapes)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, shapes)
}

func TestMutate_SwapOnlyWhenEnabled(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	order := func(g genome) []int {
		out := make([]int, len(g))
		for i, gn := range g {
			out[i] = gn.shape
		}
		return out
	}

	s := defaultTestSettings(model.AlgorithmGenetic)
	s.RotationSteps = 4
	run := makeGeneticRun(s, makeTestRects(1, 5, 4))
	g := genome{{shape: 0}, {shape: 1}, {shape: 2}, {shape: 3}, {shape: 4}}
	for i := 0; i < 200; i++ {
		run.mutate(rng, g)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order(g), "rotation and flip never reorder genes")

	s.RotationSteps = 1
	s.AllowFlip = false
	s.SwapMutation = true
	run = makeGeneticRun(s, makeTestRects(1, 5, 4))
	g = genome{{shape: 0}, {shape: 1}, {shape: 2}, {shape: 3}, {shape: 4}}
	for i := 0; i < 200; i++ {
		run.mutate(rng, g)
	}
	got := order(g)
	sorted := append([]int(nil), got...)
	sort.Ints(sorted)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, sorted)
	assert.NotEqual(t, []int{0, 1, 2, 3, 4}, got, "swaps reorder the genome")
}

func TestRunSeed(t *testing.T) {
	clock := func() time.Time { return time.Unix(0, 1234) }
	assert.Equal(t, int64(42), runSeed(42, clock))
	assert.Equal(t, int64(-7), runSeed(-7, clock))
	assert.Equal(t, int64(1234), runSeed(0, clock), "0 picks the clock")
	assert.Equal(t, int64(1), runSeed(0, func() time.Time { return time.Unix(0, 0) }))
}

func TestEvaluationOrdering(t *testing.T) {
	assert.True(t, evaluation{fitness: 0.8, bins: 3}.better(evaluation{fitness: 0.7, bins: 1}))
	assert.True(t, evaluation{fitness: 0.8, bins: 1}.better(evaluation{fitness: 0.8, bins: 2}))
	assert.False(t, evaluation{fitness: 0.8, bins: 2}.better(evaluation{fitness: 0.8, bins: 2}))
}
