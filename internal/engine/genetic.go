package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/piwi3910/bompack/internal/model"
)

// GeneticNester searches the space of placement orders and orientations.
// Each genome is decoded by a first-fit placer and scored by utilization.
type GeneticNester struct {
	Settings model.Settings
	Observer Observer
}

// gene is one shape placement decision in the genome.
type gene struct {
	shape   int  // Source index of the rectangle
	step    int  // Rotation step, rotation = step * 360 / RotationSteps
	flipped bool // Reflected across the diagonal
}

// genome is a candidate solution: an ordering of shapes with orientations.
type genome []gene

func (g genome) clone() genome {
	out := make(genome, len(g))
	copy(out, g)
	return out
}

// evaluation is the decoded score of a genome.
type evaluation struct {
	fitness float64
	bins    int
}

// better reports whether e beats o: higher fitness, then fewer bins.
func (e evaluation) better(o evaluation) bool {
	if e.fitness != o.fitness {
		return e.fitness > o.fitness
	}
	return e.bins < o.bins
}

// geneticRun holds the static inputs shared read-only by all workers.
type geneticRun struct {
	settings     model.Settings
	rects        []model.Rectangle
	orientations []model.Orientation
}

// runSeed returns seed, or a clock derived seed when it is 0. A clock
// reading of 0 is bumped to 1 so the logged seed always repeats the run.
func runSeed(seed int64, now func() time.Time) int64 {
	if seed != 0 {
		return seed
	}
	if s := now().UnixNano(); s != 0 {
		return s
	}
	return 1
}

// Nest evolves the population for the configured number of generations and
// returns the decoding of the best genome seen. Cancelling ctx stops the
// run between generations.
func (n *GeneticNester) Nest(ctx context.Context, rects []model.Rectangle) (model.Result, error) {
	items, err := prepare(n.Settings, rects)
	if err != nil {
		return model.Result{}, err
	}
	log := &runLog{observer: n.Observer}

	seed := runSeed(n.Settings.Seed, time.Now)
	log.infof("genetic: population %d, generations %d, mutation rate %g, seed %d",
		n.Settings.PopulationSize, n.Settings.Generations, n.Settings.MutationRate, seed)
	rng := rand.New(rand.NewSource(seed))

	run := &geneticRun{
		settings:     n.Settings,
		rects:        rects,
		orientations: model.Orientations(n.Settings.RotationSteps, n.Settings.AllowFlip),
	}

	initial := make(genome, len(items))
	for i, it := range items {
		initial[i] = gene{shape: it.index}
	}
	population := make([]genome, n.Settings.PopulationSize)
	for i := range population {
		population[i] = initial.clone()
	}

	generations := max(n.Settings.Generations, 1)
	evals := make([]evaluation, len(population))
	var best genome
	var bestEval evaluation
	stale := 0

	for gen := 0; gen < generations; gen++ {
		err := parallelFor(ctx, n.Settings.NumWorkers, len(population), func(i int) error {
			evals[i] = run.evaluate(population[i])
			return nil
		})
		if err != nil {
			if best == nil {
				return model.Result{}, fmt.Errorf("genetic run stopped before the first generation: %w", err)
			}
			log.warnf(nil, "genetic: stopped after %d generations: %v", gen, err)
			break
		}

		improved := false
		for i, e := range evals {
			if best == nil || e.better(bestEval) {
				best = population[i].clone()
				bestEval = e
				improved = true
			}
		}
		log.emit(model.Event{
			Level:      model.EventInfo,
			Message:    fmt.Sprintf("generation %d: best fitness %.4f on %d bins", gen+1, bestEval.fitness, bestEval.bins),
			Generation: gen + 1,
			Fitness:    bestEval.fitness,
		})

		if improved {
			stale = 0
		} else {
			stale++
		}
		if n.Settings.Patience > 0 && stale >= n.Settings.Patience {
			log.infof("genetic: no improvement for %d generations, stopping after generation %d", stale, gen+1)
			break
		}
		if gen == generations-1 {
			break
		}

		next, err := run.breed(ctx, rng, population, evals, best)
		if err != nil {
			log.warnf(nil, "genetic: stopped after %d generations: %v", gen+1, err)
			break
		}
		population = next
	}

	bins, dropped := run.decode(best)
	var unplaced []model.Unplaced
	for _, idx := range dropped {
		unplaced = append(unplaced, log.tooLarge(item{index: idx, rect: rects[idx]}, n.Settings))
	}
	return finish(model.AlgorithmGenetic, bins, unplaced, log), nil
}

// breed builds the next population. Slot 0 carries the best genome seen so
// far unchanged; every other child is built in parallel from its own rng,
// seeded by the driver so the run stays reproducible.
func (r *geneticRun) breed(ctx context.Context, rng *rand.Rand, population []genome, evals []evaluation, best genome) ([]genome, error) {
	next := make([]genome, len(population))
	next[0] = best.clone()

	seeds := make([]int64, len(population))
	for i := 1; i < len(seeds); i++ {
		seeds[i] = rng.Int63()
	}

	err := parallelFor(ctx, r.settings.NumWorkers, len(population)-1, func(k int) error {
		i := k + 1
		crng := rand.New(rand.NewSource(seeds[i]))
		a := population[rouletteSelect(crng, evals)]
		b := population[rouletteSelect(crng, evals)]
		child := crossover(crng, a, b, len(r.rects))
		if crng.Float64() < r.settings.MutationRate {
			r.mutate(crng, child)
		}
		next[i] = child
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// rouletteSelect picks an index with probability proportional to fitness,
// uniformly when every fitness is zero.
func rouletteSelect(rng *rand.Rand, evals []evaluation) int {
	var total float64
	for _, e := range evals {
		total += e.fitness
	}
	if total <= 0 {
		return rng.Intn(len(evals))
	}
	pick := rng.Float64() * total
	var acc float64
	for i, e := range evals {
		acc += e.fitness
		if pick < acc {
			return i
		}
	}
	return len(evals) - 1
}

// crossover takes the genes of a before a random cut point, then the
// remaining shapes in the order and orientation they have in b.
func crossover(rng *rand.Rand, a, b genome, shapes int) genome {
	if len(a) == 0 {
		return genome{}
	}
	cut := rng.Intn(len(a))
	child := make(genome, 0, len(a))
	used := make([]bool, shapes)
	for _, g := range a[:cut] {
		child = append(child, g)
		used[g.shape] = true
	}
	for _, g := range b {
		if !used[g.shape] {
			child = append(child, g)
			used[g.shape] = true
		}
	}
	return child
}

// mutate applies one random mutation: re-randomize a rotation step or toggle
// a flip bit. SwapMutation also allows swapping two genes.
func (r *geneticRun) mutate(rng *rand.Rand, g genome) {
	if len(g) == 0 {
		return
	}
	type op int
	const (
		opRotate op = iota
		opFlip
		opSwap
	)
	var ops []op
	if r.settings.RotationSteps > 1 {
		ops = append(ops, opRotate)
	}
	if r.settings.AllowFlip {
		ops = append(ops, opFlip)
	}
	if r.settings.SwapMutation && len(g) > 1 {
		ops = append(ops, opSwap)
	}
	if len(ops) == 0 {
		return
	}

	i := rng.Intn(len(g))
	switch ops[rng.Intn(len(ops))] {
	case opRotate:
		g[i].step = rng.Intn(r.settings.RotationSteps)
	case opFlip:
		g[i].flipped = !g[i].flipped
	case opSwap:
		j := rng.Intn(len(g))
		g[i], g[j] = g[j], g[i]
	}
}

// evaluate decodes g and returns its utilization.
func (r *geneticRun) evaluate(g genome) evaluation {
	bins, _ := r.decode(g)
	return evaluation{fitness: utilization(bins), bins: len(bins)}
}

// utilization is the used area over the total bin area, 0 without bins.
func utilization(bins []model.Bin) float64 {
	var used, total float64
	for _, b := range bins {
		used += b.UsedArea()
		total += b.TotalArea()
	}
	if total == 0 {
		return 0
	}
	return used / total
}

// orient returns the orientation for g. When the gene's own orientation
// cannot fit an empty bin, the first allowed orientation that does is used.
func (r *geneticRun) orient(g gene) (model.Orientation, float64, float64, bool) {
	rect := r.rects[g.shape]
	own := model.Orientation{
		Rotation: float64(g.step) * 360 / float64(r.settings.RotationSteps),
		Flipped:  g.flipped && r.settings.AllowFlip,
	}
	for _, o := range append([]model.Orientation{own}, r.orientations...) {
		w, h := o.Extents(rect)
		if w <= r.settings.BinWidth+model.Epsilon && h <= r.settings.BinHeight+model.Epsilon {
			return o, w, h, true
		}
	}
	return model.Orientation{}, 0, 0, false
}

// decode places the genes in order, each into the first bin with a free
// slot, opening a new bin when none has room. It returns the bins and the
// source indices of shapes that fit no empty bin.
func (r *geneticRun) decode(g genome) ([]model.Bin, []int) {
	var bins []model.Bin
	var dropped []int
	for _, gn := range g {
		o, w, h, ok := r.orient(gn)
		if !ok {
			dropped = append(dropped, gn.shape)
			continue
		}
		p := model.Placement{Width: w, Height: h, Rotation: o.Rotation, Flipped: o.Flipped, SourceIndex: gn.shape}

		placed := false
		for bi := range bins {
			if x, y, ok := firstFit(bins[bi], w, h); ok {
				p.X, p.Y = x, y
				bins[bi].Placements = append(bins[bi].Placements, p)
				placed = true
				break
			}
		}
		if !placed {
			b := model.NewBin(r.settings.BinWidth, r.settings.BinHeight)
			b.Placements = append(b.Placements, p)
			bins = append(bins, b)
		}
	}
	return bins, dropped
}

// firstFit returns the lowest, then leftmost, corner position where a w x h
// box fits in bin without overlapping existing placements. Candidates are
// the bin origin and the corners formed by placed items.
func firstFit(bin model.Bin, w, h float64) (float64, float64, bool) {
	type point struct{ x, y float64 }
	points := []point{{0, 0}}
	for _, p := range bin.Placements {
		points = append(points,
			point{p.Right(), p.Y}, point{p.X, p.Top()},
			point{p.Right(), 0}, point{0, p.Top()})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].y != points[j].y {
			return points[i].y < points[j].y
		}
		return points[i].x < points[j].x
	})

	for _, pt := range points {
		cand := model.Placement{X: pt.x, Y: pt.y, Width: w, Height: h}
		if !bin.Contains(cand) {
			continue
		}
		free := true
		for _, p := range bin.Placements {
			if cand.Overlaps(p) {
				free = false
				break
			}
		}
		if free {
			return pt.x, pt.y, true
		}
	}
	return 0, 0, false
}
