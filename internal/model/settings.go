package model

import (
	"errors"
	"fmt"
)

// Epsilon is the tolerance used for floating-point fit and overlap checks.
const Epsilon = 1e-9

// Algorithm selects the nesting engine.
type Algorithm string

const (
	AlgorithmGuillotine Algorithm = "guillotine" // Free-space list with guillotine splits (fast)
	AlgorithmSkyline    Algorithm = "skyline"    // Skyline profile, optional lookahead
	AlgorithmGenetic    Algorithm = "genetic"    // Evolves order and orientation (slower, often better)
	AlgorithmMaxRects   Algorithm = "maxrects"   // External maximal-rectangles packer
)

// Algorithms lists every supported engine in dispatch order.
var Algorithms = []Algorithm{AlgorithmGuillotine, AlgorithmSkyline, AlgorithmGenetic, AlgorithmMaxRects}

// SortMethod is the key used to order rectangles before packing.
type SortMethod string

const (
	SortArea      SortMethod = "area"
	SortHeight    SortMethod = "height"
	SortWidth     SortMethod = "width"
	SortPerimeter SortMethod = "perimeter"
)

// PlacementStrategy ranks candidate positions.
type PlacementStrategy string

const (
	StrategyBottomLeft    PlacementStrategy = "bottom_left"
	StrategyBestShortSide PlacementStrategy = "best_short_side"
	StrategyBestLongSide  PlacementStrategy = "best_long_side"
	StrategyBestFit       PlacementStrategy = "best_fit"
)

var (
	ErrInvalidBin           = errors.New("bin dimensions must be positive")
	ErrInvalidRectangle     = errors.New("rectangle dimensions must be positive")
	ErrInvalidRotationSteps = errors.New("rotation steps must be at least 1")
	ErrUnknownAlgorithm     = errors.New("unknown algorithm")
	ErrUnknownSortMethod    = errors.New("unknown sort method")
	ErrUnknownStrategy      = errors.New("unknown placement strategy")
	ErrInvalidGenetic       = errors.New("invalid genetic parameters")
)

// Settings is the configuration of one nesting run.
type Settings struct {
	Algorithm         Algorithm         `json:"algorithm" yaml:"algorithm"`
	BinWidth          float64           `json:"bin_width" yaml:"bin_width"`
	BinHeight         float64           `json:"bin_height" yaml:"bin_height"`
	RotationSteps     int               `json:"rotation_steps" yaml:"rotation_steps"` // Evenly spaced rotations in [0,360)
	AllowFlip         bool              `json:"allow_flip" yaml:"allow_flip"`
	SortMethod        SortMethod        `json:"sort_method" yaml:"sort_method"`
	PlacementStrategy PlacementStrategy `json:"placement_strategy" yaml:"placement_strategy"`

	// Skyline
	LookAhead int `json:"look_ahead" yaml:"look_ahead"` // Pending items simulated per candidate, 0 disables
	// SkylineSpanning lets a shape rest across several segments instead of
	// needing a start segment at least as wide as itself.
	SkylineSpanning bool `json:"skyline_spanning" yaml:"skyline_spanning"`

	// Genetic
	PopulationSize int     `json:"population_size" yaml:"population_size"`
	Generations    int     `json:"generations" yaml:"generations"`
	MutationRate   float64 `json:"mutation_rate" yaml:"mutation_rate"`
	NumWorkers     int     `json:"num_workers" yaml:"num_workers"` // 0 = runtime.NumCPU()
	Patience       int     `json:"patience" yaml:"patience"`       // Generations without improvement before stopping, 0 disables
	// SwapMutation adds swapping two genes to the rotation and flip
	// mutations.
	SwapMutation bool `json:"swap_mutation" yaml:"swap_mutation"`

	// Seed fixes the genetic random source. 0 means "pick one from the
	// clock", so a run cannot be pinned to seed 0 itself; the seed actually
	// used is logged and can be passed back to repeat the run.
	Seed int64 `json:"seed" yaml:"seed"`

	// MaxRects
	Scale float64 `json:"scale" yaml:"scale"` // Units to integer grid factor

	// Import
	Margin float64 `json:"margin" yaml:"margin"` // Added around every part boundary
}

func DefaultSettings() Settings {
	return Settings{
		Algorithm:         AlgorithmGuillotine,
		BinWidth:          48,
		BinHeight:         96,
		RotationSteps:     4,
		AllowFlip:         true,
		SortMethod:        SortArea,
		PlacementStrategy: StrategyBottomLeft,
		LookAhead:         0,
		SkylineSpanning:   false,
		PopulationSize:    50,
		Generations:       100,
		MutationRate:      0.1,
		NumWorkers:        0,
		Seed:              0,
		Patience:          0,
		SwapMutation:      false,
		Scale:             100,
		Margin:            0.125,
	}
}

// Validate rejects configurations that cannot be packed.
func (s Settings) Validate() error {
	if !(s.BinWidth > 0) || !(s.BinHeight > 0) {
		return fmt.Errorf("%w: %gx%g", ErrInvalidBin, s.BinWidth, s.BinHeight)
	}
	if s.RotationSteps < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidRotationSteps, s.RotationSteps)
	}
	switch s.Algorithm {
	case AlgorithmGuillotine, AlgorithmSkyline, AlgorithmGenetic, AlgorithmMaxRects:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s.Algorithm)
	}
	switch s.SortMethod {
	case SortArea, SortHeight, SortWidth, SortPerimeter:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSortMethod, s.SortMethod)
	}
	switch s.PlacementStrategy {
	case StrategyBottomLeft, StrategyBestShortSide, StrategyBestLongSide, StrategyBestFit:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, s.PlacementStrategy)
	}
	if s.LookAhead < 0 {
		return fmt.Errorf("%w: look ahead %d", ErrInvalidGenetic, s.LookAhead)
	}
	if s.Algorithm == AlgorithmGenetic {
		if s.PopulationSize < 1 || s.Generations < 0 || s.NumWorkers < 0 || s.Patience < 0 {
			return fmt.Errorf("%w: population %d, generations %d, workers %d, patience %d",
				ErrInvalidGenetic, s.PopulationSize, s.Generations, s.NumWorkers, s.Patience)
		}
		if s.MutationRate < 0 || s.MutationRate > 1 {
			return fmt.Errorf("%w: mutation rate %g", ErrInvalidGenetic, s.MutationRate)
		}
	}
	return nil
}

// ValidateRectangles rejects any rectangle without a positive area.
func ValidateRectangles(rects []Rectangle) error {
	for i, r := range rects {
		if !(r.Width > 0) || !(r.Height > 0) {
			return fmt.Errorf("%w: index %d is %gx%g", ErrInvalidRectangle, i, r.Width, r.Height)
		}
	}
	return nil
}
