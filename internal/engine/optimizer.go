package engine

import (
	"context"
	"fmt"

	"github.com/piwi3910/bompack/internal/model"
)

// Nester packs rectangles into bins. The result references inputs by their
// position in rects.
type Nester interface {
	Nest(ctx context.Context, rects []model.Rectangle) (model.Result, error)
}

// Observer receives engine events as they are produced. It is always called
// from the goroutine driving the run.
type Observer func(model.Event)

// Optimizer validates the configuration and dispatches to the engine
// selected by Settings.Algorithm.
type Optimizer struct {
	Settings model.Settings
	Observer Observer
}

func New(settings model.Settings) *Optimizer {
	return &Optimizer{Settings: settings}
}

// Nester returns the engine variant for the configured algorithm.
func (o *Optimizer) Nester() (Nester, error) {
	switch o.Settings.Algorithm {
	case model.AlgorithmGuillotine:
		return &GuillotineNester{Settings: o.Settings, Observer: o.Observer}, nil
	case model.AlgorithmSkyline:
		return &SkylineNester{Settings: o.Settings, Observer: o.Observer}, nil
	case model.AlgorithmGenetic:
		return &GeneticNester{Settings: o.Settings, Observer: o.Observer}, nil
	case model.AlgorithmMaxRects:
		return &MaxRectsNester{Settings: o.Settings, Observer: o.Observer}, nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownAlgorithm, o.Settings.Algorithm)
	}
}

// Nest packs rects with the configured engine. Invalid settings or
// rectangles are rejected before any packing starts.
func (o *Optimizer) Nest(ctx context.Context, rects []model.Rectangle) (model.Result, error) {
	n, err := o.Nester()
	if err != nil {
		return model.Result{}, err
	}
	return n.Nest(ctx, rects)
}

// prepare validates the inputs shared by every engine and returns the items
// in packing order.
func prepare(settings model.Settings, rects []model.Rectangle) ([]item, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if err := model.ValidateRectangles(rects); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	return sortedItems(rects, settings.SortMethod), nil
}

// runLog collects the events of one run and forwards them to an observer.
type runLog struct {
	events   []model.Event
	observer Observer
}

func (l *runLog) emit(e model.Event) {
	l.events = append(l.events, e)
	if l.observer != nil {
		l.observer(e)
	}
}

func (l *runLog) infof(format string, args ...any) {
	l.emit(model.Event{Level: model.EventInfo, Message: fmt.Sprintf(format, args...)})
}

func (l *runLog) warnf(indices []int, format string, args ...any) {
	l.emit(model.Event{Level: model.EventWarning, Message: fmt.Sprintf(format, args...), Indices: indices})
}

// tooLarge records an item that does not fit an empty bin.
func (l *runLog) tooLarge(it item, settings model.Settings) model.Unplaced {
	reason := fmt.Sprintf("%gx%g does not fit an empty %gx%g bin in any allowed orientation",
		it.rect.Width, it.rect.Height, settings.BinWidth, settings.BinHeight)
	l.warnf([]int{it.index}, "unable to place shape %d even in a new bin: %s", it.index, reason)
	return model.Unplaced{Index: it.index, Width: it.rect.Width, Height: it.rect.Height, Reason: reason}
}

// fitsEmptyBin reports whether some orientation of r fits a bin.
func fitsEmptyBin(r model.Rectangle, settings model.Settings) bool {
	for _, o := range model.Orientations(settings.RotationSteps, settings.AllowFlip) {
		w, h := o.Extents(r)
		if w <= settings.BinWidth+model.Epsilon && h <= settings.BinHeight+model.Epsilon {
			return true
		}
	}
	return false
}

// finish assembles the result of a run.
func finish(algo model.Algorithm, bins []model.Bin, unplaced []model.Unplaced, log *runLog) model.Result {
	if bins == nil {
		bins = []model.Bin{}
	}
	if unplaced == nil {
		unplaced = []model.Unplaced{}
	}
	var placed int
	for _, b := range bins {
		placed += len(b.Placements)
	}
	log.infof("%s: placed %d shapes on %d bins, %d unplaced", algo, placed, len(bins), len(unplaced))
	return model.Result{Algorithm: algo, Bins: bins, Unplaced: unplaced, Events: log.events}
}
