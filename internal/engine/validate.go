package engine

import (
	"errors"
	"fmt"

	"github.com/piwi3910/bompack/internal/model"
)

var (
	ErrOverlap      = errors.New("placements overlap")
	ErrOutOfBin     = errors.New("placement outside its bin")
	ErrEmptyBin     = errors.New("bin without placements")
	ErrConservation = errors.New("input shapes not accounted for exactly once")
)

// Verify checks a result against n input rectangles: placements in a bin
// never overlap, every placement lies inside its bin, no bin is empty and
// every input index is either placed or unplaced exactly once. All
// violations are joined into the returned error.
func Verify(result model.Result, n int) error {
	var errs []error
	seen := make([]int, n)
	mark := func(idx int) {
		if idx < 0 || idx >= n {
			errs = append(errs, fmt.Errorf("%w: index %d out of range", ErrConservation, idx))
			return
		}
		seen[idx]++
	}

	for bi, b := range result.Bins {
		if len(b.Placements) == 0 {
			errs = append(errs, fmt.Errorf("%w: bin %d", ErrEmptyBin, bi))
		}
		for i, p := range b.Placements {
			mark(p.SourceIndex)
			if !b.Contains(p) {
				errs = append(errs, fmt.Errorf("%w: bin %d shape %d at (%g,%g) size %gx%g",
					ErrOutOfBin, bi, p.SourceIndex, p.X, p.Y, p.Width, p.Height))
			}
			for _, q := range b.Placements[i+1:] {
				if p.Overlaps(q) {
					errs = append(errs, fmt.Errorf("%w: bin %d shapes %d and %d",
						ErrOverlap, bi, p.SourceIndex, q.SourceIndex))
				}
			}
		}
	}
	for _, u := range result.Unplaced {
		mark(u.Index)
	}
	for idx, count := range seen {
		if count != 1 {
			errs = append(errs, fmt.Errorf("%w: index %d seen %d times", ErrConservation, idx, count))
		}
	}
	return errors.Join(errs...)
}
