package engine

import (
	"context"
	"fmt"

	"github.com/piwi3910/bompack/internal/model"
)

// ComparisonScenario defines a named set of settings to compare.
type ComparisonScenario struct {
	Name     string         `json:"name"`
	Settings model.Settings `json:"settings"`
}

// ComparisonResult holds the nesting result and computed statistics
// for a single scenario.
type ComparisonResult struct {
	Scenario      ComparisonScenario `json:"scenario"`
	Result        model.Result       `json:"result"`
	BinsUsed      int                `json:"bins_used"`
	Utilization   float64            `json:"utilization"`
	UnplacedCount int                `json:"unplaced_count"`
	Err           string             `json:"error,omitempty"`
}

// better reports whether c beats o: fewer unplaced, fewer bins, then
// higher utilization. Failed runs never win.
func (c ComparisonResult) better(o ComparisonResult) bool {
	if (c.Err == "") != (o.Err == "") {
		return c.Err == ""
	}
	if c.UnplacedCount != o.UnplacedCount {
		return c.UnplacedCount < o.UnplacedCount
	}
	if c.BinsUsed != o.BinsUsed {
		return c.BinsUsed < o.BinsUsed
	}
	return c.Utilization > o.Utilization
}

// CompareScenarios runs every scenario over the same rectangles and returns
// the results in scenario order together with the index of the best one.
// A scenario that fails is reported with its error rather than aborting the
// comparison; only context cancellation stops it.
func CompareScenarios(ctx context.Context, scenarios []ComparisonScenario, rects []model.Rectangle) ([]ComparisonResult, int, error) {
	results := make([]ComparisonResult, 0, len(scenarios))
	best := -1

	for _, scenario := range scenarios {
		if err := ctx.Err(); err != nil {
			return results, best, err
		}
		cr := ComparisonResult{Scenario: scenario}
		result, err := New(scenario.Settings).Nest(ctx, rects)
		if err != nil {
			cr.Err = err.Error()
		} else {
			cr.Result = result
			cr.BinsUsed = len(result.Bins)
			cr.Utilization = result.TotalUtilization()
			cr.UnplacedCount = len(result.Unplaced)
		}
		results = append(results, cr)
		if best < 0 || cr.better(results[best]) {
			best = len(results) - 1
		}
	}

	return results, best, nil
}

// BuildDefaultScenarios generates one scenario per algorithm from the base
// settings, plus a lookahead variant of the skyline packer.
func BuildDefaultScenarios(base model.Settings) []ComparisonScenario {
	scenarios := make([]ComparisonScenario, 0, len(model.Algorithms)+1)
	for _, algo := range model.Algorithms {
		s := base
		s.Algorithm = algo
		scenarios = append(scenarios, ComparisonScenario{
			Name:     string(algo),
			Settings: s,
		})
	}

	if base.LookAhead == 0 {
		la := base
		la.Algorithm = model.AlgorithmSkyline
		la.LookAhead = 2
		scenarios = append(scenarios, ComparisonScenario{
			Name:     fmt.Sprintf("skyline (look ahead %d)", la.LookAhead),
			Settings: la,
		})
	}

	return scenarios
}
