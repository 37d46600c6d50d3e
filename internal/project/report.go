package project

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/piwi3910/bompack/internal/model"
)

const reportVersion = "1.0.0"

// BinSummary is the per-bin line of a report.
type BinSummary struct {
	Index       int     `json:"index" yaml:"index"`
	Width       float64 `json:"width" yaml:"width"`
	Height      float64 `json:"height" yaml:"height"`
	Placements  int     `json:"placements" yaml:"placements"`
	Utilization float64 `json:"utilization" yaml:"utilization"`
}

// Report is the machine-readable summary of one nesting job.
type Report struct {
	JobID            string           `json:"job_id" yaml:"job_id"`
	Version          string           `json:"version" yaml:"version"`
	CreatedAt        string           `json:"created_at" yaml:"created_at"`
	Algorithm        model.Algorithm  `json:"algorithm" yaml:"algorithm"`
	Settings         model.Settings   `json:"settings" yaml:"settings"`
	BinCount         int              `json:"bin_count" yaml:"bin_count"`
	MinBins          int              `json:"min_bins" yaml:"min_bins"` // Area lower bound over every input rectangle
	PlacedCount      int              `json:"placed_count" yaml:"placed_count"`
	TotalUtilization float64          `json:"total_utilization" yaml:"total_utilization"`
	Bins             []BinSummary     `json:"bins" yaml:"bins"`
	Unplaced         []model.Unplaced `json:"unplaced" yaml:"unplaced"`
	Files            []string         `json:"files,omitempty" yaml:"files,omitempty"`
	Warnings         []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewReport summarizes result under a fresh job id.
func NewReport(result model.Result, settings model.Settings) Report {
	r := Report{
		JobID:            uuid.New().String(),
		Version:          reportVersion,
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
		Algorithm:        result.Algorithm,
		Settings:         settings,
		BinCount:         len(result.Bins),
		PlacedCount:      result.PlacedCount(),
		TotalUtilization: result.TotalUtilization(),
		Bins:             make([]BinSummary, 0, len(result.Bins)),
		Unplaced:         result.Unplaced,
	}
	if r.Unplaced == nil {
		r.Unplaced = []model.Unplaced{}
	}

	rects := make([]model.Rectangle, 0, r.PlacedCount+len(r.Unplaced))
	for _, b := range result.Bins {
		for _, p := range b.Placements {
			rects = append(rects, model.Rectangle{Width: p.Width, Height: p.Height})
		}
	}
	for _, u := range r.Unplaced {
		rects = append(rects, model.Rectangle{Width: u.Width, Height: u.Height})
	}
	r.MinBins = model.EstimateSheets(rects, settings.BinWidth, settings.BinHeight, 0).SheetsNeededMin

	for i, b := range result.Bins {
		r.Bins = append(r.Bins, BinSummary{
			Index:       i + 1,
			Width:       b.Width,
			Height:      b.Height,
			Placements:  len(b.Placements),
			Utilization: b.Utilization(),
		})
	}
	return r
}

// SaveReport writes r as JSON, or YAML for .yaml and .yml paths.
func SaveReport(path string, r Report) error {
	return writeFile(path, r)
}

// LoadReport reads a report written by SaveReport.
func LoadReport(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if err := decode(path, data, &r); err != nil {
		return Report{}, err
	}
	if r.Version == "" || r.JobID == "" {
		return Report{}, errors.New("invalid report: missing version or job id")
	}
	return r, nil
}
