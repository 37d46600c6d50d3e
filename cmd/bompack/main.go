// bompack nests the parts of a bill of materials into fixed-size sheets.
//
// Every BOM row names a part, its DXF drawing and a quantity. The drawings'
// bounding boxes are packed into bins and one DXF per bin is written,
// optionally with a PDF layout report, QR labels, G-code and a JSON report.
//
// Build:
//   go build -o bompack ./cmd/bompack
//
// Usage:
//   bompack [flags] <bom.csv|bom.xlsx> <output.dxf>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"k8s.io/klog/v2"

	"github.com/piwi3910/bompack/internal/engine"
	"github.com/piwi3910/bompack/internal/export"
	"github.com/piwi3910/bompack/internal/gcode"
	"github.com/piwi3910/bompack/internal/importer"
	"github.com/piwi3910/bompack/internal/model"
	"github.com/piwi3910/bompack/internal/project"
)

// errUsage marks command line mistakes; main exits with status 2 for them.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	klog.Flush()

	switch {
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	case err != nil:
		fmt.Fprintln(os.Stderr, "bompack:", err)
		os.Exit(1)
	}
}

// options holds the parsed command line. Nesting flags only override the
// loaded configuration when given explicitly.
type options struct {
	settings   model.Settings
	debug      bool
	configPath string
	pdf        string
	labels     string
	gcode      string
	profiles   string
	report     string
	compare    bool

	bom    string
	output string
	fs     *flag.FlagSet
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	d := model.DefaultSettings()

	fs := flag.NewFlagSet("bompack", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: bompack [flags] <bom.csv|bom.xlsx> <output.dxf>\n\nFlags:\n")
		fs.PrintDefaults()
	}

	fs.Float64Var(&o.settings.BinWidth, "W", d.BinWidth, "Bin width")
	fs.Float64Var(&o.settings.BinHeight, "H", d.BinHeight, "Bin height")
	fs.StringVar((*string)(&o.settings.Algorithm), "algorithm", string(d.Algorithm), "Nesting algorithm: guillotine, skyline, genetic, maxrects")
	fs.BoolVar(&o.settings.AllowFlip, "allow-flip", d.AllowFlip, "Allow mirrored placements")
	fs.IntVar(&o.settings.RotationSteps, "rotation-steps", d.RotationSteps, "Evenly spaced rotations to try")
	fs.StringVar((*string)(&o.settings.SortMethod), "sort-method", string(d.SortMethod), "Sort key: area, height, width, perimeter")
	fs.StringVar((*string)(&o.settings.PlacementStrategy), "placement-strategy", string(d.PlacementStrategy),
		"Placement: bottom_left, best_short_side, best_long_side, best_fit")
	fs.IntVar(&o.settings.LookAhead, "look-ahead", d.LookAhead, "Skyline lookahead depth, 0 disables")
	fs.BoolVar(&o.settings.SkylineSpanning, "skyline-spanning", d.SkylineSpanning, "Let skyline parts rest across several segments")
	fs.IntVar(&o.settings.PopulationSize, "population", d.PopulationSize, "Genetic population size")
	fs.IntVar(&o.settings.Generations, "generations", d.Generations, "Genetic generations")
	fs.Float64Var(&o.settings.MutationRate, "mutation-rate", d.MutationRate, "Genetic mutation rate")
	fs.IntVar(&o.settings.NumWorkers, "workers", d.NumWorkers, "Genetic worker goroutines, 0 uses every CPU")
	fs.BoolVar(&o.settings.SwapMutation, "swap-mutation", d.SwapMutation, "Also mutate genetic genomes by swapping two genes")
	fs.Int64Var(&o.settings.Seed, "seed", d.Seed, "Genetic random seed, 0 picks a time based seed (0 itself cannot be pinned)")
	fs.IntVar(&o.settings.Patience, "patience", d.Patience, "Stop after this many generations without improvement, 0 disables")
	fs.Float64Var(&o.settings.Margin, "margin", d.Margin, "Margin added around every part")
	fs.BoolVar(&o.debug, "debug", false, "Draw placement boundaries and the bin outline in the DXF output")

	fs.StringVar(&o.configPath, "config", project.DefaultConfigPath(), "Configuration file (.json or .yaml)")
	fs.StringVar(&o.pdf, "pdf", "", "Write a PDF layout report")
	fs.StringVar(&o.labels, "labels", "", "Write a PDF sheet of QR part labels")
	fs.StringVar(&o.gcode, "gcode", "", "Write one G-code program per bin")
	fs.StringVar(&o.profiles, "profiles", "", "Custom G-code dialects (.json or .yaml)")
	fs.StringVar(&o.report, "report", "", "Write a job report (.json or .yaml)")
	fs.BoolVar(&o.compare, "compare", false, "Run every algorithm and keep the best result")

	klog.InitFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return nil, fmt.Errorf("%w: expected a BOM file and an output file, got %d arguments", errUsage, fs.NArg())
	}
	o.bom, o.output = fs.Arg(0), fs.Arg(1)
	o.fs = fs
	return o, nil
}

// apply copies the explicitly set flags over cfg.
func (o *options) apply(cfg *model.AppConfig) {
	o.fs.Visit(func(f *flag.Flag) {
		n := &cfg.Nesting
		switch f.Name {
		case "W":
			n.BinWidth = o.settings.BinWidth
		case "H":
			n.BinHeight = o.settings.BinHeight
		case "algorithm":
			n.Algorithm = o.settings.Algorithm
		case "allow-flip":
			n.AllowFlip = o.settings.AllowFlip
		case "rotation-steps":
			n.RotationSteps = o.settings.RotationSteps
		case "sort-method":
			n.SortMethod = o.settings.SortMethod
		case "placement-strategy":
			n.PlacementStrategy = o.settings.PlacementStrategy
		case "look-ahead":
			n.LookAhead = o.settings.LookAhead
		case "skyline-spanning":
			n.SkylineSpanning = o.settings.SkylineSpanning
		case "population":
			n.PopulationSize = o.settings.PopulationSize
		case "generations":
			n.Generations = o.settings.Generations
		case "mutation-rate":
			n.MutationRate = o.settings.MutationRate
		case "workers":
			n.NumWorkers = o.settings.NumWorkers
		case "swap-mutation":
			n.SwapMutation = o.settings.SwapMutation
		case "seed":
			n.Seed = o.settings.Seed
		case "patience":
			n.Patience = o.settings.Patience
		case "margin":
			n.Margin = o.settings.Margin
		case "debug":
			cfg.Debug = o.debug
		}
	})
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	o, err := parseArgs(args, os.Stderr)
	if err != nil {
		return err
	}

	cfg, err := project.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	o.apply(&cfg)
	if err := cfg.Nesting.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	set, err := loadShapes(o.bom, cfg.Nesting.Margin)
	if err != nil {
		return err
	}
	names := set.Names()

	result, settings, err := nest(ctx, cfg.Nesting, set.Rects, o.compare, stdout)
	if err != nil {
		return err
	}

	warnings := set.Warnings
	var files []string
	if len(result.Bins) == 0 {
		klog.Warningf("No part fits a %gx%g bin, skipping output files", cfg.Nesting.BinWidth, cfg.Nesting.BinHeight)
		warnings = append(warnings, "no part fits the bin, no output files written")
	} else {
		written, ow, err := writeOutputs(o, cfg, result, set, names)
		if err != nil {
			return err
		}
		files = written
		warnings = append(warnings, ow...)
	}

	if o.report != "" {
		r := project.NewReport(result, settings)
		r.Files = files
		r.Warnings = warnings
		if err := project.SaveReport(o.report, r); err != nil {
			return err
		}
		klog.Infof("Report %s written for job %s", o.report, r.JobID)
	}

	printSummary(stdout, result, names, files)
	return nil
}

// writeOutputs writes the DXF sheets and every optional output requested.
// result must hold at least one bin.
func writeOutputs(o *options, cfg model.AppConfig, result model.Result, set importer.ShapeSet, names []string) ([]string, []string, error) {
	files, err := export.WriteAll(o.output, result, set.Shapes, export.DXFOptions{Debug: cfg.Debug})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to write DXF: %w", err)
	}

	var warnings []string
	if o.pdf != "" {
		if err := export.ExportPDF(o.pdf, result, names); err != nil {
			return nil, nil, fmt.Errorf("failed to write PDF: %w", err)
		}
		files = append(files, o.pdf)
	}
	if o.labels != "" {
		if err := export.ExportLabels(o.labels, result, names); err != nil {
			return nil, nil, fmt.Errorf("failed to write labels: %w", err)
		}
		files = append(files, o.labels)
	}
	if o.gcode != "" {
		written, gw, err := writeGCode(o.gcode, o.profiles, cfg.CNC, result, set.Shapes, names)
		if err != nil {
			return nil, nil, err
		}
		files = append(files, written...)
		warnings = append(warnings, gw...)
	}
	return files, warnings, nil
}

// loadShapes imports the BOM and the drawing of every part. Row and file
// failures are logged and skipped; only an empty batch is an error.
func loadShapes(path string, margin float64) (importer.ShapeSet, error) {
	bom := importer.ImportBOM(path)
	for _, w := range bom.Warnings {
		klog.Warningf("BOM: %s", w)
	}
	for _, e := range bom.Errors {
		klog.Errorf("BOM: %s", e)
	}
	if len(bom.Parts) == 0 {
		return importer.ShapeSet{}, fmt.Errorf("no usable parts in %s", path)
	}
	klog.Infof("Imported %d parts from %s", len(bom.Parts), path)

	set := importer.ImportShapes(bom.Parts, margin)
	if n := set.Summary.Count(); n > 0 {
		klog.Warningf("%d parts could not be imported", n)
		for _, line := range set.Summary.Lines() {
			klog.Warning(line)
		}
	}
	for _, w := range set.Warnings {
		klog.Warning(w)
	}
	if len(set.Rects) == 0 {
		return set, errors.New("no part drawings could be imported")
	}
	klog.Infof("Nesting %d instances", len(set.Rects))
	return set, nil
}

// nest runs the configured engine, or every engine when compare is set,
// and returns the result with the settings that produced it.
func nest(ctx context.Context, s model.Settings, rects []model.Rectangle, compare bool, stdout io.Writer) (model.Result, model.Settings, error) {
	if !compare {
		opt := engine.New(s)
		opt.Observer = engine.KlogObserver
		result, err := opt.Nest(ctx, rects)
		if err != nil {
			return model.Result{}, s, fmt.Errorf("nesting failed: %w", err)
		}
		return result, s, nil
	}

	results, best, err := engine.CompareScenarios(ctx, engine.BuildDefaultScenarios(s), rects)
	if err != nil {
		return model.Result{}, s, fmt.Errorf("comparison stopped: %w", err)
	}
	printComparison(stdout, results, best)
	if best < 0 || results[best].Err != "" {
		return model.Result{}, s, errors.New("every algorithm failed")
	}
	engine.LogEvents(results[best].Result.Events)
	return results[best].Result, results[best].Scenario.Settings, nil
}

func writeGCode(out, profilesPath string, cnc model.CNCSettings, result model.Result, shapes []model.Shape, names []string) ([]string, []string, error) {
	gen := gcode.New(cnc, shapes, names)
	if profilesPath != "" {
		custom, err := project.LoadProfiles(profilesPath)
		if err != nil {
			return nil, nil, err
		}
		gen.Profile = project.ResolveProfile(cnc.Profile, custom)
	}

	files, err := gen.WriteAll(out, result)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to write G-code: %w", err)
	}
	for i, code := range gen.GenerateAll(result) {
		st := gcode.Summarize(code)
		klog.V(1).Infof("%s: %d moves, cut %.2f, rapid %.2f, about %.1f minutes cutting",
			files[i], st.Moves, st.CutLength, st.RapidLength, st.CutMinutes)
	}

	warnings := gen.FormatCollisionWarnings(result, gen.CheckClearance(result))
	for _, w := range warnings {
		klog.Warning(w)
	}
	return files, warnings, nil
}

func printComparison(w io.Writer, results []engine.ComparisonResult, best int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tBINS\tUTILIZATION\tUNPLACED\t")
	for i, r := range results {
		mark := ""
		if i == best {
			mark = "*"
		}
		if r.Err != "" {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%s\n", r.Scenario.Name, r.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%d\t%s\n", r.Scenario.Name, r.BinsUsed, r.Utilization*100, r.UnplacedCount, mark)
	}
	tw.Flush()
}

func printSummary(w io.Writer, result model.Result, names []string, files []string) {
	fmt.Fprintf(w, "Placed %d of %d instances into %d bins (%.1f%% utilization) with %s\n",
		result.PlacedCount(), result.PlacedCount()+len(result.Unplaced), len(result.Bins),
		result.TotalUtilization()*100, result.Algorithm)
	for _, u := range result.Unplaced {
		name := fmt.Sprintf("#%d", u.Index)
		if u.Index < len(names) {
			name = names[u.Index]
		}
		fmt.Fprintf(w, "  unplaced: %s (%g x %g): %s\n", name, u.Width, u.Height, u.Reason)
	}
	for _, f := range files {
		fmt.Fprintf(w, "  wrote %s\n", f)
	}
}
