package gcode

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/jbeda/geom"

	"github.com/piwi3910/bompack/internal/model"
)

var (
	ErrInvalidPassDepth = errors.New("pass depth must be positive")
	ErrInvalidCutDepth  = errors.New("cut depth must be positive")
	ErrNothingToCut     = errors.New("no bins to generate G-code for")
)

// Generator produces G-code that profiles every placement of a bin.
type Generator struct {
	Settings model.CNCSettings
	// Shapes is indexed by placement source index. A shape with a closed
	// polyline is cut along its largest contour, anything else along the
	// placement rectangle.
	Shapes []model.Shape
	// Names labels the part comments; missing entries fall back to "#i".
	Names []string

	Profile model.GCodeProfile // Dialect, resolved from Settings.Profile by New
}

func New(settings model.CNCSettings, shapes []model.Shape, names []string) *Generator {
	return &Generator{
		Settings: settings,
		Shapes:   shapes,
		Names:    names,
		Profile:  model.GetProfile(settings.Profile),
	}
}

// Validate checks the settings that drive the pass schedule.
func (g *Generator) Validate() error {
	if g.Settings.CutDepth <= 0 {
		return ErrInvalidCutDepth
	}
	if g.Settings.PassDepth <= 0 {
		return ErrInvalidPassDepth
	}
	return nil
}

// GenerateBin produces G-code for a single bin's placements.
func (g *Generator) GenerateBin(bin model.Bin, binIndex int) string {
	var b strings.Builder

	g.writeHeader(&b, bin, binIndex)
	for i, p := range bin.Placements {
		g.writePart(&b, p, i+1)
	}
	g.writeFooter(&b)
	return b.String()
}

// GenerateAll produces one G-code program per bin.
func (g *Generator) GenerateAll(result model.Result) []string {
	codes := make([]string, 0, len(result.Bins))
	for i, bin := range result.Bins {
		codes = append(codes, g.GenerateBin(bin, i+1))
	}
	return codes
}

// WriteAll writes one program per bin to "{base}-{i}{ext}", ext defaulting
// to ".nc", and returns the file names.
func (g *Generator) WriteAll(out string, result model.Result) ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if len(result.Bins) == 0 {
		return nil, ErrNothingToCut
	}

	ext := filepath.Ext(out)
	base := strings.TrimSuffix(out, ext)
	if ext == "" {
		ext = ".nc"
	}

	files := make([]string, 0, len(result.Bins))
	for i, code := range g.GenerateAll(result) {
		name := fmt.Sprintf("%s-%d%s", base, i+1, ext)
		if err := os.WriteFile(name, []byte(code), 0644); err != nil {
			return files, fmt.Errorf("failed to write G-code %s: %w", name, err)
		}
		files = append(files, name)
	}
	return files, nil
}

func (g *Generator) writeHeader(b *strings.Builder, bin model.Bin, idx int) {
	p := g.Profile

	b.WriteString(g.comment(fmt.Sprintf("bompack G-code, bin %d", idx)))
	b.WriteString(g.comment(fmt.Sprintf("Bin: %g x %g %s", bin.Width, bin.Height, p.Units)))
	b.WriteString(g.comment(fmt.Sprintf("Parts: %d, Utilization: %.1f%%", len(bin.Placements), bin.Utilization()*100)))
	b.WriteString(g.comment(fmt.Sprintf("Tool: %g, Feed: %g, Plunge: %g",
		g.Settings.ToolDiameter, g.Settings.FeedRate, g.Settings.PlungeRate)))
	b.WriteString(g.comment(fmt.Sprintf("Depth: %g in %g passes", g.Settings.CutDepth, g.Settings.PassDepth)))
	b.WriteString(g.comment(fmt.Sprintf("Profile: %s", p.Name)))
	b.WriteString("\n")

	for _, code := range p.StartCode {
		b.WriteString(code + "\n")
	}
	if p.SpindleStart != "" {
		b.WriteString(fmt.Sprintf(p.SpindleStart+"\n", g.Settings.SpindleSpeed))
	}

	b.WriteString(fmt.Sprintf("%s Z%s\n", p.RapidMove, g.format(g.Settings.SafeZ)))
	b.WriteString(fmt.Sprintf("%s X%s Y%s\n", p.RapidMove, g.format(0), g.format(0)))
	b.WriteString("\n")
}

func (g *Generator) writeFooter(b *strings.Builder) {
	b.WriteString("\n")
	b.WriteString(g.comment("=== Job complete ==="))
	b.WriteString(fmt.Sprintf("%s Z%s\n", g.Profile.RapidMove, g.format(g.Settings.SafeZ)))
	for _, code := range g.Profile.EndCode {
		b.WriteString(code + "\n")
	}
}

// depths returns the cut depth of every pass, the last one clamped to
// the total depth.
func (g *Generator) depths() []float64 {
	if g.Settings.PassDepth <= 0 || g.Settings.CutDepth <= 0 {
		return nil
	}
	n := int(math.Ceil(g.Settings.CutDepth/g.Settings.PassDepth - model.Epsilon))
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Min(float64(i+1)*g.Settings.PassDepth, g.Settings.CutDepth)
	}
	return out
}

func (g *Generator) writePart(b *strings.Builder, p model.Placement, partNum int) {
	path, outline := g.toolpath(p)

	kind := "rectangle"
	if outline {
		kind = "outline"
	}
	b.WriteString(g.comment(fmt.Sprintf("--- Part %d: %s (%g x %g, %s)%s ---",
		partNum, g.name(p.SourceIndex), p.Width, p.Height, kind, orientationStr(p))))

	depths := g.depths()
	for pass, depth := range depths {
		b.WriteString(g.comment(fmt.Sprintf("Pass %d/%d, depth=%s", pass+1, len(depths), g.format(depth))))

		b.WriteString(fmt.Sprintf("%s X%s Y%s\n", g.Profile.RapidMove, g.format(path[0].X), g.format(path[0].Y)))
		b.WriteString(fmt.Sprintf("%s Z%s F%s\n", g.Profile.FeedMove, g.format(-depth), g.format(g.Settings.PlungeRate)))

		for i := 1; i < len(path); i++ {
			b.WriteString(fmt.Sprintf("%s X%s Y%s F%s\n", g.Profile.FeedMove,
				g.format(path[i].X), g.format(path[i].Y), g.format(g.Settings.FeedRate)))
		}
		b.WriteString(fmt.Sprintf("%s X%s Y%s F%s\n", g.Profile.FeedMove,
			g.format(path[0].X), g.format(path[0].Y), g.format(g.Settings.FeedRate)))

		b.WriteString(fmt.Sprintf("%s Z%s\n", g.Profile.RapidMove, g.format(g.Settings.SafeZ)))
	}
	b.WriteString("\n")
}

// toolpath returns the closed tool center path for p in bin coordinates,
// offset outward by the tool radius. outline reports whether it follows
// the part contour rather than the placement rectangle.
func (g *Generator) toolpath(p model.Placement) (path []geom.Coord, outline bool) {
	toolR := g.Settings.ToolDiameter / 2

	if contour, footprint, ok := g.contour(p.SourceIndex); ok {
		placed := make([]geom.Coord, len(contour))
		for i, c := range contour {
			placed[i] = p.TransformPoint(c, footprint)
		}
		// Left of travel is outward on a clockwise loop.
		if signedArea(placed) > 0 {
			for i, j := 0, len(placed)-1; i < j; i, j = i+1, j-1 {
				placed[i], placed[j] = placed[j], placed[i]
			}
		}
		return offsetOutline(placed, toolR), true
	}

	x0, y0 := p.X-toolR, p.Y-toolR
	x1, y1 := p.Right()+toolR, p.Top()+toolR
	return []geom.Coord{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}, false
}

// contour returns the largest closed polyline of the shape, if any.
func (g *Generator) contour(idx int) ([]geom.Coord, model.Rectangle, bool) {
	if idx < 0 || idx >= len(g.Shapes) {
		return nil, model.Rectangle{}, false
	}
	shape := g.Shapes[idx]

	var best []geom.Coord
	bestArea := 0.0
	for _, e := range shape.Entities {
		if e.Kind != model.EntityPolyline || !e.Closed || len(e.Points) < 3 {
			continue
		}
		if a := math.Abs(signedArea(e.Points)); a > bestArea {
			best, bestArea = e.Points, a
		}
	}
	return best, shape.Footprint, best != nil
}

// offsetOutline shifts every vertex along the average of the left normals
// of its two adjacent edges.
func offsetOutline(outline []geom.Coord, dist float64) []geom.Coord {
	n := len(outline)
	result := make([]geom.Coord, n)
	for i := 0; i < n; i++ {
		prev := outline[(i-1+n)%n]
		curr := outline[i]
		next := outline[(i+1)%n]

		e1 := curr.Minus(prev)
		e2 := next.Minus(curr)
		n1x, n1y := normalize(-e1.Y, e1.X)
		n2x, n2y := normalize(-e2.Y, e2.X)
		nx, ny := normalize((n1x+n2x)/2, (n1y+n2y)/2)

		result[i] = geom.Coord{X: curr.X + nx*dist, Y: curr.Y + ny*dist}
	}
	return result
}

// signedArea is positive for counter-clockwise loops.
func signedArea(pts []geom.Coord) float64 {
	var a float64
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return a / 2
}

// comment wraps text in the profile's comment syntax.
func (g *Generator) comment(text string) string {
	return g.Profile.CommentPrefix + " " + text + g.Profile.CommentSuffix + "\n"
}

// format formats a coordinate according to the profile's decimal places.
func (g *Generator) format(v float64) string {
	return fmt.Sprintf("%.*f", g.Profile.DecimalPlaces, v)
}

func (g *Generator) name(idx int) string {
	if idx >= 0 && idx < len(g.Names) && g.Names[idx] != "" {
		return g.Names[idx]
	}
	return fmt.Sprintf("#%d", idx)
}

func orientationStr(p model.Placement) string {
	s := ""
	if p.Rotation != 0 {
		s += fmt.Sprintf(" [rotated %g]", p.Rotation)
	}
	if p.Flipped {
		s += " [flipped]"
	}
	return s
}

// normalize returns a unit vector in the given direction.
func normalize(x, y float64) (float64, float64) {
	length := math.Sqrt(x*x + y*y)
	if length < 1e-9 {
		return 0, 0
	}
	return x / length, y / length
}
