package importer

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/jbeda/geom"
	"github.com/yofu/dxf"
	"github.com/yofu/dxf/entity"

	"github.com/piwi3910/bompack/internal/model"
)

var (
	ErrFileNotFound    = errors.New("drawing not found")
	ErrDXFStructure    = errors.New("malformed DXF drawing")
	ErrNoValidEntities = errors.New("drawing has no supported entities")
	ErrDegenerateShape = errors.New("drawing has an empty footprint")

	errTooFewVertices = errors.New("polyline with fewer than 2 vertices")
	errBadRadius      = errors.New("circle or arc with a non-positive radius")
)

const (
	bulgeSegments    = 32
	defaultLayerName = "0"
)

// ExtractSummary counts the entities found in one drawing.
type ExtractSummary struct {
	Supported   map[string]int `json:"supported"`
	Unsupported map[string]int `json:"unsupported"`
	Total       int            `json:"total_entities"`
	Errors      []string       `json:"errors,omitempty"`
}

// ExtractShape reads the LINE, CIRCLE, ARC and LWPOLYLINE entities of a
// DXF drawing. The geometry is shifted so its bounding box starts at
// (margin, margin); the footprint is the bounding box grown by margin on
// every side. Entities that cannot be converted are listed in the summary
// and skipped.
func ExtractShape(path string, margin float64) (model.Shape, ExtractSummary, error) {
	summary := ExtractSummary{Supported: map[string]int{}, Unsupported: map[string]int{}}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.Shape{}, summary, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return model.Shape{}, summary, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	drawing, err := dxf.Open(path)
	if err != nil {
		return model.Shape{}, summary, fmt.Errorf("%w: %s: %v", ErrDXFStructure, path, err)
	}

	ents := drawing.Entities()
	summary.Total = len(ents)

	var entities []model.Entity
	for _, ent := range ents {
		kind := entityTypeName(ent)
		e, supported, err := convertEntity(ent)
		switch {
		case !supported:
			summary.Unsupported[kind]++
		case err != nil:
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", kind, err))
		default:
			summary.Supported[kind]++
			entities = append(entities, e)
		}
	}

	shape := model.Shape{SourcePath: path, Entities: entities}
	bounds, ok := shape.Bounds()
	if !ok {
		return model.Shape{}, summary, fmt.Errorf("%w: %s", ErrNoValidEntities, path)
	}

	shape = shape.Translate(geom.Coord{X: margin - bounds.Min.X, Y: margin - bounds.Min.Y})
	shape.Footprint = model.Rectangle{
		Width:  bounds.Max.X - bounds.Min.X + 2*margin,
		Height: bounds.Max.Y - bounds.Min.Y + 2*margin,
	}
	if shape.Footprint.Width <= 0 || shape.Footprint.Height <= 0 {
		return model.Shape{}, summary, fmt.Errorf("%w: %s is %gx%g", ErrDegenerateShape,
			path, shape.Footprint.Width, shape.Footprint.Height)
	}
	return shape, summary, nil
}

// entityTypeName returns the DXF type name of an entity, e.g. "SPLINE".
func entityTypeName(ent entity.Entity) string {
	name := fmt.Sprintf("%T", ent)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToUpper(name)
}

func layerName(ent entity.Entity) string {
	if l := ent.Layer(); l != nil && l.Name() != "" {
		return l.Name()
	}
	return defaultLayerName
}

// convertEntity turns a supported DXF entity into a model entity.
func convertEntity(ent entity.Entity) (model.Entity, bool, error) {
	switch e := ent.(type) {
	case *entity.Line:
		return model.Entity{
			Kind:  model.EntityLine,
			Layer: layerName(ent),
			Points: []geom.Coord{
				{X: e.Start[0], Y: e.Start[1]},
				{X: e.End[0], Y: e.End[1]},
			},
		}, true, nil

	case *entity.Circle:
		if e.Radius <= 0 {
			return model.Entity{}, true, errBadRadius
		}
		return model.Entity{
			Kind:   model.EntityCircle,
			Layer:  layerName(ent),
			Center: geom.Coord{X: e.Center[0], Y: e.Center[1]},
			Radius: e.Radius,
		}, true, nil

	case *entity.Arc:
		if e.Circle == nil || e.Circle.Radius <= 0 {
			return model.Entity{}, true, errBadRadius
		}
		return model.Entity{
			Kind:       model.EntityArc,
			Layer:      layerName(ent),
			Center:     geom.Coord{X: e.Circle.Center[0], Y: e.Circle.Center[1]},
			Radius:     e.Circle.Radius,
			StartAngle: e.Angle[0],
			EndAngle:   e.Angle[1],
		}, true, nil

	case *entity.LwPolyline:
		if len(e.Vertices) < 2 {
			return model.Entity{}, true, errTooFewVertices
		}
		return model.Entity{
			Kind:   model.EntityPolyline,
			Layer:  layerName(ent),
			Points: lwPolylinePoints(e),
			Closed: e.Closed,
		}, true, nil
	}
	return model.Entity{}, false, nil
}

// lwPolylinePoints returns the vertices of a polyline. Bulged segments are
// interpolated into arc points.
func lwPolylinePoints(lw *entity.LwPolyline) []geom.Coord {
	n := len(lw.Vertices)
	var pts []geom.Coord
	for i := 0; i < n; i++ {
		v := lw.Vertices[i]
		current := geom.Coord{X: v[0], Y: v[1]}

		bulge := 0.0
		if i < len(lw.Bulges) {
			bulge = lw.Bulges[i]
		}
		last := i == n-1
		if math.Abs(bulge) <= 1e-9 || (last && !lw.Closed) {
			pts = append(pts, current)
			continue
		}

		nv := lw.Vertices[(i+1)%n]
		arc := bulgeArcPoints(current, geom.Coord{X: nv[0], Y: nv[1]}, bulge, bulgeSegments)
		// The next vertex is added by its own iteration.
		pts = append(pts, arc[:len(arc)-1]...)
	}
	return pts
}

// bulgeArcPoints generates points along an arc defined by two endpoints and a
// DXF bulge factor. The bulge is the tangent of 1/4 the included angle,
// positive for counter-clockwise arcs.
func bulgeArcPoints(p1, p2 geom.Coord, bulge float64, numSegments int) []geom.Coord {
	mid := geom.Coord{X: (p1.X + p2.X) / 2, Y: (p1.Y + p2.Y) / 2}
	dx, dy := p2.X-p1.X, p2.Y-p1.Y
	chord := math.Hypot(dx, dy)
	if chord < 1e-9 {
		return []geom.Coord{p1, p2}
	}

	sagitta := math.Abs(bulge) * chord / 2
	radius := (chord*chord/(4*sagitta) + sagitta) / 2

	// The center lies on the chord normal, left of p1->p2 for
	// counter-clockwise arcs up to a half turn.
	perp := geom.Coord{X: -dy / chord, Y: dx / chord}
	dist := radius - sagitta
	if bulge < 0 {
		perp = geom.Coord{X: -perp.X, Y: -perp.Y}
	}
	center := geom.Coord{X: mid.X + perp.X*dist, Y: mid.Y + perp.Y*dist}

	start := math.Atan2(p1.Y-center.Y, p1.X-center.X)
	end := math.Atan2(p2.Y-center.Y, p2.X-center.X)
	if bulge < 0 {
		if end > start {
			end -= 2 * math.Pi
		}
	} else if end < start {
		end += 2 * math.Pi
	}

	pts := make([]geom.Coord, 0, numSegments+1)
	for i := 0; i <= numSegments; i++ {
		a := start + float64(i)/float64(numSegments)*(end-start)
		pts = append(pts, geom.Coord{X: center.X + radius*math.Cos(a), Y: center.Y + radius*math.Sin(a)})
	}
	// Pin the endpoints to the exact vertices.
	pts[0], pts[numSegments] = p1, p2
	return pts
}

// ErrorSummary groups per-part import failures by cause.
type ErrorSummary struct {
	FileNotFound     []string `json:"file_not_found"`
	DXFStructure     []string `json:"dxf_structure_error"`
	NoValidEntities  []string `json:"no_valid_entities"`
	ProcessingErrors []string `json:"processing_errors"`
}

// Count returns the total number of recorded failures.
func (s ErrorSummary) Count() int {
	return len(s.FileNotFound) + len(s.DXFStructure) + len(s.NoValidEntities) + len(s.ProcessingErrors)
}

// Lines renders the summary as "category: entry" lines, categories in a
// fixed order.
func (s ErrorSummary) Lines() []string {
	var out []string
	for _, c := range []struct {
		name    string
		entries []string
	}{
		{"file_not_found", s.FileNotFound},
		{"dxf_structure_error", s.DXFStructure},
		{"no_valid_entities", s.NoValidEntities},
		{"processing_errors", s.ProcessingErrors},
	} {
		for _, e := range c.entries {
			out = append(out, c.name+": "+e)
		}
	}
	return out
}

// ShapeSet is the packing input built from a BOM: one shape and one
// footprint rectangle per part instance, in BOM order.
type ShapeSet struct {
	Shapes   []model.Shape
	Rects    []model.Rectangle
	Summary  ErrorSummary
	Warnings []string
}

// Names returns the part name of every instance.
func (s ShapeSet) Names() []string {
	names := make([]string, len(s.Shapes))
	for i, sh := range s.Shapes {
		names[i] = sh.Name
	}
	return names
}

// ImportShapes extracts the drawing of every part and expands quantities
// into instances. A part whose drawing cannot be used is recorded in the
// summary and left out; the rest of the batch continues.
func ImportShapes(parts []model.Part, margin float64) ShapeSet {
	var set ShapeSet
	for _, part := range parts {
		ref := fmt.Sprintf("%s (%s)", part.Name, part.FilePath)
		shape, summary, err := ExtractShape(part.FilePath, margin)
		if err != nil {
			switch {
			case errors.Is(err, ErrFileNotFound):
				set.Summary.FileNotFound = append(set.Summary.FileNotFound, ref)
			case errors.Is(err, ErrDXFStructure):
				set.Summary.DXFStructure = append(set.Summary.DXFStructure, ref)
			case errors.Is(err, ErrNoValidEntities), errors.Is(err, ErrDegenerateShape):
				set.Summary.NoValidEntities = append(set.Summary.NoValidEntities, ref)
			default:
				set.Summary.ProcessingErrors = append(set.Summary.ProcessingErrors, fmt.Sprintf("%s: %v", ref, err))
			}
			continue
		}
		if len(summary.Unsupported) > 0 {
			set.Warnings = append(set.Warnings, fmt.Sprintf("%s: skipped unsupported entities %s",
				ref, formatCounts(summary.Unsupported)))
		}
		for _, e := range summary.Errors {
			set.Summary.ProcessingErrors = append(set.Summary.ProcessingErrors, fmt.Sprintf("%s: %s", ref, e))
		}

		shape.Name = part.Name
		for i := 0; i < part.Quantity; i++ {
			set.Shapes = append(set.Shapes, shape)
			set.Rects = append(set.Rects, shape.Footprint)
		}
	}
	return set
}

// formatCounts renders entity counts as "ARC x2, SPLINE x1", sorted by type.
func formatCounts(counts map[string]int) string {
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s x%d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}
