package model

import (
	"math"

	"github.com/jbeda/geom"
)

// EntityKind identifies the drawing primitive an Entity holds.
type EntityKind string

const (
	EntityLine     EntityKind = "line"
	EntityCircle   EntityKind = "circle"
	EntityArc      EntityKind = "arc"
	EntityPolyline EntityKind = "polyline"
)

// Entity is one drawing primitive of a part, in part-local coordinates.
// Lines use Points[0..1]; polylines use Points and Closed; circles and
// arcs use Center and Radius, arcs sweep counter-clockwise from
// StartAngle to EndAngle (degrees).
type Entity struct {
	Kind       EntityKind   `json:"kind"`
	Layer      string       `json:"layer,omitempty"`
	Points     []geom.Coord `json:"points,omitempty"`
	Closed     bool         `json:"closed,omitempty"`
	Center     geom.Coord   `json:"center"`
	Radius     float64      `json:"radius,omitempty"`
	StartAngle float64      `json:"start_angle,omitempty"`
	EndAngle   float64      `json:"end_angle,omitempty"`
}

// Shape is the geometry of one part drawing together with its footprint.
type Shape struct {
	Name       string    `json:"name"`
	SourcePath string    `json:"source_path"`
	Entities   []Entity  `json:"entities"`
	Footprint  Rectangle `json:"footprint"` // Bounding box plus margin on every side
}

// Bounds returns the bounding box of all entities. ok is false when the
// shape has no geometry.
func (s Shape) Bounds() (r geom.Rect, ok bool) {
	for _, e := range s.Entities {
		for _, c := range e.extremePoints() {
			if !ok {
				r = geom.Rect{Min: c, Max: c}
				ok = true
				continue
			}
			r.ExpandToContainCoord(c)
		}
	}
	return r, ok
}

// Translate returns a copy of the shape with all geometry shifted by d.
func (s Shape) Translate(d geom.Coord) Shape {
	out := s
	out.Entities = make([]Entity, len(s.Entities))
	for i, e := range s.Entities {
		ne := e
		ne.Center = e.Center.Plus(d)
		if e.Points != nil {
			ne.Points = make([]geom.Coord, len(e.Points))
			for j, p := range e.Points {
				ne.Points[j] = p.Plus(d)
			}
		}
		out.Entities[i] = ne
	}
	return out
}

// extremePoints returns the points that bound the entity: vertices for
// lines and polylines, endpoints plus crossed axis extremes for arcs.
func (e Entity) extremePoints() []geom.Coord {
	switch e.Kind {
	case EntityCircle:
		return []geom.Coord{
			{X: e.Center.X - e.Radius, Y: e.Center.Y - e.Radius},
			{X: e.Center.X + e.Radius, Y: e.Center.Y + e.Radius},
		}
	case EntityArc:
		pts := []geom.Coord{
			pointOnCircle(e.Center, e.Radius, e.StartAngle),
			pointOnCircle(e.Center, e.Radius, e.EndAngle),
		}
		sweep := normalizeAngle(e.EndAngle - e.StartAngle)
		if sweep == 0 {
			sweep = 360
		}
		for q := 0.0; q < 360; q += 90 {
			if normalizeAngle(q-e.StartAngle) <= sweep {
				pts = append(pts, pointOnCircle(e.Center, e.Radius, q))
			}
		}
		return pts
	default:
		return e.Points
	}
}

func pointOnCircle(c geom.Coord, r, deg float64) geom.Coord {
	rad := deg * math.Pi / 180
	return geom.Coord{X: c.X + r*math.Cos(rad), Y: c.Y + r*math.Sin(rad)}
}

// normalizeAngle maps degrees into [0,360).
func normalizeAngle(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a < 0 {
		a += 360
	}
	return a
}
