package model

import (
	"math"

	"github.com/jbeda/geom"
)

// Orientation is one rotation/flip combination a part may be placed in.
// Flipping reflects the part across its diagonal, swapping width and height.
type Orientation struct {
	Rotation float64 // Degrees, counter-clockwise
	Flipped  bool
}

// Orientations lists the candidate orientations for the given settings in
// search order: rotation ascending, unflipped before flipped.
func Orientations(rotationSteps int, allowFlip bool) []Orientation {
	if rotationSteps < 1 {
		rotationSteps = 1
	}
	step := 360.0 / float64(rotationSteps)
	out := make([]Orientation, 0, rotationSteps*2)
	for r := 0; r < rotationSteps; r++ {
		out = append(out, Orientation{Rotation: float64(r) * step})
		if allowFlip {
			out = append(out, Orientation{Rotation: float64(r) * step, Flipped: true})
		}
	}
	return out
}

// Extents returns the axis-aligned size of r in this orientation.
func (o Orientation) Extents(r Rectangle) (w, h float64) {
	w, h = r.Width, r.Height
	if o.Flipped {
		w, h = h, w
	}
	cos, sin := cosSin(o.Rotation)
	return math.Abs(w*cos) + math.Abs(h*sin), math.Abs(w*sin) + math.Abs(h*cos)
}

// cosSin returns cos and sin of deg, exact on multiples of 90 degrees.
func cosSin(deg float64) (float64, float64) {
	a := normalizeAngle(deg)
	switch a {
	case 0:
		return 1, 0
	case 90:
		return 0, 1
	case 180:
		return -1, 0
	case 270:
		return 0, -1
	}
	rad := a * math.Pi / 180
	return math.Cos(rad), math.Sin(rad)
}

// Orientation returns the orientation the placement was made in.
func (p Placement) Orientation() Orientation {
	return Orientation{Rotation: p.Rotation, Flipped: p.Flipped}
}

// TransformPoint maps a point of the source part, given in part-local
// coordinates whose footprint spans (0,0)-(footprint.Width, footprint.Height),
// into bin coordinates. The point is reflected across the diagonal when
// flipped, rotated counter-clockwise about the local origin, shifted so the
// rotated footprint starts at the origin, then translated by (X, Y).
func (p Placement) TransformPoint(c geom.Coord, footprint Rectangle) geom.Coord {
	w, h := footprint.Width, footprint.Height
	if p.Flipped {
		c = geom.Coord{X: c.Y, Y: c.X}
		w, h = h, w
	}
	cos, sin := cosSin(p.Rotation)
	rotate := func(v geom.Coord) geom.Coord {
		return geom.Coord{X: v.X*cos - v.Y*sin, Y: v.X*sin + v.Y*cos}
	}

	corners := []geom.Coord{{}, {X: w}, {Y: h}, {X: w, Y: h}}
	min := rotate(corners[0])
	for _, k := range corners[1:] {
		rk := rotate(k)
		min.X = math.Min(min.X, rk.X)
		min.Y = math.Min(min.Y, rk.Y)
	}
	return rotate(c).Minus(min).Plus(geom.Coord{X: p.X, Y: p.Y})
}

// TransformArc maps a counter-clockwise arc sweep from start to end degrees
// into bin orientation. A diagonal reflection reverses the sweep direction,
// so the endpoints swap.
func (p Placement) TransformArc(start, end float64) (float64, float64) {
	if p.Flipped {
		start, end = 90-end, 90-start
	}
	return normalizeAngle(start + p.Rotation), normalizeAngle(end + p.Rotation)
}
