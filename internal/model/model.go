package model

import (
	"math"

	"github.com/google/uuid"
)

// Rectangle is the axis-aligned footprint of one part instance, margin included.
type Rectangle struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Area returns width times height.
func (r Rectangle) Area() float64 {
	return r.Width * r.Height
}

// Perimeter returns the half perimeter (width + height) used as a sort key.
func (r Rectangle) Perimeter() float64 {
	return r.Width + r.Height
}

// Placement positions one input rectangle inside a bin.
type Placement struct {
	X           float64 `json:"x"`        // Bin-local, from the left edge
	Y           float64 `json:"y"`        // Bin-local, from the bottom edge
	Width       float64 `json:"width"`    // Placed extent after orientation
	Height      float64 `json:"height"`   // Placed extent after orientation
	Rotation    float64 `json:"rotation"` // Degrees, counter-clockwise
	Flipped     bool    `json:"flipped"`
	SourceIndex int     `json:"source_index"`
}

// Area returns the placed area.
func (p Placement) Area() float64 {
	return p.Width * p.Height
}

// Right returns the x coordinate of the right edge.
func (p Placement) Right() float64 {
	return p.X + p.Width
}

// Top returns the y coordinate of the top edge.
func (p Placement) Top() float64 {
	return p.Y + p.Height
}

// Overlaps reports whether the open rectangles of p and o intersect.
// Placements that only share an edge do not overlap.
func (p Placement) Overlaps(o Placement) bool {
	return p.X < o.Right()-Epsilon && o.X < p.Right()-Epsilon &&
		p.Y < o.Top()-Epsilon && o.Y < p.Top()-Epsilon
}

// Bin is one fixed-size sheet with the placements assigned to it.
type Bin struct {
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	Placements []Placement `json:"placements"`
}

// NewBin returns an empty bin of the given size.
func NewBin(w, h float64) Bin {
	return Bin{Width: w, Height: h, Placements: []Placement{}}
}

// UsedArea returns the total area covered by placements.
func (b Bin) UsedArea() float64 {
	var total float64
	for _, p := range b.Placements {
		total += p.Area()
	}
	return total
}

// TotalArea returns the bin area.
func (b Bin) TotalArea() float64 {
	return b.Width * b.Height
}

// Utilization returns the covered fraction of the bin in [0,1].
func (b Bin) Utilization() float64 {
	ta := b.TotalArea()
	if ta == 0 {
		return 0
	}
	return math.Min(b.UsedArea()/ta, 1)
}

// Contains reports whether p lies fully inside the bin.
func (b Bin) Contains(p Placement) bool {
	return p.X >= -Epsilon && p.Y >= -Epsilon &&
		p.Right() <= b.Width+Epsilon && p.Top() <= b.Height+Epsilon
}

// Unplaced records an input rectangle that could not be placed.
type Unplaced struct {
	Index  int     `json:"index"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Reason string  `json:"reason"`
}

// EventLevel is the severity of an engine event.
type EventLevel string

const (
	EventInfo    EventLevel = "info"
	EventWarning EventLevel = "warning"
)

// Event is one entry of the structured run log returned with a result.
type Event struct {
	Level      EventLevel `json:"level"`
	Message    string     `json:"message"`
	Generation int        `json:"generation,omitempty"`
	Fitness    float64    `json:"fitness,omitempty"`
	Indices    []int      `json:"indices,omitempty"`
}

// Result is the output of one nesting run.
type Result struct {
	Algorithm Algorithm  `json:"algorithm"`
	Bins      []Bin      `json:"bins"`
	Unplaced  []Unplaced `json:"unplaced"`
	Events    []Event    `json:"events,omitempty"`
}

// PlacedCount returns the number of placements across all bins.
func (r Result) PlacedCount() int {
	n := 0
	for _, b := range r.Bins {
		n += len(b.Placements)
	}
	return n
}

// TotalUtilization returns overall material usage as a fraction.
func (r Result) TotalUtilization() float64 {
	var used, total float64
	for _, b := range r.Bins {
		used += b.UsedArea()
		total += b.TotalArea()
	}
	if total == 0 {
		return 0
	}
	return used / total
}

// UnplacedIndices returns the source indices of the unplaced rectangles.
func (r Result) UnplacedIndices() []int {
	out := make([]int, 0, len(r.Unplaced))
	for _, u := range r.Unplaced {
		out = append(out, u.Index)
	}
	return out
}

// Part is one line of a bill of materials.
type Part struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FilePath string `json:"file_path"` // DXF drawing of the part
	Quantity int    `json:"quantity"`
}

func NewPart(name, filePath string, qty int) Part {
	return Part{
		ID:       uuid.New().String()[:8],
		Name:     name,
		FilePath: filePath,
		Quantity: qty,
	}
}
