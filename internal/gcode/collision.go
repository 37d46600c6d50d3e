package gcode

import (
	"fmt"
	"math"

	"github.com/jbeda/geom"

	"github.com/piwi3910/bompack/internal/model"
)

// Collision is a tool position whose cutter would reach into a
// neighbouring placement.
type Collision struct {
	Bin       int     // Zero-based bin index
	Part      int     // Placement index of the part being cut
	Other     int     // Placement index of the part the tool reaches into
	ToolX     float64
	ToolY     float64
	Clearance float64 // Distance from the cutter edge to the neighbour, negative when inside
}

// CheckClearance samples the tool center path of every placement and
// reports where the cutter would cut into another placement of the same
// bin. Parts packed without a margin of at least the tool radius collide.
func (g *Generator) CheckClearance(result model.Result) []Collision {
	toolRadius := g.Settings.ToolDiameter / 2
	if toolRadius <= 0 {
		return nil
	}

	var collisions []Collision
	for bi, bin := range result.Bins {
		for pi, p := range bin.Placements {
			path, _ := g.toolpath(p)
			positions := samplePath(path)

			for oi, other := range bin.Placements {
				if oi == pi {
					continue
				}
				for _, pos := range positions {
					dist := distanceToPlacement(pos, other)
					if dist < toolRadius-model.Epsilon {
						collisions = append(collisions, Collision{
							Bin:       bi,
							Part:      pi,
							Other:     oi,
							ToolX:     pos.X,
							ToolY:     pos.Y,
							Clearance: dist - toolRadius,
						})
						// One report per pair of placements.
						break
					}
				}
			}
		}
	}
	return collisions
}

// samplePath returns the vertices of a closed path and the midpoint of
// every edge.
func samplePath(path []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, 0, len(path)*2)
	for i, c := range path {
		next := path[(i+1)%len(path)]
		out = append(out, c, geom.Coord{X: (c.X + next.X) / 2, Y: (c.Y + next.Y) / 2})
	}
	return out
}

// distanceToPlacement is the distance from c to the nearest point of the
// placement rectangle, 0 inside it.
func distanceToPlacement(c geom.Coord, p model.Placement) float64 {
	nearestX := math.Max(p.X, math.Min(c.X, p.Right()))
	nearestY := math.Max(p.Y, math.Min(c.Y, p.Top()))
	return math.Hypot(c.X-nearestX, c.Y-nearestY)
}

// FormatCollisionWarnings produces human-readable warning messages.
func (g *Generator) FormatCollisionWarnings(result model.Result, collisions []Collision) []string {
	warnings := make([]string, 0, len(collisions))
	for _, c := range collisions {
		bin := result.Bins[c.Bin]
		warnings = append(warnings, fmt.Sprintf(
			"Bin %d: cutting %s reaches into %s at (%.3f, %.3f), clearance %.3f",
			c.Bin+1, g.name(bin.Placements[c.Part].SourceIndex), g.name(bin.Placements[c.Other].SourceIndex),
			c.ToolX, c.ToolY, c.Clearance,
		))
	}
	return warnings
}
