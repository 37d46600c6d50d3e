package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jbeda/geom"
	"github.com/yofu/dxf"
	"github.com/yofu/dxf/color"
	"github.com/yofu/dxf/drawing"

	"github.com/piwi3910/bompack/internal/model"
)

// DXFOptions controls the cut file output.
type DXFOptions struct {
	// Debug adds the placement boundary of every shape on a red
	// DEBUG_{layer} layer and the bin outline on DEBUG_BIN.
	Debug bool
}

const binOutlineLayer = "DEBUG_BIN"

// layerNameReplacer strips characters DXF does not allow in layer names.
var layerNameReplacer = strings.NewReplacer(
	"<", "_", ">", "_", "/", "_", "\\", "_", "\"", "_", ":", "_",
	";", "_", "?", "_", "*", "_", "|", "_", "=", "_", "`", "_",
)

// InstanceLayers returns the layer name of every placement in bin: the part
// name followed by a per-name counter starting at 1.
func InstanceLayers(bin model.Bin, shapes []model.Shape) []string {
	counts := make(map[string]int)
	layers := make([]string, len(bin.Placements))
	for i, p := range bin.Placements {
		name := fmt.Sprintf("shape%d", p.SourceIndex)
		if p.SourceIndex >= 0 && p.SourceIndex < len(shapes) && shapes[p.SourceIndex].Name != "" {
			name = shapes[p.SourceIndex].Name
		}
		name = layerNameReplacer.Replace(name)
		counts[name]++
		layers[i] = fmt.Sprintf("%s_%d", name, counts[name])
	}
	return layers
}

// WriteBinDXF writes the shapes placed in bin to a DXF file. shapes is
// indexed by placement source index; every instance gets its own layer.
func WriteBinDXF(path string, bin model.Bin, shapes []model.Shape, opts DXFOptions) error {
	d := dxf.NewDrawing()

	if opts.Debug {
		if _, err := d.AddLayer(binOutlineLayer, color.Red, dxf.DefaultLineType, true); err != nil {
			return fmt.Errorf("failed to add layer %s: %w", binOutlineLayer, err)
		}
		if _, err := d.LwPolyline(true,
			[]float64{0, 0}, []float64{bin.Width, 0},
			[]float64{bin.Width, bin.Height}, []float64{0, bin.Height}); err != nil {
			return fmt.Errorf("failed to draw bin outline: %w", err)
		}
	}

	layers := InstanceLayers(bin, shapes)
	for i, p := range bin.Placements {
		if p.SourceIndex < 0 || p.SourceIndex >= len(shapes) {
			return fmt.Errorf("placement %d references shape %d of %d", i, p.SourceIndex, len(shapes))
		}
		shape := shapes[p.SourceIndex]

		if _, err := d.AddLayer(layers[i], dxf.DefaultColor, dxf.DefaultLineType, true); err != nil {
			return fmt.Errorf("failed to add layer %s: %w", layers[i], err)
		}
		for _, e := range shape.Entities {
			if err := drawEntity(d, e, p, shape.Footprint); err != nil {
				return fmt.Errorf("failed to draw %s on layer %s: %w", e.Kind, layers[i], err)
			}
		}

		if opts.Debug {
			if err := drawBoundary(d, "DEBUG_"+layers[i], p, shape.Footprint); err != nil {
				return err
			}
		}
	}

	if err := d.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save DXF %s: %w", path, err)
	}
	return nil
}

// drawEntity adds e, moved into bin coordinates by p, to the current layer.
func drawEntity(d *drawing.Drawing, e model.Entity, p model.Placement, footprint model.Rectangle) error {
	tp := func(c geom.Coord) geom.Coord { return p.TransformPoint(c, footprint) }

	var err error
	switch e.Kind {
	case model.EntityLine:
		if len(e.Points) < 2 {
			return nil
		}
		a, b := tp(e.Points[0]), tp(e.Points[1])
		_, err = d.Line(a.X, a.Y, 0, b.X, b.Y, 0)
	case model.EntityCircle:
		c := tp(e.Center)
		_, err = d.Circle(c.X, c.Y, 0, e.Radius)
	case model.EntityArc:
		c := tp(e.Center)
		start, end := p.TransformArc(e.StartAngle, e.EndAngle)
		_, err = d.Arc(c.X, c.Y, 0, e.Radius, start, end)
	case model.EntityPolyline:
		vertices := make([][]float64, len(e.Points))
		for i, pt := range e.Points {
			v := tp(pt)
			vertices[i] = []float64{v.X, v.Y}
		}
		_, err = d.LwPolyline(e.Closed, vertices...)
	}
	return err
}

// drawBoundary outlines the footprint of p in red on its own layer.
func drawBoundary(d *drawing.Drawing, layer string, p model.Placement, footprint model.Rectangle) error {
	if _, err := d.AddLayer(layer, color.Red, dxf.DefaultLineType, true); err != nil {
		return fmt.Errorf("failed to add layer %s: %w", layer, err)
	}
	corners := []geom.Coord{{}, {X: footprint.Width}, {X: footprint.Width, Y: footprint.Height}, {Y: footprint.Height}}
	vertices := make([][]float64, len(corners))
	for i, c := range corners {
		v := p.TransformPoint(c, footprint)
		vertices[i] = []float64{v.X, v.Y}
	}
	if _, err := d.LwPolyline(true, vertices...); err != nil {
		return fmt.Errorf("failed to draw boundary on %s: %w", layer, err)
	}
	return nil
}

// BinFileNames returns "{base}-{i}{ext}" for bins 1..n, where out is split
// into base and extension; the extension defaults to ".dxf".
func BinFileNames(out string, n int) []string {
	ext := filepath.Ext(out)
	base := strings.TrimSuffix(out, ext)
	if ext == "" {
		ext = ".dxf"
	}
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s-%d%s", base, i+1, ext)
	}
	return names
}

// WriteAll writes one DXF per bin of result and returns the file names.
func WriteAll(out string, result model.Result, shapes []model.Shape, opts DXFOptions) ([]string, error) {
	if len(result.Bins) == 0 {
		return nil, ErrNothingToExport
	}
	names := BinFileNames(out, len(result.Bins))
	for i, bin := range result.Bins {
		if err := WriteBinDXF(names[i], bin, shapes, opts); err != nil {
			return names[:i], err
		}
	}
	return names, nil
}
