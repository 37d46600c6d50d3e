// Package export writes nesting results as DXF cut files, PDF layout
// reports and QR-coded part labels.
package export

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/go-pdf/fpdf"

	"github.com/piwi3910/bompack/internal/model"
)

// ErrNothingToExport is returned when a result has no bins.
var ErrNothingToExport = errors.New("no bins to export")

type rgb struct{ r, g, b int }

// partPalette colours placements by part name, so every instance of a part
// gets the same fill on every page.
var partPalette = []rgb{
	{78, 121, 167}, {242, 142, 43}, {225, 87, 89}, {118, 183, 178}, {89, 161, 79},
	{237, 201, 72}, {176, 122, 161}, {255, 157, 167}, {156, 117, 95}, {186, 176, 172},
}

func colorFor(name string) rgb {
	h := fnv.New32a()
	h.Write([]byte(name))
	return partPalette[h.Sum32()%uint32(len(partPalette))]
}

const (
	pageMargin   = 12.0 // mm on every side
	titleHeight  = 10.0
	legendHeight = 18.0 // reserved under the bin drawing
	rowHeight    = 6.0
	fontFamily   = "Helvetica"
)

// nameOf returns the part name for a source index, or "#i" when names
// does not cover it.
func nameOf(names []string, idx int) string {
	if idx >= 0 && idx < len(names) && names[idx] != "" {
		return names[idx]
	}
	return fmt.Sprintf("#%d", idx)
}

// orientationTag is the short legend suffix for a placement orientation.
func orientationTag(p model.Placement) string {
	tag := ""
	if p.Rotation != 0 {
		tag += fmt.Sprintf(" R%g", p.Rotation)
	}
	if p.Flipped {
		tag += " F"
	}
	return tag
}

// layoutReport is a landscape A4 document with a text cursor.
type layoutReport struct {
	pdf    *fpdf.Fpdf
	names  []string
	pageW  float64
	pageH  float64
	cursor float64
}

func newLayoutReport(names []string) *layoutReport {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	w, h := pdf.GetPageSize()
	return &layoutReport{pdf: pdf, names: names, pageW: w, pageH: h}
}

func (r *layoutReport) contentWidth() float64 { return r.pageW - 2*pageMargin }

func (r *layoutReport) newPage() {
	r.pdf.AddPage()
	r.cursor = pageMargin
}

// line writes one line of text at the cursor and advances it.
func (r *layoutReport) line(style string, size, height float64, text string) {
	r.pdf.SetFont(fontFamily, style, size)
	r.pdf.SetXY(pageMargin, r.cursor)
	r.pdf.CellFormat(r.contentWidth(), height, text, "", 0, "L", false, 0, "")
	r.cursor += height
}

// ensure starts a new page when fewer than need millimetres remain.
func (r *layoutReport) ensure(need float64) bool {
	if r.cursor+need <= r.pageH-pageMargin {
		return false
	}
	r.newPage()
	return true
}

// ExportPDF renders every bin on its own page, followed by a summary page.
// names[i] labels the shape with source index i.
func ExportPDF(path string, result model.Result, names []string) error {
	if len(result.Bins) == 0 {
		return ErrNothingToExport
	}

	r := newLayoutReport(names)
	for i, bin := range result.Bins {
		r.newPage()
		r.binPage(bin, i+1)
	}
	r.newPage()
	r.summaryPage(result)

	if err := r.pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write PDF %s: %w", path, err)
	}
	return nil
}

// binCanvas maps bin coordinates onto the page. Bin y grows upwards, page
// y grows downwards.
type binCanvas struct {
	left, top, scale, binH float64
}

func (c binCanvas) rect(x, y, w, h float64) (float64, float64, float64, float64) {
	return c.left + x*c.scale, c.top + (c.binH-y-h)*c.scale, w * c.scale, h * c.scale
}

func (r *layoutReport) binPage(bin model.Bin, binNum int) {
	r.line("B", 14, titleHeight, fmt.Sprintf("Bin %d (%g x %g)", binNum, bin.Width, bin.Height))
	r.line("", 10, rowHeight, fmt.Sprintf("Shapes: %d | Used area: %.2f | Bin area: %.2f | Utilization: %.1f%%",
		len(bin.Placements), bin.UsedArea(), bin.TotalArea(), bin.Utilization()*100))
	r.cursor += 4

	availW := r.contentWidth() - 8
	availH := r.pageH - r.cursor - pageMargin - legendHeight
	scale := math.Min(availW/bin.Width, availH/bin.Height)
	c := binCanvas{
		left:  pageMargin + 8 + (availW-bin.Width*scale)/2,
		top:   r.cursor,
		scale: scale,
		binH:  bin.Height,
	}

	pdf := r.pdf
	x, y, w, h := c.rect(0, 0, bin.Width, bin.Height)
	pdf.SetLineWidth(0.4)
	pdf.SetDrawColor(90, 90, 90)
	pdf.SetFillColor(240, 240, 240)
	pdf.Rect(x, y, w, h, "FD")
	r.dimensions(bin, x, y, w, h)

	pdf.SetLineWidth(0.25)
	pdf.SetDrawColor(40, 40, 40)
	for _, p := range bin.Placements {
		name := nameOf(r.names, p.SourceIndex)
		col := colorFor(name)
		px, py, pw, ph := c.rect(p.X, p.Y, p.Width, p.Height)
		pdf.SetFillColor(col.r, col.g, col.b)
		pdf.Rect(px, py, pw, ph, "FD")
		r.partCaption(name, fmt.Sprintf("%gx%g", p.Width, p.Height), px, py, pw, ph)
	}

	r.cursor = y + h + 6
	r.legend(bin)
}

// partCaption centres the name, and the size when there is room, inside a
// placed part.
func (r *layoutReport) partCaption(name, size string, x, y, w, h float64) {
	minSide := math.Min(w, h)
	if w <= 15 || h <= 8 {
		return
	}
	fontSize := 6.0
	if minSide > 40 {
		fontSize = 8
	} else if minSide > 20 {
		fontSize = 7
	}

	pdf := r.pdf
	pdf.SetFont(fontFamily, "", fontSize)
	pdf.SetTextColor(0, 0, 0)

	lines := []string{name}
	if h > 14 {
		lines = append(lines, size)
	}
	top := y + h/2 - float64(len(lines))*2
	for i, text := range lines {
		if pdf.GetStringWidth(text) >= w-2 {
			continue
		}
		pdf.SetXY(x, top+float64(i)*4)
		pdf.CellFormat(w, 4, text, "", 0, "C", false, 0, "")
	}
}

// dimensions prints the bin width below and the bin height beside the
// drawing.
func (r *layoutReport) dimensions(bin model.Bin, x, y, w, h float64) {
	pdf := r.pdf
	pdf.SetFont(fontFamily, "", 8)
	pdf.SetTextColor(90, 90, 90)

	pdf.SetXY(x, y+h+0.5)
	pdf.CellFormat(w, 4, fmt.Sprintf("%g", bin.Width), "", 0, "C", false, 0, "")

	cx, cy := x-4, y+h/2
	pdf.TransformBegin()
	pdf.TransformRotate(90, cx, cy)
	pdf.SetXY(cx-h/2, cy-2)
	pdf.CellFormat(h, 4, fmt.Sprintf("%g", bin.Height), "", 0, "C", false, 0, "")
	pdf.TransformEnd()

	pdf.SetTextColor(0, 0, 0)
}

// legend lists every placement with its colour swatch, size and
// orientation, wrapping at the page edge.
func (r *layoutReport) legend(bin model.Bin) {
	if len(bin.Placements) == 0 {
		return
	}
	pdf := r.pdf
	pdf.SetFont(fontFamily, "", 7)
	x, maxX := pageMargin, r.pageW-pageMargin
	for _, p := range bin.Placements {
		name := nameOf(r.names, p.SourceIndex)
		text := fmt.Sprintf("%s (%gx%g)%s", name, p.Width, p.Height, orientationTag(p))
		width := pdf.GetStringWidth(text) + 6
		if x+width > maxX {
			x = pageMargin
			r.cursor += 4.5
		}

		col := colorFor(name)
		pdf.SetFillColor(col.r, col.g, col.b)
		pdf.Rect(x, r.cursor+0.5, 3, 3, "F")
		pdf.SetXY(x+4, r.cursor)
		pdf.CellFormat(width-4, 4, text, "", 0, "L", false, 0, "")
		x += width + 2
	}
	r.cursor += 4.5
}

// table draws a header row and then the rows, repeating the header on
// every continuation page.
func (r *layoutReport) table(widths []float64, header []string, rows [][]string) {
	pdf := r.pdf
	drawRow := func(cells []string, border string, fill bool) {
		x := pageMargin
		for i, cell := range cells {
			pdf.SetXY(x, r.cursor)
			pdf.CellFormat(widths[i], rowHeight, cell, border, 0, "C", fill, 0, "")
			x += widths[i]
		}
		r.cursor += rowHeight
	}
	drawHeader := func() {
		pdf.SetFont(fontFamily, "B", 9)
		pdf.SetFillColor(225, 225, 225)
		drawRow(header, "1", true)
		pdf.SetFont(fontFamily, "", 9)
	}

	drawHeader()
	for i, row := range rows {
		if r.ensure(rowHeight) {
			drawHeader()
		}
		shade := 255
		if i%2 == 0 {
			shade = 246
		}
		pdf.SetFillColor(shade, shade, shade)
		drawRow(row, "1", true)
	}
}

// summaryPage draws overall statistics, the per-bin table and the
// unplaced shapes.
func (r *layoutReport) summaryPage(result model.Result) {
	pdf := r.pdf
	r.line("B", 16, titleHeight, "Nesting Summary")
	pdf.SetLineWidth(0.5)
	pdf.SetDrawColor(0, 0, 0)
	pdf.Line(pageMargin, r.cursor+1, r.pageW-pageMargin, r.cursor+1)
	r.cursor += 5

	stats := [][2]string{
		{"Algorithm", string(result.Algorithm)},
		{"Bins used", fmt.Sprintf("%d", len(result.Bins))},
		{"Overall utilization", fmt.Sprintf("%.1f%%", result.TotalUtilization()*100)},
		{"Shapes placed", fmt.Sprintf("%d", result.PlacedCount())},
		{"Unplaced shapes", fmt.Sprintf("%d", len(result.Unplaced))},
	}
	for _, s := range stats {
		pdf.SetXY(pageMargin+4, r.cursor)
		pdf.SetFont(fontFamily, "", 10)
		pdf.CellFormat(55, rowHeight, s[0], "", 0, "L", false, 0, "")
		pdf.SetFont(fontFamily, "B", 10)
		pdf.CellFormat(45, rowHeight, s[1], "", 0, "L", false, 0, "")
		r.cursor += rowHeight + 1
	}
	r.cursor += 4

	r.line("B", 12, 8, "Bins")
	rows := make([][]string, len(result.Bins))
	for i, bin := range result.Bins {
		rows[i] = []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%g x %g", bin.Width, bin.Height),
			fmt.Sprintf("%d", len(bin.Placements)),
			fmt.Sprintf("%.1f%%", bin.Utilization()*100),
			fmt.Sprintf("%.2f / %.2f", bin.UsedArea(), bin.TotalArea()),
		}
	}
	r.table([]float64{20, 60, 35, 40, 80}, []string{"Bin", "Size", "Shapes", "Utilization", "Used / total area"}, rows)

	if len(result.Unplaced) > 0 {
		r.cursor += 6
		r.ensure(16)
		pdf.SetTextColor(190, 0, 0)
		r.line("B", 11, 8, fmt.Sprintf("%d shapes could not be placed", len(result.Unplaced)))
		pdf.SetTextColor(0, 0, 0)
		for _, u := range result.Unplaced {
			r.ensure(5)
			r.line("", 9, 5, fmt.Sprintf("  %s: %g x %g, %s", nameOf(r.names, u.Index), u.Width, u.Height, u.Reason))
		}
	}
}
