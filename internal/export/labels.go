package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/piwi3910/bompack/internal/model"
)

// ErrNoPlacements is returned when there is nothing to label.
var ErrNoPlacements = errors.New("no placed shapes to label")

// LabelInfo holds the data encoded into each label's QR code.
type LabelInfo struct {
	Part     string  `json:"part"`
	Bin      int     `json:"bin"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"w"`
	Height   float64 `json:"h"`
	Rotation float64 `json:"rotation"`
	Flipped  bool    `json:"flipped,omitempty"`
}

// labelSheet describes a sheet of adhesive labels in millimetres.
type labelSheet struct {
	page          string
	top, left     float64
	width, height float64
	cols, rows    int
}

// avery5160 is the 3 x 10 US Letter address label sheet.
var avery5160 = labelSheet{page: "Letter", top: 12.7, left: 4.8, width: 66.7, height: 25.4, cols: 3, rows: 10}

const (
	labelsPerPage = 30
	qrSide        = 20.0
	labelPad      = 2.0
)

// slot returns the top-left corner of the n-th label on its page.
func (s labelSheet) slot(n int) (float64, float64) {
	n %= s.cols * s.rows
	return s.left + float64(n%s.cols)*s.width, s.top + float64(n/s.cols)*s.height
}

// CollectLabelInfos returns one label per placement, bins numbered from 1.
func CollectLabelInfos(result model.Result, names []string) []LabelInfo {
	var labels []LabelInfo
	for bi, bin := range result.Bins {
		for _, p := range bin.Placements {
			labels = append(labels, LabelInfo{
				Part:     nameOf(names, p.SourceIndex),
				Bin:      bi + 1,
				X:        p.X,
				Y:        p.Y,
				Width:    p.Width,
				Height:   p.Height,
				Rotation: p.Rotation,
				Flipped:  p.Flipped,
			})
		}
	}
	return labels
}

// ExportLabels writes a PDF with one QR-coded label per placed shape on
// Avery 5160 sheets. Each QR code carries the label's JSON.
func ExportLabels(path string, result model.Result, names []string) error {
	labels := CollectLabelInfos(result, names)
	if len(labels) == 0 {
		return ErrNoPlacements
	}

	sheet := avery5160
	pdf := fpdf.New("P", "mm", sheet.page, "")
	pdf.SetAutoPageBreak(false, 0)

	for i, label := range labels {
		if i%labelsPerPage == 0 {
			pdf.AddPage()
		}
		x, y := sheet.slot(i)
		if err := drawLabel(pdf, sheet, x, y, fmt.Sprintf("qr_%d", i), label); err != nil {
			return fmt.Errorf("failed to render label for %q: %w", label.Part, err)
		}
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write labels %s: %w", path, err)
	}
	return nil
}

// labelLine is one line of label text.
type labelLine struct {
	style string
	size  float64
	h     float64
	gray  int
	text  string
}

func drawLabel(pdf *fpdf.Fpdf, sheet labelSheet, x, y float64, image string, info LabelInfo) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal label info: %w", err)
	}
	png, err := qrcode.Encode(string(payload), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.1)
	pdf.Rect(x, y, sheet.width, sheet.height, "D")

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(image, opts, bytes.NewReader(png))
	pdf.ImageOptions(image, x+sheet.width-qrSide-labelPad, y+(sheet.height-qrSide)/2, qrSide, qrSide, false, opts, 0, "")

	textW := sheet.width - qrSide - 3*labelPad
	lines := []labelLine{
		{"B", 9, 5, 0, info.Part},
		{"", 7, 4, 0, fmt.Sprintf("%g x %g", info.Width, info.Height)},
		{"", 6, 3.5, 100, fmt.Sprintf("Bin %d @ (%g, %g)", info.Bin, info.X, info.Y)},
	}
	if info.Rotation != 0 || info.Flipped {
		orient := fmt.Sprintf("Rotated %g\xb0", info.Rotation)
		if info.Flipped {
			orient += ", flipped"
		}
		lines = append(lines, labelLine{"I", 6, 3, 120, orient})
	}

	ty := y + labelPad
	for _, l := range lines {
		pdf.SetFont("Helvetica", l.style, l.size)
		pdf.SetTextColor(l.gray, l.gray, l.gray)
		pdf.SetXY(x+labelPad, ty)
		pdf.CellFormat(textW, l.h, fitText(pdf, l.text, textW), "", 0, "L", false, 0, "")
		ty += l.h
	}
	pdf.SetTextColor(0, 0, 0)
	return nil
}

// fitText shortens text with an ellipsis until it fits width.
func fitText(pdf *fpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	for len(text) > 0 && pdf.GetStringWidth(text+"...") > width {
		text = text[:len(text)-1]
	}
	return text + "..."
}
