package model

import "math"

// SheetEstimate is an area-based estimate of how many bins a batch needs.
type SheetEstimate struct {
	TotalPartArea     float64 `json:"total_part_area"`
	SheetArea         float64 `json:"sheet_area"`
	SheetsNeededExact float64 `json:"sheets_needed_exact"` // Exact fractional number of sheets
	SheetsNeededMin   int     `json:"sheets_needed_min"`   // Lower bound for any packing (ceiling of exact)
	SheetsWithWaste   int     `json:"sheets_with_waste"`   // Recommended sheets including waste factor
	WastePercent      float64 `json:"waste_percent"`
}

// EstimateSheets computes the area lower bound on the bin count for rects
// and a purchase recommendation padded by wastePercent.
func EstimateSheets(rects []Rectangle, sheetWidth, sheetHeight, wastePercent float64) SheetEstimate {
	var totalPartArea float64
	for _, r := range rects {
		totalPartArea += r.Area()
	}

	sheetArea := sheetWidth * sheetHeight
	if sheetArea <= 0 {
		return SheetEstimate{
			TotalPartArea: totalPartArea,
			WastePercent:  wastePercent,
		}
	}

	exactSheets := totalPartArea / sheetArea
	minSheets := int(math.Ceil(exactSheets))

	wasteFactor := 1.0 + (wastePercent / 100.0)
	sheetsWithWaste := int(math.Ceil(exactSheets * wasteFactor))
	if sheetsWithWaste < minSheets {
		sheetsWithWaste = minSheets
	}

	return SheetEstimate{
		TotalPartArea:     totalPartArea,
		SheetArea:         sheetArea,
		SheetsNeededExact: exactSheets,
		SheetsNeededMin:   minSheets,
		SheetsWithWaste:   sheetsWithWaste,
		WastePercent:      wastePercent,
	}
}
