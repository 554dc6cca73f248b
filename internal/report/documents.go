package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

const (
	summarySheet = "summary"
	samplesSheet = "samples"
)

// writePDF renders a one-column summary followed by the sample table.
func writePDF(w io.Writer, r *visibility.Report) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Satellite Visibility Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	for _, line := range summaryRows(r) {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %s", line[0], line[1]))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Time", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Sun (deg)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Visible", "1", 0, "C", false, 0, "")
	pdf.CellFormat(85, 6, "Peak objects", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	peaks := peakObjects(r)
	for _, e := range r.Entries {
		pdf.CellFormat(50, 6, e.Display, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.1f", e.SunAltDeg), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", e.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(85, 6, truncate(strings.Join(peaks[e.Time.Unix()], ", "), 48), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}

// writeXLSX renders a summary sheet and a samples sheet.
func writeXLSX(w io.Writer, r *visibility.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if _, err := f.NewSheet(samplesSheet); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}

	_ = f.SetCellValue(summarySheet, "A1", "Satellite Visibility Report")
	for i, row := range summaryRows(r) {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+3), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+3), row[1])
	}

	_ = f.SetCellValue(samplesSheet, "A1", "Time (UTC)")
	_ = f.SetCellValue(samplesSheet, "B1", "Display")
	_ = f.SetCellValue(samplesSheet, "C1", "Sun (deg)")
	_ = f.SetCellValue(samplesSheet, "D1", "Visible")
	_ = f.SetCellValue(samplesSheet, "E1", "Peak objects")
	peaks := peakObjects(r)
	for i, e := range r.Entries {
		row := i + 2
		_ = f.SetCellValue(samplesSheet, fmt.Sprintf("A%d", row), e.Time.UTC().Format(time.RFC3339))
		_ = f.SetCellValue(samplesSheet, fmt.Sprintf("B%d", row), e.Display)
		_ = f.SetCellValue(samplesSheet, fmt.Sprintf("C%d", row), e.SunAltDeg)
		_ = f.SetCellValue(samplesSheet, fmt.Sprintf("D%d", row), e.Count)
		_ = f.SetCellValue(samplesSheet, fmt.Sprintf("E%d", row), strings.Join(peaks[e.Time.Unix()], ", "))
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	return nil
}

func summaryRows(r *visibility.Report) [][2]string {
	rows := [][2]string{
		{"Generated", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Location", fmt.Sprintf("%.5f, %.5f", r.Location.LatDeg, r.Location.LonDeg)},
		{"Start", r.Start.UTC().Format(time.RFC3339)},
		{"Zone", r.Zone},
		{"Resolution (min)", fmt.Sprintf("%g", r.ResolutionMinutes)},
		{"Horizon (h)", fmt.Sprintf("%g", r.HorizonHours)},
		{"Twilight band (deg)", fmt.Sprintf("%g to %g", r.Band.LowerDeg, r.Band.UpperDeg)},
		{"Min elevation (deg)", fmt.Sprintf("%g", r.MinElevationDeg)},
		{"Objects", fmt.Sprintf("%d", r.ObjectCount)},
		{"Twilight samples", fmt.Sprintf("%d of %d", len(r.Entries), r.GridSize)},
		{"Peak", fmt.Sprintf("%d", r.Max)},
	}
	if r.Max > 0 {
		for _, p := range r.Peaks {
			rows = append(rows, [2]string{"Peak at", p.Display})
		}
	}
	if r.SkippedPairs > 0 {
		rows = append(rows, [2]string{"Skipped pairs", fmt.Sprintf("%d", r.SkippedPairs)})
	}
	return rows
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
