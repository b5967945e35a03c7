package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Column widths in millimeters on an A4 landscape page with 10mm margins.
const (
	pdfUsableWidth = 277.0
	pdfPeriodWidth = 18.0
	pdfTimeWidth   = 28.0
)

// PDFExporter renders a weekly timetable grid as a landscape A4 table. The
// period and time columns stay narrow so the five weekday columns get the
// room lesson cells need.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and the grid body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	// Class and teacher names carry umlauts, cp1252 covers them.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	widths := columnWidths(data.Headers)
	pdf.SetFont("Arial", "B", 10)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, tr(header), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			pdf.CellFormat(widths[i], 7, tr(row[header]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths gives the leading period and time columns fixed widths and
// splits the rest evenly across the weekday columns. Datasets with fewer
// than three columns fall back to an even split.
func columnWidths(headers []string) []float64 {
	widths := make([]float64, len(headers))
	if len(headers) < 3 {
		for i := range widths {
			widths[i] = pdfUsableWidth / float64(len(headers))
		}
		return widths
	}
	widths[0] = pdfPeriodWidth
	widths[1] = pdfTimeWidth
	day := (pdfUsableWidth - pdfPeriodWidth - pdfTimeWidth) / float64(len(headers)-2)
	for i := 2; i < len(widths); i++ {
		widths[i] = day
	}
	return widths
}
