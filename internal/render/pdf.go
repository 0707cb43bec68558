package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// Page geometry in millimetres (A4 portrait).
const (
	pageWidth    = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	contentWidth = pageWidth - marginLeft - marginRight

	headerHeight = 30.0
	blockTopY    = 42.0
	tableTopY    = 112.0
	lineHeight   = 5.0
	rowHeight    = 7.0
	footerY      = 282.0
)

// Line table column widths; they sum to contentWidth.
var tableCols = []struct {
	title string
	width float64
	align string
}{
	{"Désignation", 90, "L"},
	{"Qté", 20, "R"},
	{"P.U. HT", 35, "R"},
	{"Montant HT", 35, "R"},
}

// Options control layout-independent rendering inputs.
type Options struct {
	// GeneratedAt pins the PDF creation metadata. Zero falls back to the
	// document's own generation timestamp so a fixed model renders to
	// fixed bytes.
	GeneratedAt time.Time
}

// RenderPDF lays out a document model at fixed coordinates and returns the
// PDF bytes.
func RenderPDF(doc Document, opts Options) ([]byte, error) {
	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = doc.GeneratedAt
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(generatedAt)
	pdf.SetModificationDate(generatedAt)
	pdf.SetTitle(doc.Title+" "+doc.Number, true)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetMargins(marginLeft, 10, marginRight)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	drawHeader(pdf, tr, doc)
	drawParties(pdf, tr, doc)
	drawProject(pdf, tr, doc)
	y := drawLineTable(pdf, tr, doc)
	y = drawTotals(pdf, tr, doc, y)
	drawComment(pdf, tr, doc, y)
	drawFooter(pdf, tr, doc)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

func drawHeader(pdf *fpdf.Fpdf, tr func(string) string, doc Document) {
	pdf.SetFillColor(52, 73, 94)
	pdf.Rect(0, 0, pageWidth, headerHeight, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(marginLeft, 8)
	pdf.CellFormat(contentWidth, 8, tr(doc.Title), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetXY(marginLeft, 18)
	pdf.CellFormat(contentWidth/2, 6, tr("N° "+doc.Number), "", 0, "L", false, 0, "")
	pdf.SetXY(pageWidth-marginRight-contentWidth/2, 18)
	pdf.CellFormat(contentWidth/2, 6, tr("Date : "+doc.Date), "", 0, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func drawParty(pdf *fpdf.Fpdf, tr func(string) string, x float64, heading string, p Party, badge string) {
	y := blockTopY
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(x, y)
	pdf.CellFormat(85, lineHeight, tr(heading), "", 0, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	y += lineHeight + 1

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetXY(x, y)
	pdf.CellFormat(85, lineHeight, tr(p.Name), "", 0, "L", false, 0, "")
	y += lineHeight

	pdf.SetFont("Helvetica", "", 9)
	for _, line := range p.Lines {
		pdf.SetXY(x, y)
		pdf.CellFormat(85, lineHeight, tr(line), "", 0, "L", false, 0, "")
		y += lineHeight
	}
	if badge != "" {
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetFillColor(236, 240, 241)
		pdf.SetXY(x, y+1)
		pdf.CellFormat(50, lineHeight, tr(badge), "", 0, "C", true, 0, "")
	}
}

func drawParties(pdf *fpdf.Fpdf, tr func(string) string, doc Document) {
	drawParty(pdf, tr, marginLeft, "ÉMETTEUR", doc.Issuer, "")
	drawParty(pdf, tr, 115, "FOURNISSEUR", doc.Supplier, doc.Badge)
}

func drawProject(pdf *fpdf.Fpdf, tr func(string) string, doc Document) {
	y := 88.0
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(contentWidth, lineHeight, tr("Affaire "+doc.ProjectRef+" - "+doc.ProjectDesc), "", 0, "L", false, 0, "")
	y += lineHeight + 1
	if len(doc.Delivery) > 0 {
		pdf.SetFont("Helvetica", "", 9)
		for _, line := range doc.Delivery {
			pdf.SetXY(marginLeft, y)
			pdf.CellFormat(contentWidth, lineHeight, tr(line), "", 0, "L", false, 0, "")
			y += lineHeight
		}
	}
}

func drawLineTable(pdf *fpdf.Fpdf, tr func(string) string, doc Document) float64 {
	y := tableTopY
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(52, 73, 94)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetXY(marginLeft, y)
	for _, col := range tableCols {
		pdf.CellFormat(col.width, rowHeight, tr(col.title), "", 0, col.align, true, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)
	y += rowHeight

	pdf.SetFont("Helvetica", "", 9)
	for i, line := range doc.Lines {
		shaded := i%2 == 1
		pdf.SetFillColor(245, 246, 250)
		pdf.SetXY(marginLeft, y)
		cells := []string{line.Designation, line.Quantity, line.UnitPrice, line.Amount}
		for c, col := range tableCols {
			pdf.CellFormat(col.width, rowHeight, tr(cells[c]), "", 0, col.align, shaded, 0, "")
		}
		y += rowHeight
	}
	return y
}

func drawTotals(pdf *fpdf.Fpdf, tr func(string) string, doc Document, y float64) float64 {
	y += 4
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(236, 240, 241)
	pdf.SetXY(marginLeft+contentWidth-70, y)
	pdf.CellFormat(35, rowHeight, tr("Total HT"), "", 0, "L", true, 0, "")
	pdf.CellFormat(35, rowHeight, tr(doc.TotalHT), "", 0, "R", true, 0, "")
	return y + rowHeight
}

func drawComment(pdf *fpdf.Fpdf, tr func(string) string, doc Document, y float64) {
	if doc.Comment == "" {
		return
	}
	y += 6
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(contentWidth, lineHeight, tr("Commentaire"), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetXY(marginLeft, y+lineHeight)
	pdf.MultiCell(contentWidth, lineHeight, tr(doc.Comment), "1", "L", false)
}

func drawFooter(pdf *fpdf.Fpdf, tr func(string) string, doc Document) {
	pdf.SetFont("Helvetica", "I", 7)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(marginLeft, footerY)
	pdf.CellFormat(contentWidth, 4, tr(doc.Footer), "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}
