package documents

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/ean"
	"github.com/jung-kurt/gofpdf"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
)

// Label sheet geometry, US Letter, 24 labels per page.
const (
	labelCols      = 4
	labelRows      = 6
	labelSize      = 1.5    // label edge in inches
	topMargin      = 0.5
	leftMargin     = 0.7812
	horizontalStep = 1.8125
	verticalStep   = 1.7
)

const labelsPerPage = labelCols * labelRows

// FormatBarcode normalises a raw barcode value into the 13 digits an
// EAN-13 symbol needs. Non-digits are stripped, short values are padded
// with leading zeros, long values keep their rightmost 13 digits. A value
// with no digits at all yields ok=false.
func FormatBarcode(raw string) (string, bool) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	s := digits.String()
	if s == "" {
		return "", false
	}
	if len(s) < 13 {
		s = strings.Repeat("0", 13-len(s)) + s
	}
	if len(s) > 13 {
		s = s[len(s)-13:]
	}
	return s, true
}

// ExpandLabels flattens line items into one entry per physical label, in
// line order. Lines with a non-positive quantity produce nothing.
func ExpandLabels(lines []models.LabelLineItem) []models.LabelLineItem {
	var out []models.LabelLineItem
	for _, line := range lines {
		for i := 0; i < line.Quantity; i++ {
			out = append(out, line)
		}
	}
	return out
}

// PageCount returns how many sheet pages labelCount labels occupy.
func PageCount(labelCount int) int {
	if labelCount <= 0 {
		return 0
	}
	return (labelCount + labelsPerPage - 1) / labelsPerPage
}

// RenderLabels writes the barcode label PDF for one purchase order. Each
// unit ordered gets its own label on a fixed 4x6 grid. A line whose
// barcode cannot be rendered still takes up its labels, with a text
// placeholder, so the sheet stays aligned with the physical stock.
func RenderLabels(order *models.LabelOrder, w io.Writer) (int, error) {
	logger := config.GetLogger()
	labels := ExpandLabels(order.LineItems)
	if len(labels) == 0 {
		return 0, fmt.Errorf("purchase order %s has no labels to render", order.PoNumber)
	}

	pdf := gofpdf.New("P", "in", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "", 7)

	for i, label := range labels {
		slot := i % labelsPerPage
		if slot == 0 {
			pdf.AddPage()
		}
		x := leftMargin + float64(slot%labelCols)*horizontalStep
		y := topMargin + float64(slot/labelCols)*verticalStep
		drawLabel(pdf, logger, label, x, y, i)
	}

	if err := pdf.Output(w); err != nil {
		return 0, fmt.Errorf("render labels for %s: %w", order.PoNumber, err)
	}
	return len(labels), nil
}

func drawLabel(pdf *gofpdf.Fpdf, logger *logrus.Logger, label models.LabelLineItem, x, y float64, idx int) {
	pdf.SetXY(x, y)
	pdf.CellFormat(labelSize, 0.16, truncate(label.LineItemName, 34), "", 0, "C", false, 0, "")
	pdf.SetXY(x, y+0.16)
	pdf.CellFormat(labelSize, 0.16, truncate(label.Option1Value, 34), "", 0, "C", false, 0, "")

	digits, ok := FormatBarcode(label.Barcode)
	if !ok {
		placeholder(pdf, label.Sku, x, y)
		return
	}
	// The symbol's check digit is recomputed from the first 12 digits.
	code, err := ean.Encode(digits[:12])
	if err != nil {
		logger.WithFields(logrus.Fields{
			"sku":     label.Sku,
			"barcode": label.Barcode,
		}).Warn("barcode could not be encoded, rendering placeholder")
		placeholder(pdf, label.Sku, x, y)
		return
	}
	scaled, err := barcode.Scale(code, 300, 140)
	if err != nil {
		placeholder(pdf, label.Sku, x, y)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		placeholder(pdf, label.Sku, x, y)
		return
	}
	name := fmt.Sprintf("label-%d", idx)
	pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, &buf)
	pdf.ImageOptions(name, x+0.1, y+0.4, labelSize-0.2, 0.7, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetXY(x, y+1.14)
	pdf.CellFormat(labelSize, 0.16, scaled.Content(), "", 0, "C", false, 0, "")
}

func placeholder(pdf *gofpdf.Fpdf, sku string, x, y float64) {
	pdf.SetXY(x, y+0.6)
	pdf.CellFormat(labelSize, 0.16, "barcode unavailable", "", 0, "C", false, 0, "")
	pdf.SetXY(x, y+0.78)
	pdf.CellFormat(labelSize, 0.16, truncate(sku, 24), "", 0, "C", false, 0, "")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
