package documents

import (
	"bytes"
	"testing"

	"bitbucket.org/mmdatafocus/replenish_backend/models"
)

func TestFormatBarcode(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"short value zero padded", "12345", "0000000012345", true},
		{"long value keeps rightmost 13", "12345678901234567", "5678901234567", true},
		{"separators stripped", "123-456-789-0123", "1234567890123", true},
		{"empty", "", "", false},
		{"no digits at all", "abc-def", "", false},
		{"exactly 13", "4006381333931", "4006381333931", true},
		{"whitespace and letters", " 40 06 381a333931 ", "4006381333931", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := FormatBarcode(tc.raw)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("FormatBarcode(%q) = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestExpandLabels(t *testing.T) {
	lines := []models.LabelLineItem{
		{Sku: "A", Quantity: 3},
		{Sku: "B", Quantity: 0},
		{Sku: "C", Quantity: -2},
		{Sku: "D", Quantity: 1},
	}
	labels := ExpandLabels(lines)
	if len(labels) != 4 {
		t.Fatalf("expected 4 labels, got %d", len(labels))
	}
	if labels[0].Sku != "A" || labels[2].Sku != "A" || labels[3].Sku != "D" {
		t.Fatalf("unexpected expansion order: %+v", labels)
	}
}

func TestPageCount(t *testing.T) {
	cases := []struct {
		labels int
		pages  int
	}{
		{0, 0},
		{1, 1},
		{5, 1},
		{24, 1},
		{25, 2},
		{48, 2},
		{49, 3},
	}
	for _, tc := range cases {
		if got := PageCount(tc.labels); got != tc.pages {
			t.Fatalf("PageCount(%d) = %d, want %d", tc.labels, got, tc.pages)
		}
	}
}

func TestRenderLabelsProducesPDF(t *testing.T) {
	order := &models.LabelOrder{
		RecordID: "rec1",
		PoNumber: "PO-100",
		LineItems: []models.LabelLineItem{
			{Sku: "SKU-A", LineItemName: "Widget", Option1Value: "Large", Barcode: "4006381333931", Quantity: 2},
			{Sku: "SKU-B", LineItemName: "Gadget", Barcode: "not a barcode", Quantity: 1},
		},
	}

	var buf bytes.Buffer
	count, err := RenderLabels(order, &buf)
	if err != nil {
		t.Fatalf("RenderLabels: %v", err)
	}
	if count != 3 {
		t.Fatalf("label count = %d, want 3", count)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatal("output does not look like a PDF")
	}
}

func TestRenderLabelsEmptyOrder(t *testing.T) {
	order := &models.LabelOrder{
		PoNumber:  "PO-101",
		LineItems: []models.LabelLineItem{{Sku: "SKU-A", Quantity: 0}},
	}

	var buf bytes.Buffer
	if _, err := RenderLabels(order, &buf); err == nil {
		t.Fatal("expected an error for an order with nothing to print")
	}
}
