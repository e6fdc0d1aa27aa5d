package transform

import (
	"testing"

	"bitbucket.org/mmdatafocus/replenish_backend/models"
)

func TestReconcileStockAvailableAndBackorder(t *testing.T) {
	levels := []models.StockLevel{
		{Sku: "SKU-A", OnHand: 10, Allocated: 2},
		{Sku: "SKU-B", OnHand: 1},
	}
	committed := []models.CommittedFact{
		{Sku: "SKU-A", LocationID: "loc-1", Quantity: 3},
		{Sku: "SKU-B", LocationID: "loc-1", Quantity: 4},
	}

	records := ReconcileStock(levels, nil, committed, "")
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	a := records[0]
	if a.Available != 7 || a.Backorder != 0 || a.Committed != 3 {
		t.Fatalf("SKU-A = %+v, want available 7 backorder 0 committed 3", a)
	}

	b := records[1]
	if b.Available != 0 || b.Backorder != -3 {
		t.Fatalf("SKU-B = %+v, want available 0 backorder -3", b)
	}
}

func TestReconcileStockDuplicateSkuKeepsFirst(t *testing.T) {
	levels := []models.StockLevel{
		{Sku: "SKU-A", OnHand: 5},
		{Sku: "SKU-A", OnHand: 99},
	}

	records := ReconcileStock(levels, nil, nil, "")
	if len(records) != 1 {
		t.Fatalf("expected duplicate collapsed to 1 record, got %d", len(records))
	}
	if records[0].OnHand != 5 {
		t.Fatalf("OnHand = %d, want first occurrence 5", records[0].OnHand)
	}
}

func TestReconcileStockIncomingSum(t *testing.T) {
	levels := []models.StockLevel{{Sku: "SKU-A", OnHand: 1}}
	incoming := []models.IncomingStockLine{
		{Sku: "SKU-A", Ordered: 10, Received: 4},
		{Sku: "SKU-A", Ordered: 5, Received: 0},
		{Sku: "SKU-A", Ordered: 3, Received: 3},
		{Sku: "SKU-A", Ordered: 2, Received: 6},
	}

	records := ReconcileStock(levels, incoming, nil, "")
	// (10-4) + (5-0) + (3-3) + (2-6): the over-received line subtracts.
	if records[0].Incoming != 7 {
		t.Fatalf("Incoming = %d, want signed sum 7", records[0].Incoming)
	}
}

func TestReconcileStockLocationFilter(t *testing.T) {
	levels := []models.StockLevel{{Sku: "SKU-A", OnHand: 10}}
	committed := []models.CommittedFact{
		{Sku: "SKU-A", LocationID: "loc-1", Quantity: 3},
		{Sku: "SKU-A", LocationID: "loc-2", Quantity: 5},
	}

	records := ReconcileStock(levels, nil, committed, "loc-1")
	if records[0].Committed != 3 {
		t.Fatalf("Committed = %d, want only loc-1's 3", records[0].Committed)
	}

	records = ReconcileStock(levels, nil, committed, "")
	if records[0].Committed != 8 {
		t.Fatalf("Committed = %d, want all locations summed to 8", records[0].Committed)
	}
}

func TestReconcileStockUnknownSkuDefaults(t *testing.T) {
	levels := []models.StockLevel{{Sku: "SKU-NEW", OnHand: 2}}

	records := ReconcileStock(levels, nil, nil, "")
	r := records[0]
	if r.Committed != 0 || r.Incoming != 0 || r.Available != 2 || r.Backorder != 0 {
		t.Fatalf("defaults wrong: %+v", r)
	}
}
