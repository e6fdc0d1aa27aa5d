package transform

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func rawLines(lines ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(lines))
	for _, l := range lines {
		out = append(out, json.RawMessage(l))
	}
	return out
}

func orderJSON(id, createdAt string) string {
	return fmt.Sprintf(`{"id":"%s","name":"#%s","createdAt":"%s"}`, id, id, createdAt)
}

func itemJSON(parentID, sku string, qty int) string {
	return fmt.Sprintf(`{"id":"li-%s","__parentId":"%s","sku":"%s","quantity":%d}`, sku, parentID, sku, qty)
}

func TestReshapeSalesPivotsByWeek(t *testing.T) {
	now := date(2026, time.August, 26)
	lines := rawLines(
		orderJSON("o1", "2026-08-20T10:00:00Z"), // 1 week ago
		itemJSON("o1", "SKU-A", 2),
		itemJSON("o1", "SKU-B", 1),
		orderJSON("o2", "2026-08-21T09:00:00Z"), // 1 week ago
		itemJSON("o2", "SKU-A", 3),
		orderJSON("o3", "2026-08-12T09:00:00Z"), // 2 weeks ago
		itemJSON("o3", "SKU-A", 4),
	)

	matrix := ReshapeSales(lines, 4, now)
	weekly, ok := matrix.WeeklySales("SKU-A")
	if !ok {
		t.Fatal("SKU-A missing from matrix")
	}
	if weekly[0] != 5 || weekly[1] != 4 || weekly[2] != 0 || weekly[3] != 0 {
		t.Fatalf("SKU-A weekly = %v, want [5 4 0 0]", weekly)
	}

	weekly, _ = matrix.WeeklySales("SKU-B")
	if weekly[0] != 1 {
		t.Fatalf("SKU-B weekly[0] = %d, want 1", weekly[0])
	}
}

func TestReshapeSalesCountsCancelledOrders(t *testing.T) {
	now := date(2026, time.August, 26)
	lines := rawLines(
		`{"id":"o1","name":"#o1","createdAt":"2026-08-20T10:00:00Z","cancelledAt":"2026-08-21T10:00:00Z"}`,
		itemJSON("o1", "SKU-A", 9),
	)

	matrix := ReshapeSales(lines, 4, now)
	weekly, ok := matrix.WeeklySales("SKU-A")
	if !ok {
		t.Fatal("cancelled order missing from matrix")
	}
	if weekly[0] != 9 {
		t.Fatalf("weekly = %v, want the cancelled order's 9 units in week 1", weekly)
	}
}

func TestReshapeSalesDropsOutOfWindowAndSkuless(t *testing.T) {
	now := date(2026, time.August, 26)
	lines := rawLines(
		orderJSON("recent", "2026-08-25T10:00:00Z"), // current partial week
		itemJSON("recent", "SKU-A", 5),
		orderJSON("ancient", "2020-01-01T00:00:00Z"),
		itemJSON("ancient", "SKU-A", 5),
		orderJSON("ok", "2026-08-20T10:00:00Z"),
		itemJSON("ok", "", 5),
		itemJSON("missing-parent", "SKU-A", 5),
	)

	matrix := ReshapeSales(lines, 4, now)
	if matrix.Len() != 0 {
		t.Fatalf("expected an empty matrix, got %d SKUs", matrix.Len())
	}
}

func TestReshapeSalesEmptyInput(t *testing.T) {
	matrix := ReshapeSales(nil, 52, date(2026, time.August, 26))
	if matrix.Len() != 0 {
		t.Fatalf("expected empty matrix, got %d SKUs", matrix.Len())
	}
	weekly, ok := matrix.WeeklySales("SKU-A")
	if ok || len(weekly) != 52 {
		t.Fatalf("expected a 52-wide zero row, got len %d ok %v", len(weekly), ok)
	}
}
