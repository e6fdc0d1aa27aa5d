package models

import "time"

// OrderRecord is one storefront order from the commerce bulk export.
// JSON tags mirror the export's field names so the raw JSONL lines decode
// directly. Immutable once fetched within a run.
type OrderRecord struct {
	ID                string     `json:"id" validate:"required"`
	OrderNumber       string     `json:"name"`
	CreatedAt         time.Time  `json:"createdAt"`
	Tags              []string   `json:"tags"`
	FulfillmentStatus string     `json:"displayFulfillmentStatus"`
	FinancialStatus   string     `json:"displayFinancialStatus"`
	CancelledAt       *time.Time `json:"cancelledAt,omitempty"`
}

// LineItemRecord is one order line from the commerce bulk export.
// ParentOrderID is a weak reference; lines without a resolvable parent are
// dropped during the sales reshape.
type LineItemRecord struct {
	ID                  string `json:"id" validate:"required"`
	ParentOrderID       string `json:"__parentId" validate:"required"`
	Sku                 string `json:"sku"`
	Quantity            int    `json:"quantity" validate:"min=0"`
	UnfulfilledQuantity int    `json:"unfulfilledQuantity"`
}

// SalesMatrix is the SKU x week pivot produced by the sales reshape. Week
// index 0 holds the most recent complete week ("1 week ago"); every SKU row
// has exactly WeekWindow cells, zero-filled.
type SalesMatrix struct {
	WeekWindow int
	cells      map[string][]int
}

func NewSalesMatrix(weekWindow int) *SalesMatrix {
	return &SalesMatrix{
		WeekWindow: weekWindow,
		cells:      make(map[string][]int),
	}
}

// Add accumulates quantity for (sku, weeksAgo) where weeksAgo is 1-based.
// Out-of-window weeks are ignored.
func (m *SalesMatrix) Add(sku string, weeksAgo int, quantity int) {
	if weeksAgo < 1 || weeksAgo > m.WeekWindow {
		return
	}
	row, ok := m.cells[sku]
	if !ok {
		row = make([]int, m.WeekWindow)
		m.cells[sku] = row
	}
	row[weeksAgo-1] += quantity
}

// WeeklySales returns the row for sku, index 0 = 1 week ago. A SKU with no
// in-window sales returns all zeros and (false).
func (m *SalesMatrix) WeeklySales(sku string) ([]int, bool) {
	row, ok := m.cells[sku]
	if !ok {
		return make([]int, m.WeekWindow), false
	}
	out := make([]int, len(row))
	copy(out, row)
	return out, true
}

func (m *SalesMatrix) Len() int {
	return len(m.cells)
}

func (m *SalesMatrix) Skus() []string {
	skus := make([]string, 0, len(m.cells))
	for sku := range m.cells {
		skus = append(skus, sku)
	}
	return skus
}
