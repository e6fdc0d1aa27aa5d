package models

import "github.com/shopspring/decimal"

// PurchaseOrder is one warehouse purchase order with its nested line items,
// as reported by the warehouse API.
type PurchaseOrder struct {
	ID                string                  `json:"id"`
	PoNumber          string                  `json:"po_number" validate:"required"`
	FulfillmentStatus string                  `json:"fulfillment_status"`
	LineItems         []PurchaseOrderLineItem `json:"line_items"`
}

type PurchaseOrderLineItem struct {
	ID               string `json:"id"`
	Sku              string `json:"sku"`
	Quantity         int    `json:"quantity"`
	QuantityReceived int    `json:"quantity_received"`
}

// QueuedPurchaseOrder is a record-store purchase order enqueued for push to
// the warehouse system, with its queued line items.
type QueuedPurchaseOrder struct {
	RecordID  string
	PoNumber  string
	VendorID  string
	LineItems []QueuedPurchaseOrderLine
}

type QueuedPurchaseOrderLine struct {
	RecordID string
	Sku      string
	Quantity int
	Price    decimal.Decimal
}

// Subtotal is the sum of quantity x price over the queued lines.
func (po *QueuedPurchaseOrder) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range po.LineItems {
		subtotal = subtotal.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return subtotal
}

// LabelOrder is a record-store purchase order flagged for barcode label
// generation, with its line items sorted by position.
type LabelOrder struct {
	RecordID  string
	PoNumber  string
	LineItems []LabelLineItem
}

type LabelLineItem struct {
	Position     int
	Sku          string
	LineItemName string
	Option1Value string
	Barcode      string
	Quantity     int
}
