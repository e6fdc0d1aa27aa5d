package models

// StockLevel is the warehouse-reported snapshot of a single SKU. On-hand is
// the authoritative figure; available/backorder are recomputed locally from
// committed quantities rather than trusted from the source.
type StockLevel struct {
	ID        string `json:"id"`
	Sku       string `json:"sku" validate:"required"`
	OnHand    int    `json:"on_hand"`
	Allocated int    `json:"allocated"`
	Available int    `json:"available"`
	Backorder int    `json:"backorder"`
}

// IncomingStockLine is one open or draft purchase-order line from the record
// store. Incoming per SKU is the sum of Ordered-Received over these lines.
type IncomingStockLine struct {
	Sku      string `json:"sku" validate:"required"`
	Ordered  int    `json:"ordered"`
	Received int    `json:"received"`
}

// CommittedFact is one inventory-level quantity fact from the commerce
// source. Facts are filtered to a single fulfillment location before they
// count toward committed stock.
type CommittedFact struct {
	Sku        string `json:"sku" validate:"required"`
	LocationID string `json:"location_id"`
	Quantity   int    `json:"quantity"`
}

// StockRecord is the reconciled per-SKU stock position.
// Invariant: Available >= 0 and Backorder <= 0.
type StockRecord struct {
	Sku       string `json:"sku"`
	OnHand    int    `json:"on_hand"`
	Allocated int    `json:"allocated"`
	Committed int    `json:"committed"`
	Available int    `json:"available"`
	Backorder int    `json:"backorder"`
	Incoming  int    `json:"incoming_stock"`
}
