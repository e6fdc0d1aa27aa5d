package transform

import (
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
)

// ReconcileStock joins warehouse stock levels with committed-quantity
// facts and expected purchase-order arrivals into one record per SKU.
//
// Duplicate SKUs behave asymmetrically: on_hand and allocated keep the
// first occurrence (later duplicates are logged and dropped) while
// committed and incoming sum across every occurrence. locationID, when
// set, restricts which committed facts count.
func ReconcileStock(levels []models.StockLevel, incoming []models.IncomingStockLine, committed []models.CommittedFact, locationID string) []models.StockRecord {
	logger := config.GetLogger()

	committedBySku := make(map[string]int)
	for _, fact := range committed {
		if locationID != "" && fact.LocationID != locationID {
			continue
		}
		committedBySku[fact.Sku] += fact.Quantity
	}

	incomingBySku := make(map[string]int)
	for _, line := range incoming {
		// Signed difference: an over-received line subtracts from the total.
		incomingBySku[line.Sku] += line.Ordered - line.Received
	}

	seen := make(map[string]bool, len(levels))
	records := make([]models.StockRecord, 0, len(levels))
	for _, level := range levels {
		if seen[level.Sku] {
			logger.WithFields(logrus.Fields{
				"sku":     level.Sku,
				"on_hand": level.OnHand,
			}).Warn("duplicate SKU in stock levels, keeping first occurrence")
			continue
		}
		seen[level.Sku] = true

		committedQty := committedBySku[level.Sku]
		net := level.OnHand - committedQty
		available := net
		backorder := 0
		if net < 0 {
			available = 0
			backorder = net
		}
		records = append(records, models.StockRecord{
			Sku:       level.Sku,
			OnHand:    level.OnHand,
			Allocated: level.Allocated,
			Committed: committedQty,
			Available: available,
			Backorder: backorder,
			Incoming:  incomingBySku[level.Sku],
		})
	}
	return records
}
