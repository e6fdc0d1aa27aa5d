package transform

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
)

// ReshapeSales pivots the mixed order/line-item stream into a per-SKU
// weekly sales matrix with weekWindow columns. Orders outside the window
// range are dropped, along with line items missing a SKU. Cancellation is
// carried on the order record but does not remove it from the pivot; the
// storefront query is the only sales filter.
func ReshapeSales(lines []json.RawMessage, weekWindow int, now time.Time) *models.SalesMatrix {
	logger := config.GetLogger()
	windows := WeekWindows(now, weekWindow)

	weekByOrder := make(map[string]int)
	matrix := models.NewSalesMatrix(weekWindow)
	skippedOrders := 0
	skippedItems := 0

	// Orders always precede their line items in the export, but a single
	// pass over each kind keeps the ordering assumption out of the code.
	// Line items decode into OrderRecord too; the zero CreatedAt tells
	// them apart.
	for _, raw := range lines {
		var order models.OrderRecord
		if err := json.Unmarshal(raw, &order); err != nil || order.ID == "" || order.CreatedAt.IsZero() {
			continue
		}
		if weeksAgo := WeeksAgo(order.CreatedAt, windows); weeksAgo > 0 {
			weekByOrder[order.ID] = weeksAgo
		} else {
			skippedOrders++
		}
	}

	for _, raw := range lines {
		var item models.LineItemRecord
		if err := json.Unmarshal(raw, &item); err != nil || item.ParentOrderID == "" {
			continue
		}
		if item.Sku == "" {
			skippedItems++
			continue
		}
		weeksAgo, ok := weekByOrder[item.ParentOrderID]
		if !ok {
			continue
		}
		matrix.Add(item.Sku, weeksAgo, item.Quantity)
	}

	logger.WithFields(logrus.Fields{
		"skus":           matrix.Len(),
		"week_window":    weekWindow,
		"orders_skipped": skippedOrders,
		"items_skipped":  skippedItems,
	}).Info("sales stream reshaped")
	return matrix
}
