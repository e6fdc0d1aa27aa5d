package transform

import (
	"regexp"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
)

var artifactChars = regexp.MustCompile(`[\[\]'"]`)

func cleanField(s string) string {
	return artifactChars.ReplaceAllString(s, "")
}

// MergeReplenishment joins reconciled stock with the variant catalogue and
// the weekly sales matrix into the final replenishment rows.
//
// Stock and catalogue join inner on SKU: a SKU missing from either side
// is dropped (and logged). Sales join left with zero fill, so a SKU that
// never sold still gets a full row. Rows sort by decoration group, then
// internal product type, then product number, all as plain strings.
func MergeReplenishment(stock []models.StockRecord, sales *models.SalesMatrix, meta []models.ProductMetadataRecord, now time.Time) []models.ReplenishmentRow {
	logger := config.GetLogger()
	updatedAt := now.Format("2006-01-02 15:04:05")

	metaBySku := make(map[string]*models.ProductMetadataRecord, len(meta))
	for i := range meta {
		metaBySku[meta[i].Sku] = &meta[i]
	}

	rows := make([]models.ReplenishmentRow, 0, len(stock))
	droppedStock := 0
	for _, rec := range stock {
		m, ok := metaBySku[rec.Sku]
		if !ok {
			droppedStock++
			continue
		}
		weekly, _ := sales.WeeklySales(rec.Sku)
		rows = append(rows, models.ReplenishmentRow{
			Sku:                 rec.Sku,
			Option1Value:        cleanField(m.Option1Value),
			CostProductionTotal: m.CostProductionTotal,
			ProductName:         cleanField(m.ProductName),
			Category:            cleanField(m.Category),
			Subcategory:         cleanField(m.Subcategory),
			ProductNum:          cleanField(m.ProductNum),
			ProductTypeInternal: cleanField(m.ProductTypeInternal),
			Supplier:            cleanField(m.Supplier),
			Status:              cleanField(m.Status),
			DecorationGroup:     cleanField(m.DecorationGroup),
			ArtworkTitle:        cleanField(m.ArtworkTitle),
			Sales:               weekly,
			OnHand:              rec.OnHand,
			Allocated:           rec.Allocated,
			Available:           rec.Available,
			Backorder:           rec.Backorder,
			Incoming:            rec.Incoming,
			Committed:           rec.Committed,
			UpdatedAt:           updatedAt,
		})
	}
	if droppedStock > 0 {
		logger.WithField("count", droppedStock).
			Info("stock records without catalogue metadata dropped from merge")
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if a.DecorationGroup != b.DecorationGroup {
			return a.DecorationGroup < b.DecorationGroup
		}
		if a.ProductTypeInternal != b.ProductTypeInternal {
			return a.ProductTypeInternal < b.ProductTypeInternal
		}
		return a.ProductNum < b.ProductNum
	})
	return rows
}
