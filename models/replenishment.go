package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ReplenishmentRow is the final merged table row: one per SKU present in
// both the stock and metadata sources. Sales holds WeekWindow cells, index
// 0 = 1 week ago.
type ReplenishmentRow struct {
	Sku                 string
	Option1Value        string
	CostProductionTotal decimal.Decimal
	ProductName         string
	Category            string
	Subcategory         string
	ProductNum          string
	ProductTypeInternal string
	Supplier            string
	Status              string
	DecorationGroup     string
	ArtworkTitle        string

	Sales []int

	OnHand    int
	Allocated int
	Available int
	Backorder int
	Incoming  int
	Committed int

	UpdatedAt string
}

// SalesColumnName labels a pivot column positionally.
func SalesColumnName(weeksAgo int) string {
	if weeksAgo == 1 {
		return "sales_1_week_ago"
	}
	return fmt.Sprintf("sales_%d_weeks_ago", weeksAgo)
}

// ReplenishmentHeader is the fixed column order: metadata, then sales most
// recent first, then stock, then everything else, with updated_at trailing.
func ReplenishmentHeader(weekWindow int) []string {
	header := []string{
		"sku",
		"option1_value",
		"cost_production_total",
		"product_name",
		"category",
		"subcategory",
		"product_num",
		"product_type_internal",
		"supplier",
		"status",
		"decoration_group",
		"artwork_title",
	}
	for i := 1; i <= weekWindow; i++ {
		header = append(header, SalesColumnName(i))
	}
	header = append(header,
		"on_hand",
		"allocated",
		"available",
		"backorder",
		"incoming_stock",
		"committed",
		"updated_at",
	)
	return header
}

// Values returns the row in header order. Numeric identifier columns stay
// strings so sinks never coerce them back to numbers.
func (r *ReplenishmentRow) Values() []interface{} {
	values := []interface{}{
		r.Sku,
		r.Option1Value,
		r.CostProductionTotal.String(),
		r.ProductName,
		r.Category,
		r.Subcategory,
		r.ProductNum,
		r.ProductTypeInternal,
		r.Supplier,
		r.Status,
		r.DecorationGroup,
		r.ArtworkTitle,
	}
	for _, qty := range r.Sales {
		values = append(values, qty)
	}
	values = append(values,
		r.OnHand,
		r.Allocated,
		r.Available,
		r.Backorder,
		r.Incoming,
		r.Committed,
		r.UpdatedAt,
	)
	return values
}
