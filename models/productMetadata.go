package models

import "github.com/shopspring/decimal"

// ProductMetadataRecord is the per-SKU catalog row from the record store's
// Variants table. List-valued source fields arrive flattened to their first
// element or stringified.
type ProductMetadataRecord struct {
	Sku                 string          `json:"sku" validate:"required"`
	ProductNum          string          `json:"product_num"`
	ProductName         string          `json:"product_name"`
	Option1Value        string          `json:"option1_value"`
	Position            string          `json:"position"`
	Category            string          `json:"category"`
	Subcategory         string          `json:"subcategory"`
	ProductTypeInternal string          `json:"product_type_internal"`
	DecorationGroup     string          `json:"decoration_group"`
	ArtworkTitle        string          `json:"artwork_title"`
	CostProductionTotal decimal.Decimal `json:"cost_production_total"`
	Supplier            string          `json:"supplier"`
	Status              string          `json:"status"`
}
