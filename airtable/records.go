package airtable

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
)

// Table names in the replenishment base.
const (
	tableVariants        = "Variants"
	tablePurchaseOrders  = "Purchase Orders"
	tablePOLineItems     = "Line Items"
	tableReplenishment   = "Replenishment"
	viewDataForPOBuilder = "Data for PO Builder"
)

const incomingStockFormula = "OR({PO Status} = 'Open', {PO Status} = 'Draft')"

func stringField(fields map[string]interface{}, name string) string {
	switch v := fields[name].(type) {
	case string:
		return v
	case []interface{}:
		// Lookup fields arrive as single-element lists.
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func intField(fields map[string]interface{}, name string) int {
	switch v := fields[name].(type) {
	case float64:
		return int(v)
	case []interface{}:
		if len(v) > 0 {
			if f, ok := v[0].(float64); ok {
				return int(f)
			}
		}
	}
	return 0
}

func decimalField(fields map[string]interface{}, name string) decimal.Decimal {
	switch v := fields[name].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	case []interface{}:
		if len(v) > 0 {
			if f, ok := v[0].(float64); ok {
				return decimal.NewFromFloat(f)
			}
		}
	}
	return decimal.Zero
}

func linkField(fields map[string]interface{}, name string) []string {
	raw, ok := fields[name].([]interface{})
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		if id, ok := item.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// IncomingStock lists purchase-order lines still expected to arrive. Only
// lines on orders that are Open or Draft count toward incoming stock.
func (c *Client) IncomingStock(ctx context.Context) ([]models.IncomingStockLine, error) {
	records, err := c.ListRecords(ctx, tablePOLineItems, ListOptions{
		FilterByFormula: incomingStockFormula,
		Fields:          []string{"sku", "Quantity Ordered", "Quantity Received"},
	})
	if err != nil {
		return nil, err
	}
	lines := make([]models.IncomingStockLine, 0, len(records))
	for _, rec := range records {
		sku := stringField(rec.Fields, "sku")
		if sku == "" {
			continue
		}
		lines = append(lines, models.IncomingStockLine{
			Sku:      sku,
			Ordered:  intField(rec.Fields, "Quantity Ordered"),
			Received: intField(rec.Fields, "Quantity Received"),
		})
	}
	return lines, nil
}

// ProductMetadata lists the variant catalogue rows the replenishment merge
// keys on. The PO-builder view pre-filters to sellable variants.
func (c *Client) ProductMetadata(ctx context.Context) ([]models.ProductMetadataRecord, error) {
	records, err := c.ListRecords(ctx, tableVariants, ListOptions{
		View: viewDataForPOBuilder,
		Fields: []string{
			"SKU",
			"Product Number",
			"Product Name",
			"Option1 Value",
			"Position",
			"Supplier (Plain Text)",
			"Status Shopify (Shopify)",
			"Decoration Group (Plain Text)",
			"Artwork (Title)",
			"Cost-Production: Total",
			"Category",
			"Subcategory",
			"Product Type (Internal)",
		},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.ProductMetadataRecord, 0, len(records))
	for _, rec := range records {
		sku := stringField(rec.Fields, "SKU")
		if sku == "" {
			config.GetLogger().WithField("record_id", rec.ID).
				Warn("variant record without SKU skipped")
			continue
		}
		out = append(out, models.ProductMetadataRecord{
			Sku:                 sku,
			ProductNum:          stringField(rec.Fields, "Product Number"),
			ProductName:         stringField(rec.Fields, "Product Name"),
			Option1Value:        stringField(rec.Fields, "Option1 Value"),
			Position:            stringField(rec.Fields, "Position"),
			Category:            stringField(rec.Fields, "Category"),
			Subcategory:         stringField(rec.Fields, "Subcategory"),
			ProductTypeInternal: stringField(rec.Fields, "Product Type (Internal)"),
			DecorationGroup:     stringField(rec.Fields, "Decoration Group (Plain Text)"),
			ArtworkTitle:        stringField(rec.Fields, "Artwork (Title)"),
			CostProductionTotal: decimalField(rec.Fields, "Cost-Production: Total"),
			Supplier:            stringField(rec.Fields, "Supplier (Plain Text)"),
			Status:              stringField(rec.Fields, "Status Shopify (Shopify)"),
		})
	}
	return out, nil
}

// VariantRecordIDs maps SKU to variant record id so other tables can link
// back to the catalogue row.
func (c *Client) VariantRecordIDs(ctx context.Context) (map[string]string, error) {
	records, err := c.ListRecords(ctx, tableVariants, ListOptions{Fields: []string{"SKU"}})
	if err != nil {
		return nil, err
	}
	ids := make(map[string]string, len(records))
	for _, rec := range records {
		if sku := stringField(rec.Fields, "SKU"); sku != "" {
			ids[sku] = rec.ID
		}
	}
	return ids, nil
}

// ReplaceReplenishment clears the replenishment table and rewrites it from
// the merged rows. Rows whose SKU has a catalogue record get a Variant link
// so rollups keep working.
func (c *Client) ReplaceReplenishment(ctx context.Context, rows []models.ReplenishmentRow) error {
	existing, err := c.ListRecords(ctx, tableReplenishment, ListOptions{Fields: []string{"SKU"}})
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(existing))
	for _, rec := range existing {
		ids = append(ids, rec.ID)
	}
	if err := c.DeleteRecords(ctx, tableReplenishment, ids); err != nil {
		return err
	}

	variantIDs, err := c.VariantRecordIDs(ctx)
	if err != nil {
		return err
	}

	fields := make([]map[string]interface{}, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		f := map[string]interface{}{
			"SKU":          row.Sku,
			"On Hand":      row.OnHand,
			"Allocated":    row.Allocated,
			"Available":    row.Available,
			"Backorder":    row.Backorder,
			"Incoming":     row.Incoming,
			"Committed":    row.Committed,
			"Updated At":   row.UpdatedAt,
			"Sales 4 Wks":  sumFirst(row.Sales, 4),
			"Sales 13 Wks": sumFirst(row.Sales, 13),
			"Sales 52 Wks": sumFirst(row.Sales, 52),
		}
		if recordID, ok := variantIDs[row.Sku]; ok {
			f["Variant"] = []string{recordID}
		}
		fields = append(fields, f)
	}
	if err := c.CreateRecords(ctx, tableReplenishment, fields); err != nil {
		return err
	}
	config.GetLogger().WithField("rows", len(fields)).Info("replenishment table rewritten")
	return nil
}

func sumFirst(sales []int, n int) int {
	if n > len(sales) {
		n = len(sales)
	}
	total := 0
	for _, qty := range sales[:n] {
		total += qty
	}
	return total
}

// LabelOrders lists purchase orders flagged for barcode-label generation,
// each with its line items in catalogue position order.
func (c *Client) LabelOrders(ctx context.Context) ([]models.LabelOrder, error) {
	orders, err := c.ListRecords(ctx, tablePurchaseOrders, ListOptions{
		FilterByFormula: "{Generate barcode labels}",
	})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	lineRecords, err := c.ListRecords(ctx, tablePOLineItems, ListOptions{
		Fields: []string{"sku", "Line Item Name", "Option1 Value", "Barcode", "Quantity Ordered", "Position"},
	})
	if err != nil {
		return nil, err
	}
	linesByID := make(map[string]models.LabelLineItem, len(lineRecords))
	for _, rec := range lineRecords {
		linesByID[rec.ID] = models.LabelLineItem{
			Position:     intField(rec.Fields, "Position"),
			Sku:          stringField(rec.Fields, "sku"),
			LineItemName: stringField(rec.Fields, "Line Item Name"),
			Option1Value: stringField(rec.Fields, "Option1 Value"),
			Barcode:      stringField(rec.Fields, "Barcode"),
			Quantity:     intField(rec.Fields, "Quantity Ordered"),
		}
	}

	out := make([]models.LabelOrder, 0, len(orders))
	for _, rec := range orders {
		order := models.LabelOrder{
			RecordID: rec.ID,
			PoNumber: stringField(rec.Fields, "PO Number"),
		}
		for _, lineID := range linkField(rec.Fields, "Line Items") {
			if line, ok := linesByID[lineID]; ok {
				order.LineItems = append(order.LineItems, line)
			}
		}
		sort.SliceStable(order.LineItems, func(i, j int) bool {
			return order.LineItems[i].Position < order.LineItems[j].Position
		})
		out = append(out, order)
	}
	return out, nil
}

// FinishLabelOrder attaches the rendered label document to the order and
// clears the generation flag so the order is not picked up again.
func (c *Client) FinishLabelOrder(ctx context.Context, recordID, pdfURL, filename string) error {
	return c.UpdateRecord(ctx, tablePurchaseOrders, recordID, map[string]interface{}{
		"Barcode Labels": []map[string]interface{}{
			{"url": pdfURL, "filename": filename},
		},
		"Generate barcode labels": false,
	})
}

// QueuedPurchaseOrders lists orders queued for warehouse submission with
// their priced line items.
func (c *Client) QueuedPurchaseOrders(ctx context.Context) ([]models.QueuedPurchaseOrder, error) {
	orders, err := c.ListRecords(ctx, tablePurchaseOrders, ListOptions{
		FilterByFormula: "{Sync Status} = 'Queued'",
	})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	lineRecords, err := c.ListRecords(ctx, tablePOLineItems, ListOptions{
		Fields: []string{"sku", "Quantity Ordered", "Unit Cost"},
	})
	if err != nil {
		return nil, err
	}
	linesByID := make(map[string]models.QueuedPurchaseOrderLine, len(lineRecords))
	for _, rec := range lineRecords {
		linesByID[rec.ID] = models.QueuedPurchaseOrderLine{
			RecordID: rec.ID,
			Sku:      stringField(rec.Fields, "sku"),
			Quantity: intField(rec.Fields, "Quantity Ordered"),
			Price:    decimalField(rec.Fields, "Unit Cost"),
		}
	}

	out := make([]models.QueuedPurchaseOrder, 0, len(orders))
	for _, rec := range orders {
		po := models.QueuedPurchaseOrder{
			RecordID: rec.ID,
			PoNumber: stringField(rec.Fields, "PO Number"),
			VendorID: stringField(rec.Fields, "Vendor ID"),
		}
		for _, lineID := range linkField(rec.Fields, "Line Items") {
			if line, ok := linesByID[lineID]; ok {
				po.LineItems = append(po.LineItems, line)
			}
		}
		out = append(out, po)
	}
	return out, nil
}

// UpdateSyncStatus records the outcome of a warehouse submission on the
// order so operators can see what happened without reading logs.
func (c *Client) UpdateSyncStatus(ctx context.Context, recordID, status, message string) error {
	fields := map[string]interface{}{"Sync Status": status}
	if message != "" {
		fields["Sync Message"] = message
	}
	if err := c.UpdateRecord(ctx, tablePurchaseOrders, recordID, fields); err != nil {
		return fmt.Errorf("update sync status: %w", err)
	}
	return nil
}
