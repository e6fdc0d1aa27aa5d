package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/documents"
	"bitbucket.org/mmdatafocus/replenish_backend/export"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
	"bitbucket.org/mmdatafocus/replenish_backend/sourcecache"
	"bitbucket.org/mmdatafocus/replenish_backend/transform"
	"bitbucket.org/mmdatafocus/replenish_backend/utils"
)

// prepareReplenishment pulls every source, reconciles and merges them, and
// pushes the result to the configured sinks. Stock levels and the variant
// catalogue are mandatory; the other sources degrade to empty with the run
// marked partial.
func (w *Worker) prepareReplenishment(ctx context.Context, state *runState) error {
	now := w.now()
	weekWindow := config.WeekWindow()
	useCache := config.EnvBool("USE_SOURCE_CACHE", false)

	var stock []models.StockLevel
	if !useCache || !w.loadCached("stock_levels", &stock) {
		var err error
		stock, err = w.warehouse.StockLevels(ctx)
		if err != nil {
			return fmt.Errorf("fetch stock levels: %w", err)
		}
		w.storeCached("stock_levels", stock)
	}
	state.addStat("stock_levels", len(stock))

	meta, err := w.records.ProductMetadata(ctx)
	if err != nil {
		return fmt.Errorf("fetch product metadata: %w", err)
	}
	state.addStat("metadata_records", len(meta))

	var committed []models.CommittedFact
	if !useCache || !w.loadCached("committed_stock", &committed) {
		committed, err = w.storefront.CommittedStock(ctx)
		if err != nil {
			w.recordSourceError(state, "storefront", "committed_stock", err)
			committed = nil
		} else {
			w.storeCached("committed_stock", committed)
		}
	}

	incoming := w.fetchIncoming(ctx, state, now.AddDate(-1, 0, 0).Format("2006-01-02"))
	state.addStat("incoming_lines", len(incoming))

	var salesLines []json.RawMessage
	if !useCache || !w.loadCached("sales_lines", &salesLines) {
		salesLines, err = w.storefront.SalesData(ctx, weekWindow, now)
		if err != nil {
			w.recordSourceError(state, "storefront", "sales", err)
			salesLines = nil
		} else {
			w.storeCached("sales_lines", salesLines)
		}
	}
	matrix := transform.ReshapeSales(salesLines, weekWindow, now)
	state.addStat("sales_skus", matrix.Len())

	stockRecords := transform.ReconcileStock(stock, incoming, committed, config.EnvString("STOREFRONT_LOCATION_ID", ""))
	rows := transform.MergeReplenishment(stockRecords, matrix, meta, now)
	state.addStat("replenishment_rows", len(rows))
	state.run.RecordsSynced = len(rows)
	w.storeCached("replenishment_rows", rows)

	csvPath := export.TimestampedPath("replenishment", "csv", now)
	if err := export.WriteReplenishmentCSV(rows, weekWindow, csvPath); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	xlsxPath := export.TimestampedPath("replenishment", "xlsx", now)
	if err := export.WriteReplenishmentExcel(rows, weekWindow, xlsxPath); err != nil {
		return fmt.Errorf("write excel: %w", err)
	}
	jsonPath := export.TimestampedPath("replenishment", "json", now)
	if err := export.WriteJSON(rows, jsonPath); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	state.addStat("csv_path", csvPath)

	if w.sheets != nil {
		if err := w.sheets.WriteReplenishment(ctx, rows, weekWindow); err != nil {
			return fmt.Errorf("write spreadsheet: %w", err)
		}
		if err := w.sheets.ClearToOrderQty(ctx); err != nil {
			return fmt.Errorf("clear order quantities: %w", err)
		}
	}

	if err := w.records.ReplaceReplenishment(ctx, rows); err != nil {
		return fmt.Errorf("rewrite record store: %w", err)
	}
	return nil
}

// fetchIncoming sums expected arrivals from warehouse purchase orders,
// falling back to the record store's open PO lines when the warehouse
// query degrades.
func (w *Worker) fetchIncoming(ctx context.Context, state *runState, createdFrom string) []models.IncomingStockLine {
	pos, err := w.warehouse.PurchaseOrders(ctx, createdFrom)
	if err == nil {
		return incomingLines(pos)
	}
	w.recordSourceError(state, "warehouse", "purchase_orders", err)

	lines, err := w.records.IncomingStock(ctx)
	if err != nil {
		w.recordSourceError(state, "records", "incoming_stock", err)
		return nil
	}
	return lines
}

func incomingLines(pos []models.PurchaseOrder) []models.IncomingStockLine {
	var lines []models.IncomingStockLine
	for _, po := range pos {
		if po.FulfillmentStatus != "Open" && po.FulfillmentStatus != "Draft" {
			continue
		}
		for _, item := range po.LineItems {
			lines = append(lines, models.IncomingStockLine{
				Sku:      item.Sku,
				Ordered:  item.Quantity,
				Received: item.QuantityReceived,
			})
		}
	}
	return lines
}

// populateRecordStore rewrites the record-store replenishment table from
// the last prepared rows without refetching any upstream source.
func (w *Worker) populateRecordStore(ctx context.Context, state *runState) error {
	var rows []models.ReplenishmentRow
	found, err := sourcecache.Load("replenishment_rows", &rows)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no prepared replenishment rows cached, run %s first", models.TaskPrepareReplenishment)
	}
	state.addStat("replenishment_rows", len(rows))
	state.run.RecordsSynced = len(rows)
	return w.records.ReplaceReplenishment(ctx, rows)
}

// barcodeLabels renders a label PDF for each flagged purchase order,
// uploads it, and attaches it back to the order. One bad order does not
// stop the rest.
func (w *Worker) barcodeLabels(ctx context.Context, state *runState) error {
	orders, err := w.records.LabelOrders(ctx)
	if err != nil {
		return fmt.Errorf("list label orders: %w", err)
	}
	state.addStat("label_orders", len(orders))

	rendered := 0
	for i := range orders {
		order := &orders[i]
		var buf bytes.Buffer
		count, err := documents.RenderLabels(order, &buf)
		if err != nil {
			w.recordSourceError(state, "documents", "label_order:"+order.PoNumber, err)
			continue
		}

		filename := fmt.Sprintf("barcode_labels_%s.pdf", sanitizeName(order.PoNumber))
		objectName := fmt.Sprintf("labels/%s/%s", w.now().Format("20060102"), filename)
		url, err := utils.UploadDocumentToGCS(ctx, objectName, buf.Bytes(), "application/pdf")
		if err != nil {
			w.recordSourceError(state, "storage", "label_order:"+order.PoNumber, err)
			continue
		}
		if err := w.records.FinishLabelOrder(ctx, order.RecordID, url, filename); err != nil {
			w.recordSourceError(state, "records", "label_order:"+order.PoNumber, err)
			continue
		}
		rendered++
		w.logger.WithFields(logrus.Fields{
			"po_number": order.PoNumber,
			"labels":    count,
			"pages":     documents.PageCount(count),
		}).Info("label sheet attached")
	}
	state.addStat("orders_rendered", rendered)
	state.run.RecordsSynced = rendered
	return nil
}

// pushPurchaseOrders submits queued purchase orders to the warehouse and
// writes the outcome back on each order.
func (w *Worker) pushPurchaseOrders(ctx context.Context, state *runState) error {
	pos, err := w.records.QueuedPurchaseOrders(ctx)
	if err != nil {
		return fmt.Errorf("list queued purchase orders: %w", err)
	}
	state.addStat("queued_orders", len(pos))

	pushed := 0
	for i := range pos {
		po := &pos[i]
		warehouseID, err := w.warehouse.CreatePurchaseOrder(ctx, po)
		if err != nil {
			w.recordSourceError(state, "warehouse", "purchase_order:"+po.PoNumber, err)
			if updateErr := w.records.UpdateSyncStatus(ctx, po.RecordID, "Error", err.Error()); updateErr != nil {
				w.recordSourceError(state, "records", "purchase_order:"+po.PoNumber, updateErr)
			}
			continue
		}
		if err := w.records.UpdateSyncStatus(ctx, po.RecordID, "Synced", "warehouse id "+warehouseID); err != nil {
			w.recordSourceError(state, "records", "purchase_order:"+po.PoNumber, err)
			continue
		}
		pushed++
	}
	state.addStat("orders_pushed", pushed)
	state.run.RecordsSynced = pushed
	return nil
}

func (w *Worker) loadCached(name string, out interface{}) bool {
	found, err := sourcecache.Load(name, out)
	if err != nil {
		w.logger.WithField("source", name).Warn("source cache unreadable, refetching")
		return false
	}
	if found {
		w.logger.WithField("source", name).Info("using cached source payload")
	}
	return found
}

func (w *Worker) storeCached(name string, payload interface{}) {
	if err := sourcecache.Store(name, payload); err != nil {
		w.logger.WithField("source", name).Warn("source payload not cached")
	}
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
