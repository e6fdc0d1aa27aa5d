package export

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
)

const (
	dataSheetName    = "Data - Replenishment"
	workingSheetName = "Replenishment"
	toOrderQtyHeader = "To Order Qty"
)

// SheetsExporter writes the replenishment table into the ordering
// spreadsheet.
type SheetsExporter struct {
	svc           *sheets.Service
	spreadsheetID string
}

func NewSheetsExporter(ctx context.Context) (*SheetsExporter, error) {
	spreadsheetID := config.EnvString("SHEETS_SPREADSHEET_ID", "")
	if spreadsheetID == "" {
		return nil, fmt.Errorf("SHEETS_SPREADSHEET_ID must be set")
	}
	var opts []option.ClientOption
	if credsJSON := config.EnvString("SHEETS_CREDENTIALS_JSON", ""); credsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credsJSON)))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsExporter{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// WriteReplenishment clears the data sheet and rewrites it. A blank spacer
// row separates consecutive product numbers so the ordering view reads in
// visual groups.
func (e *SheetsExporter) WriteReplenishment(ctx context.Context, rows []models.ReplenishmentRow, weekWindow int) error {
	clearRange := fmt.Sprintf("'%s'", dataSheetName)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear data sheet: %w", err)
	}

	values := [][]interface{}{headerRow(weekWindow)}
	lastProductNum := ""
	for i := range rows {
		row := &rows[i]
		if i > 0 && row.ProductNum != lastProductNum {
			values = append(values, []interface{}{})
		}
		lastProductNum = row.ProductNum
		values = append(values, row.Values())
	}

	body := &sheets.ValueRange{Values: values}
	writeRange := fmt.Sprintf("'%s'!A1", dataSheetName)
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, writeRange, body).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write data sheet: %w", err)
	}
	config.GetLogger().WithField("rows", len(values)-1).Info("replenishment sheet rewritten")
	return nil
}

// ClearToOrderQty blanks the manual order-quantity column on the working
// sheet so stale quantities from the previous ordering round cannot leak
// into a new purchase order. The column is located by its header text.
func (e *SheetsExporter) ClearToOrderQty(ctx context.Context) error {
	headerRange := fmt.Sprintf("'%s'!1:1", workingSheetName)
	resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read working sheet header: %w", err)
	}
	col := -1
	if len(resp.Values) > 0 {
		for i, cell := range resp.Values[0] {
			if s, ok := cell.(string); ok && s == toOrderQtyHeader {
				col = i
				break
			}
		}
	}
	if col < 0 {
		return fmt.Errorf("column %q not found on sheet %q", toOrderQtyHeader, workingSheetName)
	}

	letter := columnLetter(col)
	clearRange := fmt.Sprintf("'%s'!%s2:%s", workingSheetName, letter, letter)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %q column: %w", toOrderQtyHeader, err)
	}
	return nil
}

func headerRow(weekWindow int) []interface{} {
	header := models.ReplenishmentHeader(weekWindow)
	out := make([]interface{}, len(header))
	for i, h := range header {
		out[i] = h
	}
	return out
}

func columnLetter(index int) string {
	letter := ""
	for index >= 0 {
		letter = string(rune('A'+index%26)) + letter
		index = index/26 - 1
	}
	return letter
}
