package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
)

// TimestampedPath builds an output path like output/replenishment_20260831_153000.csv.
func TimestampedPath(prefix, ext string, now time.Time) string {
	name := fmt.Sprintf("%s_%s.%s", prefix, now.Format("20060102_150405"), ext)
	return filepath.Join(config.OutputDir(), name)
}

// WriteReplenishmentCSV writes the replenishment table as CSV, creating
// the output directory if needed.
func WriteReplenishmentCSV(rows []models.ReplenishmentRow, weekWindow int, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(models.ReplenishmentHeader(weekWindow)); err != nil {
		return err
	}
	for i := range rows {
		values := rows[i].Values()
		record := make([]string, len(values))
		for j, v := range values {
			record[j] = fmt.Sprint(v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteJSON writes any payload as indented JSON, creating the output
// directory if needed.
func WriteJSON(payload interface{}, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
