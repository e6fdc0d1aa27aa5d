package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Batch size for record-store writes. The record-store API rejects larger
// create batches.
const RecordStoreBatchSize = 10

const defaultWeekWindow = 52

func init() {
	// Load env from .env
	godotenv.Load()
}

func EnvString(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func EnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}

// WeekWindow is the number of complete past weeks the sales reshape keeps.
// Upstream reports used different windows (9, 12, 52), so the window is an
// explicit setting rather than a constant.
func WeekWindow() int {
	n := EnvInt("WEEK_WINDOW", defaultWeekWindow)
	if n <= 0 {
		return defaultWeekWindow
	}
	return n
}

func OutputDir() string {
	return EnvString("OUTPUT_DIR", "output")
}

func CacheDir() string {
	return EnvString("CACHE_DIR", "cache")
}
