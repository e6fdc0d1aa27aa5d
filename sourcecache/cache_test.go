package sourcecache

import (
	"testing"

	"bitbucket.org/mmdatafocus/replenish_backend/models"
)

func TestStoreAndLoadRoundTrip(t *testing.T) {
	t.Setenv("CACHE_DIR", t.TempDir())

	in := []models.StockLevel{
		{Sku: "SKU-A", OnHand: 10, Allocated: 2},
		{Sku: "SKU-B", OnHand: 0},
	}
	if err := Store("stock_levels", in); err != nil {
		t.Fatalf("Store: %v", err)
	}

	var out []models.StockLevel
	found, err := Load("stock_levels", &out)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !found {
		t.Fatal("cached payload not found after Store")
	}
	if len(out) != 2 || out[0].Sku != "SKU-A" || out[0].OnHand != 10 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestLoadMissingIsNotAnError(t *testing.T) {
	t.Setenv("CACHE_DIR", t.TempDir())

	var out []models.StockLevel
	found, err := Load("never_stored", &out)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found {
		t.Fatal("expected found=false for a missing cache entry")
	}
}

func TestStoreReplacesPreviousPayload(t *testing.T) {
	t.Setenv("CACHE_DIR", t.TempDir())

	if err := Store("stock_levels", []models.StockLevel{{Sku: "OLD"}}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := Store("stock_levels", []models.StockLevel{{Sku: "NEW"}}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	var out []models.StockLevel
	if _, err := Load("stock_levels", &out); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 1 || out[0].Sku != "NEW" {
		t.Fatalf("expected replacement payload, got %+v", out)
	}
}
