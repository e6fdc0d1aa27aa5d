package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
)

func newTestClient(srv *httptest.Server) *Client {
	return &Client{
		baseURL: srv.URL,
		baseID:  "appTEST",
		apiKey:  "key",
		http:    srv.Client(),
		logger:  config.GetLogger(),
	}
}

func TestListRecordsFollowsOffsets(t *testing.T) {
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("offset"))
		if len(offsets) == 1 {
			fmt.Fprint(w, `{"records":[{"id":"rec1","fields":{"SKU":"A"}},{"id":"rec2","fields":{"SKU":"B"}}],"offset":"next-page"}`)
			return
		}
		fmt.Fprint(w, `{"records":[{"id":"rec3","fields":{"SKU":"C"}}]}`)
	}))
	defer srv.Close()

	records, err := newTestClient(srv).ListRecords(context.Background(), "Variants", ListOptions{})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records across pages, got %d", len(records))
	}
	if len(offsets) != 2 || offsets[0] != "" || offsets[1] != "next-page" {
		t.Fatalf("unexpected offset sequence %v", offsets)
	}
}

func TestListRecordsSendsQueryOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("view") != "Data for PO Builder" {
			t.Errorf("view = %q", q.Get("view"))
		}
		if q.Get("filterByFormula") != "{Status} = 'Active'" {
			t.Errorf("filterByFormula = %q", q.Get("filterByFormula"))
		}
		if fields := q["fields[]"]; len(fields) != 2 || fields[0] != "SKU" || fields[1] != "Status" {
			t.Errorf("fields = %v", fields)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("authorization header = %q", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, `{"records":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).ListRecords(context.Background(), "Variants", ListOptions{
		View:            "Data for PO Builder",
		FilterByFormula: "{Status} = 'Active'",
		Fields:          []string{"SKU", "Status"},
	})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
}

func TestCreateRecordsBatchSize(t *testing.T) {
	var batchSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Records []json.RawMessage `json:"records"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		batchSizes = append(batchSizes, len(body.Records))
		fmt.Fprint(w, `{"records":[]}`)
	}))
	defer srv.Close()

	fields := make([]map[string]interface{}, 23)
	for i := range fields {
		fields[i] = map[string]interface{}{"SKU": fmt.Sprintf("SKU-%d", i)}
	}
	if err := newTestClient(srv).CreateRecords(context.Background(), "Replenishment", fields); err != nil {
		t.Fatalf("CreateRecords: %v", err)
	}
	if len(batchSizes) != 3 || batchSizes[0] != 10 || batchSizes[1] != 10 || batchSizes[2] != 3 {
		t.Fatalf("batch sizes = %v, want [10 10 3]", batchSizes)
	}
}

func TestDeleteRecordsBatchSize(t *testing.T) {
	var batches [][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batches = append(batches, r.URL.Query()["records[]"])
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("rec%d", i)
	}
	if err := newTestClient(srv).DeleteRecords(context.Background(), "Replenishment", ids); err != nil {
		t.Fatalf("DeleteRecords: %v", err)
	}
	if len(batches) != 2 || len(batches[0]) != 10 || len(batches[1]) != 2 {
		t.Fatalf("delete batches = %v", batches)
	}
}

func TestDoSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":{"type":"INVALID_REQUEST_UNKNOWN"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).ListRecords(context.Background(), "Variants", ListOptions{})
	if err == nil {
		t.Fatal("expected an error for a 422 response")
	}
}

func TestFieldHelpersFlattenLookupLists(t *testing.T) {
	fields := map[string]interface{}{
		"Name":     []interface{}{"Widget"},
		"Position": []interface{}{float64(4)},
		"Plain":    "text",
		"Count":    float64(7),
	}
	if got := stringField(fields, "Name"); got != "Widget" {
		t.Fatalf("stringField list = %q", got)
	}
	if got := intField(fields, "Position"); got != 4 {
		t.Fatalf("intField list = %d", got)
	}
	if got := stringField(fields, "Plain"); got != "text" {
		t.Fatalf("stringField = %q", got)
	}
	if got := intField(fields, "Count"); got != 7 {
		t.Fatalf("intField = %d", got)
	}
	if got := stringField(fields, "Missing"); got != "" {
		t.Fatalf("missing field = %q", got)
	}
}

func TestProductMetadataDecodesBaseFieldLabels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fields := r.URL.Query()["fields[]"]
		want := map[string]bool{
			"Product Number":                true,
			"Supplier (Plain Text)":         true,
			"Status Shopify (Shopify)":      true,
			"Decoration Group (Plain Text)": true,
			"Artwork (Title)":               true,
			"Cost-Production: Total":        true,
			"Product Type (Internal)":       true,
		}
		for _, f := range fields {
			delete(want, f)
		}
		if len(want) != 0 {
			t.Errorf("fields not requested: %v", want)
		}
		fmt.Fprint(w, `{"records":[{"id":"rec1","fields":{
			"SKU":"SKU-A",
			"Product Number":"P-100",
			"Product Name":"Widget",
			"Supplier (Plain Text)":["Acme"],
			"Status Shopify (Shopify)":["active"],
			"Decoration Group (Plain Text)":["Foil"],
			"Artwork (Title)":["Sunset"],
			"Cost-Production: Total":4.5,
			"Product Type (Internal)":["Tee"]
		}}]}`)
	}))
	defer srv.Close()

	meta, err := newTestClient(srv).ProductMetadata(context.Background())
	if err != nil {
		t.Fatalf("ProductMetadata: %v", err)
	}
	if len(meta) != 1 {
		t.Fatalf("expected 1 record, got %d", len(meta))
	}
	m := meta[0]
	if m.ProductNum != "P-100" || m.Supplier != "Acme" || m.Status != "active" {
		t.Fatalf("metadata decoded wrong: %+v", m)
	}
	if m.DecorationGroup != "Foil" || m.ArtworkTitle != "Sunset" || m.ProductTypeInternal != "Tee" {
		t.Fatalf("lookup labels decoded wrong: %+v", m)
	}
	if !m.CostProductionTotal.Equal(decimal.NewFromFloat(4.5)) {
		t.Fatalf("cost = %s, want 4.5", m.CostProductionTotal)
	}
}

func TestIncomingStockUsesLineItemsTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/Line Items") {
			t.Errorf("path = %q, want the Line Items table", r.URL.Path)
		}
		fields := r.URL.Query()["fields[]"]
		if len(fields) != 3 || fields[0] != "sku" {
			t.Errorf("fields = %v, want sku first", fields)
		}
		fmt.Fprint(w, `{"records":[{"id":"rec1","fields":{"sku":["SKU-A"],"Quantity Ordered":10,"Quantity Received":4}}]}`)
	}))
	defer srv.Close()

	lines, err := newTestClient(srv).IncomingStock(context.Background())
	if err != nil {
		t.Fatalf("IncomingStock: %v", err)
	}
	if len(lines) != 1 || lines[0].Sku != "SKU-A" || lines[0].Ordered != 10 || lines[0].Received != 4 {
		t.Fatalf("lines = %+v", lines)
	}
}
