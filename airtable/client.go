package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
)

const defaultBaseURL = "https://api.airtable.com/v0"

// Record is a single row in a record-store table. Fields hold the raw
// decoded cell values; list fields arrive as []interface{}.
type Record struct {
	ID          string                 `json:"id"`
	CreatedTime string                 `json:"createdTime,omitempty"`
	Fields      map[string]interface{} `json:"fields"`
}

// ListOptions narrows a table scan. Zero value lists every record with
// every field.
type ListOptions struct {
	View            string
	FilterByFormula string
	Fields          []string
}

// Client talks to one record-store base.
type Client struct {
	baseURL string
	baseID  string
	apiKey  string
	http    *http.Client
	logger  *logrus.Logger
}

func NewClient() (*Client, error) {
	apiKey := config.EnvString("AIRTABLE_API_KEY", "")
	baseID := config.EnvString("AIRTABLE_BASE_ID", "")
	if apiKey == "" || baseID == "" {
		return nil, fmt.Errorf("AIRTABLE_API_KEY and AIRTABLE_BASE_ID must be set")
	}
	return &Client{
		baseURL: config.EnvString("AIRTABLE_BASE_URL", defaultBaseURL),
		baseID:  baseID,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  config.GetLogger(),
	}, nil
}

func (c *Client) tableURL(table string) string {
	return c.baseURL + "/" + c.baseID + "/" + url.PathEscape(table)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("record store returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode record store response: %w", err)
		}
	}
	return nil
}

// ListRecords walks a table with offset pagination until the server stops
// returning an offset token.
func (c *Client) ListRecords(ctx context.Context, table string, opts ListOptions) ([]Record, error) {
	var records []Record
	offset := ""
	for {
		params := url.Values{}
		if opts.View != "" {
			params.Set("view", opts.View)
		}
		if opts.FilterByFormula != "" {
			params.Set("filterByFormula", opts.FilterByFormula)
		}
		for _, f := range opts.Fields {
			params.Add("fields[]", f)
		}
		if offset != "" {
			params.Set("offset", offset)
		}
		rawURL := c.tableURL(table)
		if encoded := params.Encode(); encoded != "" {
			rawURL += "?" + encoded
		}

		var page struct {
			Records []Record `json:"records"`
			Offset  string   `json:"offset"`
		}
		if err := c.do(ctx, http.MethodGet, rawURL, nil, &page); err != nil {
			return nil, fmt.Errorf("list %s: %w", table, err)
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

// CreateRecords inserts rows in order, batched to the server's write limit.
func (c *Client) CreateRecords(ctx context.Context, table string, fields []map[string]interface{}) error {
	for start := 0; start < len(fields); start += config.RecordStoreBatchSize {
		end := start + config.RecordStoreBatchSize
		if end > len(fields) {
			end = len(fields)
		}
		batch := make([]map[string]interface{}, 0, end-start)
		for _, f := range fields[start:end] {
			batch = append(batch, map[string]interface{}{"fields": f})
		}
		body := map[string]interface{}{"records": batch}
		if err := c.do(ctx, http.MethodPost, c.tableURL(table), body, nil); err != nil {
			return fmt.Errorf("create batch into %s: %w", table, err)
		}
	}
	return nil
}

// DeleteRecords removes records by id, batched to the server's write limit.
func (c *Client) DeleteRecords(ctx context.Context, table string, recordIDs []string) error {
	for start := 0; start < len(recordIDs); start += config.RecordStoreBatchSize {
		end := start + config.RecordStoreBatchSize
		if end > len(recordIDs) {
			end = len(recordIDs)
		}
		params := url.Values{}
		for _, id := range recordIDs[start:end] {
			params.Add("records[]", id)
		}
		rawURL := c.tableURL(table) + "?" + params.Encode()
		if err := c.do(ctx, http.MethodDelete, rawURL, nil, nil); err != nil {
			return fmt.Errorf("delete batch from %s: %w", table, err)
		}
	}
	return nil
}

// UpdateRecord patches a single record's fields.
func (c *Client) UpdateRecord(ctx context.Context, table, recordID string, fields map[string]interface{}) error {
	rawURL := c.tableURL(table) + "/" + recordID
	body := map[string]interface{}{"fields": fields}
	if err := c.do(ctx, http.MethodPatch, rawURL, body, nil); err != nil {
		return fmt.Errorf("update %s/%s: %w", table, recordID, err)
	}
	return nil
}
