package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"github.com/sirupsen/logrus"
)

type Client struct {
	endpoint     string
	accessToken  string
	pollInterval time.Duration
	http         *http.Client
	logger       *logrus.Logger

	// injectable for tests
	sleep func(time.Duration)

	// 0 = poll until the remote job finishes or fails, the original
	// behavior. Set via SHOPIFY_BULK_MAX_POLLS to cap worst-case latency.
	maxPolls int
}

func NewClient() *Client {
	return &Client{
		endpoint:     config.EnvString("SHOPIFY_GRAPHQL_ENDPOINT", ""),
		accessToken:  config.EnvString("SHOPIFY_API_TOKEN", ""),
		pollInterval: 3 * time.Second,
		http:         &http.Client{Timeout: 60 * time.Second},
		logger:       config.GetLogger(),
		sleep:        time.Sleep,
		maxPolls:     config.EnvInt("SHOPIFY_BULK_MAX_POLLS", 0),
	}
}

func (c *Client) post(ctx context.Context, query string) (json.RawMessage, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("SHOPIFY_GRAPHQL_ENDPOINT is required")
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("commerce api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, err
	}
	return parsed.Data, nil
}
