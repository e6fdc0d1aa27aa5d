package shopify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrBulkJobFailed means the remote bulk job reported FAILED. Callers treat
// any bulk error as "no data available this run", not as fatal.
var ErrBulkJobFailed = errors.New("bulk operation failed")

const bulkStatusQuery = `
{
  currentBulkOperation {
    id
    status
    errorCode
    createdAt
    completedAt
    objectCount
    fileSize
    url
  }
}
`

type bulkOperation struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ErrorCode   string `json:"errorCode"`
	ObjectCount string `json:"objectCount"`
	URL         string `json:"url"`
}

// RunBulkQuery submits innerQuery as an asynchronous bulk job, polls its
// status on a fixed interval until COMPLETED or FAILED, then downloads and
// parses the newline-delimited JSON result.
func (c *Client) RunBulkQuery(ctx context.Context, innerQuery string) ([]json.RawMessage, error) {
	if err := c.startBulkOperation(ctx, innerQuery); err != nil {
		return nil, err
	}

	polls := 0
	for {
		op, err := c.currentBulkOperation(ctx)
		if err != nil {
			return nil, err
		}

		switch op.Status {
		case "COMPLETED":
			c.logger.WithFields(logrus.Fields{
				"module":      "shopify",
				"objectCount": op.ObjectCount,
			}).Info("bulk operation completed")
			if op.URL == "" {
				// A completed job with no result file means zero objects.
				return nil, nil
			}
			return c.downloadBulkResults(ctx, op.URL)
		case "FAILED":
			return nil, fmt.Errorf("%w: %s", ErrBulkJobFailed, op.ErrorCode)
		}

		polls++
		if c.maxPolls > 0 && polls >= c.maxPolls {
			return nil, fmt.Errorf("bulk operation still %s after %d polls", op.Status, polls)
		}
		c.sleep(c.pollInterval)
	}
}

func (c *Client) startBulkOperation(ctx context.Context, innerQuery string) error {
	mutation := fmt.Sprintf(`
mutation {
  bulkOperationRunQuery(
    query: """
    %s
    """
  ) {
    bulkOperation {
      id
      status
    }
    userErrors {
      field
      message
    }
  }
}
`, innerQuery)

	data, err := c.post(ctx, mutation)
	if err != nil {
		return err
	}

	var parsed struct {
		BulkOperationRunQuery struct {
			BulkOperation *bulkOperation `json:"bulkOperation"`
			UserErrors    []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"userErrors"`
		} `json:"bulkOperationRunQuery"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	if len(parsed.BulkOperationRunQuery.UserErrors) > 0 {
		return fmt.Errorf("bulk submit rejected: %s", parsed.BulkOperationRunQuery.UserErrors[0].Message)
	}
	if parsed.BulkOperationRunQuery.BulkOperation == nil {
		return errors.New("bulk submit returned no operation")
	}
	return nil
}

func (c *Client) currentBulkOperation(ctx context.Context) (*bulkOperation, error) {
	data, err := c.post(ctx, bulkStatusQuery)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		CurrentBulkOperation *bulkOperation `json:"currentBulkOperation"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	if parsed.CurrentBulkOperation == nil {
		return nil, errors.New("no current bulk operation found")
	}
	return parsed.CurrentBulkOperation, nil
}

func (c *Client) downloadBulkResults(ctx context.Context, url string) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bulk result download failed: status %d", resp.StatusCode)
	}

	var lines []json.RawMessage
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !json.Valid([]byte(line)) {
			c.logger.WithFields(logrus.Fields{
				"module": "shopify",
				"line":   line,
			}).Warn("skipping malformed bulk result line")
			continue
		}
		lines = append(lines, json.RawMessage(line))
	}
	if err := scanner.Err(); err != nil {
		return lines, err
	}
	return lines, nil
}
