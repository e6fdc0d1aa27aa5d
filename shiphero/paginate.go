package shiphero

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
)

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type edge struct {
	Node json.RawMessage `json:"node"`
}

type connection struct {
	PageInfo *pageInfo `json:"pageInfo"`
	Edges    []edge    `json:"edges"`
}

// resultWrapper is the warehouse API's envelope around every query result:
// the named result key holds complexity/request bookkeeping plus a nested
// "data" connection.
type resultWrapper struct {
	Data *connection `json:"data"`
}

// FetchPaginated walks a cursor-paginated query until the server reports no
// next page, accumulating every edge node under dataKey. A malformed page
// (missing result key, connection, or pageInfo) stops pagination and
// returns whatever accumulated so far.
func (c *Client) FetchPaginated(ctx context.Context, query string, variables map[string]interface{}, dataKey string) ([]json.RawMessage, error) {
	if variables == nil {
		variables = map[string]interface{}{}
	}

	var nodes []json.RawMessage
	var afterCursor interface{}

	for {
		variables["after"] = afterCursor

		resp, err := c.Execute(ctx, query, variables)
		if err != nil {
			if len(nodes) > 0 {
				c.logger.WithFields(logrus.Fields{
					"module":  "shiphero",
					"dataKey": dataKey,
					"partial": len(nodes),
				}).Error("pagination aborted mid-walk: " + err.Error())
				return nodes, nil
			}
			return nil, err
		}

		conn, ok := extractConnection(resp.Data, dataKey)
		if !ok || conn.PageInfo == nil {
			c.logger.WithFields(logrus.Fields{
				"module":  "shiphero",
				"dataKey": dataKey,
				"partial": len(nodes),
			}).Error("response missing expected keys; returning partial result")
			return nodes, nil
		}

		for _, e := range conn.Edges {
			nodes = append(nodes, e.Node)
		}

		if !conn.PageInfo.HasNextPage {
			return nodes, nil
		}
		afterCursor = conn.PageInfo.EndCursor
	}
}

func extractConnection(data json.RawMessage, dataKey string) (*connection, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return nil, false
	}
	raw, ok := outer[dataKey]
	if !ok {
		return nil, false
	}
	var wrapper resultWrapper
	if err := json.Unmarshal(raw, &wrapper); err != nil || wrapper.Data == nil {
		return nil, false
	}
	return wrapper.Data, true
}
