package shiphero

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const stockLevelsQuery = `
query ($warehouse_id: String!, $first: Int!, $after: String) {
  warehouse_products(warehouse_id: $warehouse_id, active: true) {
    complexity
    request_id
    data(first: $first, after: $after) {
      pageInfo {
        hasNextPage
        endCursor
      }
      edges {
        node {
          id
          sku
          on_hand
          allocated
          available
          backorder
        }
      }
    }
  }
}
`

const purchaseOrdersQuery = `
query ($first: Int!, $after: String, $created_from: ISODateTime, $warehouse_id: String) {
  purchase_orders(created_from: $created_from, warehouse_id: $warehouse_id) {
    complexity
    request_id
    data(first: $first, after: $after) {
      pageInfo {
        hasNextPage
        endCursor
      }
      edges {
        node {
          id
          po_number
          fulfillment_status
          line_items {
            edges {
              node {
                id
                sku
                quantity
                quantity_received
              }
            }
          }
        }
      }
    }
  }
}
`

var validate = validator.New()

// StockLevels fetches the per-SKU warehouse snapshot for the configured
// warehouse. Nodes that fail boundary validation are quarantined with a
// logged diagnostic rather than propagated.
func (c *Client) StockLevels(ctx context.Context) ([]models.StockLevel, error) {
	warehouseID := strings.TrimSpace(config.EnvString("SHIPHERO_WAREHOUSE_ID", ""))
	if warehouseID == "" {
		return nil, fmt.Errorf("SHIPHERO_WAREHOUSE_ID is required")
	}

	variables := map[string]interface{}{
		"warehouse_id": warehouseID,
		"first":        100,
	}
	nodes, err := c.FetchPaginated(ctx, stockLevelsQuery, variables, "warehouse_products")
	if err != nil {
		return nil, err
	}

	levels := make([]models.StockLevel, 0, len(nodes))
	for _, raw := range nodes {
		var level models.StockLevel
		if err := json.Unmarshal(raw, &level); err != nil {
			c.quarantine("stock_level", raw, err)
			continue
		}
		if err := validate.Struct(&level); err != nil {
			c.quarantine("stock_level", raw, err)
			continue
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// PurchaseOrders fetches purchase orders created on or after createdFrom
// (YYYY-MM-DD). The date filter is required and validated before any
// network call.
func (c *Client) PurchaseOrders(ctx context.Context, createdFrom string) ([]models.PurchaseOrder, error) {
	if strings.TrimSpace(createdFrom) == "" {
		return nil, fmt.Errorf("the created-from date is required")
	}
	day, err := time.Parse("2006-01-02", strings.TrimSpace(createdFrom))
	if err != nil {
		return nil, fmt.Errorf("invalid created-from date %q: expected YYYY-MM-DD", createdFrom)
	}

	variables := map[string]interface{}{
		"first":        10,
		"created_from": day.Format("2006-01-02T15:04:05") + "Z",
		"warehouse_id": config.EnvString("SHIPHERO_WAREHOUSE_ID", ""),
	}
	nodes, err := c.FetchPaginated(ctx, purchaseOrdersQuery, variables, "purchase_orders")
	if err != nil {
		return nil, err
	}

	type poLineEdge struct {
		Node models.PurchaseOrderLineItem `json:"node"`
	}
	type poNode struct {
		ID                string `json:"id"`
		PoNumber          string `json:"po_number"`
		FulfillmentStatus string `json:"fulfillment_status"`
		LineItems         struct {
			Edges []poLineEdge `json:"edges"`
		} `json:"line_items"`
	}

	orders := make([]models.PurchaseOrder, 0, len(nodes))
	for _, raw := range nodes {
		var node poNode
		if err := json.Unmarshal(raw, &node); err != nil {
			c.quarantine("purchase_order", raw, err)
			continue
		}
		order := models.PurchaseOrder{
			ID:                node.ID,
			PoNumber:          node.PoNumber,
			FulfillmentStatus: node.FulfillmentStatus,
		}
		for _, e := range node.LineItems.Edges {
			order.LineItems = append(order.LineItems, e.Node)
		}
		if err := validate.Struct(&order); err != nil {
			c.quarantine("purchase_order", raw, err)
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (c *Client) quarantine(entityType string, payload json.RawMessage, err error) {
	c.logger.WithFields(logrus.Fields{
		"module":     "shiphero",
		"entityType": entityType,
		"payload":    string(payload),
	}).Warn("quarantined malformed record: " + err.Error())
}
