package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/replenish_backend/models"
)

// SalesData fetches the mixed order/line-item JSONL stream for the sales
// reshape. weekWindow complete weeks plus a one-week buffer are requested;
// orders that fall outside the reshape's windows are dropped later. Orders
// tagged for forecast exclusion never leave the storefront.
func (c *Client) SalesData(ctx context.Context, weekWindow int, now time.Time) ([]json.RawMessage, error) {
	if weekWindow <= 0 {
		return nil, fmt.Errorf("week window must be positive, got %d", weekWindow)
	}
	since := now.AddDate(0, 0, -7*(weekWindow+1)).Format("2006-01-02")

	innerQuery := fmt.Sprintf(`
{
  orders(query: "created_at:>=%s AND (fulfillment_status:shipped OR fulfillment_status:unfulfilled OR fulfillment_status:partial) AND (financial_status:paid OR financial_status:pending) AND -tag:'Exclude from Forecast'") {
    edges {
      node {
        id
        name
        createdAt
        tags
        displayFulfillmentStatus
        displayFinancialStatus
        cancelledAt
        lineItems(first: 100) {
          edges {
            node {
              id
              sku
              variantTitle
              quantity
              unfulfilledQuantity
            }
          }
        }
      }
    }
  }
}
`, since)

	return c.RunBulkQuery(ctx, innerQuery)
}

const committedInventoryQuery = `
{
  productVariants(query: "product_status:ACTIVE") {
    edges {
      node {
        id
        sku
        inventoryItem {
          inventoryLevels {
            edges {
              node {
                location {
                  id
                }
                quantities(names: ["committed"]) {
                  name
                  quantity
                }
              }
            }
          }
        }
      }
    }
  }
}
`

// CommittedStock fetches per-variant committed quantity facts. The bulk
// export flattens nested connections into separate lines: variant lines
// carry the SKU, inventory-level lines reference their variant through
// __parentId. The join back to SKU happens here so downstream code only
// sees (sku, location, quantity) facts.
func (c *Client) CommittedStock(ctx context.Context) ([]models.CommittedFact, error) {
	lines, err := c.RunBulkQuery(ctx, committedInventoryQuery)
	if err != nil {
		return nil, err
	}

	type quantityEntry struct {
		Name     string `json:"name"`
		Quantity int    `json:"quantity"`
	}
	type levelLine struct {
		ParentID string `json:"__parentId"`
		Location struct {
			ID string `json:"id"`
		} `json:"location"`
		Quantities []quantityEntry `json:"quantities"`
	}
	type variantLine struct {
		ID  string `json:"id"`
		Sku string `json:"sku"`
	}

	skuByVariant := make(map[string]string)
	var levels []levelLine

	for _, raw := range lines {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		if _, isLevel := probe["quantities"]; isLevel {
			var level levelLine
			if err := json.Unmarshal(raw, &level); err == nil {
				levels = append(levels, level)
			}
			continue
		}
		var variant variantLine
		if err := json.Unmarshal(raw, &variant); err == nil && variant.ID != "" {
			skuByVariant[variant.ID] = variant.Sku
		}
	}

	facts := make([]models.CommittedFact, 0, len(levels))
	for _, level := range levels {
		sku, ok := skuByVariant[level.ParentID]
		if !ok || sku == "" {
			continue
		}
		committed := 0
		for _, q := range level.Quantities {
			if q.Name == "committed" {
				committed = q.Quantity
				break
			}
		}
		facts = append(facts, models.CommittedFact{
			Sku:        sku,
			LocationID: level.Location.ID,
			Quantity:   committed,
		})
	}
	return facts, nil
}
