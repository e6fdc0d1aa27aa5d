package shiphero

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
)

const purchaseOrderCreateMutation = `
mutation ($data: CreatePurchaseOrderInput!) {
  purchase_order_create(data: $data) {
    request_id
    complexity
    purchase_order {
      id
    }
  }
}
`

// CreatePurchaseOrder pushes a queued record-store purchase order into the
// warehouse system and returns the created warehouse PO id.
func (c *Client) CreatePurchaseOrder(ctx context.Context, po *models.QueuedPurchaseOrder) (string, error) {
	if po == nil || strings.TrimSpace(po.PoNumber) == "" {
		return "", fmt.Errorf("purchase order number is required")
	}
	if po.VendorID == "" {
		return "", fmt.Errorf("vendor id is required for PO %s", po.PoNumber)
	}
	if len(po.LineItems) == 0 {
		return "", fmt.Errorf("PO %s has no queued line items", po.PoNumber)
	}

	lineItems := make([]map[string]interface{}, 0, len(po.LineItems))
	for _, line := range po.LineItems {
		lineItems = append(lineItems, map[string]interface{}{
			"sku":                    line.Sku,
			"quantity":               line.Quantity,
			"price":                  line.Price.StringFixed(2),
			"expected_weight_in_lbs": "0.0",
		})
	}
	subtotal := po.Subtotal().StringFixed(2)

	variables := map[string]interface{}{
		"data": map[string]interface{}{
			"po_number":      po.PoNumber,
			"vendor_id":      po.VendorID,
			"warehouse_id":   config.EnvString("SHIPHERO_WAREHOUSE_ID", ""),
			"subtotal":       subtotal,
			"shipping_price": "0.00",
			"total_price":    subtotal,
			"line_items":     lineItems,
		},
	}

	resp, err := c.Execute(ctx, purchaseOrderCreateMutation, variables)
	if err != nil {
		return "", err
	}
	if len(resp.Errors) > 0 {
		return "", fmt.Errorf("purchase_order_create failed for %s: %s", po.PoNumber, resp.Errors[0].Message)
	}

	var parsed struct {
		PurchaseOrderCreate struct {
			PurchaseOrder struct {
				ID string `json:"id"`
			} `json:"purchase_order"`
		} `json:"purchase_order_create"`
	}
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return "", err
	}
	if parsed.PurchaseOrderCreate.PurchaseOrder.ID == "" {
		return "", fmt.Errorf("purchase_order_create returned no id for %s", po.PoNumber)
	}
	return parsed.PurchaseOrderCreate.PurchaseOrder.ID, nil
}
