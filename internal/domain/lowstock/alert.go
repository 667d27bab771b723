// Package lowstock publishes committed low-stock crossings to the notification queue
// and fans queued alerts out to the people who restock the store.
package lowstock

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tradeledger/internal/core/types"
)

// AlertType tags every message on the low-stock topic.
const AlertType = "low_stock_alert"

// ErrMalformed marks a message that can never be processed. It is not redelivered.
var ErrMalformed = errors.New("malformed low stock message")

// Alert is the queue message body.
type Alert struct {
	Type            string         `json:"type"`
	InventoryID     string         `json:"inventory_id"`
	ProductID       string         `json:"product_id"`
	ProductName     string         `json:"product_name"`
	StoreName       string         `json:"store_name"`
	CurrentQuantity types.Quantity `json:"current_quantity"`
	Threshold       types.Quantity `json:"threshold"`
	StoreID         string         `json:"store_id"`
	CompanyID       string         `json:"company_id"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Key keeps alerts of one product in one partition.
func (a Alert) Key() []byte {
	return []byte(a.StoreID + "/" + a.ProductID)
}

// Encode serializes an alert for the queue.
func Encode(a Alert) ([]byte, error) {
	if a.Type == "" {
		a.Type = AlertType
	}
	return json.Marshal(a)
}

// wireAlert detects missing required fields.
type wireAlert struct {
	Type            string          `json:"type"`
	InventoryID     string          `json:"inventory_id"`
	ProductID       string          `json:"product_id"`
	ProductName     *string         `json:"product_name"`
	StoreName       *string         `json:"store_name"`
	CurrentQuantity *types.Quantity `json:"current_quantity"`
	Threshold       *types.Quantity `json:"threshold"`
	StoreID         *string         `json:"store_id"`
	CompanyID       *string         `json:"company_id"`
	Timestamp       *time.Time      `json:"timestamp"`
}

// Decode parses a queue message. Any failure wraps ErrMalformed.
func Decode(data []byte) (Alert, error) {
	var w wireAlert
	if err := json.Unmarshal(data, &w); err != nil {
		return Alert{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var missing []string
	if w.ProductName == nil {
		missing = append(missing, "product_name")
	}
	if w.StoreName == nil {
		missing = append(missing, "store_name")
	}
	if w.CurrentQuantity == nil {
		missing = append(missing, "current_quantity")
	}
	if w.Threshold == nil {
		missing = append(missing, "threshold")
	}
	if w.CompanyID == nil || *w.CompanyID == "" {
		missing = append(missing, "company_id")
	}
	if w.StoreID == nil || *w.StoreID == "" {
		missing = append(missing, "store_id")
	}
	if len(missing) > 0 {
		return Alert{}, fmt.Errorf("%w: missing %s", ErrMalformed, strings.Join(missing, ", "))
	}
	if w.Type != "" && w.Type != AlertType {
		return Alert{}, fmt.Errorf("%w: unexpected type %q", ErrMalformed, w.Type)
	}

	a := Alert{
		Type:            AlertType,
		InventoryID:     w.InventoryID,
		ProductID:       w.ProductID,
		ProductName:     *w.ProductName,
		StoreName:       *w.StoreName,
		CurrentQuantity: *w.CurrentQuantity,
		Threshold:       *w.Threshold,
		StoreID:         *w.StoreID,
		CompanyID:       *w.CompanyID,
	}
	if w.Timestamp != nil {
		a.Timestamp = *w.Timestamp
	}
	return a, nil
}

// IsMalformed reports whether err means the message must not be retried.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed)
}
