// Package types provides domain models shared across linewarden components.
//
// Orders and assets are normalized from catalog records by internal/orders and
// internal/assets; the rule engine and the response assembler only ever see
// these typed shapes. Raw catalog records stay in internal/source.
package types

import (
	"github.com/shopspring/decimal"
)

// AssetClass tags an asset by its role in the subscriber hierarchy.
type AssetClass string

const (
	ClassLine   AssetClass = "Line"
	ClassDevice AssetClass = "Device"
	ClassAddOn  AssetClass = "Add-on"
	ClassSIM    AssetClass = "SIM"
	ClassOther  AssetClass = "Other"
)

// BillingInfo is the billing metadata referenced by an order line.
type BillingInfo struct {
	AccountNumber string `json:"billing_number,omitempty"`
	Segment       string `json:"segment,omitempty"`
	PaymentType   string `json:"payment_type,omitempty"`
}

// Order is one catalog order line.
// Reason is nil when the catalog has no reason recorded.
type Order struct {
	ID          string      `json:"order_id"`
	OrderItemID string      `json:"order_item_id,omitempty"`
	MSISDN      string      `json:"msisdn"`
	Type        string      `json:"type,omitempty"`
	Reason      *string     `json:"reason"`
	Status      string      `json:"status,omitempty"`
	CreatedDate string      `json:"created_date"`
	CreatedBy   string      `json:"created_by,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	ProductName string      `json:"product_name,omitempty"`
	Billing     BillingInfo `json:"billing"`
}

// ReasonOrEmpty returns the order reason, or "" when it is null.
func (o Order) ReasonOrEmpty() string {
	if o.Reason == nil {
		return ""
	}
	return *o.Reason
}

// ClassifiedOrder is the surviving order for one subscriber after filtering
// and grouping, annotated with how many candidates competed for the slot.
type ClassifiedOrder struct {
	Order
	HasMultipleOrders bool `json:"has_multiple_orders"`
	OrderCount        int  `json:"order_count"`
}

// Charges is the one-time/recurring charge pair of an asset.
// Both values are independently nullable and independently zero-able.
type Charges struct {
	OneTime   decimal.NullDecimal `json:"one_time"`
	Recurring decimal.NullDecimal `json:"recurring"`
}

// DisconnectInfo carries disconnect metadata.
type DisconnectInfo struct {
	Date   string `json:"disconnect_date,omitempty"`
	Reason string `json:"disconnect_reason,omitempty"`
}

// Audit carries created/modified actor and timestamps.
type Audit struct {
	CreatedBy    string `json:"created_by,omitempty"`
	CreatedDate  string `json:"created_date,omitempty"`
	ModifiedBy   string `json:"modified_by,omitempty"`
	ModifiedDate string `json:"modified_date,omitempty"`
}

// Asset is one provisioned item in canonical shape.
// Charges is nil when the source record carries no usable charge pair.
type Asset struct {
	ID             string         `json:"id"`
	ProductName    string         `json:"product_name"`
	ProductCode    string         `json:"product_code"`
	ClassCode      string         `json:"product_class"`
	Class          AssetClass     `json:"class"`
	Status         string         `json:"status"`
	RootItemID     string         `json:"root_item_id,omitempty"`
	ParentItemID   string         `json:"parent_item_id,omitempty"`
	AssetReference string         `json:"asset_reference,omitempty"`
	OriginalOLIID  string         `json:"original_oli_id,omitempty"`
	BillingNumber  string         `json:"billing_number,omitempty"`
	Charges        *Charges       `json:"charges"`
	Disconnect     DisconnectInfo `json:"disconnect_info"`
	Audit          Audit          `json:"audit"`
}

// AssetBundle is the unit fed to the rule engine.
// Device is only ever set when Line is set.
type AssetBundle struct {
	Line           *Asset  `json:"line"`
	Device         *Asset  `json:"device"`
	LineChildren   []Asset `json:"line_children"`
	DeviceChildren []Asset `json:"device_children"`
}

// All returns every asset in the bundle, line first.
func (b AssetBundle) All() []Asset {
	var out []Asset
	if b.Line != nil {
		out = append(out, *b.Line)
	}
	if b.Device != nil {
		out = append(out, *b.Device)
	}
	out = append(out, b.LineChildren...)
	out = append(out, b.DeviceChildren...)
	return out
}

// Warning records a manual post-provisioning modification of an asset.
type Warning struct {
	AssetID      string `json:"asset_id"`
	ProductName  string `json:"product_name"`
	ModifiedBy   string `json:"modified_by"`
	ModifiedDate string `json:"modified_date"`
}
