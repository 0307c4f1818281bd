// internal/rules/checks.go
package rules

import (
	"encoding/json"
	"fmt"

	"github.com/solatis/linewarden/internal/fieldpath"
	"github.com/solatis/linewarden/internal/types"
)

// Outcome is the result of one check.
type Outcome struct {
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

func pass() Outcome { return Outcome{Passed: true} }

func fail(format string, args ...any) Outcome {
	return Outcome{Detail: fmt.Sprintf(format, args...)}
}

// Presence strategies.
const (
	PresenceSIMInLineChildren = "search_line_children_for_sim_card"
	PresenceDeviceExists      = "validate_device_exists"
)

// Charges strategies.
const (
	ChargesDevice         = "validate_device_charges"
	ChargesLine           = "validate_line_charges"
	ChargesLineChildren   = "validate_all_line_children_charges"
	ChargesDeviceChildren = "validate_all_device_children_charges"
	ChargesSIMCard        = "validate_sim_card_charges"
)

// CustomRawFieldEquals compares a dotted path of the bundle document.
const CustomRawFieldEquals = "raw_field_equals"

const simProductCode = "PR_B2C_SIM_Card"

// CustomFunc implements a custom strategy.
type CustomFunc func(b types.AssetBundle, c CustomCheck) Outcome

func evalPresence(b types.AssetBundle, c PresenceCheck) Outcome {
	switch c.Strategy {
	case PresenceSIMInLineChildren:
		for _, child := range b.LineChildren {
			if child.ProductCode == simProductCode {
				return pass()
			}
		}
		return fail("no SIM card among %d line children", len(b.LineChildren))
	case PresenceDeviceExists:
		if b.Device != nil && b.Device.ID != "" {
			return pass()
		}
		return fail("device missing")
	default:
		return fail("unknown presence strategy %q", c.Strategy)
	}
}

// statusFields are the bundle fields a status check may address.
var statusFields = map[string]func(a *types.Asset) any{
	"id":                  func(a *types.Asset) any { return a.ID },
	"status":              func(a *types.Asset) any { return a.Status },
	"provisioning_status": func(a *types.Asset) any { return a.Status },
	"product_name":        func(a *types.Asset) any { return a.ProductName },
	"product_code":        func(a *types.Asset) any { return a.ProductCode },
	"product_class":       func(a *types.Asset) any { return a.ClassCode },
	"class":               func(a *types.Asset) any { return string(a.Class) },
	"root_item_id":        func(a *types.Asset) any { return a.RootItemID },
	"asset_reference":     func(a *types.Asset) any { return a.AssetReference },
	"billing_number":      func(a *types.Asset) any { return a.BillingNumber },
	"disconnect_reason":   func(a *types.Asset) any { return a.Disconnect.Reason },
	"modified_by":         func(a *types.Asset) any { return a.Audit.ModifiedBy },
	"one_time_charge":     func(a *types.Asset) any { return chargeValue(a, true) },
	"recurring_charge":    func(a *types.Asset) any { return chargeValue(a, false) },
}

func chargeValue(a *types.Asset, oneTime bool) any {
	if a.Charges == nil {
		return nil
	}
	v := a.Charges.Recurring
	if oneTime {
		v = a.Charges.OneTime
	}
	if !v.Valid {
		return nil
	}
	return v.Decimal
}

func evalStatus(b types.AssetBundle, c StatusCheck) Outcome {
	segs := fieldpath.Parse(c.Field)
	if len(segs) != 2 || segs[0].Wildcard || segs[1].Wildcard {
		return fail("unsupported status field %q", c.Field)
	}

	var asset *types.Asset
	switch segs[0].Key {
	case "line":
		asset = b.Line
	case "device":
		asset = b.Device
	default:
		return fail("unsupported status field %q", c.Field)
	}
	get, ok := statusFields[segs[1].Key]
	if !ok {
		return fail("unsupported status field %q", c.Field)
	}
	if asset == nil {
		return fail("%s not present", segs[0].Key)
	}

	got := get(asset)
	if !compareEqual(got, c.Expected) {
		return fail("%s = %v, want %v", c.Field, got, c.Expected)
	}
	return pass()
}

// validCharges applies the charge pair rule to one asset.
func validCharges(a *types.Asset, allowZero bool) Outcome {
	if a.Charges == nil {
		return fail("%s: charges missing", a.ID)
	}
	ot, rc := a.Charges.OneTime, a.Charges.Recurring
	if !ot.Valid && !rc.Valid {
		return fail("%s: both charges null", a.ID)
	}
	if !allowZero {
		positive := (ot.Valid && ot.Decimal.IsPositive()) || (rc.Valid && rc.Decimal.IsPositive())
		if !positive {
			return fail("%s: no positive charge", a.ID)
		}
	}
	return pass()
}

// validChildren passes vacuously for an empty list.
func validChildren(children []types.Asset, allowZero bool) Outcome {
	for i := range children {
		if o := validCharges(&children[i], allowZero); !o.Passed {
			return o
		}
	}
	return pass()
}

func evalCharges(b types.AssetBundle, c ChargesCheck) Outcome {
	switch c.Strategy {
	case ChargesDevice:
		if b.Device == nil {
			return fail("device missing")
		}
		return validCharges(b.Device, c.AllowZero)
	case ChargesLine:
		if b.Line == nil {
			return fail("line missing")
		}
		return validCharges(b.Line, c.AllowZero)
	case ChargesLineChildren:
		return validChildren(b.LineChildren, c.AllowZero)
	case ChargesDeviceChildren:
		return validChildren(b.DeviceChildren, c.AllowZero)
	case ChargesSIMCard:
		for i := range b.LineChildren {
			if b.LineChildren[i].ProductCode == simProductCode {
				return validCharges(&b.LineChildren[i], c.AllowZero)
			}
		}
		return fail("no SIM card among line children")
	default:
		return fail("unknown charges strategy %q", c.Strategy)
	}
}

// rawFieldEquals resolves c.Field over the JSON document of the bundle.
func rawFieldEquals(b types.AssetBundle, c CustomCheck) Outcome {
	raw, err := json.Marshal(b)
	if err != nil {
		return fail("encode bundle: %v", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fail("decode bundle: %v", err)
	}

	res, err := fieldpath.Resolve(fieldpath.Parse(c.Field), doc)
	if err != nil {
		return fail("%s: %v", c.Field, err)
	}
	if !compareEqual(res.Value, c.Expected) {
		return fail("%s = %v, want %v", fieldpath.String(res.ResolvedPath), res.Value, c.Expected)
	}
	return pass()
}
