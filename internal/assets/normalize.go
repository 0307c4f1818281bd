package assets

import (
	"github.com/solatis/linewarden/internal/source"
	"github.com/solatis/linewarden/internal/types"
)

// Catalog product class codes.
const (
	LineClassCode       = "PR_B2C_Mobile_Line_Class"
	DeviceClassCode     = "PR_B2C_Mobile_Device_Class"
	BYODDeviceClassCode = "PR_B2C_Mobile_BYOD_Device_Class"
	SIMProductCode      = "PR_B2C_SIM_Card"
)

// Provisioning statuses that place an asset in the disconnected bucket.
var disconnectedStatuses = map[string]bool{
	"Deleted":      true,
	"Disconnected": true,
}

// IsDeviceClass reports whether a class code denotes a device.
func IsDeviceClass(code string) bool {
	return code == DeviceClassCode || code == BYODDeviceClassCode
}

// IsDisconnected reports whether the asset is deleted or disconnected.
func IsDisconnected(a types.Asset) bool {
	return disconnectedStatuses[a.Status]
}

// Normalize maps a raw asset record into canonical shape.
func Normalize(rec source.Record) types.Asset {
	a := types.Asset{
		ID:             rec.String("Id"),
		ProductName:    rec.String("Product2.Name"),
		ProductCode:    rec.String("Product2.ProductCode"),
		ClassCode:      rec.String("Product2.vlocity_cmt__ParentClassCode__c"),
		Status:         rec.String("vlocity_cmt__ProvisioningStatus__c"),
		RootItemID:     rec.String("vlocity_cmt__RootItemId__c"),
		ParentItemID:   rec.String("vlocity_cmt__ParentItemId__c"),
		AssetReference: rec.String("vlocity_cmt__AssetReferenceId__c"),
		OriginalOLIID:  rec.String("PR_Original_OLI_ID__c"),
		BillingNumber:  rec.String("vlocity_cmt__BillingAccountId__r.PR_Mobile_Billing_Number__c"),
		Charges:        normalizeCharges(rec),
		Disconnect: types.DisconnectInfo{
			Date:   rec.String("vlocity_cmt__DisconnectDate__c"),
			Reason: rec.String("Disconnection_Reason__c"),
		},
		Audit: types.Audit{
			CreatedBy:    rec.String("CreatedBy.Name"),
			CreatedDate:  rec.String("CreatedDate"),
			ModifiedBy:   rec.String("LastModifiedBy.Name"),
			ModifiedDate: rec.String("LastModifiedDate"),
		},
	}
	a.Class = classify(a)
	return a
}

// NormalizeAll maps a record slice, preserving order.
func NormalizeAll(recs []source.Record) []types.Asset {
	out := make([]types.Asset, len(recs))
	for i, r := range recs {
		out[i] = Normalize(r)
	}
	return out
}

func classify(a types.Asset) types.AssetClass {
	switch {
	case a.ProductCode == SIMProductCode:
		return types.ClassSIM
	case a.ClassCode == LineClassCode:
		return types.ClassLine
	case IsDeviceClass(a.ClassCode):
		return types.ClassDevice
	case a.RootItemID != "" && a.RootItemID != a.ID:
		return types.ClassAddOn
	default:
		return types.ClassOther
	}
}

// normalizeCharges returns nil when neither charge field is present or a
// present value is not numeric. Nulls are kept as nulls.
func normalizeCharges(rec source.Record) *types.Charges {
	oneTime, otPresent, err := rec.Decimal("vlocity_cmt__OneTimeCharge__c")
	if err != nil {
		return nil
	}
	recurring, recPresent, err := rec.Decimal("vlocity_cmt__RecurringCharge__c")
	if err != nil {
		return nil
	}
	if !otPresent && !recPresent {
		return nil
	}
	return &types.Charges{OneTime: oneTime, Recurring: recurring}
}
