package query

import (
	"github.com/solatis/linewarden/internal/types"
)

// Templates maps template names to templates.
type Templates map[string]types.QueryTemplate

// Get returns the named template or a configuration error.
func (t Templates) Get(name string) (types.QueryTemplate, error) {
	tmpl, ok := t[name]
	if !ok {
		return types.QueryTemplate{}, types.NewConfigError("query", "template %q not configured", name)
	}
	if len(tmpl.Fields) == 0 || tmpl.FromTable == "" {
		return types.QueryTemplate{}, types.NewConfigError("query", "template %q needs fields and from_table", name)
	}
	return tmpl, nil
}

var orderFields = []string{
	"Id",
	"PR_MSISDN__c",
	"CreatedDate",
	"Product2.Name",
	"Order.Id",
	"Order.Type",
	"Order.vlocity_cmt__Reason__c",
	"Order.vlocity_cmt__OrderStatus__c",
	"Order.vlocity_cmt__Notes__c",
	"Order.CreatedBy.Name",
	"vlocity_cmt__BillingAccountId__r.PR_Mobile_Billing_Number__c",
	"vlocity_cmt__BillingAccountId__r.Segment__c",
	"vlocity_cmt__BillingAccountId__r.vlocity_cmt__AccountPaymentType__c",
}

var assetFields = []string{
	"Id",
	"PR_MSISDN__c",
	"CreatedDate",
	"CreatedBy.Name",
	"LastModifiedDate",
	"LastModifiedBy.Name",
	"Product2.Name",
	"Product2.ProductCode",
	"Product2.vlocity_cmt__ParentClassCode__c",
	"vlocity_cmt__ProvisioningStatus__c",
	"vlocity_cmt__RootItemId__c",
	"vlocity_cmt__ParentItemId__c",
	"vlocity_cmt__AssetReferenceId__c",
	"vlocity_cmt__OneTimeCharge__c",
	"vlocity_cmt__RecurringCharge__c",
	"vlocity_cmt__DisconnectDate__c",
	"Disconnection_Reason__c",
	"PR_Original_OLI_ID__c",
	"vlocity_cmt__BillingAccountId__r.PR_Mobile_Billing_Number__c",
}

const (
	lineClassCondition = "Product2.vlocity_cmt__ParentClassCode__c = 'PR_B2C_Mobile_Line_Class'"
	windowConditions   = "CreatedDate >= {window_start} AND CreatedDate < {window_end}"
)

// DefaultTemplates returns the built-in catalog queries. Configuration may
// override any of them by name.
func DefaultTemplates(pageSize int) Templates {
	return Templates{
		YesterdayOrders: {
			Fields:    orderFields,
			FromTable: "OrderItem",
			WhereConditions: []string{
				windowConditions,
				lineClassCondition,
				"Product2.Name != 'SIM Card'",
				"PR_MSISDN__c != null",
				"Order.vlocity_cmt__OrderStatus__c = 'Activated'",
			},
			OrderBy: "PR_MSISDN__c, CreatedDate DESC",
			Limit:   pageSize,
		},
		YesterdayOrdersByReason: {
			Fields:    orderFields,
			FromTable: "OrderItem",
			WhereConditions: []string{
				windowConditions,
				lineClassCondition,
				"PR_MSISDN__c != null",
				"Order.vlocity_cmt__Reason__c = {reason}",
			},
			OrderBy: "PR_MSISDN__c, CreatedDate DESC",
		},
		OrdersForMSISDNs: {
			Fields:    orderFields,
			FromTable: "OrderItem",
			WhereConditions: []string{
				"PR_MSISDN__c IN ({msisdn_list})",
				lineClassCondition,
			},
			OrderBy: "PR_MSISDN__c, CreatedDate DESC",
			Limit:   10000,
		},
		LatestLineForMSISDN: {
			Fields:    assetFields,
			FromTable: "Asset",
			WhereConditions: []string{
				"PR_MSISDN__c = {msisdn}",
				lineClassCondition,
				"vlocity_cmt__ProvisioningStatus__c = 'Active'",
			},
			OrderBy: "CreatedDate DESC",
			Limit:   1,
		},
		DeviceForLine: {
			Fields:    assetFields,
			FromTable: "Asset",
			WhereConditions: []string{
				"vlocity_cmt__AssetReferenceId__c = {asset_reference_id}",
				"Product2.vlocity_cmt__ParentClassCode__c IN ('PR_B2C_Mobile_Device_Class', 'PR_B2C_Mobile_BYOD_Device_Class')",
			},
			OrderBy: "CreatedDate DESC",
			Limit:   1,
		},
		ChildrenForRootItem: {
			Fields:          assetFields,
			FromTable:       "Asset",
			WhereConditions: []string{"vlocity_cmt__RootItemId__c = {root_item_id}", "Id != {root_item_id}"},
		},
		DeviceChildren: {
			Fields:          assetFields,
			FromTable:       "Asset",
			WhereConditions: []string{"vlocity_cmt__RootItemId__c = {root_item_id}", "Id != {root_item_id}"},
		},
		OrderHistoryForMSISDN: {
			Fields:          orderFields,
			FromTable:       "OrderItem",
			WhereConditions: []string{"PR_MSISDN__c = {msisdn}", lineClassCondition},
			OrderBy:         "CreatedDate DESC",
			Limit:           3,
		},
	}
}

// MergeTemplates overlays configured templates onto the defaults.
func MergeTemplates(defaults, configured Templates) Templates {
	out := make(Templates, len(defaults)+len(configured))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range configured {
		out[k] = v
	}
	return out
}
