// internal/rules/warnings.go
package rules

import (
	"github.com/solatis/linewarden/internal/types"
)

// DetectWarnings flags assets modified by a person after provisioning: the
// modifier is set, differs from the creator, is not a system user, and the
// modification is later than the creation.
func DetectWarnings(bundle types.AssetBundle, systemUsers map[string]bool) []types.Warning {
	warnings := []types.Warning{}
	for _, a := range bundle.All() {
		au := a.Audit
		if au.ModifiedBy == "" || au.ModifiedBy == au.CreatedBy || systemUsers[au.ModifiedBy] {
			continue
		}
		if au.ModifiedDate <= au.CreatedDate {
			continue
		}
		warnings = append(warnings, types.Warning{
			AssetID:      a.ID,
			ProductName:  a.ProductName,
			ModifiedBy:   au.ModifiedBy,
			ModifiedDate: au.ModifiedDate,
		})
	}
	return warnings
}
