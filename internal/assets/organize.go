package assets

import (
	"github.com/solatis/linewarden/internal/types"
)

// MaxReasons bounds how many historical reasons feed the rule engine.
const MaxReasons = 3

// Organized partitions a flat children list.
type Organized struct {
	Devices      []types.Asset `json:"devices"`
	AddOns       []types.Asset `json:"add_ons"`
	Disconnected []types.Asset `json:"disconnected"`
}

// Organize partitions children by status and class. Deleted or disconnected
// assets go to Disconnected regardless of class; device-class assets go to
// Devices; everything else is an add-on. Bucket membership depends only on
// each asset, never on input order.
func Organize(children []types.Asset) Organized {
	org := Organized{
		Devices:      []types.Asset{},
		AddOns:       []types.Asset{},
		Disconnected: []types.Asset{},
	}
	for _, c := range children {
		switch {
		case IsDisconnected(c):
			org.Disconnected = append(org.Disconnected, c)
		case IsDeviceClass(c.ClassCode):
			org.Devices = append(org.Devices, c)
		default:
			org.AddOns = append(org.AddOns, c)
		}
	}
	return org
}

// ExtractReasons returns distinct non-empty reasons in first-seen order,
// capped at MaxReasons.
func ExtractReasons(history []types.Order) []string {
	seen := make(map[string]bool)
	reasons := []string{}
	for _, o := range history {
		r := o.ReasonOrEmpty()
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		reasons = append(reasons, r)
		if len(reasons) == MaxReasons {
			break
		}
	}
	return reasons
}

// LatestStatus returns the status of the most recently created order, or ""
// for an empty history.
func LatestStatus(history []types.Order) string {
	var latest *types.Order
	for i := range history {
		if latest == nil || history[i].CreatedDate > latest.CreatedDate {
			latest = &history[i]
		}
	}
	if latest == nil {
		return ""
	}
	return latest.Status
}
