package bulk

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizeMSISDNs trims, normalizes and deduplicates identifiers, keeping
// first-seen order. With an empty region identifiers are only trimmed.
// Otherwise each is parsed as a phone number for that region and rendered
// in E.164 without the leading plus; unparseable or invalid entries are
// returned in rejected.
func NormalizeMSISDNs(raw []string, region string) (ids, rejected []string) {
	seen := make(map[string]bool, len(raw))
	ids = []string{}
	for _, r := range raw {
		s := strings.TrimSpace(r)
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		if region != "" {
			num, err := phonenumbers.Parse(s, strings.ToUpper(region))
			if err != nil || !phonenumbers.IsValidNumber(num) {
				rejected = append(rejected, s)
				continue
			}
			s = strings.TrimPrefix(phonenumbers.Format(num, phonenumbers.E164), "+")
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		ids = append(ids, s)
	}
	return ids, rejected
}

// SplitMSISDNs splits a comma, whitespace or newline separated list.
func SplitMSISDNs(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\r' || r == '\t'
	})
}
