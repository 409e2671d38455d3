package search

import (
	"regexp"
	"strings"
)

// National plate grammar: 2-letter region code, 2-digit district, 1-2
// letter series, 4-digit number. The cross-region series swaps the
// leading region for a 2-digit year followed by the reserved "BH"
// marker.
var (
	platePattern       = regexp.MustCompile(`^([A-Z]{2})[0-9]{2}[A-Z]{1,2}([0-9]{4})$`)
	crossRegionPattern = regexp.MustCompile(`^[0-9]{2}(BH)([0-9]{4})[A-Z]{1,2}$`)
)

// NormalizeQuery uppercases the query and strips everything that is not
// a letter or digit. Plates and chassis ids are stored normalized the
// same way, so matching is case and punctuation insensitive.
func NormalizeQuery(query string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(query) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// plateLikePattern decomposes a full plate token into its region code
// and four digit number and returns the LIKE pattern that matches it in
// the index. Full plates are matched region-anchored instead of by
// naive substring search, which would produce false positives from
// mid-string digit collisions. Standard plates anchor the region at the
// start and the digits at the end; cross-region plates anchor the "BH"
// marker with the digits immediately after it.
func plateLikePattern(normalized string) (string, bool) {
	if m := platePattern.FindStringSubmatch(normalized); m != nil {
		return m[1] + "%" + m[2], true
	}
	if m := crossRegionPattern.FindStringSubmatch(normalized); m != nil {
		return "%" + m[1] + m[2] + "%", true
	}
	return "", false
}
