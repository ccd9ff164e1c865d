// Package procedures holds procedure identifier handling shared by the rules
// and exposure-protocol read paths.
package procedures

import "strings"

// ChestPAErect is the one procedure with bundled default rules and a default
// exposure protocol.
const ChestPAErect = "chest_pa_erect"

// Normalize canonicalizes a free-form procedure identifier: trim, lowercase,
// hyphens to underscores. The legacy alias "chest_pa" maps to "chest_pa_erect";
// any other id passes through unchanged and is treated as literal.
// Normalize is pure, total, and idempotent, and must be applied on every read
// path before lookup.
func Normalize(raw string) string {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	if normalized == "chest_pa" {
		return ChestPAErect
	}
	return normalized
}
