package authflow

import "strings"

// maskIdentifier keeps enough of an identifier to correlate log lines
// without recording the full address or number.
func maskIdentifier(id Identifier) string {
	v := strings.TrimSpace(id.Value)
	if v == "" {
		return ""
	}
	if at := strings.LastIndexByte(v, '@'); at >= 0 {
		local, domain := v[:at], v[at:]
		if len(local) <= 2 {
			return strings.Repeat("*", len(local)) + domain
		}
		return local[:2] + strings.Repeat("*", len(local)-2) + domain
	}
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}
