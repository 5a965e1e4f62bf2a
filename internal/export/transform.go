package export

import "strings"

// dhlPrefix marks Dag Hammarskjöld Library identifiers within MARC 035
// system control numbers, e.g. "(DHL) 850002".
const dhlPrefix = "(DHL)"

// Link builds a URL from a template prefix and an identifier suffix,
// e.g. Link("3850002", "https://digitallibrary.un.org/record/") →
// "https://digitallibrary.un.org/record/3850002". An empty identifier
// yields the empty string rather than a dangling template.
func Link(id, template string) string {
	if id == "" {
		return ""
	}
	return template + id
}

// NormalizeDHL scans 035 values for the first one carrying the "(DHL)"
// prefix and returns it with the prefix stripped and whitespace
// trimmed. The second return is false when no value matches.
func NormalizeDHL(values []string) (string, bool) {
	for _, value := range values {
		if strings.HasPrefix(value, dhlPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(value, dhlPrefix)), true
		}
	}
	return "", false
}

// joinValues joins a column's values with the separator. Nil and empty
// slices render as the empty string.
func joinValues(values []string, sep string) string {
	return strings.Join(values, sep)
}
