// Package util provides small string helpers shared by the trace tooling.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// StripEscapedQuotes removes backslash-escaped double quotes, as they
// appear in simulation run attribute values.
func StripEscapedQuotes(s string) string {
	return strings.ReplaceAll(s, `\"`, "")
}
