package core

import "strings"

// Severity indicates how a rule violation affects a row's fate.
type Severity string

// Severity levels for quality rules.
const (
	// SeverityBlocking excludes violating rows from the Gold layer and marks
	// the rule's check result failed.
	SeverityBlocking Severity = "blocking"
	// SeverityWarning records violations for observability only; violating
	// rows still reach Gold and the check result is marked warning.
	SeverityWarning Severity = "warning"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityBlocking || s == SeverityWarning
}

// ParseSeverity converts a string to a Severity value.
// Returns the severity and true if valid, or SeverityWarning and false if
// invalid.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blocking":
		return SeverityBlocking, true
	case "warning":
		return SeverityWarning, true
	default:
		return SeverityWarning, false
	}
}
