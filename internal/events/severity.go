package events

import (
	"fmt"
	"strings"
)

// Severity classifies error events. The order is total:
// critical > error > warning > info > debug.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityDebug    Severity = "debug"
)

// severityRank gives each severity its position in the ordering,
// lower rank meaning more severe.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityError:    1,
	SeverityWarning:  2,
	SeverityInfo:     3,
	SeverityDebug:    4,
}

// ParseSeverity converts a wire string into a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// Valid reports whether the severity is a member of the enum.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is at or above the given threshold in
// the severity ordering. Both sides must be valid enum members.
func (s Severity) AtLeast(threshold Severity) bool {
	sr, ok := severityRank[s]
	if !ok {
		return false
	}
	tr, ok := severityRank[threshold]
	if !ok {
		return false
	}
	return sr <= tr
}

// Category classifies the origin of an error event. Closed set.
type Category string

const (
	CategoryPattern       Category = "pattern"
	CategoryIndicator     Category = "indicator"
	CategoryStorage       Category = "storage"
	CategoryNetwork       Category = "network"
	CategoryValidation    Category = "validation"
	CategoryPerformance   Category = "performance"
	CategoryConfiguration Category = "configuration"
	CategoryTest          Category = "test"
)

var validCategories = map[Category]bool{
	CategoryPattern:       true,
	CategoryIndicator:     true,
	CategoryStorage:       true,
	CategoryNetwork:       true,
	CategoryValidation:    true,
	CategoryPerformance:   true,
	CategoryConfiguration: true,
	CategoryTest:          true,
}

// ParseCategory converts a wire string into a Category.
func ParseCategory(s string) (Category, error) {
	cat := Category(strings.ToLower(strings.TrimSpace(s)))
	if !validCategories[cat] {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return cat, nil
}

// Valid reports whether the category is a member of the closed set.
func (c Category) Valid() bool {
	return validCategories[c]
}
