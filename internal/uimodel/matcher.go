// matcher.go — Attribute match models used by selectors and locators.
package uimodel

import "fmt"

// ValueMatchPattern selects how a matcher value is compared with the
// widget's attribute value.
type ValueMatchPattern int

const (
	PatternEquals ValueMatchPattern = iota
	PatternContains
	PatternStartsWith
	PatternEndsWith
)

// String returns the pattern name used in selector descriptions.
func (p ValueMatchPattern) String() string {
	switch p {
	case PatternEquals:
		return "EQ"
	case PatternContains:
		return "CONTAINS"
	case PatternStartsWith:
		return "STARTS_WITH"
	case PatternEndsWith:
		return "ENDS_WITH"
	default:
		return "UNKNOWN"
	}
}

// WidgetMatchModel is one (attribute, value, pattern) predicate.
type WidgetMatchModel struct {
	Attr    Attr
	Value   string
	Pattern ValueMatchPattern
}

// MatchModel builds a predicate.
func MatchModel(attr Attr, value string, pattern ValueMatchPattern) WidgetMatchModel {
	return WidgetMatchModel{Attr: attr, Value: value, Pattern: pattern}
}

// Describe renders the predicate for selector descriptions and logs.
func (m WidgetMatchModel) Describe() string {
	return fmt.Sprintf("%s %s '%s'", m.Attr, m.Pattern, m.Value)
}
