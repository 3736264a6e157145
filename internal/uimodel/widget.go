// widget.go — Widget attribute model. A widget is one node of the dumped
// accessibility tree; attributes are a flat tag→string mapping so they can
// travel unmodified through the wire envelope.
package uimodel

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Attr identifies one widget attribute tag.
type Attr string

// Recognized attribute tags.
const (
	AttrAccessibilityID Attr = "accessibilityId"
	AttrID              Attr = "id"
	AttrKey             Attr = "key"
	AttrHashCode        Attr = "hashCode"
	AttrText            Attr = "text"
	AttrType            Attr = "type"
	AttrBundleName      Attr = "bundleName"
	AttrBounds          Attr = "bounds"
	AttrOrigBounds      Attr = "origBounds"
	AttrEnabled         Attr = "enabled"
	AttrFocused         Attr = "focused"
	AttrSelected        Attr = "selected"
	AttrClickable       Attr = "clickable"
	AttrLongClickable   Attr = "longClickable"
	AttrScrollable      Attr = "scrollable"
	AttrCheckable       Attr = "checkable"
	AttrChecked         Attr = "checked"
	AttrVisible         Attr = "visible"
	AttrHostWindowID    Attr = "hostWindowId"
	AttrHierarchy       Attr = "hierarchy"
)

// ContainerTypes groups the widget types that clip their children and take
// part in parent-container visibility refresh.
var ContainerTypes = map[string]struct{}{
	"List":      {},
	"Grid":      {},
	"Scroll":    {},
	"Swiper":    {},
	"WaterFlow": {},
}

// IsContainerType reports whether the given widget type clips its children.
func IsContainerType(widgetType string) bool {
	_, ok := ContainerTypes[widgetType]
	return ok
}

// RootHierarchy is the hierarchy value of the tree root.
const RootHierarchy = "ROOT"

// BuildHierarchy derives the hierarchy of child number index under parent.
func BuildHierarchy(parent string, index int) string {
	return parent + "," + strconv.Itoa(index)
}

// IsAncestorHierarchy reports whether ancestor strictly precedes descendant
// on the same root path.
func IsAncestorHierarchy(ancestor, descendant string) bool {
	return len(ancestor) < len(descendant) && strings.HasPrefix(descendant, ancestor) &&
		descendant[len(ancestor)] == ','
}

// Widget is a transient view of one tree node, valid for the lifetime of a
// single dump.
type Widget struct {
	attrs     map[Attr]string
	bounds    Rect
	hierarchy string
}

// NewWidget returns an empty widget.
func NewWidget() Widget {
	return Widget{attrs: make(map[Attr]string)}
}

// SetAttr stores one attribute value.
func (w *Widget) SetAttr(attr Attr, value string) {
	if w.attrs == nil {
		w.attrs = make(map[Attr]string)
	}
	w.attrs[attr] = value
}

// GetAttr returns the attribute value, or "" when unset.
func (w *Widget) GetAttr(attr Attr) string {
	return w.attrs[attr]
}

// SetBounds stores the visible bounds and mirrors them into the bounds attribute.
func (w *Widget) SetBounds(r Rect) {
	w.bounds = r
	w.SetAttr(AttrBounds, r.Describe())
}

// Bounds returns the current visible bounds.
func (w *Widget) Bounds() Rect { return w.bounds }

// SetHierarchy stores the DFS path and mirrors it into the hierarchy attribute.
func (w *Widget) SetHierarchy(h string) {
	w.hierarchy = h
	w.SetAttr(AttrHierarchy, h)
}

// Hierarchy returns the DFS path of the node within its dump.
func (w *Widget) Hierarchy() string { return w.hierarchy }

// IsVisible reports whether the widget is currently marked visible.
func (w *Widget) IsVisible() bool {
	return w.GetAttr(AttrVisible) != "false"
}

// MatchAttr evaluates one match model against this widget.
func (w *Widget) MatchAttr(model WidgetMatchModel) bool {
	value := w.GetAttr(model.Attr)
	switch model.Pattern {
	case PatternEquals:
		return value == model.Value
	case PatternContains:
		return strings.Contains(value, model.Value)
	case PatternStartsWith:
		return strings.HasPrefix(value, model.Value)
	case PatternEndsWith:
		return strings.HasSuffix(value, model.Value)
	default:
		return false
	}
}

// String renders all attributes as a compact json object, used in logs only.
func (w *Widget) String() string {
	plain := make(map[string]string, len(w.attrs))
	for k, v := range w.attrs {
		plain[string(k)] = v
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return "{}"
	}
	return string(data)
}
