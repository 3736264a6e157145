// window.go — Host window model consumed by the select engine.
package uimodel

// Window describes one on-screen window at dump time. InvisibleBounds lists
// the bounds of overlay windows stacked above this one; the select engine
// subtracts them when refreshing widget visibility.
type Window struct {
	ID              int
	Layer           int
	Bounds          Rect
	InvisibleBounds []Rect
	BundleName      string
}
