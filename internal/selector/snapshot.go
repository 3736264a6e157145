// snapshot.go — ElementNodeIterator over a flattened accessibility dump.
// The accessibility subsystem delivers the tree as a pre-order list of
// element records; this iterator rebuilds parent/child structure from the
// child-id lists and walks it lazily.
package selector

import (
	"fmt"
	"strconv"

	"github.com/openharmony/perftest/internal/uimodel"
)

// ElementInfo is one raw accessibility element record.
type ElementInfo struct {
	AccessibilityID int64
	ChildIDs        []int64
	ComponentType   string
	Content         string
	InspectorKey    string
	BundleName      string
	WindowID        int
	Bounds          uimodel.Rect
	Enabled         bool
	Focused         bool
	Selected        bool
	Checkable       bool
	Checked         bool
	Visible         bool
	Clickable       bool
	LongClickable   bool
	Scrollable      bool
}

// SnapshotIterator implements ElementNodeIterator over an ElementInfo list.
type SnapshotIterator struct {
	elements []ElementInfo
	children map[int][]int // list index -> child list indices
	parent   map[int]int   // list index -> parent list index, root -> -1

	currentIndex int
	topIndex     int
	visible      map[int]bool
	hierarchy    map[int]string
	containerect map[int]uimodel.Rect
}

// NewSnapshotIterator indexes the dump. The element list must be in
// pre-order document order.
func NewSnapshotIterator(elements []ElementInfo) *SnapshotIterator {
	it := &SnapshotIterator{elements: elements}
	it.index()
	it.ClearDFSNext()
	return it
}

func (it *SnapshotIterator) index() {
	byID := make(map[int64]int, len(it.elements))
	for i, e := range it.elements {
		byID[e.AccessibilityID] = i
	}
	it.children = make(map[int][]int, len(it.elements))
	it.parent = make(map[int]int, len(it.elements))
	for i := range it.elements {
		it.parent[i] = -1
	}
	for i, e := range it.elements {
		for _, childID := range e.ChildIDs {
			ci, ok := byID[childID]
			if !ok {
				continue
			}
			it.children[i] = append(it.children[i], ci)
			it.parent[ci] = i
		}
	}
}

// ClearDFSNext rewinds to the pre-walk state.
func (it *SnapshotIterator) ClearDFSNext() {
	it.currentIndex = -1
	it.topIndex = -1
	it.visible = make(map[int]bool, len(it.elements))
	it.hierarchy = make(map[int]string, len(it.elements))
	it.containerect = make(map[int]uimodel.Rect)
}

// IsVisitFinish reports whether the walk has passed the last node.
func (it *SnapshotIterator) IsVisitFinish() bool {
	if len(it.elements) == 0 {
		return true
	}
	return it.currentIndex >= len(it.elements)
}

// DFSNext advances in pre-order, skipping subtrees of invisible nodes.
func (it *SnapshotIterator) DFSNext(w *uimodel.Widget) bool {
	return it.advance(w, -1)
}

// DFSNextWithinTarget advances like DFSNext but stops instead of ascending
// above the anchor set by RestoreNodeIndexByAnchor.
func (it *SnapshotIterator) DFSNextWithinTarget(w *uimodel.Widget) bool {
	if it.topIndex < 0 {
		return false
	}
	return it.advance(w, it.topIndex)
}

// advance moves to the next node whose ancestors are all visible. When
// within >= 0 the walk is confined to that node's subtree.
func (it *SnapshotIterator) advance(w *uimodel.Widget, within int) bool {
	next, ok := it.nextIndex(within)
	if !ok {
		if within < 0 {
			it.currentIndex = len(it.elements)
		}
		return false
	}
	it.currentIndex = next
	it.visible[next] = true
	it.wrapElement(w, next)
	return true
}

func (it *SnapshotIterator) nextIndex(within int) (int, bool) {
	if len(it.elements) == 0 {
		return 0, false
	}
	if it.currentIndex < 0 {
		if within >= 0 {
			// within-subtree walk starts at the anchor's first child
			return 0, false
		}
		it.hierarchy[0] = uimodel.RootHierarchy
		return 0, true
	}
	if it.currentIndex >= len(it.elements) {
		return 0, false
	}
	// descend when the current node is still visible
	cur := it.currentIndex
	if it.visible[cur] {
		if kids := it.children[cur]; len(kids) > 0 {
			child := kids[0]
			it.hierarchy[child] = uimodel.BuildHierarchy(it.hierarchyOf(cur), 0)
			return child, true
		}
	}
	// otherwise climb towards the next sibling
	node := cur
	for {
		if node == within {
			return 0, false
		}
		parent := it.parent[node]
		if parent < 0 {
			return 0, false
		}
		siblings := it.children[parent]
		slot := -1
		for i, s := range siblings {
			if s == node {
				slot = i
				break
			}
		}
		if slot >= 0 && slot+1 < len(siblings) {
			next := siblings[slot+1]
			it.hierarchy[next] = uimodel.BuildHierarchy(it.hierarchyOf(parent), slot+1)
			return next, true
		}
		node = parent
	}
}

func (it *SnapshotIterator) hierarchyOf(index int) string {
	if h, ok := it.hierarchy[index]; ok {
		return h
	}
	return uimodel.RootHierarchy
}

// RestoreNodeIndexByAnchor pins the current node as subtree anchor.
func (it *SnapshotIterator) RestoreNodeIndexByAnchor() {
	it.topIndex = it.currentIndex
}

// ResetNodeIndexToAnchor leaves within-subtree mode.
func (it *SnapshotIterator) ResetNodeIndexToAnchor() {
	it.topIndex = -1
}

// GetParentContainerBounds writes the cached rect of the nearest container
// ancestor, leaving rect untouched when none was recorded.
func (it *SnapshotIterator) GetParentContainerBounds(rect *uimodel.Rect) {
	node := it.currentIndex
	for node >= 0 && node < len(it.elements) {
		node = it.parent[node]
		if node < 0 {
			return
		}
		if r, ok := it.containerect[node]; ok {
			*rect = r
			return
		}
	}
}

// CheckAndUpdateContainerRectMap caches the refreshed bounds of container nodes.
func (it *SnapshotIterator) CheckAndUpdateContainerRectMap(refreshed uimodel.Rect) {
	if it.currentIndex < 0 || it.currentIndex >= len(it.elements) {
		return
	}
	if uimodel.IsContainerType(it.elements[it.currentIndex].ComponentType) {
		it.containerect[it.currentIndex] = refreshed
	}
}

// RemoveInvisibleWidget marks the current node invisible; its subtree will
// not be descended into.
func (it *SnapshotIterator) RemoveInvisibleWidget() {
	if it.currentIndex >= 0 && it.currentIndex < len(it.elements) {
		it.visible[it.currentIndex] = false
	}
}

func (it *SnapshotIterator) wrapElement(w *uimodel.Widget, index int) {
	e := it.elements[index]
	w.SetBounds(e.Bounds)
	w.SetHierarchy(it.hierarchy[index])
	w.SetAttr(uimodel.AttrAccessibilityID, strconv.FormatInt(e.AccessibilityID, 10))
	w.SetAttr(uimodel.AttrID, e.InspectorKey)
	w.SetAttr(uimodel.AttrKey, e.InspectorKey)
	w.SetAttr(uimodel.AttrText, e.Content)
	w.SetAttr(uimodel.AttrType, e.ComponentType)
	w.SetAttr(uimodel.AttrBundleName, e.BundleName)
	w.SetAttr(uimodel.AttrOrigBounds, e.Bounds.Describe())
	w.SetAttr(uimodel.AttrEnabled, boolAttr(e.Enabled))
	w.SetAttr(uimodel.AttrFocused, boolAttr(e.Focused))
	w.SetAttr(uimodel.AttrSelected, boolAttr(e.Selected))
	w.SetAttr(uimodel.AttrCheckable, boolAttr(e.Checkable))
	w.SetAttr(uimodel.AttrChecked, boolAttr(e.Checked))
	w.SetAttr(uimodel.AttrClickable, boolAttr(e.Clickable))
	w.SetAttr(uimodel.AttrLongClickable, boolAttr(e.LongClickable))
	w.SetAttr(uimodel.AttrScrollable, boolAttr(e.Scrollable))
	w.SetAttr(uimodel.AttrVisible, boolAttr(e.Visible))
	w.SetAttr(uimodel.AttrHostWindowID, strconv.Itoa(e.WindowID))
	w.SetAttr(uimodel.AttrHashCode, fmt.Sprintf("%d:%d", e.WindowID, e.AccessibilityID))
}

func boolAttr(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
