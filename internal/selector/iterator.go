// iterator.go — DFS iteration contract over one accessibility-tree dump.
// The select strategies drive an ElementNodeIterator; SnapshotIterator
// (snapshot.go) implements it over the flattened-list form the
// accessibility subsystem delivers.
package selector

import "github.com/openharmony/perftest/internal/uimodel"

// ElementNodeIterator walks widgets in document order (pre-order DFS,
// children left to right). Nodes marked invisible have their subtree
// skipped.
type ElementNodeIterator interface {
	// DFSNext advances to the next node and fills the widget's raw
	// attributes and hierarchy. Returns false when the walk is done.
	DFSNext(w *uimodel.Widget) bool
	// DFSNextWithinTarget behaves like DFSNext but refuses to ascend above
	// the current anchor node.
	DFSNextWithinTarget(w *uimodel.Widget) bool
	// IsVisitFinish reports whether every node has been visited.
	IsVisitFinish() bool
	// RestoreNodeIndexByAnchor marks the current node as the anchor for a
	// within-subtree scan.
	RestoreNodeIndexByAnchor()
	// ResetNodeIndexToAnchor leaves within-subtree mode; the outer walk
	// resumes after the anchor's subtree.
	ResetNodeIndexToAnchor()
	// ClearDFSNext rewinds the iterator to the pristine pre-walk state.
	ClearDFSNext()
	// GetParentContainerBounds writes the cached bounds of the nearest
	// container ancestor into rect; rect is left untouched when no
	// container ancestor was recorded.
	GetParentContainerBounds(rect *uimodel.Rect)
	// CheckAndUpdateContainerRectMap caches the refreshed bounds of the
	// current node when its type is a container type.
	CheckAndUpdateContainerRectMap(refreshed uimodel.Rect)
	// RemoveInvisibleWidget marks the current node invisible so its
	// subtree is skipped.
	RemoveInvisibleWidget()
}
