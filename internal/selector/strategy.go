// strategy.go — Selector compilation and the shared visibility-refresh logic.
// A selector compiles to one of five strategies depending on which locator
// lists it carries; every strategy walks the tree through an
// ElementNodeIterator and reports matches as indices into the visited list.
package selector

import (
	"strconv"
	"strings"

	"github.com/openharmony/perftest/internal/logging"
	"github.com/openharmony/perftest/internal/uimodel"
)

var log = logging.Named("selector")

// StrategyType enumerates the five strategy kinds.
type StrategyType int

const (
	StrategyPlain StrategyType = iota
	StrategyWithIn
	StrategyIsAfter
	StrategyIsBefore
	StrategyComplex
)

// String returns the strategy name used in descriptions.
func (s StrategyType) String() string {
	switch s {
	case StrategyPlain:
		return "PLAIN"
	case StrategyWithIn:
		return "WITH_IN"
	case StrategyIsAfter:
		return "IS_AFTER"
	case StrategyIsBefore:
		return "IS_BEFORE"
	case StrategyComplex:
		return "COMPLEX"
	default:
		return "PLAIN"
	}
}

// BuildParam carries the compiled selector content. The outer slice of each
// anchor list is a conjunction of locators; the inner slice is the
// conjunction of matchers describing one anchor.
type BuildParam struct {
	SelfMatchers  []uimodel.WidgetMatchModel
	AfterAnchors  [][]uimodel.WidgetMatchModel
	BeforeAnchors [][]uimodel.WidgetMatchModel
	WithInAnchors [][]uimodel.WidgetMatchModel
}

// SelectStrategy locates widgets in one window dump.
type SelectStrategy interface {
	Type() StrategyType
	Describe() string
	// LocateNode fills visited with every widget walked and targets with
	// indices into visited denoting matches, in document order.
	LocateNode(window uimodel.Window, iter ElementNodeIterator,
		visited *[]uimodel.Widget, targets *[]int, removeInvisible bool)
}

// BuildSelectStrategy compiles the selector content to a strategy. A single
// locator list of one kind maps to the dedicated strategy; any combination
// falls back to the complex strategy.
func BuildSelectStrategy(param BuildParam, wantMulti bool) SelectStrategy {
	hasAfter := len(param.AfterAnchors) > 0
	hasBefore := len(param.BeforeAnchors) > 0
	hasWithIn := len(param.WithInAnchors) > 0
	switch {
	case !hasAfter && !hasBefore && !hasWithIn:
		return &plainStrategy{newBase(param.SelfMatchers, nil, wantMulti)}
	case hasAfter && len(param.AfterAnchors) == 1 && !hasBefore && !hasWithIn:
		return &afterStrategy{newBase(param.SelfMatchers, param.AfterAnchors[0], wantMulti)}
	case !hasAfter && hasBefore && len(param.BeforeAnchors) == 1 && !hasWithIn:
		return &beforeStrategy{newBase(param.SelfMatchers, param.BeforeAnchors[0], wantMulti)}
	case !hasAfter && !hasBefore && hasWithIn && len(param.WithInAnchors) == 1:
		return &withInStrategy{newBase(param.SelfMatchers, param.WithInAnchors[0], wantMulti)}
	default:
		return &complexStrategy{
			base:          newBase(param.SelfMatchers, nil, wantMulti),
			afterAnchors:  param.AfterAnchors,
			beforeAnchors: param.BeforeAnchors,
			withInAnchors: param.WithInAnchors,
		}
	}
}

// base carries the state shared by all strategies.
type base struct {
	anchorMatch  []uimodel.WidgetMatchModel
	selfMatch    []uimodel.WidgetMatchModel
	wantMulti    bool
	windowBounds uimodel.Rect
	overlays     []uimodel.Rect
}

func newBase(self, anchor []uimodel.WidgetMatchModel, wantMulti bool) base {
	return base{selfMatch: self, anchorMatch: anchor, wantMulti: wantMulti}
}

func (b *base) setWindow(window uimodel.Window) {
	b.windowBounds = window.Bounds
	b.overlays = window.InvisibleBounds
}

func matchAll(w *uimodel.Widget, models []uimodel.WidgetMatchModel) bool {
	for _, m := range models {
		if !w.MatchAttr(m) {
			return false
		}
	}
	return true
}

func describe(kind StrategyType, b *base) string {
	var sb strings.Builder
	sb.WriteString("{")
	sb.WriteString(kind.String())
	if len(b.anchorMatch) > 0 {
		sb.WriteString("; anchorMatcher=")
		for _, m := range b.anchorMatch {
			sb.WriteString("[" + m.Describe() + "]")
		}
	}
	if len(b.selfMatch) > 0 {
		sb.WriteString("; myselfMatcher=")
		for _, m := range b.selfMatch {
			sb.WriteString("[" + m.Describe() + "]")
		}
	}
	sb.WriteString("}")
	return sb.String()
}

// calcWidgetVisibleBounds clips the widget against window bounds, the parent
// container bounds, and the overlay windows, returning the surviving rect.
func (b *base) calcWidgetVisibleBounds(w *uimodel.Widget, containerParent uimodel.Rect) uimodel.Rect {
	visibleInWindow, ok := w.Bounds().Intersection(b.windowBounds)
	if !ok {
		return uimodel.Rect{}
	}
	visibleInParent, ok := visibleInWindow.Intersection(containerParent)
	if !ok {
		return uimodel.Rect{}
	}
	if !containerParent.Equal(b.windowBounds) || uimodel.IsContainerType(w.GetAttr(uimodel.AttrType)) {
		if w.IsVisible() && (visibleInParent.Height() == 0 || visibleInParent.Width() == 0) {
			// collapsed inside a clipping container but still attached; keep
			return visibleInParent
		}
	}
	if len(b.overlays) == 0 {
		return visibleInParent
	}
	region, ok := uimodel.MaxVisibleRegion(visibleInParent, b.overlays)
	if !ok {
		return uimodel.Rect{}
	}
	return region
}

// refreshWidgetBounds recomputes the widget's visible bounds and visibility
// attribute against the window, parent container and overlays.
func (b *base) refreshWidgetBounds(containerParent uimodel.Rect, w *uimodel.Widget) {
	ori := w.Bounds()
	// degenerate but non-negative bounds belong to containers whose children
	// are still live; keep them untouched
	if (ori.Height() == 0 || ori.Width() == 0) && ori.Left >= 0 && ori.Top >= 0 {
		return
	}
	visible := b.calcWidgetVisibleBounds(w, containerParent)
	w.SetBounds(visible)
	if visible.Height() <= 0 && visible.Width() <= 0 {
		w.SetAttr(uimodel.AttrVisible, "false")
		return
	}
	if w.GetAttr(uimodel.AttrVisible) == "false" {
		return
	}
	if visible.Height() <= 0 || visible.Width() <= 0 {
		if !containerParent.Equal(b.windowBounds) || uimodel.IsContainerType(w.GetAttr(uimodel.AttrType)) {
			w.SetAttr(uimodel.AttrVisible, "true")
		} else {
			w.SetAttr(uimodel.AttrVisible, "false")
		}
		return
	}
	w.SetAttr(uimodel.AttrVisible, "true")
}

// visitNext advances the iterator one node, refreshes its bounds and appends
// it to visited. Returns the visited index, or -1 when the walk is done.
// Invisible nodes are skipped (with subtree) and not appended.
func (b *base) visitNext(window uimodel.Window, iter ElementNodeIterator,
	visited *[]uimodel.Widget, within, refresh bool) int {
	for {
		w := uimodel.NewWidget()
		var more bool
		if within {
			more = iter.DFSNextWithinTarget(&w)
		} else {
			more = iter.DFSNext(&w)
		}
		if !more {
			return -1
		}
		w.SetAttr(uimodel.AttrHostWindowID, strconv.Itoa(window.ID))
		if refresh {
			parentBounds := b.windowBounds
			iter.GetParentContainerBounds(&parentBounds)
			b.refreshWidgetBounds(parentBounds, &w)
			if w.GetAttr(uimodel.AttrVisible) == "false" {
				iter.RemoveInvisibleWidget()
				log.Debugw("widget invisible, skip subtree",
					"accessibilityId", w.GetAttr(uimodel.AttrAccessibilityID))
				continue
			}
		}
		iter.CheckAndUpdateContainerRectMap(w.Bounds())
		*visited = append(*visited, w)
		return len(*visited) - 1
	}
}
