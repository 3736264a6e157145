// strategies.go — The five concrete selection strategies.
package selector

import "github.com/openharmony/perftest/internal/uimodel"

// plainStrategy emits every visible node satisfying all self-matchers in a
// single DFS pass.
type plainStrategy struct {
	base
}

func (s *plainStrategy) Type() StrategyType { return StrategyPlain }
func (s *plainStrategy) Describe() string   { return describe(StrategyPlain, &s.base) }

func (s *plainStrategy) LocateNode(window uimodel.Window, iter ElementNodeIterator,
	visited *[]uimodel.Widget, targets *[]int, removeInvisible bool) {
	iter.ClearDFSNext()
	s.setWindow(window)
	for {
		idx := s.visitNext(window, iter, visited, false, removeInvisible)
		if idx < 0 {
			return
		}
		if !matchAll(&(*visited)[idx], s.selfMatch) {
			continue
		}
		*targets = append(*targets, idx)
		if !s.wantMulti {
			return
		}
	}
}

// afterStrategy first advances to a node matching the anchor, then emits
// every visible self-match encountered after it.
type afterStrategy struct {
	base
}

func (s *afterStrategy) Type() StrategyType { return StrategyIsAfter }
func (s *afterStrategy) Describe() string   { return describe(StrategyIsAfter, &s.base) }

func (s *afterStrategy) LocateNode(window uimodel.Window, iter ElementNodeIterator,
	visited *[]uimodel.Widget, targets *[]int, removeInvisible bool) {
	iter.ClearDFSNext()
	s.setWindow(window)
	for {
		idx := s.visitNext(window, iter, visited, false, true)
		if idx < 0 {
			return
		}
		if !matchAll(&(*visited)[idx], s.anchorMatch) {
			continue
		}
		if s.locateAfterAnchor(window, iter, visited, targets) {
			return
		}
	}
}

// locateAfterAnchor consumes the rest of the walk collecting self-matches.
// Returns true once the strategy is satisfied.
func (s *afterStrategy) locateAfterAnchor(window uimodel.Window, iter ElementNodeIterator,
	visited *[]uimodel.Widget, targets *[]int) bool {
	for {
		idx := s.visitNext(window, iter, visited, false, true)
		if idx < 0 {
			return false
		}
		if !matchAll(&(*visited)[idx], s.selfMatch) {
			continue
		}
		*targets = append(*targets, idx)
		if !s.wantMulti {
			return true
		}
	}
}

// beforeStrategy records every self-match; each anchor hit promotes the
// matches recorded since the previous anchor into targets.
type beforeStrategy struct {
	base
}

func (s *beforeStrategy) Type() StrategyType { return StrategyIsBefore }
func (s *beforeStrategy) Describe() string   { return describe(StrategyIsBefore, &s.base) }

func (s *beforeStrategy) LocateNode(window uimodel.Window, iter ElementNodeIterator,
	visited *[]uimodel.Widget, targets *[]int, removeInvisible bool) {
	iter.ClearDFSNext()
	s.setWindow(window)
	for {
		idx := s.visitNext(window, iter, visited, false, true)
		if idx < 0 {
			return
		}
		if !matchAll(&(*visited)[idx], s.anchorMatch) {
			continue
		}
		s.promoteBeforeAnchor(visited, targets)
		if len(*targets) > 0 && !s.wantMulti {
			return
		}
	}
}

// promoteBeforeAnchor turns self-matches between the previous promotion and
// the anchor (exclusive) into targets.
func (s *beforeStrategy) promoteBeforeAnchor(visited *[]uimodel.Widget, targets *[]int) {
	index := 0
	if len(*targets) > 0 {
		index = (*targets)[len(*targets)-1] + 1
	}
	for ; index < len(*visited)-1; index++ {
		if !matchAll(&(*visited)[index], s.selfMatch) {
			continue
		}
		*targets = append(*targets, index)
		if !s.wantMulti {
			return
		}
	}
}

// withInStrategy scans the subtree of each anchor hit for self-matches.
type withInStrategy struct {
	base
}

func (s *withInStrategy) Type() StrategyType { return StrategyWithIn }
func (s *withInStrategy) Describe() string   { return describe(StrategyWithIn, &s.base) }

func (s *withInStrategy) LocateNode(window uimodel.Window, iter ElementNodeIterator,
	visited *[]uimodel.Widget, targets *[]int, removeInvisible bool) {
	iter.ClearDFSNext()
	s.setWindow(window)
	for {
		idx := s.visitNext(window, iter, visited, false, true)
		if idx < 0 {
			return
		}
		if !matchAll(&(*visited)[idx], s.anchorMatch) {
			continue
		}
		s.locateWithinAnchor(window, iter, visited, targets)
		if len(*targets) > 0 && !s.wantMulti {
			return
		}
	}
}

func (s *withInStrategy) locateWithinAnchor(window uimodel.Window, iter ElementNodeIterator,
	visited *[]uimodel.Widget, targets *[]int) {
	iter.RestoreNodeIndexByAnchor()
	defer iter.ResetNodeIndexToAnchor()
	for {
		idx := s.visitNext(window, iter, visited, true, true)
		if idx < 0 {
			return
		}
		if !matchAll(&(*visited)[idx], s.selfMatch) {
			continue
		}
		*targets = append(*targets, idx)
		if !s.wantMulti {
			return
		}
	}
}

// complexStrategy runs a plain pass, then narrows candidates by the combined
// after/before window and the withIn ancestor chains.
type complexStrategy struct {
	base
	afterAnchors  [][]uimodel.WidgetMatchModel
	beforeAnchors [][]uimodel.WidgetMatchModel
	withInAnchors [][]uimodel.WidgetMatchModel
}

func (s *complexStrategy) Type() StrategyType { return StrategyComplex }
func (s *complexStrategy) Describe() string   { return describe(StrategyComplex, &s.base) }

func (s *complexStrategy) LocateNode(window uimodel.Window, iter ElementNodeIterator,
	visited *[]uimodel.Widget, targets *[]int, removeInvisible bool) {
	iter.ClearDFSNext()
	s.setWindow(window)
	var candidates []int
	for {
		idx := s.visitNext(window, iter, visited, false, true)
		if idx < 0 {
			break
		}
		if matchAll(&(*visited)[idx], s.selfMatch) {
			candidates = append(candidates, idx)
		}
	}
	s.doComplexSelect(*visited, candidates, targets)
}

// maxAfterAnchorIndex returns the largest first-hit index over all after
// locators; len(visited) when some locator never matches.
func (s *complexStrategy) maxAfterAnchorIndex(visited []uimodel.Widget) int {
	startAfter := -1
	for _, locator := range s.afterAnchors {
		index := 0
		for ; index < len(visited); index++ {
			if matchAll(&visited[index], locator) {
				if index > startAfter {
					startAfter = index
				}
				break
			}
		}
		if index == len(visited) {
			startAfter = len(visited)
		}
	}
	return startAfter
}

// minBeforeAnchorIndex returns the smallest last-hit index over all before
// locators; 0 when some locator never matches.
func (s *complexStrategy) minBeforeAnchorIndex(visited []uimodel.Widget) int {
	startBefore := len(visited)
	for _, locator := range s.beforeAnchors {
		index := len(visited) - 1
		for ; index > 0; index-- {
			if matchAll(&visited[index], locator) {
				if index < startBefore {
					startBefore = index
				}
				break
			}
		}
		if index == 0 {
			startBefore = 0
		}
	}
	return startBefore
}

// ancestorsMatchAllLocators checks that every withIn locator is satisfied by
// at least one ancestor of the target.
func (s *complexStrategy) ancestorsMatchAllLocators(ancestors []int, visited []uimodel.Widget) bool {
	for _, locator := range s.withInAnchors {
		matched := false
		for _, idx := range ancestors {
			if matchAll(&visited[idx], locator) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func (s *complexStrategy) filterByWithinAnchors(visited []uimodel.Widget, candidates []int) []int {
	var kept []int
	for _, target := range candidates {
		targetHie := visited[target].Hierarchy()
		var ancestors []int
		for idx := range visited {
			if uimodel.IsAncestorHierarchy(visited[idx].Hierarchy(), targetHie) {
				ancestors = append(ancestors, idx)
			}
		}
		if s.ancestorsMatchAllLocators(ancestors, visited) {
			kept = append(kept, target)
		}
	}
	return kept
}

func (s *complexStrategy) doComplexSelect(visited []uimodel.Widget, candidates []int, targets *[]int) {
	startAfter := s.maxAfterAnchorIndex(visited)
	startBefore := s.minBeforeAnchorIndex(visited)
	if startBefore <= startAfter {
		return
	}
	var window []int
	for _, idx := range candidates {
		if idx > startAfter && idx < startBefore {
			window = append(window, idx)
		}
	}
	if len(window) == 0 {
		return
	}
	if len(s.withInAnchors) == 0 {
		if !s.wantMulti {
			window = window[:1]
		}
		*targets = append(*targets, window...)
		return
	}
	kept := s.filterByWithinAnchors(visited, window)
	if len(kept) == 0 {
		return
	}
	if !s.wantMulti {
		kept = kept[:1]
	}
	*targets = append(*targets, kept...)
}
