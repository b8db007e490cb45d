// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package dat

import "iter"

// Step is one position of a pre-order walk over a directory tree.
type Step struct {
	Depth  int  // 0 for the root
	IsLast bool // no later sibling follows at this depth
	Node   *DirectoryNode
}

// TreeIterator walks a directory tree depth-first in pre-order without
// recursion. It keeps one frame per level holding the siblings that have not
// been visited yet, so memory grows with depth, not with tree size.
//
// The iterator only reads the tree. Create a new one to restart.
type TreeIterator struct {
	root   *DirectoryNode
	frames [][]DirectoryNode
}

// NewTreeIterator returns an iterator positioned before root.
func NewTreeIterator(root *DirectoryNode) *TreeIterator {
	return &TreeIterator{root: root}
}

// Next returns the next node in pre-order, or false once the walk is done.
func (it *TreeIterator) Next() (Step, bool) {
	if it.root != nil {
		n := it.root
		it.root = nil
		it.descend(n)
		return Step{Depth: 0, IsLast: true, Node: n}, true
	}

	for len(it.frames) > 0 {
		top := len(it.frames) - 1
		siblings := it.frames[top]
		if len(siblings) == 0 {
			it.frames = it.frames[:top]
			continue
		}

		n := &siblings[0]
		it.frames[top] = siblings[1:]
		step := Step{Depth: top + 1, IsLast: len(siblings) == 1, Node: n}
		it.descend(n)
		return step, true
	}
	return Step{}, false
}

func (it *TreeIterator) descend(n *DirectoryNode) {
	if len(n.Children) > 0 {
		it.frames = append(it.frames, n.Children)
	}
}

// Walk returns the pre-order sequence of steps below and including n.
func (n *DirectoryNode) Walk() iter.Seq[Step] {
	return func(yield func(Step) bool) {
		it := NewTreeIterator(n)
		for {
			step, ok := it.Next()
			if !ok || !yield(step) {
				return
			}
		}
	}
}
