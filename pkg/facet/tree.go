package facet

import (
	"github.com/yumyai/structable/pkg/model"
)

// Tree wraps the immutable metadata hierarchy and owns the selection
// operations. Selection state lives only on leaves; every ancestor query is
// recomputed by traversal so there is no cached state to invalidate.
type Tree struct {
	Root *model.FacetTreeLevel
}

// Leaf pairs a terminal value with its globally unique epitope hash.
type Leaf struct {
	Hash  string
	Value *model.FacetTreeLevelValue
}

// NewTree wraps a freshly loaded metadata root. Top-level values start
// expanded; no other node defaults to opened.
func NewTree(root *model.FacetTreeLevel) *Tree {
	if root != nil {
		for _, v := range root.Values {
			v.IsOpened = true
		}
	}
	return &Tree{Root: root}
}

// IsSelected reports whether a value is a selected leaf, or a non-leaf all
// of whose leaves are selected. Every child is visited; the AND-fold does
// not short-circuit.
func IsSelected(v *model.FacetTreeLevelValue) bool {
	if v.Next == nil {
		return v.IsSelected
	}
	selected := true
	for _, child := range v.Next.Values {
		childSelected := IsSelected(child)
		selected = selected && childSelected
	}
	return selected
}

// Select marks a leaf, or fans out over the whole subtree of a non-leaf.
func Select(v *model.FacetTreeLevelValue) {
	if v.Next == nil {
		v.IsSelected = true
		return
	}
	for _, child := range v.Next.Values {
		Select(child)
	}
}

// Discard clears a leaf, or fans out over the whole subtree of a non-leaf.
func Discard(v *model.FacetTreeLevelValue) {
	if v.Next == nil {
		v.IsSelected = false
		return
	}
	for _, child := range v.Next.Values {
		Discard(child)
	}
}

// Leaves returns every leaf of the tree in depth-first order.
func (t *Tree) Leaves() []Leaf {
	if t == nil || t.Root == nil {
		return nil
	}
	return collectLeaves(t.Root, nil)
}

func collectLeaves(level *model.FacetTreeLevel, acc []Leaf) []Leaf {
	for _, v := range level.Values {
		if v.Next == nil {
			acc = append(acc, Leaf{Hash: v.Hash, Value: v})
		} else {
			acc = collectLeaves(v.Next, acc)
		}
	}
	return acc
}

// SelectedLeaves returns the currently selected leaves, in tree order.
func (t *Tree) SelectedLeaves() []Leaf {
	var selected []Leaf
	for _, leaf := range t.Leaves() {
		if leaf.Value.IsSelected {
			selected = append(selected, leaf)
		}
	}
	return selected
}

// FindLeaf locates the leaf carrying the given epitope hash, nil if absent.
func (t *Tree) FindLeaf(hash string) *Leaf {
	for _, leaf := range t.Leaves() {
		if leaf.Hash == hash {
			found := leaf
			return &found
		}
	}
	return nil
}

// ResolvePath walks the tree level by level, matching each part against the
// value strings in order. Any miss resolves to nil; deep-link handling
// treats that as a silent no-op.
func (t *Tree) ResolvePath(parts ...string) *model.FacetTreeLevelValue {
	if t == nil || t.Root == nil || len(parts) == 0 {
		return nil
	}
	level := t.Root
	var match *model.FacetTreeLevelValue
	for _, part := range parts {
		if level == nil {
			return nil
		}
		match = nil
		for _, v := range level.Values {
			if v.Value == part {
				match = v
				break
			}
		}
		if match == nil {
			return nil
		}
		level = match.Next
	}
	return match
}
