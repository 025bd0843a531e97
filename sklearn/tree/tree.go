// Package tree implements the regression trees of a fitted gradient-boosting
// ensemble as flat node arenas.
//
// Trees are validated once when an artifact is loaded and evaluated many
// times afterwards. Evaluation never allocates and never mutates the tree, so
// a validated Tree is safe for concurrent use.
package tree

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
)

const (
	// LeafFeature marks a node without a split.
	LeafFeature = -1
	// NoChild marks an absent child reference.
	NoChild = -1
)

// Node is a single arena record. The node id is its index in Tree.Nodes.
type Node struct {
	Feature   int     // index into the input vector, LeafFeature for leaves
	Threshold float64 // split threshold; NaN when the artifact carries none
	Value     float64 // prediction at this node, used when it is a leaf
	Left      int     // node id taken when x[Feature] <= Threshold
	Right     int     // node id taken otherwise
}

// IsLeaf returns true if the node carries no split.
func (n *Node) IsLeaf() bool {
	return n.Feature == LeafFeature
}

// Tree is one member of the ensemble. Node 0 is the root.
type Tree struct {
	Index int
	Nodes []Node
}

// New creates a tree with the given position in the ensemble.
func New(index int, nodes []Node) *Tree {
	return &Tree{Index: index, Nodes: nodes}
}

// NumNodes returns the arena size.
func (t *Tree) NumNodes() int {
	return len(t.Nodes)
}

// NumLeaves counts leaf nodes, reachable or not.
func (t *Tree) NumLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// Validate performs the load-time structural checks for a tree whose inputs
// have dim features. It returns an ArtifactError naming the first offending
// node. Nodes that cannot be reached from the root are reported through
// errors.Warn and otherwise ignored.
func (t *Tree) Validate(dim int) error {
	n := len(t.Nodes)
	if n == 0 {
		return errors.NewArtifactError(t.field(), "tree has no nodes")
	}

	for id := range t.Nodes {
		if err := t.validateNode(id, dim); err != nil {
			return err
		}
	}

	// Walk from the root. Every node must be entered at most once; a second
	// entry means either two parents or a cycle.
	reached := make([]bool, n)
	reached[0] = true
	stack := []int{0}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := &t.Nodes[id]
		if node.IsLeaf() {
			continue
		}
		for _, child := range [2]int{node.Left, node.Right} {
			if reached[child] {
				return errors.NewArtifactErrorf(t.nodeField(id),
					"child %d is reachable more than once: cycle or multiple parents", child)
			}
			reached[child] = true
			stack = append(stack, child)
		}
	}

	var unreachable []int
	for id, ok := range reached {
		if !ok {
			unreachable = append(unreachable, id)
		}
	}
	if len(unreachable) > 0 {
		sort.Ints(unreachable)
		errors.Warn(errors.NewUnreachableNodeWarning(t.Index, unreachable))
	}
	return nil
}

func (t *Tree) validateNode(id, dim int) error {
	node := &t.Nodes[id]
	field := t.nodeField(id)

	if !errors.IsFinite(node.Value) {
		return errors.NewArtifactErrorf(field+".value", "must be finite, got %v", node.Value)
	}

	if node.IsLeaf() {
		if node.Left != NoChild || node.Right != NoChild {
			return errors.NewArtifactError(field, "leaf node must not have children")
		}
		return nil
	}

	switch {
	case node.Feature < 0:
		return errors.NewArtifactErrorf(field+".feature", "negative feature index %d", node.Feature)
	case node.Feature >= dim:
		return errors.NewArtifactErrorf(field+".feature",
			"feature index %d out of range for %d input features", node.Feature, dim)
	}
	if !errors.IsFinite(node.Threshold) {
		return errors.NewArtifactError(field+".threshold", "internal node requires a finite threshold")
	}
	if err := t.checkChild(field+".left_child", node.Left); err != nil {
		return err
	}
	return t.checkChild(field+".right_child", node.Right)
}

func (t *Tree) checkChild(field string, child int) error {
	if child == NoChild {
		return errors.NewArtifactError(field, "internal node requires both children")
	}
	if child < 0 || child >= len(t.Nodes) {
		return errors.NewArtifactErrorf(field, "child index %d out of range [0, %d)", child, len(t.Nodes))
	}
	return nil
}

func (t *Tree) field() string {
	return fmt.Sprintf("trees[%d]", t.Index)
}

func (t *Tree) nodeField(id int) string {
	return fmt.Sprintf("trees[%d].nodes[%d]", t.Index, id)
}

// Evaluate walks from the root to a leaf and returns the leaf value.
// A sample goes left when x[feature] <= threshold, so ties go left.
//
// Validated trees always reach a leaf. The guards below only fire on a tree
// that skipped Validate or was corrupted afterwards, and report a
// TraversalError instead of looping or panicking.
func (t *Tree) Evaluate(x []float64) (float64, error) {
	n := len(t.Nodes)
	if n == 0 {
		return 0, errors.NewTraversalError(t.Index, 0, "tree has no nodes")
	}

	id := 0
	for steps := 0; ; steps++ {
		if steps >= n {
			return 0, errors.NewTraversalError(t.Index, id, "node revisited: traversal exceeded node count")
		}
		node := &t.Nodes[id]
		if node.IsLeaf() {
			return node.Value, nil
		}
		if node.Feature < 0 || node.Feature >= len(x) {
			return 0, errors.NewTraversalError(t.Index, id,
				fmt.Sprintf("feature index %d out of range for input of length %d", node.Feature, len(x)))
		}

		next := node.Right
		if x[node.Feature] <= node.Threshold {
			next = node.Left
		}
		if next < 0 || next >= n {
			return 0, errors.NewTraversalError(t.Index, id, fmt.Sprintf("child index %d out of range", next))
		}
		id = next
	}
}
