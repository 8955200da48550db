package store

import (
	"cmp"
	"math/rand/v2"
)

// ostEntry is the ordering key of a sorted-set member: score first, then
// member bytes for members sharing a score.
type ostEntry struct {
	member string
	score  float64
}

// compareEntries orders entries ascending by score, ties broken by member.
func compareEntries(a, b ostEntry) int {
	if c := cmp.Compare(a.score, b.score); c != 0 {
		return c
	}

	return cmp.Compare(a.member, b.member)
}

// ostNode is a node in a randomized BST (treap) that stores subtree sizes
// so we can do order-statistics operations (rank/select).
type ostNode struct {
	entry    ostEntry
	priority int // Maintains max-heap property for BST structure
	size     int // Subtree size including self
	left     *ostNode
	right    *ostNode
}

// nodeSize gracefully handles nil nodes to avoid nil checks in recursive functions.
func nodeSize(n *ostNode) int {
	if n == nil {
		return 0
	}

	return n.size
}

// pull recalculates subtree size after structural changes.
// Must be called after any rotation or child modification.
func pull(n *ostNode) {
	if n == nil {
		return
	}

	n.size = 1 + nodeSize(n.left) + nodeSize(n.right)
}

// rotateRight maintains BST order while fixing heap property.
// Returns new root of rotated subtree.
func rotateRight(n *ostNode) *ostNode {
	l := n.left

	n.left = l.right
	l.right = n

	pull(n)
	pull(l)

	return l
}

// rotateLeft is symmetric to rotateRight.
func rotateLeft(n *ostNode) *ostNode {
	r := n.right

	n.right = r.left
	r.left = n

	pull(n)
	pull(r)

	return r
}

// insert recursively finds the insertion point then bubbles the new node up
// using rotations to maintain treap properties. Returns new root of subtree.
func insert(n *ostNode, e ostEntry, prio int) *ostNode {
	if n == nil {
		return &ostNode{entry: e, priority: prio, size: 1}
	}

	switch c := compareEntries(e, n.entry); {
	case c == 0:
		return n
	case c < 0:
		n.left = insert(n.left, e, prio)

		if n.left.priority > n.priority {
			n = rotateRight(n)
		}
	default:
		n.right = insert(n.right, e, prio)

		if n.right.priority > n.priority {
			n = rotateLeft(n)
		}
	}

	pull(n)

	return n
}

// deleteEntry locates the target then uses rotations to demote it to a leaf
// position for safe removal.
func deleteEntry(n *ostNode, e ostEntry) *ostNode {
	if n == nil {
		return nil
	}

	switch c := compareEntries(e, n.entry); {
	case c < 0:
		n.left = deleteEntry(n.left, e)
	case c > 0:
		n.right = deleteEntry(n.right, e)
	default:
		if n.left == nil {
			return n.right
		}

		if n.right == nil {
			return n.left
		}

		if n.left.priority > n.right.priority {
			n = rotateRight(n)
			n.right = deleteEntry(n.right, e)
		} else {
			n = rotateLeft(n)
			n.left = deleteEntry(n.left, e)
		}
	}

	pull(n)

	return n
}

// rankLess counts entries strictly less than e.
func rankLess(n *ostNode, e ostEntry) int {
	if n == nil {
		return 0
	}

	if compareEntries(e, n.entry) <= 0 {
		return rankLess(n.left, e)
	}

	return 1 + nodeSize(n.left) + rankLess(n.right, e)
}

// kth uses subtree sizes for O(log n) traversal.
// Returns zero-value + false for out-of-range indices.
func kth(n *ostNode, k int) (ostEntry, bool) {
	if n == nil || k < 0 || k >= nodeSize(n) {
		return ostEntry{}, false
	}

	leftSize := nodeSize(n.left)

	switch {
	case k < leftSize:
		return kth(n.left, k)
	case k == leftSize:
		return n.entry, true
	default:
		return kth(n.right, k-leftSize-1)
	}
}

// collectRange appends entries with rank in [lo, hi) in order, skipping
// subtrees that fall entirely outside the interval.
func collectRange(n *ostNode, offset, lo, hi int, out []ostEntry) []ostEntry {
	if n == nil || offset >= hi || offset+n.size <= lo {
		return out
	}

	out = collectRange(n.left, offset, lo, hi, out)

	self := offset + nodeSize(n.left)
	if self >= lo && self < hi {
		out = append(out, n.entry)
	}

	return collectRange(n.right, self+1, lo, hi, out)
}

// OSTree is an order-statistics tree of sorted-set members ordered by
// (score, member).
type OSTree struct {
	root *ostNode
}

// NewOSTree creates and returns a new empty order-statistics tree.
func NewOSTree() *OSTree {
	return new(OSTree)
}

// Len returns the current number of entries stored in the tree.
func (t *OSTree) Len() int {
	return nodeSize(t.root)
}

// Insert adds a member with the given score.
// Inserting an identical (score, member) pair is a no-op.
func (t *OSTree) Insert(member string, score float64) {
	p := rand.Int() //nolint:gosec // treap priorities need no cryptographic randomness.

	t.root = insert(t.root, ostEntry{member: member, score: score}, p)
}

// Delete removes the (score, member) pair if present.
func (t *OSTree) Delete(member string, score float64) {
	t.root = deleteEntry(t.root, ostEntry{member: member, score: score})
}

// Rank returns the number of entries ordered before (score, member).
func (t *OSTree) Rank(member string, score float64) int {
	return rankLess(t.root, ostEntry{member: member, score: score})
}

// Kth returns the k-th entry (0-based) in ascending order.
func (t *OSTree) Kth(k int) (string, float64, bool) {
	e, ok := kth(t.root, k)

	return e.member, e.score, ok
}

// Range returns the entries with rank in [lo, hi) as scored members.
func (t *OSTree) Range(lo, hi int) []ScoredMember {
	lo = clamp(lo, 0, t.Len())
	hi = clamp(hi, lo, t.Len())

	entries := collectRange(t.root, 0, lo, hi, make([]ostEntry, 0, hi-lo))

	out := make([]ScoredMember, len(entries))
	for i, e := range entries {
		out[i] = ScoredMember{Member: []byte(e.member), Score: e.score}
	}

	return out
}
