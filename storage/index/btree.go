package index

import (
	"fmt"
	"slices"
)

// BTree is an in-memory B-tree of minimum degree t ordered by a
// caller-supplied three-way comparator. Keys that compare equal are all
// retained; they end up next to each other in traversal order.
//
// Every node other than the root holds between t-1 and 2t-1 keys. The left
// subtree of key i holds keys that compare less than it, the right subtree
// keys that are not less.
type BTree[T any] struct {
	root   *btreeNode[T]
	degree int
	cmp    func(a, b T) int
	size   int
}

type btreeNode[T any] struct {
	keys     []T
	children []*btreeNode[T] // len(keys)+1 for internal nodes, nil for leaves
}

func (n *btreeNode[T]) isLeaf() bool {
	return len(n.children) == 0
}

// NewBTree creates an empty B-tree with minimum degree t. The comparator
// returns a negative number, zero, or a positive number when a sorts
// before, with, or after b. It panics if t < 2.
func NewBTree[T any](t int, cmp func(a, b T) int) *BTree[T] {
	if t < 2 {
		panic(fmt.Sprintf("index: btree minimum degree must be >= 2, got %d", t))
	}
	if cmp == nil {
		panic("index: btree comparator is nil")
	}
	return &BTree[T]{degree: t, cmp: cmp}
}

func (b *BTree[T]) maxKeys() int {
	return 2*b.degree - 1
}

// Degree returns the minimum degree the tree was built with.
func (b *BTree[T]) Degree() int {
	return b.degree
}

// Len returns the number of keys stored, duplicates included.
func (b *BTree[T]) Len() int {
	return b.size
}

// Height returns the number of levels in the tree (0 when empty).
func (b *BTree[T]) Height() int {
	h := 0
	for n := b.root; n != nil; n = n.children[0] {
		h++
		if n.isLeaf() {
			break
		}
	}
	return h
}

// Insert adds key to the tree. Full nodes are split on the way down so the
// leaf that receives the key always has room.
func (b *BTree[T]) Insert(key T) {
	b.size++
	if b.root == nil {
		b.root = &btreeNode[T]{keys: []T{key}}
		return
	}
	if len(b.root.keys) == b.maxKeys() {
		// Root is full: grow the tree by one level.
		old := b.root
		b.root = &btreeNode[T]{children: []*btreeNode[T]{old}}
		b.splitChild(b.root, 0)
	}
	b.insertNonFull(b.root, key)
}

// upperBound returns the first position in n.keys whose key sorts after
// key, so equal keys are passed over.
func (b *BTree[T]) upperBound(n *btreeNode[T], key T) int {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if b.cmp(n.keys[mid], key) > 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

func (b *BTree[T]) insertNonFull(n *btreeNode[T], key T) {
	for !n.isLeaf() {
		i := b.upperBound(n, key)
		if len(n.children[i].keys) == b.maxKeys() {
			b.splitChild(n, i)
			// The promoted key now sits at i; keys not less than it go right.
			if b.cmp(n.keys[i], key) <= 0 {
				i++
			}
		}
		n = n.children[i]
	}
	n.keys = slices.Insert(n.keys, b.upperBound(n, key), key)
}

// splitChild splits the full child at parent.children[i]. The child keeps
// its first t-1 keys (and t children), the key at t-1 moves up into parent
// at position i, and the rest moves to a new sibling at position i+1.
func (b *BTree[T]) splitChild(parent *btreeNode[T], i int) {
	child := parent.children[i]
	mid := b.degree - 1

	sibling := &btreeNode[T]{
		keys: slices.Clone(child.keys[mid+1:]),
	}
	if !child.isLeaf() {
		sibling.children = slices.Clone(child.children[mid+1:])
		clear(child.children[mid+1:])
		child.children = child.children[:mid+1]
	}

	promoted := child.keys[mid]
	clear(child.keys[mid:])
	child.keys = child.keys[:mid]

	parent.keys = slices.Insert(parent.keys, i, promoted)
	parent.children = slices.Insert(parent.children, i+1, sibling)
}

// Search returns a key comparing equal to key, if any. When duplicates
// exist only one of them is returned.
func (b *BTree[T]) Search(key T) (T, bool) {
	n := b.root
	for n != nil {
		i := 0
		for i < len(n.keys) && b.cmp(key, n.keys[i]) > 0 {
			i++
		}
		if i < len(n.keys) && b.cmp(n.keys[i], key) == 0 {
			return n.keys[i], true
		}
		if n.isLeaf() {
			break
		}
		n = n.children[i]
	}
	var zero T
	return zero, false
}

// Traverse calls visit for every key in ascending order.
func (b *BTree[T]) Traverse(visit func(T)) {
	if b.root != nil {
		b.root.walk(visit)
	}
}

func (n *btreeNode[T]) walk(visit func(T)) {
	for i, k := range n.keys {
		if !n.isLeaf() {
			n.children[i].walk(visit)
		}
		visit(k)
	}
	if !n.isLeaf() {
		n.children[len(n.keys)].walk(visit)
	}
}

// Collect returns every key satisfying pred, in ascending order. The whole
// tree is visited.
func (b *BTree[T]) Collect(pred func(T) bool) []T {
	var out []T
	b.Traverse(func(k T) {
		if pred(k) {
			out = append(out, k)
		}
	})
	return out
}

// Items returns all keys in ascending order.
func (b *BTree[T]) Items() []T {
	out := make([]T, 0, b.size)
	b.Traverse(func(k T) {
		out = append(out, k)
	})
	return out
}
