// Package index provides the in-memory structures the catalog is built on:
// an ordered multi-key B-tree and a chained hash table.
package index

// Ordered is an index that keeps its keys sorted and retains duplicates.
// There is no delete.
type Ordered[T any] interface {
	// Insert adds key after any keys that compare equal to it.
	Insert(key T)
	// Search returns a key that compares equal to key.
	Search(key T) (T, bool)
	// Traverse visits every key in order.
	Traverse(visit func(T))
	// Collect returns the keys matching pred, in order.
	Collect(pred func(T) bool) []T
	// Items returns every key in order.
	Items() []T
	Len() int
}

// Keyed is a unique-key index mapping K to V.
type Keyed[K comparable, V any] interface {
	// Put stores value under key, replacing any previous value.
	Put(key K, value V)
	Get(key K) (V, bool)
	Has(key K) bool
	// Delete removes key. Returns false if the key was not found.
	Delete(key K) bool
	Len() int
	Keys() []K
	Values() []V
}

var (
	_ Ordered[int]           = (*BTree[int])(nil)
	_ Keyed[string, float64] = (*HashTable[string, float64])(nil)
)
