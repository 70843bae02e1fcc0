package index

import (
	"fmt"
	"hash/maphash"
)

const (
	// DefaultCapacity is the initial bucket count used by the catalog.
	DefaultCapacity = 101

	maxLoadFactor = 0.75
)

// Hasher maps a key to a bucket hash.
type Hasher[K comparable] func(K) uint64

// IntHash hashes integer keys by identity.
func IntHash[K ~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64](k K) uint64 {
	return uint64(k)
}

var stringSeed = maphash.MakeSeed()

// StringHash hashes string keys with the runtime string hash. The seed is
// per process, so bucket placement differs between runs.
func StringHash(s string) uint64 {
	return maphash.String(stringSeed, s)
}

type hashEntry[K comparable, V any] struct {
	key   K
	value V
}

// HashTable is a separately chained hash table. Each bucket is a slice of
// entries holding at most one entry per key. When size/capacity exceeds
// 0.75 the bucket array doubles and every entry is re-inserted.
type HashTable[K comparable, V any] struct {
	buckets [][]hashEntry[K, V]
	size    int
	hash    Hasher[K]
}

// NewHashTable creates a table with the given initial bucket count. It
// panics if capacity is not positive or hash is nil.
func NewHashTable[K comparable, V any](capacity int, hash Hasher[K]) *HashTable[K, V] {
	if capacity <= 0 {
		panic(fmt.Sprintf("index: hash table capacity must be positive, got %d", capacity))
	}
	if hash == nil {
		panic("index: hash table hasher is nil")
	}
	return &HashTable[K, V]{
		buckets: make([][]hashEntry[K, V], capacity),
		hash:    hash,
	}
}

func (h *HashTable[K, V]) bucketOf(key K) int {
	return int(h.hash(key) % uint64(len(h.buckets)))
}

// Put stores value under key, replacing any previous value.
func (h *HashTable[K, V]) Put(key K, value V) {
	b := h.bucketOf(key)
	for i := range h.buckets[b] {
		if h.buckets[b][i].key == key {
			h.buckets[b][i].value = value
			return
		}
	}
	h.buckets[b] = append(h.buckets[b], hashEntry[K, V]{key: key, value: value})
	h.size++

	if h.LoadFactor() > maxLoadFactor {
		h.rehash()
	}
}

// rehash doubles the bucket count and re-inserts every entry.
func (h *HashTable[K, V]) rehash() {
	old := h.buckets
	h.buckets = make([][]hashEntry[K, V], 2*len(old))
	for _, chain := range old {
		for _, e := range chain {
			b := h.bucketOf(e.key)
			h.buckets[b] = append(h.buckets[b], e)
		}
	}
}

// Get returns the value stored under key.
func (h *HashTable[K, V]) Get(key K) (V, bool) {
	for _, e := range h.buckets[h.bucketOf(key)] {
		if e.key == key {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// Has reports whether key is present.
func (h *HashTable[K, V]) Has(key K) bool {
	_, ok := h.Get(key)
	return ok
}

// Delete removes key. It returns false if the key was not present.
func (h *HashTable[K, V]) Delete(key K) bool {
	b := h.bucketOf(key)
	chain := h.buckets[b]
	for i := range chain {
		if chain[i].key == key {
			last := len(chain) - 1
			copy(chain[i:], chain[i+1:])
			chain[last] = hashEntry[K, V]{}
			h.buckets[b] = chain[:last]
			h.size--
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (h *HashTable[K, V]) Len() int {
	return h.size
}

// Cap returns the current bucket count.
func (h *HashTable[K, V]) Cap() int {
	return len(h.buckets)
}

// LoadFactor returns size/capacity.
func (h *HashTable[K, V]) LoadFactor() float64 {
	return float64(h.size) / float64(len(h.buckets))
}

// Keys returns all keys in bucket order. Callers must not rely on the order.
func (h *HashTable[K, V]) Keys() []K {
	keys := make([]K, 0, h.size)
	for _, chain := range h.buckets {
		for _, e := range chain {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Values returns all values in bucket order. Callers must not rely on the order.
func (h *HashTable[K, V]) Values() []V {
	values := make([]V, 0, h.size)
	for _, chain := range h.buckets {
		for _, e := range chain {
			values = append(values, e.value)
		}
	}
	return values
}
