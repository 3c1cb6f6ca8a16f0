// Package fastmap provides a small open-addressing hash map for integer keys.
// Uses fibonacci hashing for better distribution of sequential keys, which is
// what namespace ids handed out by a counter look like.
package fastmap

// Uint32Map is a hash map from uint32 to V.
// Uses open addressing with linear probing and fibonacci hashing.
// It is not safe for concurrent use.
type Uint32Map[V any] struct {
	buckets []bucket[V]
	count   int
	mask    uint32
}

type bucket[V any] struct {
	key   uint32
	value V
	used  bool // Needed because key=0 is a valid namespace id
}

// Fibonacci hash constant: 2^32 / golden ratio
const fibHash32 = 2654435769

func (m *Uint32Map[V]) hash(key uint32) uint32 {
	return key * fibHash32
}

// Get returns the value for key and whether it was present.
func (m *Uint32Map[V]) Get(key uint32) (V, bool) {
	var zero V
	if len(m.buckets) == 0 {
		return zero, false
	}
	idx := m.hash(key) & m.mask
	for {
		b := &m.buckets[idx]
		if !b.used {
			return zero, false
		}
		if b.key == key {
			return b.value, true
		}
		idx = (idx + 1) & m.mask
	}
}

// Set stores a key-value pair.
func (m *Uint32Map[V]) Set(key uint32, value V) {
	if len(m.buckets) == 0 {
		m.buckets = make([]bucket[V], 16)
		m.mask = 15
	} else if m.count >= len(m.buckets)*3/4 {
		m.grow()
	}

	idx := m.hash(key) & m.mask
	for {
		b := &m.buckets[idx]
		if !b.used {
			b.key = key
			b.value = value
			b.used = true
			m.count++
			return
		}
		if b.key == key {
			b.value = value
			return
		}
		idx = (idx + 1) & m.mask
	}
}

// Delete removes key. Entries after it in the probe chain are reinserted so
// lookups never stop at the hole.
func (m *Uint32Map[V]) Delete(key uint32) {
	if len(m.buckets) == 0 {
		return
	}
	idx := m.hash(key) & m.mask
	for {
		b := &m.buckets[idx]
		if !b.used {
			return
		}
		if b.key == key {
			break
		}
		idx = (idx + 1) & m.mask
	}
	m.buckets[idx] = bucket[V]{}
	m.count--

	next := (idx + 1) & m.mask
	for m.buckets[next].used {
		moved := m.buckets[next]
		m.buckets[next] = bucket[V]{}
		m.count--
		m.Set(moved.key, moved.value)
		next = (next + 1) & m.mask
	}
}

// grow doubles the hash table size
func (m *Uint32Map[V]) grow() {
	oldBuckets := m.buckets
	newSize := len(oldBuckets) * 2
	m.buckets = make([]bucket[V], newSize)
	m.mask = uint32(newSize - 1)
	m.count = 0

	for i := range oldBuckets {
		if oldBuckets[i].used {
			m.Set(oldBuckets[i].key, oldBuckets[i].value)
		}
	}
}

// Len returns the number of entries.
func (m *Uint32Map[V]) Len() int {
	return m.count
}
