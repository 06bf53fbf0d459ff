// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// package chain is a Go implementation of a fixed-size hash table that
// resolves collisions with separate chaining. See
// https://en.wikipedia.org/wiki/Hash_table#Separate_chaining.
//
// # Layout
//
// A Map is an array of buckets chosen by the caller at construction time.
// Each bucket is the head of a singly linked chain of entries whose keys
// hash to that bucket:
//
//	buckets
//	+---+
//	| 0 | --> [k3,v3] --> [k0,v0]
//	+---+
//	| 1 |
//	+---+
//	| 2 | --> [k1,v1]
//	+---+
//	| 3 | --> [k4,v4] --> [k2,v2] --> [k5,v5]
//	+---+
//
// The bucket for a key is hash(key) % capacity. New entries are prepended to
// their chain, so the most recently inserted key in a bucket is found first.
// Overwriting an existing key updates its value in place and does not move
// the entry.
//
// # Hashing
//
// Integer keys are hashed with a fixed multiplicative bit mixer (IntHash) and
// string keys with djb2 (StringHash). Neither is seeded: a key always lands
// in the same bucket for a given capacity, which keeps chain order
// reproducible. Other key types need WithHash.
//
// # Resizing
//
// A Map never grows on its own, regardless of load factor. Resize builds a
// new Map with twice as many buckets, re-inserts every entry and closes the
// receiver. The old Map must not be used afterwards.
package chain

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
)

const debug = false

// ErrNotFound is returned by Delete when the key is not present.
var ErrNotFound = errors.New("key not found")

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Entry is a node in a bucket's chain, holding a key and value. An Entry is
// owned by exactly one chain.
type Entry[K comparable, V any] struct {
	key   K
	value V
	next  *Entry[K, V]
}

// Map is an unordered map from keys to values with Put, Get, Delete, Resize
// and All operations, backed by a fixed number of buckets each holding a
// chain of entries.
//
// A Map is either live or closed. Close, and Resize on the old Map, move it
// to closed, after which every method except Close panics.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	// The hash function for keys of type K. Unless overridden with WithHash
	// it is chosen from the kind of K.
	hash hashFn[K]
	// Diagnostics for recoverable conditions.
	logger *slog.Logger
	// The allocator to use for the buckets slice.
	allocator Allocator[K, V]
	// The options the Map was created with. Resize passes them on to the
	// new Map.
	options []option[K, V]
	// buckets holds the chain heads; its length is the capacity. A nil
	// buckets slice marks a closed Map.
	buckets []*Entry[K, V]
	// The number of entries across all chains.
	used int
}

// New constructs a new Map with the specified number of buckets. New panics
// if capacity is not positive, or if K is neither an integer nor a string
// type and no WithHash option was given.
func New[K comparable, V any](capacity int, options ...option[K, V]) *Map[K, V] {
	if capacity <= 0 {
		panic(fmt.Sprintf("chain: capacity must be positive, got %d", capacity))
	}

	m := &Map[K, V]{
		logger:    discardLogger,
		allocator: defaultAllocator[K, V]{},
		options:   options,
	}

	for _, op := range options {
		op.apply(m)
	}

	if m.hash == nil {
		m.hash = defaultHasher[K]()
		if m.hash == nil {
			panic(fmt.Sprintf("chain: no default hash for key type %s, use WithHash",
				reflect.TypeFor[K]()))
		}
	}

	buckets := m.allocator.AllocBuckets(capacity)
	if len(buckets) != capacity {
		panic(fmt.Sprintf("chain: allocator returned %d buckets, expected %d",
			len(buckets), capacity))
	}
	clear(buckets)
	m.buckets = buckets

	m.checkInvariants()
	return m
}

// Close closes the map, unlinking every entry and releasing the buckets back
// to the configured allocator. It is invalid to use a Map after it has been
// closed, though Close itself is idempotent and may be called on a nil Map.
func (m *Map[K, V]) Close() {
	if m == nil || m.buckets == nil {
		return
	}

	for i, e := range m.buckets {
		for e != nil {
			next := e.next
			*e = Entry[K, V]{}
			e = next
		}
		m.buckets[i] = nil
	}

	m.allocator.FreeBuckets(m.buckets)
	m.allocator = nil
	m.buckets = nil
	m.used = 0
}

// Put inserts an entry into the map, overwriting the value of an existing
// entry with the same key. A new entry becomes the head of its bucket's
// chain. Put never resizes the map.
func (m *Map[K, V]) Put(key K, value V) {
	m.checkLive()
	i := m.bucket(&key)
	if debug {
		fmt.Printf("put(%v): bucket=%d\n", key, i)
	}

	for e := m.buckets[i]; e != nil; e = e.next {
		if key == e.key {
			if debug {
				fmt.Printf("put(updating): bucket=%d key=%v\n", i, key)
			}
			e.value = value
			m.checkInvariants()
			return
		}
	}

	m.uncheckedPut(i, key, value)
	m.checkInvariants()
}

// uncheckedPut prepends an entry known not to be in bucket i. Used by Put
// after it has failed to find an existing entry to overwrite, and by Resize
// which copies entries that are unique by construction.
func (m *Map[K, V]) uncheckedPut(i int, key K, value V) {
	m.buckets[i] = &Entry[K, V]{key: key, value: value, next: m.buckets[i]}
	m.used++
	if debug {
		fmt.Printf("put(inserting): bucket=%d used=%d\n", i, m.used)
	}
}

// Get retrieves the value from the map for the specified key, return ok=false
// if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	m.checkLive()
	i := m.bucket(&key)
	if debug {
		fmt.Printf("get(%v): bucket=%d\n", key, i)
	}

	for e := m.buckets[i]; e != nil; e = e.next {
		if key == e.key {
			return e.value, true
		}
	}
	return value, false
}

// Delete deletes the entry corresponding to the specified key from the map.
// Deleting a key that is not present leaves the map unchanged and returns an
// error wrapping ErrNotFound.
func (m *Map[K, V]) Delete(key K) error {
	m.checkLive()
	i := m.bucket(&key)
	if debug {
		fmt.Printf("delete(%v): bucket=%d\n", key, i)
	}

	// link is the pointer that refers to e: either the bucket head or the
	// next field of the previous entry.
	for link := &m.buckets[i]; *link != nil; link = &(*link).next {
		e := *link
		if key == e.key {
			*link = e.next
			*e = Entry[K, V]{}
			m.used--
			if debug {
				fmt.Printf("delete(%v): bucket=%d used=%d\n", key, i, m.used)
			}
			m.checkInvariants()
			return nil
		}
	}

	m.logger.Debug("unable to delete entry",
		"key", key,
		"bucket", i,
		"capacity", len(m.buckets),
	)
	return fmt.Errorf("%w: %v", ErrNotFound, key)
}

// Resize returns a new map with twice the capacity of m holding every entry
// of m, and closes m. The new map is created with the same options as m.
// Since the bucket for a key depends on the capacity, entries are
// redistributed. m must not be used once Resize returns.
func (m *Map[K, V]) Resize() *Map[K, V] {
	m.checkLive()
	r := New[K, V](2*len(m.buckets), m.options...)
	if debug {
		fmt.Printf("resize: capacity=%d->%d used=%d\n", len(m.buckets), len(r.buckets), m.used)
	}

	for _, e := range m.buckets {
		for ; e != nil; e = e.next {
			r.uncheckedPut(r.bucket(&e.key), e.key, e.value)
		}
	}
	r.checkInvariants()

	m.Close()
	return r
}

// All calls yield sequentially for each key and value present in the map, in
// bucket order and then chain order. If yield returns false, range stops the
// iteration. The map must not be mutated during iteration.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	m.checkLive()
	for _, e := range m.buckets {
		for ; e != nil; e = e.next {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	m.checkLive()
	return m.used
}

// Capacity returns the number of buckets in the map.
func (m *Map[K, V]) Capacity() int {
	m.checkLive()
	return len(m.buckets)
}

// LoadFactor returns the average chain length, Len()/Capacity(). The map
// does not act on it; callers decide when to Resize.
func (m *Map[K, V]) LoadFactor() float64 {
	m.checkLive()
	return float64(m.used) / float64(len(m.buckets))
}

// bucket returns the index of the bucket for key.
func (m *Map[K, V]) bucket(key *K) int {
	return int(m.hash(key) % uint64(len(m.buckets)))
}

func (m *Map[K, V]) checkLive() {
	if m.buckets == nil {
		panic("chain: use of closed Map")
	}
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		// Walk every chain, verifying each entry lives in the bucket its key
		// hashes to and that no key appears twice. Counting against m.used
		// bounds the walk so a cycle is reported rather than looping forever.
		seen := make(map[K]int, m.used)
		var used int
		for i, e := range m.buckets {
			for ; e != nil; e = e.next {
				if used++; used > m.used {
					panic(fmt.Sprintf("invariant failed: found more than %d entries, chain %d may be cyclic\n%s",
						m.used, i, m.debugString()))
				}
				if j := m.bucket(&e.key); j != i {
					panic(fmt.Sprintf("invariant failed: key %v in bucket %d, but hashes to %d\n%s",
						e.key, i, j, m.debugString()))
				}
				if j, ok := seen[e.key]; ok {
					panic(fmt.Sprintf("invariant failed: key %v present in buckets %d and %d\n%s",
						e.key, j, i, m.debugString()))
				}
				seen[e.key] = i
			}
		}

		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d entries, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
	}
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d\n", len(m.buckets), m.used)
	for i, e := range m.buckets {
		if e == nil {
			continue
		}
		fmt.Fprintf(&buf, "  %4d:", i)
		// Cap the output so that a cyclic chain still terminates.
		for n := 0; e != nil && n <= m.used; e, n = e.next, n+1 {
			fmt.Fprintf(&buf, " %v=%v", e.key, e.value)
		}
		if e != nil {
			buf.WriteString(" ...")
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
