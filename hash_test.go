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

package chain

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntHash(t *testing.T) {
	testCases := []struct {
		x        uint32
		expected uint32
	}{
		{0, 0},
		{1, 0x31251ba7},
		{2, 0x66a79298},
		{42, 0xf733caf5},
		{math.MaxUint32, 0x2028884f},
		{math.MaxInt32, 0xbe48bade},
	}
	for _, c := range testCases {
		require.EqualValues(t, c.expected, IntHash(c.x), "%d", c.x)
	}
}

func TestStringHash(t *testing.T) {
	testCases := []struct {
		s        string
		expected uint64
	}{
		{"", 5381},
		{"a", 177670},
		{"LAX", 193461994},
		{"NONE", 6384332661},
		{"hello", 210714636441},
	}
	for _, c := range testCases {
		require.EqualValues(t, c.expected, StringHash(c.s), "%q", c.s)
	}
}

func TestFold(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 42, -42, math.MaxInt32, math.MinInt32} {
		require.EqualValues(t, uint32(int32(v)), foldSigned(v), "%d", v)
	}
	for _, v := range []uint64{0, 1, 42, math.MaxUint32} {
		require.EqualValues(t, uint32(v), foldUnsigned(v), "%d", v)
	}
	// Values beyond 32 bits still mix in their high word.
	require.NotEqual(t, foldSigned(1), foldSigned(1+1<<32))
	require.NotEqual(t, foldUnsigned(1), foldUnsigned(1+1<<40))
}

// bucketOf returns the bucket a fresh map of the given capacity assigns key.
func bucketOf[K comparable](key K, capacity int) int {
	return New[K, struct{}](capacity).bucket(&key)
}

func TestDefaultHashWidths(t *testing.T) {
	// A value hashes the same whatever integer type holds it.
	const capacity = 16
	for _, v := range []int8{0, 1, -1, 42, -128, 127} {
		want := int(IntHash(uint32(int32(v))) % capacity)
		require.EqualValues(t, want, bucketOf(v, capacity), "int8 %d", v)
		require.EqualValues(t, want, bucketOf(int16(v), capacity), "int16 %d", v)
		require.EqualValues(t, want, bucketOf(int32(v), capacity), "int32 %d", v)
		require.EqualValues(t, want, bucketOf(int64(v), capacity), "int64 %d", v)
		require.EqualValues(t, want, bucketOf(int(v), capacity), "int %d", v)
	}
	for _, v := range []uint8{0, 1, 42, 255} {
		want := int(IntHash(uint32(v)) % capacity)
		require.EqualValues(t, want, bucketOf(v, capacity), "uint8 %d", v)
		require.EqualValues(t, want, bucketOf(uint16(v), capacity), "uint16 %d", v)
		require.EqualValues(t, want, bucketOf(uint32(v), capacity), "uint32 %d", v)
		require.EqualValues(t, want, bucketOf(uint64(v), capacity), "uint64 %d", v)
		require.EqualValues(t, want, bucketOf(uint(v), capacity), "uint %d", v)
		require.EqualValues(t, want, bucketOf(uintptr(v), capacity), "uintptr %d", v)
	}

	type name string
	require.EqualValues(t, int(StringHash("LAX")%capacity), bucketOf(name("LAX"), capacity))
	require.EqualValues(t, int(StringHash("")%capacity), bucketOf("", capacity))
}

func TestBucketRange(t *testing.T) {
	// The bucket index is deterministic and always within [0, capacity).
	for _, capacity := range []int{1, 2, 3, 7, 16, 1000} {
		for i := 0; i < 1000; i++ {
			k := rand.Int63() - rand.Int63()
			b := bucketOf(k, capacity)
			require.GreaterOrEqual(t, b, 0)
			require.Less(t, b, capacity)
			require.Equal(t, b, bucketOf(k, capacity))

			s := string(rune('a' + i%26))
			b = bucketOf(s, capacity)
			require.GreaterOrEqual(t, b, 0)
			require.Less(t, b, capacity)
			require.Equal(t, b, bucketOf(s, capacity))
		}
	}
}
