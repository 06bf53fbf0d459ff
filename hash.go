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
	"reflect"
	"unsafe"
)

const (
	// intHashMultiplier is the odd constant used by both mixing rounds of
	// IntHash. It is fixed so that bucket placement is reproducible.
	intHashMultiplier = 0x45d9f3b

	// stringHashSeed is the initial djb2 accumulator.
	stringHashSeed = 5381
)

// hashFn computes the hash of the key pointed to by key. Bucket selection
// reduces the result modulo the number of buckets.
type hashFn[K comparable] func(key *K) uint64

// IntHash mixes the bits of x with two multiplicative rounds followed by a
// final xor-shift:
//
//	x = ((x >> 16) ^ x) * 0x45d9f3b
//	x = ((x >> 16) ^ x) * 0x45d9f3b
//	x = (x >> 16) ^ x
func IntHash(x uint32) uint32 {
	x = ((x >> 16) ^ x) * intHashMultiplier
	x = ((x >> 16) ^ x) * intHashMultiplier
	return (x >> 16) ^ x
}

// StringHash is the djb2 hash of s: starting from 5381, every byte c of s
// updates the accumulator to acc*33 + c. The empty string hashes to the seed.
func StringHash(s string) uint64 {
	h := uint64(stringHashSeed)
	for i := 0; i < len(s); i++ {
		h = (h << 5) + h + uint64(s[i])
	}
	return h
}

// foldSigned reduces a 64-bit two's complement value to 32 bits. Values that
// fit in an int32 map to their own 32-bit pattern, so a key hashes the same
// regardless of the width of the integer type holding it.
func foldSigned(v int64) uint32 {
	signExt := uint32(uint64(int64(int32(v))) >> 32)
	return uint32(v) ^ (uint32(uint64(v)>>32) ^ signExt)
}

// foldUnsigned is foldSigned for unsigned values.
func foldUnsigned(v uint64) uint32 {
	return uint32(v) ^ uint32(v>>32)
}

// defaultHasher returns the hash function for K derived from its kind, or nil
// if K is neither an integer nor a string kind. Named types such as
// `type ID int32` are hashed like their underlying type.
func defaultHasher[K comparable]() hashFn[K] {
	t := reflect.TypeFor[K]()
	switch t.Kind() {
	case reflect.Int8:
		return func(key *K) uint64 {
			return uint64(IntHash(uint32(int32(*(*int8)(unsafe.Pointer(key))))))
		}
	case reflect.Int16:
		return func(key *K) uint64 {
			return uint64(IntHash(uint32(int32(*(*int16)(unsafe.Pointer(key))))))
		}
	case reflect.Int32:
		return func(key *K) uint64 {
			return uint64(IntHash(uint32(*(*int32)(unsafe.Pointer(key)))))
		}
	case reflect.Int64:
		return func(key *K) uint64 {
			return uint64(IntHash(foldSigned(*(*int64)(unsafe.Pointer(key)))))
		}
	case reflect.Int:
		if t.Size() == 4 {
			return func(key *K) uint64 {
				return uint64(IntHash(uint32(*(*int32)(unsafe.Pointer(key)))))
			}
		}
		return func(key *K) uint64 {
			return uint64(IntHash(foldSigned(*(*int64)(unsafe.Pointer(key)))))
		}
	case reflect.Uint8:
		return func(key *K) uint64 {
			return uint64(IntHash(uint32(*(*uint8)(unsafe.Pointer(key)))))
		}
	case reflect.Uint16:
		return func(key *K) uint64 {
			return uint64(IntHash(uint32(*(*uint16)(unsafe.Pointer(key)))))
		}
	case reflect.Uint32:
		return func(key *K) uint64 {
			return uint64(IntHash(*(*uint32)(unsafe.Pointer(key))))
		}
	case reflect.Uint64:
		return func(key *K) uint64 {
			return uint64(IntHash(foldUnsigned(*(*uint64)(unsafe.Pointer(key)))))
		}
	case reflect.Uint, reflect.Uintptr:
		if t.Size() == 4 {
			return func(key *K) uint64 {
				return uint64(IntHash(*(*uint32)(unsafe.Pointer(key))))
			}
		}
		return func(key *K) uint64 {
			return uint64(IntHash(foldUnsigned(*(*uint64)(unsafe.Pointer(key)))))
		}
	case reflect.String:
		return func(key *K) uint64 {
			return StringHash(*(*string)(unsafe.Pointer(key)))
		}
	}
	return nil
}
