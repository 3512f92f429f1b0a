// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

package index

import "github.com/dchest/siphash"

// NativeSetIndex is an open-addressing hash table over raw line bytes.
//
// spec.md §9 describes the source's NativeSetIndex as a native-extension
// hash set with an externally identical contract to HashIndex but distinct
// internals, kept selectable purely so benchmark comparisons between the two
// remain meaningful. Go's builtin map is already about as "native" as a hash
// set gets, so rather than alias HashIndex outright this implementation uses
// genuinely different internals: linear-probed open addressing keyed by a
// SipHash-2-4 digest of the line bytes (a fixed, non-secret key — this is a
// membership table, not a MAC).
type NativeSetIndex struct {
	buckets []nativeEntry
	mask    uint64
	count   int
}

type nativeEntry struct {
	used bool
	line []byte
}

// siphashKey0/1 are fixed: the table is used for membership hashing only,
// never as a keyed MAC, so there is no secret to protect.
const (
	siphashKey0 = 0x0123456789abcdef
	siphashKey1 = 0xfedcba9876543210
)

func buildNativeSet(path string) (Index, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	// size the table to keep load factor under ~0.5, rounded to a power of two
	size := uint64(16)
	for size < uint64(len(lines))*2 {
		size *= 2
	}
	ns := &NativeSetIndex{
		buckets: make([]nativeEntry, size),
		mask:    size - 1,
	}
	for _, l := range lines {
		ns.insert(l)
	}
	return ns, nil
}

func nativeHash(line []byte) uint64 {
	return siphash.Hash(siphashKey0, siphashKey1, line)
}

func (ns *NativeSetIndex) insert(line []byte) {
	if ns.find(line) {
		return // duplicates collapse, per spec.md §4.2
	}
	idx := nativeHash(line) & ns.mask
	for ns.buckets[idx].used {
		idx = (idx + 1) & ns.mask
	}
	ns.buckets[idx] = nativeEntry{used: true, line: line}
	ns.count++
}

func (ns *NativeSetIndex) find(q []byte) bool {
	idx := nativeHash(q) & ns.mask
	for ns.buckets[idx].used {
		if equalBytes(ns.buckets[idx].line, q) {
			return true
		}
		idx = (idx + 1) & ns.mask
	}
	return false
}

// Contains implements Index.
func (ns *NativeSetIndex) Contains(q []byte) bool {
	return ns.find(q)
}

// Close implements Index.
func (ns *NativeSetIndex) Close() error { return nil }
