// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

package index

import (
	"bytes"

	"golang.org/x/exp/slices"
)

// SortedIndex stores unique corpus lines sorted by byte value and answers
// Contains with a binary search, giving O(log N) lookup.
type SortedIndex struct {
	lines [][]byte
}

func buildSorted(path string) (Index, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(lines, func(a, b []byte) bool {
		return bytes.Compare(a, b) < 0
	})
	lines = dedupSorted(lines)
	return &SortedIndex{lines: lines}, nil
}

func dedupSorted(lines [][]byte) [][]byte {
	out := lines[:0]
	for i, l := range lines {
		if i == 0 || !bytes.Equal(lines[i-1], l) {
			out = append(out, l)
		}
	}
	return out
}

// Contains implements Index.
func (s *SortedIndex) Contains(q []byte) bool {
	_, found := slices.BinarySearchFunc(s.lines, q, func(line, target []byte) int {
		return bytes.Compare(line, target)
	})
	return found
}

// Close implements Index.
func (s *SortedIndex) Close() error { return nil }
