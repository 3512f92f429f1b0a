// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

package index

// HashIndex is a mapping-style set of line bytes with O(1) expected lookup.
// Duplicate lines collapse; exact O(1) story courtesy of Go's built-in map.
type HashIndex struct {
	set map[string]struct{}
}

func buildHash(path string) (Index, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		set[string(l)] = struct{}{}
	}
	return &HashIndex{set: set}, nil
}

// Contains implements Index.
func (h *HashIndex) Contains(q []byte) bool {
	_, ok := h.set[string(q)]
	return ok
}

// Close implements Index.
func (h *HashIndex) Close() error { return nil }
