// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

package index

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// lineRecord marks the start and length of one line within a mapped file.
type lineRecord struct {
	offset int
	length int
}

// MmapScanIndex memory-maps the corpus read-only and precomputes a table of
// line records; Contains does a linear scan over those records with early
// exit on the first byte-equal comparison. It exists for both preloaded mode
// (built once, see buildMmapScan below) and reread mode (see reread.go,
// which maps and unmaps the file fresh on every query).
type MmapScanIndex struct {
	data    []byte
	records []lineRecord
}

func buildMmapScan(path string) (Index, error) {
	data, err := mmapFile(path)
	if err != nil {
		return nil, err
	}
	return &MmapScanIndex{data: data, records: scanRecords(data)}, nil
}

func mmapFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		// mmap of a zero-length file fails on most platforms; an empty
		// corpus is valid (spec.md scenario S4), so fall back to an empty,
		// unmapped buffer with no records.
		return []byte{}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return data, nil
}

// scanRecords walks a mapped buffer and records (offset, length) for every
// line, stripping a trailing \r the same way readLines does for \r\n files.
// Unlike readLines, duplicate lines are preserved as distinct records — they
// are irrelevant to membership but spec.md §4.2 calls out that this variant
// does not collapse them.
func scanRecords(data []byte) []lineRecord {
	var records []lineRecord
	start := 0
	for i, b := range data {
		if b == '\n' {
			end := i
			if end > start && data[end-1] == '\r' {
				end--
			}
			records = append(records, lineRecord{offset: start, length: end - start})
			start = i + 1
		}
	}
	if start < len(data) {
		records = append(records, lineRecord{offset: start, length: len(data) - start})
	}
	return records
}

// Contains implements Index.
func (m *MmapScanIndex) Contains(q []byte) bool {
	for _, r := range m.records {
		if bytes.Equal(m.data[r.offset:r.offset+r.length], q) {
			return true
		}
	}
	return false
}

// Close implements Index.
func (m *MmapScanIndex) Close() error {
	if len(m.data) == 0 {
		return nil
	}
	return unix.Munmap(m.data)
}
