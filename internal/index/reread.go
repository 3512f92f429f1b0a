// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

package index

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sys/unix"
)

// Scanner answers a single Contains call by re-reading the corpus file from
// disk; no result is cached between calls, so each query observes the live
// filesystem state (spec.md §3, "reread mode").
type Scanner func(path string, q []byte) (bool, error)

// Algorithms maps a --algorithm name to a reread-mode Scanner. Names are
// free-form (spec.md §9 models this as "a registry mapping algorithm_name →
// function"); the registry below is deliberately small, favoring a few
// genuinely distinct scan strategies over a long list of aliases for the
// same loop.
var Algorithms = map[string]Scanner{
	"Shell Grep":         grepScan,
	"Rust Binary Search": sortedScan,
	"mmap-scan":          mmapScanReread,
}

// DefaultAlgorithm is used when no --algorithm flag or config value selects
// one explicitly.
const DefaultAlgorithm = "Shell Grep"

// grepScan opens the file fresh and scans line by line, returning on the
// first byte-equal match — the moral equivalent of `grep -Fxq`.
func grepScan(path string, q []byte) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if bytes.Equal(stripCR(sc.Bytes()), q) {
			return true, nil
		}
	}
	return false, sc.Err()
}

// sortedScan re-reads every line, sorts an ephemeral copy, and binary
// searches it. It re-reads and re-sorts on every call (no caching is
// permitted in reread mode) so it is slower than grepScan in practice; it
// exists to give the --algorithm registry a second, genuinely distinct
// strategy rather than a renamed copy of the first.
func sortedScan(path string, q []byte) (bool, error) {
	lines, err := readLines(path)
	if err != nil {
		return false, err
	}
	sort.Slice(lines, func(i, j int) bool {
		return bytes.Compare(lines[i], lines[j]) < 0
	})
	i := sort.Search(len(lines), func(i int) bool {
		return bytes.Compare(lines[i], q) >= 0
	})
	return i < len(lines) && bytes.Equal(lines[i], q), nil
}

// mmapScanReread maps the file fresh for each call and linearly scans it,
// unmapping before returning — this is the reread-mode counterpart to
// MmapScanIndex, which keeps the mapping alive for the life of the process
// in preloaded mode instead.
func mmapScanReread(path string, q []byte) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil // empty file has zero lines, not even one empty line
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return false, fmt.Errorf("mmap: %w", err)
	}
	defer unix.Munmap(data)

	for _, r := range scanRecords(data) {
		if bytes.Equal(data[r.offset:r.offset+r.length], q) {
			return true, nil
		}
	}
	return false, nil
}
