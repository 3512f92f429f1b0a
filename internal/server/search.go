// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

package server

import "github.com/MohannedAhmed67/fast-string-search-server/internal/index"

// searcher is the bridge between the connection handler and whichever
// concrete membership strategy the server was configured with — a prebuilt
// Index in preloaded mode, or a fresh-read Scanner in reread mode. Exactly
// one of the two constructors below is used for the lifetime of the
// process, per spec.md §3's "exactly one of {index present, reread mode}"
// invariant.
type searcher interface {
	// contains reports membership; a non-nil error is a spec.md §7
	// SearchError (reread I/O failure) and is always reported with
	// matched=false.
	contains(q []byte) (matched bool, err error)
	algorithm() string
}

type preloadedSearcher struct {
	idx  index.Index
	name string
}

func (s *preloadedSearcher) contains(q []byte) (bool, error) { return s.idx.Contains(q), nil }
func (s *preloadedSearcher) algorithm() string               { return s.name }

type rereadSearcher struct {
	path string
	scan index.Scanner
	name string
}

func (s *rereadSearcher) contains(q []byte) (bool, error) { return s.scan(s.path, q) }
func (s *rereadSearcher) algorithm() string               { return s.name }
