// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/MohannedAhmed67/fast-string-search-server/internal/dispatch"
	"github.com/MohannedAhmed67/fast-string-search-server/internal/index"
	"github.com/MohannedAhmed67/fast-string-search-server/internal/querylog"
)

// maxQueryBytes is the one-shot framing cap from spec.md §4.4: a query
// line is read up to this many bytes; if no '\n' has appeared by then the
// connection is closed without a response (spec.md §8 scenario S6).
const maxQueryBytes = 1024

var (
	respFound    = []byte("STRING EXISTS\n")
	respNotFound = []byte("STRING NOT FOUND\n")
	respError    = []byte("ERROR\n")
)

// handleConn services exactly one query per connection: read a line (or
// maxQueryBytes, whichever comes first), normalize it, dispatch it to the
// worker pool, write exactly one response, and close.
func (s *Server) handleConn(conn net.Conn) {
	peer := conn.RemoteAddr().String()
	reqID := uuid.New().String()
	defer conn.Close()

	deadline := time.Now().Add(readWriteTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		s.logger.Errorf("conn %s (%s): set deadline: %v", reqID, peer, err)
		return
	}

	line, framed := readFrame(conn)
	if !framed {
		// No terminator within maxQueryBytes, or the peer hung up early:
		// spec.md §8 S6 calls for silent closure, no response at all.
		return
	}

	query := index.Normalize(line)

	submitCtx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	res, err := s.pool.Submit(submitCtx, dispatch.Work{
		Contains: func() bool {
			matched, cErr := s.search.contains(query)
			if cErr != nil {
				panic(cErr)
			}
			return matched
		},
	})

	rec := querylog.Record{
		Peer:       peer,
		Mode:       s.mode(),
		Algorithm:  s.search.algorithm(),
		QueryLen:   len(query),
		ElapsedNS:  res.ElapsedNS, // worker-side timing of Contains only
		QueueDepth: s.pool.QueueDepth(),
	}

	switch {
	case err != nil:
		// Submit itself failed (pool closed, or the 10s deadline elapsed
		// before a worker produced a result) — a genuine dispatcher
		// failure, distinct from an in-worker panic.
		rec.ErrKind = classifyErr(err)
		s.logger.Query(rec)
		writeResponse(conn, respError)
	case res.Err != nil:
		// A worker panic: spec.md §4.3 reports this to the caller as a
		// match failure, not a dispatcher error — the connection still
		// receives STRING NOT FOUND.
		rec.ErrKind = classifyErr(res.Err)
		s.logger.Query(rec)
		writeResponse(conn, respNotFound)
	case res.Matched:
		rec.Matched = true
		s.logger.Query(rec)
		writeResponse(conn, respFound)
	default:
		s.logger.Query(rec)
		writeResponse(conn, respNotFound)
	}
}

// readFrame reads up to maxQueryBytes from conn looking for a terminating
// '\n'. It returns the bytes read (terminator included, stripped later by
// index.Normalize) and whether a full frame was observed.
func readFrame(conn net.Conn) ([]byte, bool) {
	r := bufio.NewReaderSize(conn, maxQueryBytes)
	buf := make([]byte, 0, 256)
	for len(buf) < maxQueryBytes {
		b, err := r.ReadByte()
		if err != nil {
			return nil, false
		}
		buf = append(buf, b)
		if b == '\n' {
			return buf, true
		}
	}
	return nil, false
}

// writeResponse refreshes the inactivity deadline before the single write.
func writeResponse(conn net.Conn, resp []byte) {
	_ = conn.SetWriteDeadline(time.Now().Add(readWriteTimeout))
	_, _ = conn.Write(resp)
}

func classifyErr(err error) string {
	switch {
	case errors.Is(err, dispatch.ErrPanic):
		return "panic"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "search_error"
	}
}
