// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

package server

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/MohannedAhmed67/fast-string-search-server/internal/config"
	"github.com/MohannedAhmed67/fast-string-search-server/internal/dispatch"
	"github.com/MohannedAhmed67/fast-string-search-server/internal/index"
	"github.com/MohannedAhmed67/fast-string-search-server/internal/querylog"
)

// startTestServer builds a preloaded-mode server over corpus and returns its
// bound address plus a shutdown func.
func startTestServer(t *testing.T, corpus string, variant index.Variant) (addr string, shutdown func()) {
	t.Helper()

	dir := t.TempDir()
	corpusPath := filepath.Join(dir, "corpus.txt")
	if err := os.WriteFile(corpusPath, []byte(corpus), 0o644); err != nil {
		t.Fatal(err)
	}

	idx, err := index.Build(variant, corpusPath)
	if err != nil {
		t.Fatalf("index.Build: %v", err)
	}

	cfg := &config.Config{LinuxPath: corpusPath}
	logger := querylog.New(io.Discard)
	pool := dispatch.New(runtime.NumCPU())

	srv := New(cfg, logger, pool, idx, variant.String(), nil, "", nil, WithDrainGrace(2*time.Second))
	if err := srv.Bind(context.Background(), "127.0.0.1:0"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	go srv.Serve()

	return srv.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		idx.Close()
	}
}

func query(t *testing.T, addr string, payload []byte) ([]byte, bool) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return nil, false
	}
	return []byte(resp), true
}

func TestS1HashMatch(t *testing.T) {
	addr, done := startTestServer(t, "alpha\nbeta\ngamma\n", index.VariantHash)
	defer done()

	resp, ok := query(t, addr, []byte("beta\n"))
	if !ok || string(resp) != "STRING EXISTS\n" {
		t.Fatalf("got %q, ok=%v, want STRING EXISTS", resp, ok)
	}
}

func TestS2TrieNoMatch(t *testing.T) {
	addr, done := startTestServer(t, "alpha\nbeta\ngamma\n", index.VariantTrie)
	defer done()

	resp, ok := query(t, addr, []byte("bet\n"))
	if !ok || string(resp) != "STRING NOT FOUND\n" {
		t.Fatalf("got %q, ok=%v, want STRING NOT FOUND", resp, ok)
	}
}

func TestS3NativeSetTrailingNuls(t *testing.T) {
	addr, done := startTestServer(t, "alpha\nbeta\ngamma\n", index.VariantNativeSet)
	defer done()

	resp, ok := query(t, addr, []byte("beta\x00\x00\n"))
	if !ok || string(resp) != "STRING EXISTS\n" {
		t.Fatalf("got %q, ok=%v, want STRING EXISTS", resp, ok)
	}
}

func TestS5SortedLargeCorpus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large corpus test in -short mode")
	}
	var buf bytes.Buffer
	const n = 250000
	for i := 0; i < n; i++ {
		buf.WriteString("line-")
		buf.WriteString(itoa(i))
		buf.WriteByte('\n')
	}
	addr, done := startTestServer(t, buf.String(), index.VariantSorted)
	defer done()

	resp, ok := query(t, addr, []byte("line-123456\n"))
	if !ok || string(resp) != "STRING EXISTS\n" {
		t.Fatalf("got %q, ok=%v, want STRING EXISTS", resp, ok)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}

func TestS6OversizeNoTerminatorClosesSilently(t *testing.T) {
	addr, done := startTestServer(t, "a\nb\n", index.VariantHash)
	defer done()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	payload := bytes.Repeat([]byte("x"), 2000)
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if n != 0 || err == nil {
		t.Fatalf("want connection closed with no bytes, got n=%d err=%v data=%q", n, err, buf[:n])
	}
}

func startRereadTestServer(t *testing.T, corpus string) (addr string, corpusPath string, shutdown func()) {
	t.Helper()

	dir := t.TempDir()
	corpusPath = filepath.Join(dir, "corpus.txt")
	if err := os.WriteFile(corpusPath, []byte(corpus), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{LinuxPath: corpusPath, RereadOnQuery: true}
	logger := querylog.New(io.Discard)
	pool := dispatch.New(runtime.NumCPU())

	srv := New(cfg, logger, pool, nil, "", index.Algorithms[index.DefaultAlgorithm], index.DefaultAlgorithm, nil, WithDrainGrace(2*time.Second))
	if err := srv.Bind(context.Background(), "127.0.0.1:0"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	go srv.Serve()

	return srv.Addr().String(), corpusPath, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func TestS4EmptyCorpusEmptyQuery(t *testing.T) {
	addr, _, done := startRereadTestServer(t, "")
	defer done()

	resp, ok := query(t, addr, []byte("\n"))
	if !ok || string(resp) != "STRING NOT FOUND\n" {
		t.Fatalf("got %q, ok=%v, want STRING NOT FOUND for empty file", resp, ok)
	}
}

func TestS4EmptyCorpusWithEmptyLineMatches(t *testing.T) {
	addr, _, done := startRereadTestServer(t, "\nalpha\n")
	defer done()

	resp, ok := query(t, addr, []byte("\n"))
	if !ok || string(resp) != "STRING EXISTS\n" {
		t.Fatalf("got %q, ok=%v, want STRING EXISTS when corpus has an empty line", resp, ok)
	}
}

func TestRereadFreshnessAcrossServer(t *testing.T) {
	addr, corpusPath, done := startRereadTestServer(t, "alpha\n")
	defer done()

	resp, ok := query(t, addr, []byte("beta\n"))
	if !ok || string(resp) != "STRING NOT FOUND\n" {
		t.Fatalf("got %q before modification, want STRING NOT FOUND", resp)
	}

	if err := os.WriteFile(corpusPath, []byte("alpha\nbeta\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp, ok = query(t, addr, []byte("beta\n"))
	if !ok || string(resp) != "STRING EXISTS\n" {
		t.Fatalf("got %q after modification, want STRING EXISTS", resp)
	}
}

func TestOrderingResponseAfterFullRequest(t *testing.T) {
	addr, done := startTestServer(t, "alpha\n", index.VariantHash)
	defer done()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Write the query in two separate writes split mid-request; no bytes
	// should arrive back until the terminator has been sent.
	if _, err := conn.Write([]byte("alp")); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 16)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("want no response before the request is complete")
	}

	if _, err := conn.Write([]byte("ha\n")); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)
	resp, err := r.ReadString('\n')
	if err != nil || resp != "STRING EXISTS\n" {
		t.Fatalf("got %q, err=%v, want STRING EXISTS", resp, err)
	}
}
