// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/MohannedAhmed67/fast-string-search-server/internal/dispatch"
)

func TestReadFrameStopsAtTerminator(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	go func() {
		client.Write([]byte("hello\nextra"))
	}()

	line, ok := readFrame(srv)
	if !ok {
		t.Fatal("want framed=true")
	}
	if string(line) != "hello\n" {
		t.Fatalf("got %q, want %q", line, "hello\n")
	}
}

func TestReadFrameRejectsOversizeWithoutTerminator(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, maxQueryBytes+1)
		for i := range buf {
			buf[i] = 'x'
		}
		client.Write(buf)
	}()

	srv.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, ok := readFrame(srv)
	if ok {
		t.Fatal("want framed=false for input exceeding maxQueryBytes with no terminator")
	}
	srv.Close()
	<-done
}

func TestClassifyErr(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{dispatch.ErrPanic, "panic"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "search_error"},
	}
	for _, c := range cases {
		if got := classifyErr(c.err); got != c.want {
			t.Errorf("classifyErr(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
