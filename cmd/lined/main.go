// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

// Command lined is the line-membership query server's entry point:
// it parses the CLI flags from spec.md §6, loads and validates the
// configuration file, builds the membership index (or configures reread
// mode), wires up TLS if requested, and runs the server supervisor until a
// shutdown signal arrives.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/MohannedAhmed67/fast-string-search-server/internal/config"
	"github.com/MohannedAhmed67/fast-string-search-server/internal/dispatch"
	"github.com/MohannedAhmed67/fast-string-search-server/internal/index"
	"github.com/MohannedAhmed67/fast-string-search-server/internal/querylog"
	"github.com/MohannedAhmed67/fast-string-search-server/internal/server"
	"github.com/MohannedAhmed67/fast-string-search-server/internal/tlsconf"
)

// Exit codes from spec.md §6.
const (
	exitOK          = 0
	exitConfigError = 1
	exitBindError   = 2
	exitTLSError    = 3
	exitCorpusError = 4
)

const drainGrace = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("lined", pflag.ContinueOnError)
	mode := flags.String("mode", "normal", "normal|daemon")
	buffer := flags.Int("buffer", 1, "index variant: 0=native-set 1=hash 2=trie 3=mmap-scan")
	ip := flags.String("ip", "public", "public|local")
	configPath := flags.String("config_path", "config.txt", "path to the config file")
	algorithm := flags.String("algorithm", index.DefaultAlgorithm, "reread-mode search algorithm name")
	stop := flags.Bool("stop", false, "stop a running daemon and exit")

	if err := flags.Parse(args); err != nil {
		return exitConfigError
	}

	if *stop {
		if err := stopDaemon(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitConfigError
		}
		return exitOK
	}

	if *mode == "daemon" {
		detached, err := daemonize()
		if err != nil {
			fmt.Fprintln(os.Stderr, "daemonize:", err)
			return exitConfigError
		}
		if !detached {
			// Parent process: the child has launched in the background.
			return exitOK
		}
		// Child continues below; stdout/stderr are already redirected to
		// the daemon log files by daemonize.
	}

	logOut := querylog.NewAsyncWriter(os.Stdout, 1024)
	defer logOut.Close()
	logger := querylog.New(logOut)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("config: %v", err)
		return exitConfigError
	}

	variant, err := index.ParseVariant(*buffer)
	if err != nil {
		logger.Errorf("buffer: %v", err)
		return exitConfigError
	}

	scanName := cfg.Algorithm
	if flags.Changed("algorithm") {
		scanName = *algorithm
	}
	scan, ok := index.Algorithms[scanName]
	if !ok && cfg.RereadOnQuery {
		logger.Errorf("unknown --algorithm %q", scanName)
		return exitConfigError
	}

	var idx index.Index
	var variantName string
	if !cfg.RereadOnQuery {
		idx, err = index.Build(variant, cfg.LinuxPath)
		if err != nil {
			logger.Errorf("corpus: %v", err)
			return exitCorpusError
		}
		defer idx.Close()
		variantName = variant.String()
	}

	var tlsConfig *tls.Config
	if cfg.UseSSL {
		built, err := tlsconf.Build(cfg.CertDir)
		if err != nil {
			logger.Errorf("tls: %v", err)
			return exitTLSError
		}
		tlsConfig = built
	}

	pool := dispatch.New(runtime.NumCPU())

	srv := server.New(cfg, logger, pool, idx, variantName, scan, scanName, tlsConfig, server.WithDrainGrace(drainGrace))

	addr := bindAddr(*ip, cfg.Port)
	if err := srv.Bind(context.Background(), addr); err != nil {
		logger.Errorf("bind: %v", err)
		return exitBindError
	}
	logger.Infof("listening on %s (mode=%s)", addr, modeLabel(cfg.RereadOnQuery))

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.Serve() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("received signal %v, draining", sig)
	case err := <-serveErrCh:
		logger.Errorf("accept loop stopped: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}

	return exitOK
}

func bindAddr(ip string, port int) string {
	host := "0.0.0.0"
	if ip == "local" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, fmt.Sprintf("%d", port))
}

func modeLabel(reread bool) string {
	if reread {
		return "reread"
	}
	return "preloaded"
}
