// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

// Package config parses the server's key=value configuration file.
//
// The format is deliberately small: one `key=value` pair per line, blank
// lines and lines starting with `#` are ignored. The keys linuxpath,
// REREAD_ON_QUERY, USE_SSL and PORT are required; algorithm and cert_dir
// are optional.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind identifies the category of a Error.
type Kind int

const (
	// MissingKey indicates a required key was absent from the file.
	MissingKey Kind = iota
	// BadBool indicates a boolean key's value wasn't true/false (case-insensitive).
	BadBool
	// BadPort indicates PORT was not an integer in [1, 65535].
	BadPort
	// BadPath indicates linuxpath didn't resolve to a readable regular file,
	// or that the configuration file itself couldn't be read.
	BadPath
)

func (k Kind) String() string {
	switch k {
	case MissingKey:
		return "missing key"
	case BadBool:
		return "invalid boolean"
	case BadPort:
		return "invalid port"
	case BadPath:
		return "invalid path"
	default:
		return "config error"
	}
}

// Error is returned by Load when the configuration file is invalid.
type Error struct {
	Kind Kind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s %q: %s", e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("config: %s %q", e.Kind, e.Key)
}

func (e *Error) Unwrap() error { return e.Err }

// Config is the immutable result of a successful Load.
type Config struct {
	// LinuxPath is the corpus file path, as given in the config file
	// (not yet made absolute).
	LinuxPath string
	// RereadOnQuery selects reread mode (true) over preloaded mode (false).
	RereadOnQuery bool
	// UseSSL wraps the listener in TLS when true.
	UseSSL bool
	// Port is the TCP port to bind, 1..65535.
	Port int
	// Algorithm is the default reread-mode search algorithm name,
	// overridable by the --algorithm CLI flag.
	Algorithm string
	// CertDir is the directory to look for cert.pem/key.pem in,
	// defaulting to the config file's own directory.
	CertDir string
}

const defaultAlgorithm = "Shell Grep"

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Kind: BadPath, Key: path, Err: err}
	}
	defer f.Close()

	raw := map[string]string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		raw[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	if err := sc.Err(); err != nil {
		return nil, &Error{Kind: BadPath, Key: path, Err: err}
	}

	cfg := &Config{
		Algorithm: defaultAlgorithm,
		CertDir:   filepath.Dir(path),
	}

	linuxpath, err := require(raw, "linuxpath")
	if err != nil {
		return nil, err
	}
	cfg.LinuxPath = linuxpath
	if info, statErr := os.Stat(linuxpath); statErr != nil || !info.Mode().IsRegular() {
		return nil, &Error{Kind: BadPath, Key: "linuxpath", Err: statErr}
	}
	corpus, openErr := os.Open(linuxpath)
	if openErr != nil {
		return nil, &Error{Kind: BadPath, Key: "linuxpath", Err: openErr}
	}
	corpus.Close()

	reread, err := requireBool(raw, "REREAD_ON_QUERY")
	if err != nil {
		return nil, err
	}
	cfg.RereadOnQuery = reread

	ssl, err := requireBool(raw, "USE_SSL")
	if err != nil {
		return nil, err
	}
	cfg.UseSSL = ssl

	port, err := requirePort(raw, "PORT")
	if err != nil {
		return nil, err
	}
	cfg.Port = port

	if v, ok := raw["algorithm"]; ok && v != "" {
		cfg.Algorithm = v
	}
	if v, ok := raw["cert_dir"]; ok && v != "" {
		cfg.CertDir = v
	}

	return cfg, nil
}

func require(raw map[string]string, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == "" {
		return "", &Error{Kind: MissingKey, Key: key}
	}
	return v, nil
}

func requireBool(raw map[string]string, key string) (bool, error) {
	v, err := require(raw, key)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(v) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, &Error{Kind: BadBool, Key: key, Err: fmt.Errorf("expected true/false, got %q", v)}
	}
}

func requirePort(raw map[string]string, key string) (int, error) {
	v, err := require(raw, key)
	if err != nil {
		return 0, err
	}
	n, parseErr := strconv.Atoi(v)
	if parseErr != nil || n < 1 || n > 65535 {
		return 0, &Error{Kind: BadPort, Key: key, Err: fmt.Errorf("expected 1..65535, got %q", v)}
	}
	return n, nil
}
