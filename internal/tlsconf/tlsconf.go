// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

// Package tlsconf builds the server-only TLS acceptor described in
// spec.md §4.7: load cert.pem/key.pem from disk, or self-sign a certificate
// when they're absent. The self-signed fallback is always on; no option
// turns it off.
//
// No third-party x509/TLS helper is used — the standard library's
// crypto/tls, crypto/x509, crypto/rsa, crypto/rand and encoding/pem are
// exactly what every example in the pack that touches certificate
// generation (e.g. moby's swarm/TLS bootstrapping) also builds on; see
// DESIGN.md.
package tlsconf

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

// Error wraps any failure building a TLS config, corresponding to spec.md
// §7's TlsError kind.
type Error struct{ Err error }

func (e *Error) Error() string { return fmt.Sprintf("tls: %s", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

const (
	selfSignedDays = 365
	rsaKeyBits     = 2048
)

// Build loads cert.pem/key.pem from dir, generating and persisting a
// self-signed keypair there first if they don't already exist. The returned
// *tls.Config accepts only TLS 1.2 and above and never requests or verifies
// client certificates, per spec.md §4.7.
func Build(dir string) (*tls.Config, error) {
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")

	if !filesExist(certPath, keyPath) {
		if err := generateSelfSigned(certPath, keyPath); err != nil {
			return nil, &Error{Err: err}
		}
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, &Error{Err: err}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		ClientAuth:   tls.NoClientCert,
	}, nil
}

func filesExist(paths ...string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// generateSelfSigned writes a fresh RSA-2048 keypair and a 365-day
// self-signed certificate valid for localhost to certPath/keyPath.
func generateSelfSigned(certPath, keyPath string) error {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generating serial: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "localhost"},
		DNSNames:              []string{"localhost"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(selfSignedDays * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:                  true,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("creating certificate: %w", err)
	}

	certOut, err := os.OpenFile(certPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		return err
	}

	keyOut, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer keyOut.Close()
	return pem.Encode(keyOut, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}
