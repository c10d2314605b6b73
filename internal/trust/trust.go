// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package trust manages the aiOS mTLS trust root: a self-signed CA and
// per-service leaf certificates used to secure inter-service traffic.
//
// The original source (agent-core/src/tls.rs) wrote placeholder text
// files instead of real certificates, deferring to "proper certificate
// generation... in production". No certificate-generation library
// appears anywhere in the retrieved example pack (no rcgen equivalent,
// no cert-manager client), so this one component is built on the
// standard library's crypto/x509, crypto/ecdsa and encoding/pem instead
// of a third-party dependency - the justified exception documented in
// DESIGN.md.
package trust

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/MohaMehrzad/aios-core/internal/logging"
)

// Bundle is the set of on-disk paths for a service's TLS material.
type Bundle struct {
	CACert     string
	ServerCert string
	ServerKey  string
}

// Manager generates and rotates the aiOS trust root.
type Manager struct {
	certDir      string
	caValidity   time.Duration
	leafValidity time.Duration
	dnsNames     []string
}

// NewManager builds a Manager rooted at certDir. caValidity defaults to
// ~10 years, leafValidity to ~2 years, matching SPEC_FULL.md §4.8.
func NewManager(certDir string, caValidity, leafValidity time.Duration, dnsNames []string) *Manager {
	if caValidity <= 0 {
		caValidity = 10 * 365 * 24 * time.Hour
	}
	if leafValidity <= 0 {
		leafValidity = 2 * 365 * 24 * time.Hour
	}
	if len(dnsNames) == 0 {
		dnsNames = []string{"localhost"}
	}
	return &Manager{certDir: certDir, caValidity: caValidity, leafValidity: leafValidity, dnsNames: dnsNames}
}

// bundlePaths returns the canonical file locations within certDir.
func (m *Manager) bundlePaths() Bundle {
	return Bundle{
		CACert:     filepath.Join(m.certDir, "ca.crt"),
		ServerCert: filepath.Join(m.certDir, "server.crt"),
		ServerKey:  filepath.Join(m.certDir, "server.key"),
	}
}

// CertsExist reports whether a full CA+leaf triplet is already on disk.
func (m *Manager) CertsExist() bool {
	b := m.bundlePaths()
	return fileExists(b.CACert) && fileExists(b.ServerCert) && fileExists(b.ServerKey)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GenerateSelfSigned produces the CA and a leaf certificate for
// serviceName if none exist yet; idempotent - a second call against an
// existing bundle is a no-op and returns the existing paths.
func (m *Manager) GenerateSelfSigned(serviceName string) (Bundle, error) {
	b := m.bundlePaths()

	if err := os.MkdirAll(m.certDir, 0o755); err != nil {
		return Bundle{}, fmt.Errorf("trust: create cert directory: %w", err)
	}

	if m.CertsExist() {
		logging.Info().Str("cert_dir", m.certDir).Msg("trust bundle already exists")
		return b, nil
	}

	logging.Info().Str("service", serviceName).Str("cert_dir", m.certDir).Msg("generating self-signed trust root")

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Bundle{}, fmt.Errorf("trust: generate CA key: %w", err)
	}
	caSerial, err := randomSerial()
	if err != nil {
		return Bundle{}, err
	}
	now := time.Now()
	caTemplate := &x509.Certificate{
		SerialNumber:          caSerial,
		Subject:               pkix.Name{CommonName: "aios-internal-ca", Organization: []string{"aiOS"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(m.caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return Bundle{}, fmt.Errorf("trust: create CA certificate: %w", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return Bundle{}, fmt.Errorf("trust: parse CA certificate: %w", err)
	}

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Bundle{}, fmt.Errorf("trust: generate leaf key: %w", err)
	}
	leafSerial, err := randomSerial()
	if err != nil {
		return Bundle{}, err
	}
	leafTemplate := &x509.Certificate{
		SerialNumber: leafSerial,
		Subject:      pkix.Name{CommonName: serviceName, Organization: []string{"aiOS"}},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(m.leafValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:     m.dnsNames,
	}
	for _, name := range m.dnsNames {
		if ip := net.ParseIP(name); ip != nil {
			leafTemplate.IPAddresses = append(leafTemplate.IPAddresses, ip)
		}
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, caCert, &leafKey.PublicKey, caKey)
	if err != nil {
		return Bundle{}, fmt.Errorf("trust: create leaf certificate: %w", err)
	}

	if err := writePEM(b.CACert, "CERTIFICATE", caDER, 0o644); err != nil {
		return Bundle{}, err
	}
	if err := writePEM(b.ServerCert, "CERTIFICATE", leafDER, 0o644); err != nil {
		return Bundle{}, err
	}
	keyDER, err := x509.MarshalECPrivateKey(leafKey)
	if err != nil {
		return Bundle{}, fmt.Errorf("trust: marshal leaf private key: %w", err)
	}
	if err := writePEM(b.ServerKey, "EC PRIVATE KEY", keyDER, 0o600); err != nil {
		return Bundle{}, err
	}

	logging.Info().Str("service", serviceName).Msg("trust root generated successfully")
	return b, nil
}

// Rotate backs up the existing bundle to backup/<timestamp>_* inside
// certDir, then regenerates a fresh CA+leaf pair for serviceName.
func (m *Manager) Rotate(serviceName string) (Bundle, error) {
	b := m.bundlePaths()
	if m.CertsExist() {
		backupDir := filepath.Join(m.certDir, "backup", time.Now().UTC().Format("20060102T150405Z"))
		if err := os.MkdirAll(backupDir, 0o755); err != nil {
			return Bundle{}, fmt.Errorf("trust: create backup directory: %w", err)
		}
		for _, src := range []string{b.CACert, b.ServerCert, b.ServerKey} {
			dst := filepath.Join(backupDir, filepath.Base(src))
			if err := copyFile(src, dst); err != nil {
				return Bundle{}, fmt.Errorf("trust: back up %s: %w", src, err)
			}
			if err := os.Remove(src); err != nil {
				return Bundle{}, fmt.Errorf("trust: remove old %s: %w", src, err)
			}
		}
		logging.Info().Str("backup_dir", backupDir).Msg("rotated trust bundle, previous material backed up")
	}
	return m.GenerateSelfSigned(serviceName)
}

// VerifyCerts reports whether every file in the bundle is present and
// parses as valid PEM/X.509 material.
func (m *Manager) VerifyCerts() (bool, error) {
	b := m.bundlePaths()
	if !m.CertsExist() {
		return false, nil
	}
	caPEM, err := os.ReadFile(b.CACert)
	if err != nil {
		return false, fmt.Errorf("trust: read CA cert: %w", err)
	}
	block, _ := pem.Decode(caPEM)
	if block == nil {
		return false, fmt.Errorf("trust: CA cert is not valid PEM")
	}
	if _, err := x509.ParseCertificate(block.Bytes); err != nil {
		return false, fmt.Errorf("trust: CA cert does not parse: %w", err)
	}
	return true, nil
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("trust: generate serial number: %w", err)
	}
	return serial, nil
}

func writePEM(path, blockType string, der []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("trust: open %s: %w", path, err)
	}
	defer f.Close()
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		return fmt.Errorf("trust: encode %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode())
}
