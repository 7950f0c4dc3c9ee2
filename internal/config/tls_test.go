// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestCertificate writes a self-signed server certificate and key
// into dir and returns their paths.
func writeTestCertificate(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "localhost"},
		DNSNames:              []string{"localhost"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:                  true,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := os.WriteFile(certFile, certPEM, 0600); err != nil {
		t.Fatalf("failed to write cert file: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}
	return certFile, keyFile
}

func TestLoadTLSConfig_Disabled(t *testing.T) {
	cfg := &TLSConfig{Enabled: false}

	tlsConfig, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("LoadTLSConfig() error = %v, want nil", err)
	}
	if tlsConfig != nil {
		t.Errorf("LoadTLSConfig() = %v, want nil for disabled TLS", tlsConfig)
	}
}

func TestLoadTLSConfig_ValidConfig(t *testing.T) {
	certFile, keyFile := writeTestCertificate(t, t.TempDir())

	cfg := &TLSConfig{
		Enabled:  true,
		CertFile: certFile,
		KeyFile:  keyFile,
	}

	tlsConfig, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("LoadTLSConfig() error = %v, want nil", err)
	}
	if len(tlsConfig.Certificates) != 1 {
		t.Errorf("Certificates count = %d, want 1", len(tlsConfig.Certificates))
	}
	if tlsConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %d, want TLS 1.2 default", tlsConfig.MinVersion)
	}
}

func TestLoadTLSConfig_MissingCertFile(t *testing.T) {
	cfg := &TLSConfig{
		Enabled:  true,
		CertFile: "/nonexistent/cert.pem",
		KeyFile:  "/nonexistent/key.pem",
	}

	if _, err := cfg.LoadTLSConfig(); err == nil {
		t.Error("LoadTLSConfig() error = nil, want error for missing files")
	}
}

func TestLoadTLSConfig_MinVersionAndCiphers(t *testing.T) {
	certFile, keyFile := writeTestCertificate(t, t.TempDir())

	cfg := &TLSConfig{
		Enabled:      true,
		CertFile:     certFile,
		KeyFile:      keyFile,
		MinVersion:   "TLS1.3",
		CipherSuites: []string{"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256"},
	}

	tlsConfig, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("LoadTLSConfig() error = %v, want nil", err)
	}
	if tlsConfig.MinVersion != tls.VersionTLS13 {
		t.Errorf("MinVersion = %d, want TLS 1.3", tlsConfig.MinVersion)
	}
	if len(tlsConfig.CipherSuites) != 1 {
		t.Errorf("CipherSuites count = %d, want 1", len(tlsConfig.CipherSuites))
	}
}

func TestLoadTLSConfig_UnknownCipherSuite(t *testing.T) {
	certFile, keyFile := writeTestCertificate(t, t.TempDir())

	cfg := &TLSConfig{
		Enabled:      true,
		CertFile:     certFile,
		KeyFile:      keyFile,
		CipherSuites: []string{"TLS_BOGUS_SUITE"},
	}

	if _, err := cfg.LoadTLSConfig(); err == nil {
		t.Error("LoadTLSConfig() error = nil, want error for unknown cipher suite")
	}
}

func TestLoadTLSConfig_ClientAuth(t *testing.T) {
	certFile, keyFile := writeTestCertificate(t, t.TempDir())

	cfg := &TLSConfig{
		Enabled:    true,
		CertFile:   certFile,
		KeyFile:    keyFile,
		ClientAuth: "require_and_verify",
		CAFile:     certFile,
	}

	tlsConfig, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("LoadTLSConfig() error = %v, want nil", err)
	}
	if tlsConfig.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("ClientAuth = %d, want RequireAndVerifyClientCert", tlsConfig.ClientAuth)
	}
	if tlsConfig.ClientCAs == nil {
		t.Error("ClientCAs = nil, want populated pool")
	}
}

func TestLoadTLSConfig_InvalidClientAuth(t *testing.T) {
	certFile, keyFile := writeTestCertificate(t, t.TempDir())

	cfg := &TLSConfig{
		Enabled:    true,
		CertFile:   certFile,
		KeyFile:    keyFile,
		ClientAuth: "bogus",
	}

	if _, err := cfg.LoadTLSConfig(); err == nil {
		t.Error("LoadTLSConfig() error = nil, want error for unknown client auth type")
	}
}

func TestParseTLSVersion(t *testing.T) {
	tests := []struct {
		name string
		want uint16
	}{
		{"TLS1.0", tls.VersionTLS10},
		{"TLS1.1", tls.VersionTLS11},
		{"TLS1.2", tls.VersionTLS12},
		{"TLS1.3", tls.VersionTLS13},
		{"garbage", tls.VersionTLS12},
	}

	for _, tt := range tests {
		if got := parseTLSVersion(tt.name); got != tt.want {
			t.Errorf("parseTLSVersion(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestParseClientAuthType(t *testing.T) {
	tests := []struct {
		name    string
		want    tls.ClientAuthType
		wantErr bool
	}{
		{"", tls.NoClientCert, false},
		{"none", tls.NoClientCert, false},
		{"request", tls.RequestClientCert, false},
		{"require", tls.RequireAnyClientCert, false},
		{"verify", tls.VerifyClientCertIfGiven, false},
		{"require_and_verify", tls.RequireAndVerifyClientCert, false},
		{"bogus", tls.NoClientCert, true},
	}

	for _, tt := range tests {
		got, err := parseClientAuthType(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseClientAuthType(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseClientAuthType(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}
