// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// LoadTLSConfig builds a tls.Config from the section. Returns nil when
// TLS is disabled.
func (cfg *TLSConfig) LoadTLSConfig() (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	minVersion := uint16(tls.VersionTLS12)
	if cfg.MinVersion != "" {
		minVersion = parseTLSVersion(cfg.MinVersion)
	}

	// #nosec G402 - MinVersion defaults to TLS 1.2 above
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
	}

	if cfg.MaxVersion != "" {
		tlsConfig.MaxVersion = parseTLSVersion(cfg.MaxVersion)
	}

	if len(cfg.CipherSuites) > 0 {
		suites, err := parseCipherSuites(cfg.CipherSuites)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cipher suites: %w", err)
		}
		tlsConfig.CipherSuites = suites
	}

	if cfg.ClientAuth != "" && cfg.ClientAuth != "none" {
		clientAuth, err := parseClientAuthType(cfg.ClientAuth)
		if err != nil {
			return nil, fmt.Errorf("invalid client_auth value: %w", err)
		}
		tlsConfig.ClientAuth = clientAuth

		if cfg.CAFile != "" || len(cfg.ClientCAs) > 0 {
			pool, err := loadCertPool(cfg.CAFile, cfg.ClientCAs)
			if err != nil {
				return nil, fmt.Errorf("failed to load client CA certificates: %w", err)
			}
			tlsConfig.ClientCAs = pool
		}
	}

	return tlsConfig, nil
}

// parseTLSVersion converts a version name to its constant, defaulting
// to TLS 1.2 for unknown names.
func parseTLSVersion(version string) uint16 {
	switch version {
	case "TLS1.0":
		return tls.VersionTLS10
	case "TLS1.1":
		return tls.VersionTLS11
	case "TLS1.2":
		return tls.VersionTLS12
	case "TLS1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

func parseClientAuthType(authType string) (tls.ClientAuthType, error) {
	switch authType {
	case "none", "":
		return tls.NoClientCert, nil
	case "request":
		return tls.RequestClientCert, nil
	case "require":
		return tls.RequireAnyClientCert, nil
	case "verify":
		return tls.VerifyClientCertIfGiven, nil
	case "require_and_verify":
		return tls.RequireAndVerifyClientCert, nil
	default:
		return tls.NoClientCert, fmt.Errorf("unknown client auth type: %s", authType)
	}
}

// parseCipherSuites converts cipher suite names to IDs.
func parseCipherSuites(suites []string) ([]uint16, error) {
	cipherSuiteMap := map[string]uint16{
		// TLS 1.3
		"TLS_AES_128_GCM_SHA256":       tls.TLS_AES_128_GCM_SHA256,
		"TLS_AES_256_GCM_SHA384":       tls.TLS_AES_256_GCM_SHA384,
		"TLS_CHACHA20_POLY1305_SHA256": tls.TLS_CHACHA20_POLY1305_SHA256,

		// TLS 1.2
		"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305":    tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305":  tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	}

	result := make([]uint16, 0, len(suites))
	for _, name := range suites {
		id, ok := cipherSuiteMap[name]
		if !ok {
			return nil, fmt.Errorf("unknown cipher suite: %s", name)
		}
		result = append(result, id)
	}

	return result, nil
}

// loadCertPool loads trusted CA certificates into a pool.
func loadCertPool(caFile string, additionalCAs []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()

	files := additionalCAs
	if caFile != "" {
		files = append([]string{caFile}, additionalCAs...)
	}

	for _, path := range files {
		// #nosec G304 - CA file paths come from trusted config
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %s: %w", path, err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", path)
		}
	}

	return pool, nil
}
