package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// DefaultPort is the conventional QuestNet server port.
const DefaultPort = 15000

// TLSConfig holds the material for the encrypted socket variant. The
// trust store is explicit, per connection; there is no shared lazily
// initialized TLS context.
type TLSConfig struct {
	// RootCAs is the pool of trusted CA certificates for verifying the
	// server. Nil means the system roots.
	RootCAs *x509.CertPool

	// ServerName is the expected server name for certificate
	// verification. Defaults to the connection's host.
	ServerName string

	// Certificate is an optional client certificate.
	Certificate *tls.Certificate

	// InsecureSkipVerify disables certificate verification.
	// Only for testing.
	InsecureSkipVerify bool
}

// NewClientTLSConfig builds the tls.Config used when the server accepts
// the encryption upgrade.
func NewClientTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("TLSConfig is required")
	}

	tlsConfig := &tls.Config{
		// Servers in the field span several generations, which is the
		// whole reason the token negotiation can degrade to plaintext;
		// require at least TLS 1.2 rather than pinning 1.3.
		MinVersion: tls.VersionTLS12,

		RootCAs:    cfg.RootCAs,
		ServerName: cfg.ServerName,

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},

		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if cfg.Certificate != nil {
		tlsConfig.Certificates = []tls.Certificate{*cfg.Certificate}
	}

	return tlsConfig, nil
}

// defaultTLSConfig is used when encryption is requested without explicit
// TLS material: system roots, hostname verification against the target.
func defaultTLSConfig(host string) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: host,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
	}
}
