package main

import (
	"crypto/tls"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/questnet-project/questnet-go/pkg/cert"
	"github.com/questnet-project/questnet-go/pkg/transport"
)

// FileConfig is the YAML configuration file layout.
type FileConfig struct {
	// Host is the default server to connect to.
	Host string `yaml:"host"`

	// Service is the port number or service name (default "15000").
	Service string `yaml:"service"`

	// RequestTLS asks the server for transport encryption.
	RequestTLS *bool `yaml:"request_tls"`

	// AllowFallback permits plaintext fallback after a failed TLS handshake.
	AllowFallback *bool `yaml:"allow_fallback"`

	// ServerName overrides the expected TLS server name.
	ServerName string `yaml:"server_name"`

	// CAFile is a PEM bundle of trusted CA certificates.
	CAFile string `yaml:"ca_file"`

	// CADir is a directory of .pem/.crt trust anchors.
	CADir string `yaml:"ca_dir"`

	// InsecureSkipVerify disables certificate verification. Testing only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// MaxPayloadSize bounds frame payloads in bytes.
	MaxPayloadSize uint32 `yaml:"max_payload_size"`

	// Log configures protocol event logging.
	Log LogConfig `yaml:"log"`
}

// LogConfig configures protocol event logging.
type LogConfig struct {
	// File receives CBOR-encoded protocol events, readable with
	// log.Reader. Empty disables file logging.
	File string `yaml:"file"`

	// Level controls console logging: debug, info, warn, error.
	Level string `yaml:"level"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// Merge overlays non-zero fields from other onto c. Command-line flags
// take precedence over the config file this way.
func (c *FileConfig) Merge(other *FileConfig) {
	if other.Host != "" {
		c.Host = other.Host
	}
	if other.Service != "" {
		c.Service = other.Service
	}
	if other.RequestTLS != nil {
		c.RequestTLS = other.RequestTLS
	}
	if other.AllowFallback != nil {
		c.AllowFallback = other.AllowFallback
	}
	if other.ServerName != "" {
		c.ServerName = other.ServerName
	}
	if other.CAFile != "" {
		c.CAFile = other.CAFile
	}
	if other.CADir != "" {
		c.CADir = other.CADir
	}
	if other.InsecureSkipVerify {
		c.InsecureSkipVerify = true
	}
	if other.MaxPayloadSize != 0 {
		c.MaxPayloadSize = other.MaxPayloadSize
	}
	if other.Log.File != "" {
		c.Log.File = other.Log.File
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}

// TransportConfig builds the connection configuration. The logger is
// attached separately by the caller.
func (c *FileConfig) TransportConfig() (transport.Config, error) {
	cfg := transport.DefaultConfig()

	if c.RequestTLS != nil {
		cfg.RequestTLS = *c.RequestTLS
	}
	if c.AllowFallback != nil {
		cfg.AllowFallback = *c.AllowFallback
	}
	if c.MaxPayloadSize != 0 {
		cfg.MaxPayloadSize = c.MaxPayloadSize
	}

	if cfg.RequestTLS {
		tlsCfg, err := c.tlsConfig()
		if err != nil {
			return transport.Config{}, err
		}
		cfg.TLS = tlsCfg
	}

	return cfg, nil
}

// tlsConfig assembles TLS material from the trust anchor settings.
// Returns nil when nothing is configured, letting the transport pick
// its default (system roots, hostname verification).
func (c *FileConfig) tlsConfig() (*tls.Config, error) {
	tc := &transport.TLSConfig{
		ServerName:         c.ServerName,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}

	switch {
	case c.CAFile != "":
		pool, err := cert.LoadPoolFromFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load CA file: %w", err)
		}
		tc.RootCAs = pool
	case c.CADir != "":
		pool, err := cert.LoadPoolFromDir(c.CADir)
		if err != nil {
			return nil, fmt.Errorf("failed to load CA directory: %w", err)
		}
		tc.RootCAs = pool
	}

	if tc.RootCAs == nil && tc.ServerName == "" && !tc.InsecureSkipVerify {
		return nil, nil
	}
	return transport.NewClientTLSConfig(tc)
}
