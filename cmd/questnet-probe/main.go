// Command questnet-probe is an interactive client for QuestNet servers.
//
// The probe connects to a server, negotiates transport encryption, and
// exchanges framed messages from an interactive prompt. It can also
// browse the local network for advertised game servers.
//
// Usage:
//
//	questnet-probe [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-host string       Server host to connect to
//	-service string    Port number or service name (default "15000")
//	-tls               Request transport encryption (default true)
//	-allow-fallback    Permit plaintext fallback after a failed TLS handshake (default true)
//	-server-name string Expected TLS server name (default: the host)
//	-ca-file string    PEM bundle of trusted CA certificates
//	-ca-dir string     Directory of .pem/.crt trust anchors
//	-insecure          Disable certificate verification (testing only)
//	-log-file string   File for CBOR protocol events (read with questnet-log)
//	-log-level string  Console log level: debug, info, warn, error (default "info")
//	-send string       One-shot mode: send "action [key=value ...]" and exit
//
// Examples:
//
//	# Connect interactively, encryption preferred
//	questnet-probe -host play.example.net
//
//	# Pin a private CA and refuse plaintext
//	questnet-probe -host play.example.net -ca-file ca.pem -allow-fallback=false
//
//	# Record protocol events for later inspection
//	questnet-probe -host play.example.net -log-file session.qlog
//
//	# One-shot exchange, no console
//	questnet-probe -host play.example.net -send "login username=alice"
//
// Interactive Commands:
//
//	connect [host] [service]      - Connect to a server
//	send <action> [key=value ...] - Send an envelope and print the response
//	raw <text>                    - Send raw bytes
//	discover [seconds]            - Browse the LAN for game servers
//	join <name>                   - Discover a server by name and connect
//	status                        - Show connection state and byte counters
//	cancel                        - Cancel the active connection
//	quit                          - Exit the probe
package main

import (
	"context"
	"flag"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/questnet-project/questnet-go/cmd/questnet-probe/interactive"
	"github.com/questnet-project/questnet-go/pkg/log"
	"github.com/questnet-project/questnet-go/pkg/transport"
)

// probeConfig adapts the merged configuration for the interactive
// console. It implements interactive.ProbeConfig.
type probeConfig struct {
	file      *FileConfig
	transport transport.Config
}

// DefaultHost implements interactive.ProbeConfig.
func (p *probeConfig) DefaultHost() string {
	return p.file.Host
}

// DefaultService implements interactive.ProbeConfig.
func (p *probeConfig) DefaultService() string {
	if p.file.Service == "" {
		return "15000"
	}
	return p.file.Service
}

// TransportConfig implements interactive.ProbeConfig.
func (p *probeConfig) TransportConfig() transport.Config {
	return p.transport
}

func main() {
	var (
		configFile    string
		flags         FileConfig
		requestTLS    bool
		allowFallback bool
		oneShot       string
	)

	flag.StringVar(&configFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&oneShot, "send", "", `One-shot mode: send "action [key=value ...]" and exit`)
	flag.StringVar(&flags.Host, "host", "", "Server host to connect to")
	flag.StringVar(&flags.Service, "service", "", "Port number or service name")
	flag.BoolVar(&requestTLS, "tls", true, "Request transport encryption")
	flag.BoolVar(&allowFallback, "allow-fallback", true, "Permit plaintext fallback after a failed TLS handshake")
	flag.StringVar(&flags.ServerName, "server-name", "", "Expected TLS server name")
	flag.StringVar(&flags.CAFile, "ca-file", "", "PEM bundle of trusted CA certificates")
	flag.StringVar(&flags.CADir, "ca-dir", "", "Directory of .pem/.crt trust anchors")
	flag.BoolVar(&flags.InsecureSkipVerify, "insecure", false, "Disable certificate verification (testing only)")
	flag.StringVar(&flags.Log.File, "log-file", "", "File for CBOR protocol events")
	flag.StringVar(&flags.Log.Level, "log-level", "", "Console log level: debug, info, warn, error")
	flag.Parse()

	// Flags that were explicitly set override the config file even when
	// they carry the default value.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "tls":
			flags.RequestTLS = &requestTLS
		case "allow-fallback":
			flags.AllowFallback = &allowFallback
		}
	})

	cfg := &FileConfig{}
	if configFile != "" {
		loaded, err := LoadConfig(configFile)
		if err != nil {
			stdlog.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	cfg.Merge(&flags)

	transportCfg, err := cfg.TransportConfig()
	if err != nil {
		stdlog.Fatalf("Invalid configuration: %v", err)
	}

	logger, closeLogger, err := buildLogger(cfg.Log)
	if err != nil {
		stdlog.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLogger()
	transportCfg.Logger = logger

	if oneShot != "" {
		probe := &probeConfig{file: cfg, transport: transportCfg}
		if probe.DefaultHost() == "" {
			stdlog.Fatal("One-shot mode requires -host (or a host in the config file)")
		}
		if err := runOneShot(probe.DefaultHost(), probe.DefaultService(), oneShot, transportCfg); err != nil {
			closeLogger()
			stdlog.Fatalf("Exchange failed: %v", err)
		}
		return
	}

	console, err := interactive.New(&probeConfig{file: cfg, transport: transportCfg})
	if err != nil {
		stdlog.Fatalf("Failed to create console: %v", err)
	}
	// Redirect log output through readline to avoid interfering with input.
	stdlog.SetOutput(console.Stdout())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go console.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		stdlog.Printf("Received signal: %v", sig)
	case <-ctx.Done():
		// Console exited via quit command.
	}
}

// buildLogger assembles the protocol event logger: an slog console
// adapter at debug level, plus a CBOR file sink when configured.
func buildLogger(cfg LogConfig) (log.Logger, func(), error) {
	noClose := func() {}

	var loggers []log.Logger
	if cfg.Level == "debug" {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		loggers = append(loggers, log.NewSlogAdapter(slog.New(handler)))
	}

	if cfg.File == "" {
		switch len(loggers) {
		case 0:
			return log.NoopLogger{}, noClose, nil
		default:
			return loggers[0], noClose, nil
		}
	}

	fileLogger, err := log.NewFileLogger(cfg.File)
	if err != nil {
		return nil, nil, err
	}
	loggers = append(loggers, fileLogger)
	closeFn := func() { _ = fileLogger.Close() }

	if len(loggers) == 1 {
		return fileLogger, closeFn, nil
	}
	return log.NewMultiLogger(loggers...), closeFn, nil
}
