package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/questnet-project/questnet-go/pkg/transport"
	"github.com/questnet-project/questnet-go/pkg/wire"
)

// runOneShot connects, performs a single envelope exchange, prints the
// response and exits. The send argument is "action [key=value ...]".
// The connection is driven with Poll so byte-counter progress can be
// reported during large transfers.
func runOneShot(host, service, send string, cfg transport.Config) error {
	fields := strings.Fields(send)
	if len(fields) == 0 {
		return fmt.Errorf("empty -send argument (want \"action [key=value ...]\")")
	}

	req := &wire.Request{Action: fields[0]}
	if len(fields) > 1 {
		req.Data = make(map[string]any, len(fields)-1)
		for _, kv := range fields[1:] {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("invalid argument %q (want key=value)", kv)
			}
			req.Data[parts[0]] = parts[1]
		}
	}
	payload, err := wire.EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}

	if cfg.TLS != nil && cfg.TLS.ServerName == "" {
		tlsCfg := cfg.TLS.Clone()
		tlsCfg.ServerName = host
		cfg.TLS = tlsCfg
	}

	fmt.Fprintf(os.Stderr, "Connecting to %s:%s...\n", host, service)
	conn, err := transport.Connect(host, service, cfg)
	if err != nil {
		return err
	}
	if err := drivePolling(conn, nil); err != nil {
		return err
	}
	variant := "plaintext"
	if conn.UsingTLS() {
		variant = "TLS"
	}
	fmt.Fprintf(os.Stderr, "Connected (%s)\n", variant)

	xfer, err := conn.Transfer(payload)
	if err != nil {
		return err
	}
	if err := drivePolling(conn, progressPrinter(conn)); err != nil {
		return err
	}

	raw, err := xfer.Response()
	if err != nil {
		return err
	}
	resp, err := wire.DecodeResponse(raw)
	if err != nil {
		return fmt.Errorf("response is not a valid envelope (%d raw bytes): %w", len(raw), err)
	}

	fmt.Printf("Status: %s\n", resp.Status)
	if resp.Message != "" {
		fmt.Printf("Message: %s\n", resp.Message)
	}
	if resp.Status == wire.StatusRedirect {
		fmt.Printf("Redirect to: %s:%d\n", resp.Host, resp.Port)
	}
	keys := make([]string, 0, len(resp.Data))
	for k := range resp.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, resp.Data[k])
	}

	conn.Cancel()
	_ = conn.Run()
	return nil
}

// drivePolling advances the connection until it goes idle or terminal,
// invoking report between polls.
func drivePolling(conn *transport.Connection, report func()) error {
	for {
		if _, err := conn.Poll(); err != nil {
			return err
		}
		if report != nil {
			report()
		}
		switch conn.State() {
		case transport.StateIdle:
			return nil
		case transport.StateCancelled, transport.StateFailed:
			return conn.Err()
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// progressPrinter reports transfer progress to stderr, rewriting one
// line as the counters advance.
func progressPrinter(conn *transport.Connection) func() {
	var lastLine string
	return func() {
		line := fmt.Sprintf("sent %d/%d bytes, received %d/%d bytes",
			conn.BytesWritten(), conn.BytesToWrite(),
			conn.BytesRead(), conn.BytesToRead())
		if line == lastLine {
			return
		}
		lastLine = line
		fmt.Fprintf(os.Stderr, "\r%s", line)
		if conn.State() == transport.StateIdle {
			fmt.Fprintln(os.Stderr)
		}
	}
}
