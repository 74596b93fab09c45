// Package interactive provides the interactive command-line interface
// for the QuestNet probe.
package interactive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/questnet-project/questnet-go/pkg/discovery"
	"github.com/questnet-project/questnet-go/pkg/transport"
	"github.com/questnet-project/questnet-go/pkg/wire"
)

// ProbeConfig provides configuration to the interactive console.
// This interface allows the interactive layer to access probe settings
// without depending on the main package's config structure.
type ProbeConfig interface {
	// DefaultHost returns the host to connect to when none is given.
	DefaultHost() string

	// DefaultService returns the service to connect to when none is given.
	DefaultService() string

	// TransportConfig returns the connection configuration, logger included.
	TransportConfig() transport.Config
}

// Console handles interactive mode for questnet-probe.
type Console struct {
	config ProbeConfig
	rl     *readline.Instance

	// conn is the active connection, nil when disconnected. The console
	// goroutine is the connection's driving goroutine.
	conn *transport.Connection
}

// New creates a new interactive console.
func New(cfg ProbeConfig) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "probe> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{config: cfg, rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			c.disconnect()
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "connect", "c":
			c.cmdConnect(args)

		case "send", "s":
			c.cmdSend(args)

		case "raw":
			c.cmdRaw(args)

		case "status", "st":
			c.cmdStatus()

		case "discover", "d":
			c.cmdDiscover(ctx, args)

		case "join", "j":
			c.cmdJoin(ctx, args)

		case "cancel", "close":
			c.cmdCancel()

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			c.disconnect()
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
QuestNet Probe Commands:
  Connection:
    connect [host] [service]  - Connect to a server (defaults from config)
    cancel                    - Cancel the active connection
    status                    - Show connection state and byte counters

  Exchange:
    send <action> [key=value ...] - Send an envelope and print the response
    raw <text>                    - Send raw bytes and print the raw response

  Discovery:
    discover [seconds]  - Browse the LAN for game servers
    join <name>         - Discover a server by name and connect to it

  General:
    help                - Show this help
    quit                - Exit the probe`)
}

// cmdConnect handles the connect command.
func (c *Console) cmdConnect(args []string) {
	host := c.config.DefaultHost()
	service := c.config.DefaultService()
	if len(args) >= 1 {
		host = args[0]
	}
	if len(args) >= 2 {
		service = args[1]
	}
	if host == "" {
		fmt.Fprintln(c.rl.Stdout(), "Usage: connect <host> [service]")
		return
	}

	c.connect(host, service, c.config.TransportConfig())
}

// connect tears down any active connection and establishes a new one,
// driving the loop to completion of the handshake.
func (c *Console) connect(host, service string, cfg transport.Config) {
	c.disconnect()

	if cfg.TLS != nil && cfg.TLS.ServerName == "" {
		// The configured trust anchors apply to whichever host the user
		// targets; verification still needs the right name.
		tlsCfg := cfg.TLS.Clone()
		tlsCfg.ServerName = host
		cfg.TLS = tlsCfg
	}

	fmt.Fprintf(c.rl.Stdout(), "Connecting to %s:%s...\n", host, service)

	conn, err := transport.Connect(host, service, cfg)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Connect failed: %v\n", err)
		return
	}

	if err := conn.Run(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Connection failed: %v\n", err)
		return
	}

	c.conn = conn
	variant := "plaintext"
	if conn.UsingTLS() {
		variant = "TLS"
	}
	fmt.Fprintf(c.rl.Stdout(), "Connected (%s), connection ID %s\n", variant, conn.ID())
}

// cmdSend handles the send command: encodes a request envelope, performs
// one framed exchange, and prints the decoded response.
func (c *Console) cmdSend(args []string) {
	if c.conn == nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected (use 'connect')")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: send <action> [key=value ...]")
		return
	}

	req := &wire.Request{Action: args[0]}
	if len(args) > 1 {
		req.Data = make(map[string]any, len(args)-1)
		for _, kv := range args[1:] {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				fmt.Fprintf(c.rl.Stdout(), "Invalid argument %q (want key=value)\n", kv)
				return
			}
			req.Data[parts[0]] = parts[1]
		}
	}

	payload, err := wire.EncodeRequest(req)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Encode failed: %v\n", err)
		return
	}

	response, err := c.exchange(payload)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Transfer failed: %v\n", err)
		return
	}

	resp, err := wire.DecodeResponse(response)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Response is not a valid envelope (%v), %d raw bytes\n",
			err, len(response))
		return
	}
	c.printResponse(resp)
}

// cmdRaw handles the raw command: sends the argument bytes verbatim.
func (c *Console) cmdRaw(args []string) {
	if c.conn == nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected (use 'connect')")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: raw <text>")
		return
	}

	response, err := c.exchange([]byte(strings.Join(args, " ")))
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Transfer failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Received %d bytes: %q\n", len(response), response)
}

// exchange performs one framed request/response exchange, driving the
// connection's loop until the transfer completes.
func (c *Console) exchange(payload []byte) ([]byte, error) {
	t, err := c.conn.Transfer(payload)
	if err != nil {
		return nil, err
	}
	if err := c.conn.Run(); err != nil {
		c.conn = nil
		return nil, err
	}
	return t.Response()
}

func (c *Console) printResponse(resp *wire.Response) {
	fmt.Fprintf(c.rl.Stdout(), "Status: %s\n", resp.Status)
	if resp.Message != "" {
		fmt.Fprintf(c.rl.Stdout(), "Message: %s\n", resp.Message)
	}
	if resp.Status == wire.StatusRedirect {
		fmt.Fprintf(c.rl.Stdout(), "Redirect to: %s:%d\n", resp.Host, resp.Port)
	}
	if len(resp.Data) > 0 {
		keys := make([]string, 0, len(resp.Data))
		for k := range resp.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(c.rl.Stdout(), "  %s: %v\n", k, resp.Data[k])
		}
	}
}

// cmdStatus handles the status command.
func (c *Console) cmdStatus() {
	if c.conn == nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected")
		return
	}

	conn := c.conn
	fmt.Fprintln(c.rl.Stdout(), "\nConnection Status")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(c.rl.Stdout(), "  ID:        %s\n", conn.ID())
	fmt.Fprintf(c.rl.Stdout(), "  State:     %s\n", conn.State())
	fmt.Fprintf(c.rl.Stdout(), "  Encrypted: %v\n", conn.UsingTLS())
	fmt.Fprintf(c.rl.Stdout(), "  Sent:      %d/%d bytes\n", conn.BytesWritten(), conn.BytesToWrite())
	fmt.Fprintf(c.rl.Stdout(), "  Received:  %d/%d bytes\n", conn.BytesRead(), conn.BytesToRead())
	if err := conn.Err(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "  Error:     %v\n", err)
	}
	fmt.Fprintln(c.rl.Stdout())
}

// cmdDiscover handles the discover command.
func (c *Console) cmdDiscover(ctx context.Context, args []string) {
	timeout := 5 * time.Second
	if len(args) >= 1 {
		d, err := time.ParseDuration(args[0] + "s")
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid duration: %v\n", err)
			return
		}
		timeout = d
	}

	servers, err := c.browse(ctx, timeout, nil)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Discovery error: %v\n", err)
		return
	}
	if len(servers) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No game servers found")
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "Found %d game server(s):\n", len(servers))
	for idx, s := range servers {
		secure := ""
		if s.TLS {
			secure = ", tls"
		}
		locked := ""
		if s.PasswordProtected {
			locked = ", password"
		}
		fmt.Fprintf(c.rl.Stdout(), "  %d. %s - %s (%d/%d players%s%s) at %s:%d\n",
			idx+1, s.InstanceName, s.GameName, s.Players, s.MaxPlayers,
			secure, locked, s.Host, s.Port)
	}
}

// cmdJoin discovers a server by name and connects to its endpoints.
func (c *Console) cmdJoin(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: join <instance-name>")
		return
	}
	name := strings.Join(args, " ")

	fmt.Fprintf(c.rl.Stdout(), "Looking for %q...\n", name)

	findCtx, cancel := context.WithTimeout(ctx, discovery.BrowseTimeout)
	defer cancel()

	browser, err := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig())
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Discovery error: %v\n", err)
		return
	}
	defer browser.Stop()

	svc, err := browser.FindByName(findCtx, name)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Server not found: %v\n", err)
		return
	}

	endpoints := svc.Endpoints()
	if len(endpoints) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "Server advertised no usable addresses")
		return
	}

	cfg := c.config.TransportConfig()
	cfg.Resolver = &transport.StaticResolver{Endpoints: endpoints}
	c.connect(svc.Host, fmt.Sprintf("%d", svc.Port), cfg)
}

// browse collects game servers until the timeout elapses.
func (c *Console) browse(ctx context.Context, timeout time.Duration, filter discovery.FilterFunc) ([]*discovery.GameServerService, error) {
	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	browser, err := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig())
	if err != nil {
		return nil, err
	}
	defer browser.Stop()

	results, err := browser.BrowseGameServers(browseCtx)
	if err != nil {
		return nil, err
	}
	if filter != nil {
		results = discovery.FilterBrowseResults(results, filter)
	}

	var servers []*discovery.GameServerService
	for svc := range results {
		servers = append(servers, svc)
	}
	return servers, nil
}

// cmdCancel handles the cancel command.
func (c *Console) cmdCancel() {
	if c.conn == nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected")
		return
	}
	c.disconnect()
	fmt.Fprintln(c.rl.Stdout(), "Connection cancelled")
}

// disconnect cancels the active connection, draining its loop so the
// aborted completion runs.
func (c *Console) disconnect() {
	if c.conn == nil {
		return
	}
	c.conn.Cancel()
	_ = c.conn.Run()
	c.conn = nil
}
