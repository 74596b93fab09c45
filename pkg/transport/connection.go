package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/questnet-project/questnet-go/pkg/log"
)

// State of a connection.
type State int

const (
	// StateResolving indicates endpoint resolution in progress.
	StateResolving State = iota

	// StateConnecting indicates a TCP connect to a candidate in progress.
	StateConnecting

	// StateHandshaking indicates the capability token exchange or TLS
	// upgrade in progress.
	StateHandshaking

	// StateIdle indicates connect and handshake finished and no transfer
	// is in flight.
	StateIdle

	// StateWriting indicates a request frame is being written.
	StateWriting

	// StateReading indicates a response frame is being read.
	StateReading

	// StateCancelled is terminal: the connection was cancelled.
	StateCancelled

	// StateFailed is terminal: the connection failed.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateResolving:
		return "RESOLVING"
	case StateConnecting:
		return "CONNECTING"
	case StateHandshaking:
		return "HANDSHAKING"
	case StateIdle:
		return "IDLE"
	case StateWriting:
		return "WRITING"
	case StateReading:
		return "READING"
	case StateCancelled:
		return "CANCELLED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// API misuse errors. These are returned directly by methods; transport
// failures instead surface as *Error values through Poll, Run and Err.
var (
	// ErrNotIdle indicates Transfer was called while another transfer is
	// in flight or before the connection reached the idle state.
	ErrNotIdle = errors.New("connection is not idle")

	// ErrTerminated indicates the connection is cancelled or failed and
	// cannot be reused.
	ErrTerminated = errors.New("connection is terminated")
)

// Config configures a client connection.
type Config struct {
	// RequestTLS asks the server for transport encryption after connect.
	RequestTLS bool

	// AllowFallback permits degrading to plaintext when the TLS
	// handshake fails after the server accepted encryption. A
	// plaintext-only server reply always falls back, by protocol.
	AllowFallback bool

	// TLS is the configuration for the encrypted variant: trust store,
	// server name, cipher policy. Nil with RequestTLS set means a
	// default config trusting the system roots.
	TLS *tls.Config

	// MaxPayloadSize bounds frame payloads in both directions
	// (default: DefaultMaxPayloadSize).
	MaxPayloadSize uint32

	// Resolver overrides endpoint resolution (default: NetResolver).
	Resolver Resolver

	// Logger receives protocol events. Nil disables logging.
	Logger log.Logger
}

// DefaultConfig returns the default client configuration: encryption
// requested with graceful fallback to plaintext.
func DefaultConfig() Config {
	return Config{
		RequestTLS:     true,
		AllowFallback:  true,
		MaxPayloadSize: DefaultMaxPayloadSize,
	}
}

// Connection is a client connection to a remote host. It owns its event
// loop: every network operation is asynchronous and its completion is
// delivered only while Poll or Run advances the loop, so all state lives
// on one logical thread of control. A Connection must not be driven from
// two goroutines concurrently.
//
// There is no internal deadline mechanism. Callers needing timeouts must
// track elapsed time externally and call Cancel, after which the
// connection is discarded.
type Connection struct {
	host    string
	service string
	config  Config
	id      string

	loop     *eventLoop
	resolver Resolver
	dialer   net.Dialer

	// State below is mutated only by completion handlers and API calls
	// on the driving goroutine.
	state         State
	candidates    []Endpoint
	nextCandidate int
	rawConn       net.Conn
	sock          socket
	framer        *Framer
	neg           negotiator
	err           *Error
	inflight      *Transfer

	ctx       context.Context
	cancelCtx context.CancelFunc
	cancelled atomic.Bool

	// Byte counters for caller-visible progress. Updated from operation
	// goroutines, hence atomic.
	bytesToWrite atomic.Uint64
	bytesWritten atomic.Uint64
	bytesToRead  atomic.Uint64
	bytesRead    atomic.Uint64
}

// Connect creates a connection bound to host and service and immediately
// begins resolution. Errors from resolution onward surface through Poll,
// Run and Err; only configuration problems are reported here.
func Connect(host, service string, config Config) (*Connection, error) {
	if host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if service == "" {
		return nil, fmt.Errorf("service is required")
	}
	if config.MaxPayloadSize == 0 {
		config.MaxPayloadSize = DefaultMaxPayloadSize
	}
	if config.RequestTLS && config.TLS == nil {
		config.TLS = defaultTLSConfig(host)
	}

	c := &Connection{
		host:     host,
		service:  service,
		config:   config,
		id:       uuid.NewString(),
		loop:     newEventLoop(),
		resolver: config.Resolver,
		state:    StateResolving,
		neg:      negotiator{requestTLS: config.RequestTLS},
	}
	if c.resolver == nil {
		c.resolver = &NetResolver{}
	}
	c.ctx, c.cancelCtx = context.WithCancel(context.Background())

	c.startResolve()

	return c, nil
}

// ID returns the connection's unique identifier, as used in log events.
func (c *Connection) ID() string {
	return c.id
}

// State returns the current state.
func (c *Connection) State() State {
	return c.state
}

// Done reports whether connect and handshake finished (by success or
// fallback) and no transfer is in flight.
func (c *Connection) Done() bool {
	return c.state == StateIdle
}

// UsingTLS reports whether the encrypted variant is active and the
// connection may carry cleartext credentials. Only valid once Done
// holds; before that the socket variant is not yet fixed.
func (c *Connection) UsingTLS() bool {
	return c.sock != nil && c.sock.encrypted()
}

// Err returns the terminal error, if any. Cancellation surfaces as an
// Aborted-kind error.
func (c *Connection) Err() error {
	if c.err == nil {
		return nil
	}
	return c.err
}

// Byte counter accessors. During a transfer, written ≤ to-write and
// read ≤ to-read at all times; equality marks completion of that
// direction.

// BytesToWrite returns the total size of the request frame in flight.
func (c *Connection) BytesToWrite() uint64 { return c.bytesToWrite.Load() }

// BytesWritten returns how much of the request frame is on the wire.
func (c *Connection) BytesWritten() uint64 { return c.bytesWritten.Load() }

// BytesToRead returns the expected size of the response frame, once the
// peer has advertised its length.
func (c *Connection) BytesToRead() uint64 { return c.bytesToRead.Load() }

// BytesRead returns how much of the response frame has arrived.
func (c *Connection) BytesRead() uint64 { return c.bytesRead.Load() }

// Poll handles every pending completion without blocking and returns the
// count of operations that completed or were aborted in this call.
// Aborted completions count as progress and are not surfaced as errors,
// because cancellation is caller-initiated. Any other failure that
// occurred during this call is returned.
func (c *Connection) Poll() (int, error) {
	hadErr := c.err != nil
	n := c.loop.poll()
	if c.err != nil && !hadErr && c.err.Kind != KindAborted {
		return n, c.err
	}
	return n, nil
}

// Run advances the loop, blocking, until no work remains, then returns
// the terminal error if the connection failed or was cancelled.
func (c *Connection) Run() error {
	c.loop.run()
	return c.Err()
}

// Cancel aborts whatever operation is pending. The in-flight operation's
// completion still fires, with an Aborted indication, so teardown runs on
// one path. A cancelled connection is discarded, never reused.
func (c *Connection) Cancel() {
	if c.state == StateCancelled || c.state == StateFailed {
		return
	}
	c.cancelled.Store(true)
	c.cancelCtx()
	c.closeStream()
	if c.loop.idle() {
		// Nothing in flight: no completion will fire, terminate now.
		c.terminate(errAborted(c.state.String()))
	}
}

// Transfer queues one framed request/response exchange. The connection
// must be idle; concurrent transfers are rejected, never interleaved.
// The returned handle becomes usable once the loop reports it done.
func (c *Connection) Transfer(request []byte) (*Transfer, error) {
	switch c.state {
	case StateIdle:
	case StateCancelled, StateFailed:
		return nil, ErrTerminated
	default:
		return nil, ErrNotIdle
	}

	t := &Transfer{}
	c.inflight = t

	c.bytesToWrite.Store(uint64(FrameSize(len(request))))
	c.bytesWritten.Store(0)
	c.bytesToRead.Store(0)
	c.bytesRead.Store(0)

	c.setState(StateWriting, "")
	c.startWrite(request)

	return t, nil
}

// Transfer is the handle for one in-flight framed exchange.
type Transfer struct {
	done     bool
	response []byte
	err      *Error
}

// Done reports whether the exchange finished, successfully or not.
func (t *Transfer) Done() bool {
	return t.done
}

// Response returns the peer's payload once Done holds.
func (t *Transfer) Response() ([]byte, error) {
	if !t.done {
		return nil, ErrNotIdle
	}
	if t.err != nil {
		return nil, t.err
	}
	return t.response, nil
}

// --- operations -------------------------------------------------------

// Each operation runs on its own goroutine and posts exactly one
// completion; the completion handler performs the state transition and
// starts the next operation. Suspension points are exactly: resolve,
// connect per candidate, handshake write/read, TLS handshake, frame
// write, frame read.

func (c *Connection) startResolve() {
	c.loop.start()
	go func() {
		endpoints, err := c.resolver.Resolve(c.ctx, c.host, c.service)
		c.loop.post(func() { c.handleResolve(endpoints, err) })
	}()
}

func (c *Connection) handleResolve(endpoints []Endpoint, err error) {
	if c.cancelled.Load() {
		c.terminate(errAborted("resolve"))
		return
	}
	if err != nil {
		var te *Error
		if !errors.As(err, &te) {
			te = newError(KindResolution, "resolution failed", err)
		}
		c.terminate(te)
		return
	}
	if len(endpoints) == 0 {
		c.terminate(newError(KindResolution, "resolver returned no endpoints", nil))
		return
	}
	c.candidates = endpoints
	c.nextCandidate = 0
	c.setState(StateConnecting, "")
	c.startConnect()
}

func (c *Connection) startConnect() {
	endpoint := c.candidates[c.nextCandidate]
	c.nextCandidate++
	c.loop.start()
	go func() {
		conn, err := c.dialer.DialContext(c.ctx, "tcp", endpoint.Addr())
		c.loop.post(func() { c.handleConnect(conn, err) })
	}()
}

func (c *Connection) handleConnect(conn net.Conn, err error) {
	if c.cancelled.Load() {
		if conn != nil {
			conn.Close()
		}
		c.terminate(errAborted("connect"))
		return
	}
	if err != nil {
		if c.nextCandidate < len(c.candidates) {
			// Refused: advance to the next candidate in resolver order.
			c.startConnect()
			return
		}
		c.terminate(newError(KindConnection,
			fmt.Sprintf("all %d endpoints refused connection", len(c.candidates)), err))
		return
	}
	c.rawConn = conn
	c.setState(StateHandshaking, "")
	c.startHandshakeWrite()
}

func (c *Connection) startHandshakeWrite() {
	token := c.neg.clientToken()
	c.loop.start()
	go func() {
		err := writeToken(c.rawConn, token)
		c.loop.post(func() { c.handleHandshakeWrite(err) })
	}()
}

func (c *Connection) handleHandshakeWrite(err error) {
	if err != nil {
		c.terminate(mapIOError("handshake write", err, c.cancelled.Load()))
		return
	}
	c.startHandshakeRead()
}

func (c *Connection) startHandshakeRead() {
	c.loop.start()
	go func() {
		reply, err := readToken(c.rawConn)
		c.loop.post(func() { c.handleHandshakeRead(reply, err) })
	}()
}

func (c *Connection) handleHandshakeRead(reply uint32, err error) {
	if err != nil {
		c.terminate(mapIOError("handshake read", err, c.cancelled.Load()))
		return
	}
	if c.cancelled.Load() {
		c.terminate(errAborted("handshake"))
		return
	}

	decision, err := c.neg.interpret(reply)
	if err != nil {
		c.terminate(err.(*Error))
		return
	}

	switch decision {
	case decisionUpgradeTLS:
		c.startTLSHandshake()
	default:
		c.activatePlaintext(reply, false)
	}
}

func (c *Connection) startTLSHandshake() {
	tlsConn := tls.Client(c.rawConn, c.config.TLS)
	c.loop.start()
	go func() {
		err := tlsConn.HandshakeContext(c.ctx)
		c.loop.post(func() { c.handleTLSHandshake(tlsConn, err) })
	}()
}

func (c *Connection) handleTLSHandshake(tlsConn *tls.Conn, err error) {
	if c.cancelled.Load() {
		c.terminate(errAborted("tls handshake"))
		return
	}
	if err != nil {
		if c.config.AllowFallback {
			// The server accepted encryption but negotiation failed;
			// degrade to plaintext on the same open transport.
			c.activatePlaintext(TokenRequestTLS, true)
			return
		}
		c.terminate(newError(KindEncryption, "tls handshake failed", err))
		return
	}
	c.activateTLS(tlsConn)
}

// activateTLS fixes the encrypted variant and enters idle.
func (c *Connection) activateTLS(tlsConn *tls.Conn) {
	c.sock = tlsSocket{tlsConn}
	c.installFramer()
	c.logHandshake(TokenRequestTLS, true, false)
	c.setState(StateIdle, "tls")
}

// activatePlaintext discards any partially-initialized encryption state
// and fixes the plaintext variant over the already-open transport.
func (c *Connection) activatePlaintext(serverToken uint32, fellBack bool) {
	c.sock = plainSocket{c.rawConn}
	c.installFramer()
	c.logHandshake(serverToken, false, fellBack)
	c.setState(StateIdle, "plaintext")
}

// installFramer wires the frame codec to the active socket variant and
// binds its progress reporting to the byte counters.
func (c *Connection) installFramer() {
	c.framer = NewFramer(c.sock, c.config.MaxPayloadSize)
	c.framer.FrameWriter.SetProgressFunc(func(n int) {
		c.bytesWritten.Add(uint64(n))
	})
	c.framer.FrameReader.SetProgressFunc(func(n int) {
		c.bytesRead.Add(uint64(n))
	})
	c.framer.FrameReader.SetLengthFunc(func(length uint32) {
		c.bytesToRead.Store(uint64(LengthPrefixSize) + uint64(length))
	})
}

func (c *Connection) startWrite(request []byte) {
	c.loop.start()
	go func() {
		err := c.framer.WriteFrame(request)
		c.loop.post(func() { c.handleWrite(err) })
	}()
}

func (c *Connection) handleWrite(err error) {
	if err != nil {
		c.failTransfer(mapIOError("frame write", err, c.cancelled.Load()))
		return
	}
	c.logFrame(log.DirectionOut, int(c.bytesToWrite.Load()))
	// The length prefix counts toward read progress; the payload length
	// is not known until the peer advertises it.
	c.bytesToRead.Store(LengthPrefixSize)
	c.setState(StateReading, "")
	c.startRead()
}

func (c *Connection) startRead() {
	c.loop.start()
	go func() {
		payload, err := c.framer.ReadFrame()
		c.loop.post(func() { c.handleRead(payload, err) })
	}()
}

func (c *Connection) handleRead(payload []byte, err error) {
	if err != nil {
		switch {
		case errors.Is(err, ErrPayloadTooLarge):
			// Hostile or corrupt peer; always fatal, and no buffer was
			// allocated for the oversized claim.
			c.failTransfer(newError(KindSizeLimit, "response frame exceeds maximum size", err))
		default:
			c.failTransfer(mapIOError("frame read", err, c.cancelled.Load()))
		}
		return
	}
	if c.cancelled.Load() {
		// The frame won the race against Cancel, but the socket is
		// already closed; the connection must still end up terminal.
		c.terminate(errAborted("read"))
		return
	}
	c.logFrame(log.DirectionIn, FrameSize(len(payload)))

	t := c.inflight
	c.inflight = nil
	t.response = payload
	t.done = true
	c.setState(StateIdle, "")
}

// --- teardown ---------------------------------------------------------

// failTransfer terminates the connection and completes the in-flight
// transfer with the same error, so cleanup runs on one path.
func (c *Connection) failTransfer(e *Error) {
	c.terminate(e)
}

// terminate moves to a terminal state, closes the stream, and completes
// any in-flight transfer with the error.
func (c *Connection) terminate(e *Error) {
	if c.state == StateCancelled || c.state == StateFailed {
		return
	}
	c.err = e
	c.closeStream()
	if t := c.inflight; t != nil {
		c.inflight = nil
		t.err = e
		t.done = true
	}
	if e.Kind == KindAborted {
		c.setState(StateCancelled, e.Msg)
	} else {
		c.logError(e)
		c.setState(StateFailed, e.Msg)
	}
	c.cancelCtx()
}

// closeStream closes whichever stream handle is live.
func (c *Connection) closeStream() {
	if c.sock != nil {
		c.sock.Close()
		return
	}
	if c.rawConn != nil {
		c.rawConn.Close()
	}
}

// --- logging ----------------------------------------------------------

func (c *Connection) setState(newState State, reason string) {
	oldState := c.state
	c.state = newState
	if c.config.Logger == nil || oldState == newState {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   c.remoteAddr(),
		StateChange: &log.StateChangeEvent{
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})
}

func (c *Connection) logHandshake(serverToken uint32, tlsActive, fellBack bool) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryHandshake,
		RemoteAddr:   c.remoteAddr(),
		Handshake: &log.HandshakeEvent{
			Requested:   c.config.RequestTLS,
			ServerToken: serverToken,
			TLSActive:   tlsActive,
			FellBack:    fellBack,
		},
	})
}

func (c *Connection) logFrame(direction log.Direction, size int) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		RemoteAddr:   c.remoteAddr(),
		Frame:        &log.FrameEvent{Size: size},
	})
}

func (c *Connection) logError(e *Error) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		RemoteAddr:   c.remoteAddr(),
		Error: &log.ErrorEventData{
			Kind:    e.Kind.String(),
			Message: e.Msg,
		},
	})
}

func (c *Connection) remoteAddr() string {
	if c.rawConn == nil {
		return ""
	}
	return c.rawConn.RemoteAddr().String()
}
