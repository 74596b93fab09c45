package questnet_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/questnet-project/questnet-go/pkg/cert"
	"github.com/questnet-project/questnet-go/pkg/log"
	"github.com/questnet-project/questnet-go/pkg/transport"
	"github.com/questnet-project/questnet-go/pkg/wire"
)

// gameServer is a minimal loopback server speaking the full stack:
// token handshake, optional TLS upgrade, length-prefixed CBOR envelopes.
type gameServer struct {
	listener net.Listener
	tlsConf  *tls.Config
	handle   func(*wire.Request) *wire.Response
}

func startGameServer(t *testing.T, tlsConf *tls.Config, handle func(*wire.Request) *wire.Response) *gameServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	s := &gameServer{listener: ln, tlsConf: tlsConf, handle: handle}
	go s.serve()
	return s
}

func (s *gameServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.session(conn)
	}
}

func (s *gameServer) session(conn net.Conn) {
	defer conn.Close()

	var token [4]byte
	if _, err := io.ReadFull(conn, token[:]); err != nil {
		return
	}

	var reply [4]byte
	var stream net.Conn = conn
	if token[3] == 1 && s.tlsConf != nil {
		reply[3] = 1
		if _, err := conn.Write(reply[:]); err != nil {
			return
		}
		tlsConn := tls.Server(conn, s.tlsConf)
		if err := tlsConn.Handshake(); err != nil {
			return
		}
		stream = tlsConn
	} else {
		// Plaintext-only: answer zero regardless of the request.
		if _, err := conn.Write(reply[:]); err != nil {
			return
		}
	}

	framer := transport.NewFramer(stream, 0)
	for {
		payload, err := framer.ReadFrame()
		if err != nil {
			return
		}
		req, err := wire.DecodeRequest(payload)
		var resp *wire.Response
		if err != nil {
			resp = &wire.Response{Status: wire.StatusError, Message: err.Error()}
		} else {
			resp = s.handle(req)
		}
		out, err := wire.EncodeResponse(resp)
		if err != nil {
			return
		}
		if err := framer.WriteFrame(out); err != nil {
			return
		}
	}
}

func (s *gameServer) resolver(t *testing.T) *transport.StaticResolver {
	t.Helper()
	addr := s.listener.Addr().(*net.TCPAddr)
	return &transport.StaticResolver{Endpoints: []transport.Endpoint{
		{IP: addr.IP, Port: uint16(addr.Port)},
	}}
}

// newServerCertPEM generates a self-signed loopback certificate and
// returns the server TLS config plus its PEM encoding for the client
// trust store.
func newServerCertPEM(t *testing.T) (*tls.Config, []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: "questnet-test-server"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		DNSNames:     []string{"server.questnet.test"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("certificate creation failed: %v", err)
	}
	serverConf := &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	return serverConf, pemBytes
}

func echoHandler(req *wire.Request) *wire.Response {
	return &wire.Response{Status: wire.StatusOK, Data: req.Data}
}

// drive connects, runs to idle, and fails the test on any error.
func drive(t *testing.T, conn *transport.Connection) {
	t.Helper()
	if err := conn.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !conn.Done() {
		t.Fatalf("connection not ready, state %s", conn.State())
	}
}

func exchange(t *testing.T, conn *transport.Connection, req *wire.Request) *wire.Response {
	t.Helper()
	payload, err := wire.EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest failed: %v", err)
	}
	xfer, err := conn.Transfer(payload)
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if err := conn.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	raw, err := xfer.Response()
	if err != nil {
		t.Fatalf("Response failed: %v", err)
	}
	resp, err := wire.DecodeResponse(raw)
	if err != nil {
		t.Fatalf("DecodeResponse failed: %v", err)
	}
	return resp
}

func TestE2EPlaintextSession(t *testing.T) {
	server := startGameServer(t, nil, echoHandler)

	conn, err := transport.Connect("127.0.0.1", "15000", transport.Config{
		Resolver: server.resolver(t),
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	drive(t, conn)
	if conn.UsingTLS() {
		t.Error("UsingTLS = true on a plaintext session")
	}

	resp := exchange(t, conn, &wire.Request{
		Action: "login",
		Data:   map[string]any{"username": "alice"},
	})
	if resp.Status != wire.StatusOK {
		t.Fatalf("Status = %v: %s", resp.Status, resp.Message)
	}
	if resp.Data["username"] != "alice" {
		t.Errorf("echoed Data = %v", resp.Data)
	}
}

func TestE2ETLSSessionWithCertPool(t *testing.T) {
	serverConf, caPEM := newServerCertPEM(t)
	server := startGameServer(t, serverConf, echoHandler)

	// The client trusts the server through the cert package's pool
	// loader, exactly as questnet-probe wires it from its config file.
	caPath := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(caPath, caPEM, 0600); err != nil {
		t.Fatalf("writing CA file failed: %v", err)
	}
	pool, err := cert.LoadPoolFromFile(caPath)
	if err != nil {
		t.Fatalf("LoadPoolFromFile failed: %v", err)
	}
	tlsConf, err := transport.NewClientTLSConfig(&transport.TLSConfig{
		RootCAs:    pool,
		ServerName: "server.questnet.test",
	})
	if err != nil {
		t.Fatalf("NewClientTLSConfig failed: %v", err)
	}

	conn, err := transport.Connect("127.0.0.1", "15000", transport.Config{
		RequestTLS: true,
		TLS:        tlsConf,
		Resolver:   server.resolver(t),
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	drive(t, conn)
	if !conn.UsingTLS() {
		t.Fatal("UsingTLS = false after verified TLS upgrade")
	}

	resp := exchange(t, conn, &wire.Request{Action: "ping"})
	if resp.Status != wire.StatusOK {
		t.Fatalf("Status = %v: %s", resp.Status, resp.Message)
	}
}

func TestE2EPlaintextOnlyServerFallback(t *testing.T) {
	// Server has no TLS material: it answers the upgrade request with
	// the plaintext token and the session proceeds unencrypted.
	server := startGameServer(t, nil, echoHandler)

	conn, err := transport.Connect("127.0.0.1", "15000", transport.Config{
		RequestTLS: true,
		TLS:        &tls.Config{InsecureSkipVerify: true},
		Resolver:   server.resolver(t),
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	drive(t, conn)
	if conn.UsingTLS() {
		t.Error("UsingTLS = true after plaintext-only reply")
	}

	resp := exchange(t, conn, &wire.Request{Action: "ping"})
	if resp.Status != wire.StatusOK {
		t.Fatalf("Status = %v: %s", resp.Status, resp.Message)
	}
}

func TestE2ELargeCompressedTransfer(t *testing.T) {
	server := startGameServer(t, nil, echoHandler)

	conn, err := transport.Connect("127.0.0.1", "15000", transport.Config{
		Resolver: server.resolver(t),
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	drive(t, conn)

	// Well past the wire codec's compression threshold.
	replay := bytes.Repeat([]byte("recruit,move,attack,end_turn;"), 500)
	resp := exchange(t, conn, &wire.Request{
		Action: "upload_replay",
		Data:   map[string]any{"replay": string(replay)},
	})
	if resp.Status != wire.StatusOK {
		t.Fatalf("Status = %v: %s", resp.Status, resp.Message)
	}
	if got, ok := resp.Data["replay"].(string); !ok || got != string(replay) {
		t.Error("replay payload did not survive the round trip")
	}
}

func TestE2ESessionIsLogged(t *testing.T) {
	server := startGameServer(t, nil, echoHandler)

	logPath := filepath.Join(t.TempDir(), "session.qlog")
	logger, err := log.NewFileLogger(logPath)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	conn, err := transport.Connect("127.0.0.1", "15000", transport.Config{
		Resolver: server.resolver(t),
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	drive(t, conn)

	resp := exchange(t, conn, &wire.Request{Action: "ping"})
	if resp.Status != wire.StatusOK {
		t.Fatalf("Status = %v: %s", resp.Status, resp.Message)
	}
	conn.Cancel()
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The log must carry the whole session: state changes, the
	// handshake outcome, and one frame per direction.
	reader, err := log.NewReader(logPath)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	var states, handshakes, framesIn, framesOut int
	for {
		event, err := reader.Next()
		if err != nil {
			break
		}
		if event.ConnectionID != conn.ID() {
			t.Errorf("event with foreign connection ID %q", event.ConnectionID)
		}
		switch {
		case event.StateChange != nil:
			states++
		case event.Handshake != nil:
			handshakes++
			if event.Handshake.TLSActive {
				t.Error("handshake event claims TLS on a plaintext session")
			}
		case event.Frame != nil:
			if event.Direction == log.DirectionIn {
				framesIn++
			} else {
				framesOut++
			}
		}
	}
	if states == 0 {
		t.Error("no state change events logged")
	}
	if handshakes != 1 {
		t.Errorf("handshake events = %d, want 1", handshakes)
	}
	if framesIn != 1 || framesOut != 1 {
		t.Errorf("frame events = %d in / %d out, want 1/1", framesIn, framesOut)
	}
}

func TestE2ERedirectResponse(t *testing.T) {
	redirecting := startGameServer(t, nil, func(req *wire.Request) *wire.Response {
		return &wire.Response{Status: wire.StatusRedirect, Host: "127.0.0.1", Port: 0}
	})
	target := startGameServer(t, nil, echoHandler)
	targetAddr := target.listener.Addr().(*net.TCPAddr)

	conn, err := transport.Connect("127.0.0.1", "15000", transport.Config{
		Resolver: redirecting.resolver(t),
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	drive(t, conn)

	resp := exchange(t, conn, &wire.Request{Action: "join_lobby"})
	if resp.Status != wire.StatusRedirect {
		t.Fatalf("Status = %v, want REDIRECT", resp.Status)
	}
	conn.Cancel()

	// Follow the redirect with a fresh connection, the way a client is
	// expected to: the old connection is discarded, never reused.
	next, err := transport.Connect(resp.Host, fmt.Sprintf("%d", targetAddr.Port), transport.Config{
		Resolver: target.resolver(t),
	})
	if err != nil {
		t.Fatalf("Connect (redirect) failed: %v", err)
	}
	drive(t, next)

	final := exchange(t, next, &wire.Request{Action: "join_lobby"})
	if final.Status != wire.StatusOK {
		t.Errorf("Status after redirect = %v: %s", final.Status, final.Message)
	}
}
