package discovery

import (
	"errors"
	"net"
	"time"

	"github.com/questnet-project/questnet-go/pkg/transport"
)

// Service type constants for mDNS.
const (
	// ServiceTypeGameServer is the service type game servers advertise.
	ServiceTypeGameServer = "_questnet._tcp"

	// Domain is the mDNS domain.
	Domain = "local"
)

// TXT record key constants.
const (
	TXTKeyVersion    = "v"   // Protocol version
	TXTKeyGameName   = "gn"  // Game/campaign name
	TXTKeyPlayers    = "pc"  // Current player count
	TXTKeyMaxPlayers = "pm"  // Player limit
	TXTKeyTLS        = "tls" // "1" when the server accepts encrypted connections
	TXTKeyModNames   = "mod" // Active modification (optional)
	TXTKeyPassword   = "pw"  // "1" when password protected (optional)
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxPlayers is the largest advertisable player limit.
	MaxPlayers = 255
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
)

// GameServerService represents a game server found via mDNS.
type GameServerService struct {
	// InstanceName is the mDNS instance name (the server's display name).
	InstanceName string

	// Host is the hostname (e.g., "gamehost.local").
	Host string

	// Port is the service port.
	Port uint16

	// Addresses contains resolved IP addresses.
	Addresses []string

	// Version is the protocol version (from TXT "v").
	Version string

	// GameName is the game/campaign name (from TXT "gn").
	GameName string

	// Players is the current player count (from TXT "pc").
	Players uint8

	// MaxPlayers is the player limit (from TXT "pm").
	MaxPlayers uint8

	// TLS reports whether the server accepts encrypted connections
	// (from TXT "tls").
	TLS bool

	// Mod is the optional active modification name (from TXT "mod").
	Mod string

	// PasswordProtected reports whether joining requires a password
	// (from TXT "pw").
	PasswordProtected bool
}

// Full reports whether the server has no free player slots.
func (s *GameServerService) Full() bool {
	return s.MaxPlayers > 0 && s.Players >= s.MaxPlayers
}

// Endpoints converts the service's resolved addresses into endpoint
// candidates for the transport, in the order they were discovered.
// Addresses that do not parse as IPs are skipped.
func (s *GameServerService) Endpoints() []transport.Endpoint {
	eps := make([]transport.Endpoint, 0, len(s.Addresses))
	for _, addr := range s.Addresses {
		ip := net.ParseIP(addr)
		if ip == nil {
			continue
		}
		eps = append(eps, transport.Endpoint{IP: ip, Port: s.Port})
	}
	return eps
}

// GameServerInfo contains information for advertising a hosted game.
type GameServerInfo struct {
	// ServerName is the display name, used as the mDNS instance name.
	ServerName string

	// Version is the protocol version.
	Version string

	// GameName is the game/campaign name.
	GameName string

	// Players is the current player count.
	Players uint8

	// MaxPlayers is the player limit.
	MaxPlayers uint8

	// TLS indicates the server accepts encrypted connections.
	TLS bool

	// Mod is an optional active modification name.
	Mod string

	// PasswordProtected indicates joining requires a password.
	PasswordProtected bool

	// Port is the service port. Zero means transport.DefaultPort.
	Port uint16

	// Host is the hostname to advertise.
	Host string
}
