package discovery

import (
	"context"
	"time"
)

// Browser provides mDNS service browsing capabilities.
type Browser interface {
	// BrowseGameServers searches for game servers on the local network.
	// The channel is closed when the context is cancelled.
	BrowseGameServers(ctx context.Context) (<-chan *GameServerService, error)

	// FindByName searches for a game server with the given instance name.
	// Returns when found or when the context is cancelled.
	FindByName(ctx context.Context, name string) (*GameServerService, error)

	// Stop stops all active browsing operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout is the default timeout for browse operations.
	// Default: 10 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
		Interface:     "",
	}
}

// FilterFunc is a function that filters browse results.
type FilterFunc func(*GameServerService) bool

// FilterJoinable returns a filter that matches servers with a free slot
// and, when requireTLS is set, an encrypted listener.
func FilterJoinable(requireTLS bool) FilterFunc {
	return func(svc *GameServerService) bool {
		if svc.Full() {
			return false
		}
		if requireTLS && !svc.TLS {
			return false
		}
		return true
	}
}

// FilterByGame returns a filter that matches servers hosting the given game.
func FilterByGame(gameName string) FilterFunc {
	return func(svc *GameServerService) bool {
		return svc.GameName == gameName
	}
}

// FilterBrowseResults filters a channel of game server services.
func FilterBrowseResults(in <-chan *GameServerService, filter FilterFunc) <-chan *GameServerService {
	out := make(chan *GameServerService)
	go func() {
		defer close(out)
		for svc := range in {
			if filter(svc) {
				out <- svc
			}
		}
	}()
	return out
}

// ServiceEntry holds raw mDNS service entry data.
// This is a helper for Browser implementations.
type ServiceEntry struct {
	Instance string
	Service  string
	Domain   string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// ToGameServerService converts a ServiceEntry to GameServerService.
func (e *ServiceEntry) ToGameServerService() (*GameServerService, error) {
	txt := StringsToTXTRecords(e.Text)
	info, err := DecodeGameServerTXT(txt)
	if err != nil {
		return nil, err
	}

	return &GameServerService{
		InstanceName:      e.Instance,
		Host:              e.Host,
		Port:              e.Port,
		Addresses:         e.Addrs,
		Version:           info.Version,
		GameName:          info.GameName,
		Players:           info.Players,
		MaxPlayers:        info.MaxPlayers,
		TLS:               info.TLS,
		Mod:               info.Mod,
		PasswordProtected: info.PasswordProtected,
	}, nil
}
