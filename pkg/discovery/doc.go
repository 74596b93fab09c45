// Package discovery implements mDNS/DNS-SD discovery of QuestNet game
// servers on the local network.
//
// # Game Server Discovery (_questnet._tcp)
//
// Servers advertise one instance per hosted game. The instance name is
// the server's display name. TXT records include: v (protocol version),
// gn (game name), pc (current player count), pm (player limit), and
// tls ("1" when the server accepts encrypted connections). Optional
// records: mod (active modification) and pw ("1" when password
// protected).
//
// Browsing aggregates entries by instance name, so a server visible on
// several interfaces is reported once with all of its addresses. A
// discovered service converts to endpoint candidates with
// GameServerService.Endpoints, ready to hand to the transport.
package discovery
