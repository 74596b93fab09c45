package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeGameServerTXT creates TXT records for game server discovery.
func EncodeGameServerTXT(info *GameServerInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	// Required fields
	txt[TXTKeyVersion] = info.Version
	txt[TXTKeyGameName] = info.GameName
	txt[TXTKeyPlayers] = strconv.FormatUint(uint64(info.Players), 10)
	txt[TXTKeyMaxPlayers] = strconv.FormatUint(uint64(info.MaxPlayers), 10)
	txt[TXTKeyTLS] = encodeFlag(info.TLS)

	// Optional fields
	if info.Mod != "" {
		txt[TXTKeyModNames] = info.Mod
	}
	if info.PasswordProtected {
		txt[TXTKeyPassword] = "1"
	}

	return txt
}

// DecodeGameServerTXT parses TXT records from game server discovery.
func DecodeGameServerTXT(txt TXTRecordMap) (*GameServerInfo, error) {
	info := &GameServerInfo{}

	// Parse version (required)
	var ok bool
	info.Version, ok = txt[TXTKeyVersion]
	if !ok || info.Version == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}

	// Parse game name (required)
	info.GameName, ok = txt[TXTKeyGameName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyGameName)
	}

	// Parse player count (required)
	pcStr, ok := txt[TXTKeyPlayers]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyPlayers)
	}
	pc, err := strconv.ParseUint(pcStr, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid player count %q", ErrInvalidTXTRecord, pcStr)
	}
	info.Players = uint8(pc)

	// Parse player limit (required)
	pmStr, ok := txt[TXTKeyMaxPlayers]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyMaxPlayers)
	}
	pm, err := strconv.ParseUint(pmStr, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid player limit %q", ErrInvalidTXTRecord, pmStr)
	}
	info.MaxPlayers = uint8(pm)

	// Parse TLS flag (required)
	tlsStr, ok := txt[TXTKeyTLS]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyTLS)
	}
	info.TLS = tlsStr == "1"

	// Optional fields
	info.Mod = txt[TXTKeyModNames]
	info.PasswordProtected = txt[TXTKeyPassword] == "1"

	return info, nil
}

// encodeFlag renders a boolean TXT value.
func encodeFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value" strings.
// This format is commonly used by mDNS libraries.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
