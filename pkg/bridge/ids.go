// Copyright 2024-2026 Aiku AI

package bridge

import (
	"strings"

	"maunium.net/go/mautrix/id"
)

// ghostLocalpartPrefix is the localpart prefix for IRC-side ghost users. The
// registration claims the matching namespace exclusively.
const ghostLocalpartPrefix = "irc_"

// MakeGhostUserID builds the Matrix user ID for an IRC user on a network.
func MakeGhostUserID(networkKey, nick, domain string) id.UserID {
	return id.NewUserID(ghostLocalpartPrefix+networkKey+"_"+nick, domain)
}

// ParseGhostUserID splits a ghost user ID back into network key and nick.
// The second return is false for user IDs outside the ghost namespace.
func ParseGhostUserID(userID id.UserID) (networkKey, nick string, ok bool) {
	localpart, _, err := userID.Parse()
	if err != nil || !strings.HasPrefix(localpart, ghostLocalpartPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(localpart, ghostLocalpartPrefix)
	networkKey, nick, ok = strings.Cut(rest, "_")
	if !ok || networkKey == "" || nick == "" {
		return "", "", false
	}
	return networkKey, nick, true
}
