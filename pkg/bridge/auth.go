// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"
)

// AuthState is the identity-check state of a (user, network) pair.
type AuthState int

const (
	// AuthStateUnauthenticated is the implicit start state.
	AuthStateUnauthenticated AuthState = iota
	// AuthStatePending means a challenge URL has been issued and the bridge
	// is waiting for the external completion callback.
	AuthStatePending
	// AuthStateGranted means the identity check completed successfully.
	AuthStateGranted
)

// AuthGrant records a completed identity check.
type AuthGrant struct {
	User      id.UserID
	Network   string
	GrantedAt time.Time
}

type grantKey struct {
	User    id.UserID
	Network string
}

// AuthGatekeeper tracks identity-check state per (user, network) pair.
// Pending checks never expire here; expiry, if wanted, is layered outside.
// Safe for concurrent use, and independent pairs never contend beyond the
// single map mutex held for upsert-length critical sections.
type AuthGatekeeper struct {
	redirectBase string

	mu             sync.Mutex
	grants         map[grantKey]AuthGrant
	pendingByPair  map[grantKey]string
	pendingByToken map[string]grantKey

	log zerolog.Logger
}

// NewAuthGatekeeper creates a gatekeeper with no recorded grants.
func NewAuthGatekeeper(redirectBase string, log zerolog.Logger) *AuthGatekeeper {
	return &AuthGatekeeper{
		redirectBase:   strings.TrimSuffix(redirectBase, "/"),
		grants:         make(map[grantKey]AuthGrant),
		pendingByPair:  make(map[grantKey]string),
		pendingByToken: make(map[string]grantKey),
		log:            log.With().Str("component", "auth").Logger(),
	}
}

// Authorize decides whether a network-affecting command may proceed. When the
// network's policy requires an identity check the user has not completed, ok
// is false and checkURL is the challenge URL to show the user; the command
// itself is dropped and must be reissued after the check. Reissuing replaces
// any prior pending correlation token for the pair.
func (g *AuthGatekeeper) Authorize(user id.UserID, networkKey string, auth *NetworkAuthConfig) (ok bool, checkURL string) {
	if auth == nil {
		return true, ""
	}
	key := grantKey{User: user, Network: networkKey}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, granted := g.grants[key]; granted {
		return true, ""
	}
	if old, pending := g.pendingByPair[key]; pending {
		delete(g.pendingByToken, old)
	}
	token := uuid.NewString()
	g.pendingByPair[key] = token
	g.pendingByToken[token] = key
	g.log.Info().
		Str("user_id", user.String()).
		Str("network", networkKey).
		Msg("Issued identity check challenge")
	return false, g.challengeURL(auth, token)
}

// challengeURL composes the CAS-style login URL with the callback redirect
// as its service parameter.
func (g *AuthGatekeeper) challengeURL(auth *NetworkAuthConfig, token string) string {
	redirect := g.redirectBase + "/auth/callback?token=" + url.QueryEscape(token)
	sep := "?"
	if strings.Contains(auth.URL, "?") {
		sep = "&"
	}
	return auth.URL + sep + "service=" + url.QueryEscape(redirect)
}

// CompleteCallback consumes an identity-check completion callback. Unknown or
// already-consumed tokens are ignored: callbacks are not single-delivery and
// duplicates must be no-ops. A failed check leaves the pair pending with no
// notice; the user retries the command, which regenerates the URL.
func (g *AuthGatekeeper) CompleteCallback(token string, success bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	key, known := g.pendingByToken[token]
	if !known {
		g.log.Debug().Msg("Ignoring callback with unrecognized correlation token")
		return false
	}
	if !success {
		g.log.Info().
			Str("user_id", key.User.String()).
			Str("network", key.Network).
			Msg("Identity check reported failure, pair stays ungated")
		return false
	}
	delete(g.pendingByToken, token)
	delete(g.pendingByPair, key)
	g.grants[key] = AuthGrant{
		User:      key.User,
		Network:   key.Network,
		GrantedAt: time.Now(),
	}
	authGrantsTotal.Inc()
	g.log.Info().
		Str("user_id", key.User.String()).
		Str("network", key.Network).
		Msg("Identity check complete, commands now forwarded")
	return true
}

// State reports the current auth state of a (user, network) pair.
func (g *AuthGatekeeper) State(user id.UserID, networkKey string) AuthState {
	key := grantKey{User: user, Network: networkKey}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.grants[key]; ok {
		return AuthStateGranted
	}
	if _, ok := g.pendingByPair[key]; ok {
		return AuthStatePending
	}
	return AuthStateUnauthenticated
}

// Grant returns the recorded grant for a pair, if one exists.
func (g *AuthGatekeeper) Grant(user id.UserID, networkKey string) (AuthGrant, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	grant, ok := g.grants[grantKey{User: user, Network: networkKey}]
	return grant, ok
}

// HandleCallback is the HTTP handler for identity-check callbacks. The
// external provider redirects the user's browser here with the correlation
// token; a non-empty ticket parameter marks success. The response does not
// distinguish unknown tokens so duplicate deliveries look identical.
func (g *AuthGatekeeper) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}
	success := r.URL.Query().Get("ticket") != ""
	g.CompleteCallback(token, success)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Identity check received. Return to your admin room and reissue the command.")
}
