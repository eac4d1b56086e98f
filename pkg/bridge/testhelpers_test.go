// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

const (
	testDomain   = "example.com"
	testBotMXID  = id.UserID("@ircbridge:example.com")
	testUserMXID = id.UserID("@someone:somewhere.org")
	testRoomID   = id.RoomID("!adminroomid:example.com")
)

// sentNotice records one SendNotice call.
type sentNotice struct {
	RoomID id.RoomID
	Text   string
}

// mockMatrixSender captures joins and notices for test assertions.
type mockMatrixSender struct {
	mu      sync.Mutex
	joins   []id.RoomID
	notices []sentNotice
}

func (m *mockMatrixSender) JoinRoom(_ context.Context, roomID id.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joins = append(m.joins, roomID)
	return nil
}

func (m *mockMatrixSender) SendNotice(_ context.Context, roomID id.RoomID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, sentNotice{RoomID: roomID, Text: text})
	return nil
}

func (m *mockMatrixSender) Joins() []id.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]id.RoomID, len(m.joins))
	copy(cp, m.joins)
	return cp
}

func (m *mockMatrixSender) Notices() []sentNotice {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]sentNotice, len(m.notices))
	copy(cp, m.notices)
	return cp
}

// ircJoin records one forwarded join command.
type ircJoin struct {
	Network string
	Channel string
	User    id.UserID
}

// mockIrcPool captures forwarded joins.
type mockIrcPool struct {
	mu    sync.Mutex
	joins []ircJoin
}

func (m *mockIrcPool) Join(networkKey, channel string, user id.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joins = append(m.joins, ircJoin{Network: networkKey, Channel: channel, User: user})
}

func (m *mockIrcPool) Joins() []ircJoin {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]ircJoin, len(m.joins))
	copy(cp, m.joins)
	return cp
}

// testNetworks returns a config with one open network and one auth-gated one.
func testNetworks() map[string]*NetworkConfig {
	return map[string]*NetworkConfig{
		"libera": {
			Nick:    "bridgebot",
			Address: "irc.libera.chat",
			Port:    6697,
			TLS:     true,
		},
		"campus": {
			Nick:    "bridgebot",
			Address: "irc.campus.example.edu",
			Port:    6667,
			Auth: &NetworkAuthConfig{
				Type: "cas",
				URL:  "https://cas.campus.example.edu/cas/login",
			},
		},
	}
}

// newTestBridge builds a Bridge with mock senders and no appservice attached.
// The event handlers only touch the mocks and in-memory registries.
func newTestBridge(networks map[string]*NetworkConfig) (*Bridge, *mockMatrixSender, *mockIrcPool) {
	log := zerolog.Nop()
	cfg := &Config{
		Homeserver: HomeserverConfig{
			Address: "http://localhost:8008",
			Domain:  testDomain,
		},
		AppService: AppServiceConfig{
			BotLocalpart: "ircbridge",
		},
		AuthCallback: AuthCallbackConfig{
			ListenAddress: ":4567",
			RedirectBase:  "https://bridge.example.com",
		},
		Networks: networks,
	}
	sender := &mockMatrixSender{}
	pool := &mockIrcPool{}
	br := &Bridge{
		cfg:     cfg,
		sender:  sender,
		pool:    pool,
		rooms:   NewAdminRoomRegistry(log),
		auth:    NewAuthGatekeeper(cfg.AuthCallback.RedirectBase, log),
		botMXID: cfg.BotMXID(),
		log:     log,
	}
	return br, sender, pool
}

// inviteEvent builds an invite naming the bridge bot as invitee. The content
// carries only the membership, matching what minimal clients send.
func inviteEvent(inviter id.UserID, roomID id.RoomID) *event.Event {
	stateKey := testBotMXID.String()
	return &event.Event{
		Type:     event.StateMember,
		Sender:   inviter,
		RoomID:   roomID,
		StateKey: &stateKey,
		Content: event.Content{
			Parsed: &event.MemberEventContent{
				Membership: event.MembershipInvite,
			},
		},
	}
}

// messageEvent builds an m.text message event.
func messageEvent(sender id.UserID, roomID id.RoomID, body string) *event.Event {
	return &event.Event{
		Type:   event.EventMessage,
		Sender: sender,
		RoomID: roomID,
		Content: event.Content{
			Parsed: &event.MessageEventContent{
				MsgType: event.MsgText,
				Body:    body,
			},
		},
	}
}

// setupAdminRoom runs the invite flow so testUserMXID owns testRoomID.
func setupAdminRoom(br *Bridge) {
	br.handleMemberEvent(context.Background(), inviteEvent(testUserMXID, testRoomID))
}

// regexpMatch compiles pattern and reports whether it matches s.
func regexpMatch(t *testing.T, pattern, s string) bool {
	t.Helper()
	re, err := regexp.Compile(pattern)
	if err != nil {
		t.Fatalf("invalid namespace regex %q: %v", pattern, err)
	}
	return re.MatchString(s)
}
