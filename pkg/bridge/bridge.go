// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/appservice"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// matrixSender is the slice of the Matrix client surface the admin core
// needs. Production uses the appservice bot intent; tests inject a mock.
type matrixSender interface {
	JoinRoom(ctx context.Context, roomID id.RoomID) error
	SendNotice(ctx context.Context, roomID id.RoomID, text string) error
}

// IrcPool is the boundary to the IRC connection layer. Join is
// fire-and-forget: the pool owns retries and backoff, and the admin core
// never blocks on it.
type IrcPool interface {
	Join(networkKey, channel string, user id.UserID)
}

// Bridge wires the admin core together: registration guard output, admin
// room registry, command interpreter, auth gatekeeper, and the appservice
// event intake.
type Bridge struct {
	cfg     *Config
	reg     *appservice.Registration
	as      *appservice.AppService
	ep      *appservice.EventProcessor
	sender  matrixSender
	pool    IrcPool
	rooms   *AdminRoomRegistry
	auth    *AuthGatekeeper
	botMXID id.UserID
	log     zerolog.Logger
}

// New builds a Bridge from a verified (or freshly generated) registration.
func New(cfg *Config, reg *appservice.Registration, pool IrcPool, log zerolog.Logger) (*Bridge, error) {
	as, err := newAppService(cfg, reg, log)
	if err != nil {
		return nil, err
	}
	br := &Bridge{
		cfg:     cfg,
		reg:     reg,
		as:      as,
		sender:  &intentSender{intent: as.BotIntent()},
		pool:    pool,
		rooms:   NewAdminRoomRegistry(log),
		auth:    NewAuthGatekeeper(cfg.AuthCallback.RedirectBase, log),
		botMXID: cfg.BotMXID(),
		log:     log.With().Str("component", "bridge").Logger(),
	}
	br.ep = appservice.NewEventProcessor(as)
	br.ep.On(event.StateMember, br.handleMemberEvent)
	br.ep.On(event.EventMessage, br.handleMessageEvent)
	return br, nil
}

// Run starts event intake and the auth callback listener, then blocks until
// the context is cancelled. The caller must have completed the registration
// drift check before Run is invoked.
func (br *Bridge) Run(ctx context.Context) error {
	initMetrics()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/callback", br.auth.HandleCallback)
	mux.Handle("/metrics", metricsHandler())
	authServer := &http.Server{
		Addr:         br.cfg.AuthCallback.ListenAddress,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		br.log.Info().Str("addr", authServer.Addr).Msg("Starting auth callback listener")
		if err := authServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			br.log.Error().Err(err).Msg("Auth callback listener error")
		}
	}()

	go br.ep.Start(ctx)
	go br.as.Start()
	br.log.Info().
		Str("bot_mxid", br.botMXID.String()).
		Str("registration_id", br.reg.ID).
		Int("networks", len(br.cfg.Networks)).
		Msg("Bridge running")

	<-ctx.Done()

	br.log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = authServer.Shutdown(shutdownCtx)
	br.as.Stop()
	br.ep.Stop()
	return nil
}

// AuthGatekeeper exposes the gatekeeper, e.g. for external callback wiring.
func (br *Bridge) AuthGatekeeper() *AuthGatekeeper {
	return br.auth
}

// AdminRooms exposes the admin room registry.
func (br *Bridge) AdminRooms() *AdminRoomRegistry {
	return br.rooms
}

// loggingIrcPool is a placeholder IrcPool that records joins in the log. It
// stands in until a real connection pool is attached.
type loggingIrcPool struct {
	log zerolog.Logger
}

// NewLoggingIrcPool returns an IrcPool that only logs join requests.
func NewLoggingIrcPool(log zerolog.Logger) IrcPool {
	return &loggingIrcPool{log: log.With().Str("component", "irc_pool").Logger()}
}

func (p *loggingIrcPool) Join(networkKey, channel string, user id.UserID) {
	p.log.Info().
		Str("network", networkKey).
		Str("channel", channel).
		Str("user_id", user.String()).
		Msg("IRC join requested")
}
