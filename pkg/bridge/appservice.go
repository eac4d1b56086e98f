// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/appservice"
	"maunium.net/go/mautrix/id"
)

// newAppService configures the mautrix appservice transaction listener for
// the bridge. Event handling itself is registered by New via the event
// processor.
func newAppService(cfg *Config, reg *appservice.Registration, log zerolog.Logger) (*appservice.AppService, error) {
	as := appservice.Create()
	as.Registration = reg
	as.HomeserverDomain = cfg.Homeserver.Domain
	if err := as.SetHomeserverURL(cfg.Homeserver.Address); err != nil {
		return nil, fmt.Errorf("invalid homeserver address: %w", err)
	}
	as.Host = appservice.HostConfig{
		Hostname: cfg.AppService.Hostname,
		Port:     cfg.AppService.Port,
	}
	as.Log = log.With().Str("component", "appservice").Logger()
	return as, nil
}

// intentSender adapts the appservice bot intent to the matrixSender boundary.
type intentSender struct {
	intent *appservice.IntentAPI
}

func (s *intentSender) JoinRoom(ctx context.Context, roomID id.RoomID) error {
	return s.intent.EnsureJoined(ctx, roomID)
}

func (s *intentSender) SendNotice(ctx context.Context, roomID id.RoomID, text string) error {
	_, err := s.intent.SendNotice(ctx, roomID, text)
	return err
}
