// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"context"
	"errors"
	"fmt"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// handleMemberEvent watches for invites naming the bridge bot as invitee
// and turns them into admin rooms.
func (br *Bridge) handleMemberEvent(ctx context.Context, evt *event.Event) {
	matrixEventsTotal.WithLabelValues("member").Inc()
	content := evt.Content.AsMember()
	if content == nil || content.Membership != event.MembershipInvite {
		return
	}
	if id.UserID(evt.GetStateKey()) != br.botMXID {
		return
	}
	action := br.rooms.HandleInvite(evt.Sender, evt.RoomID)
	if !action.Join {
		return
	}
	if err := br.sender.JoinRoom(ctx, action.RoomID); err != nil {
		br.log.Error().Err(err).
			Str("room_id", action.RoomID.String()).
			Msg("Failed to join admin room")
		return
	}
	br.log.Info().
		Str("room_id", action.RoomID.String()).
		Str("user_id", evt.Sender.String()).
		Msg("Admin room created")
}

// handleMessageEvent routes admin room messages through the command
// interpreter and the auth gatekeeper. Messages from the bot itself are
// dropped before interpretation so the bridge can never trigger its own
// commands.
func (br *Bridge) handleMessageEvent(ctx context.Context, evt *event.Event) {
	matrixEventsTotal.WithLabelValues("message").Inc()
	if evt.Sender == br.botMXID {
		return
	}
	owner, ok := br.rooms.UserFor(evt.RoomID)
	if !ok {
		return
	}
	if owner != evt.Sender {
		br.log.Debug().
			Str("room_id", evt.RoomID.String()).
			Str("user_id", evt.Sender.String()).
			Msg("Ignoring admin room message from non-owner")
		return
	}
	content := evt.Content.AsMessage()
	if content == nil {
		return
	}

	cmd, err := ParseCommand(content.Body, br.cfg.NetworkKeys())
	if err != nil {
		var malformed *MalformedCommandError
		if errors.As(err, &malformed) {
			adminCommandsTotal.WithLabelValues("malformed").Inc()
			br.notify(ctx, evt.RoomID, HelpText(malformed.Reason, br.cfg.NetworkKeys()))
		}
		return
	}
	if cmd == nil {
		adminCommandsTotal.WithLabelValues("ignored").Inc()
		return
	}

	switch c := cmd.(type) {
	case JoinCommand:
		br.handleJoinCommand(ctx, evt.Sender, evt.RoomID, c)
	}
}

func (br *Bridge) handleJoinCommand(ctx context.Context, user id.UserID, roomID id.RoomID, cmd JoinCommand) {
	network := br.cfg.Networks[cmd.Network]
	ok, checkURL := br.auth.Authorize(user, cmd.Network, network.Auth)
	if !ok {
		adminCommandsTotal.WithLabelValues("gated").Inc()
		br.notify(ctx, roomID, fmt.Sprintf(
			"%s requires an identity check before commands are accepted.\n"+
				"Complete it at %s and then reissue the command.",
			cmd.Network, checkURL))
		return
	}
	adminCommandsTotal.WithLabelValues("forwarded").Inc()
	br.log.Info().
		Str("user_id", user.String()).
		Str("network", cmd.Network).
		Str("channel", cmd.Channel).
		Msg("Forwarding join to IRC pool")
	br.pool.Join(cmd.Network, cmd.Channel, user)
}

// notify sends a single m.notice into an admin room. Send failures are
// logged and never propagated: per-event errors must not affect other users.
func (br *Bridge) notify(ctx context.Context, roomID id.RoomID, text string) {
	adminNoticesTotal.Inc()
	if err := br.sender.SendNotice(ctx, roomID, text); err != nil {
		br.log.Error().Err(err).
			Str("room_id", roomID.String()).
			Msg("Failed to send admin room notice")
	}
}
