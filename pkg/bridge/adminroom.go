// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"
)

// AdminRoom is a private control room between one bridged user and the
// bridge's service identity.
type AdminRoom struct {
	RoomID    id.RoomID
	UserID    id.UserID
	CreatedAt time.Time
}

// RoomAction tells the caller what to do with an invite. The registry itself
// performs no network I/O.
type RoomAction struct {
	Join   bool
	RoomID id.RoomID
}

// AdminRoomRegistry maintains the one-to-one mapping between bridged users
// and their admin rooms. It is the single source of truth for "is this an
// admin room": handlers must look rooms up here rather than inspecting
// membership counts. Safe for concurrent use.
type AdminRoomRegistry struct {
	mu     sync.RWMutex
	byUser map[id.UserID]*AdminRoom
	byRoom map[id.RoomID]*AdminRoom
	log    zerolog.Logger
}

// NewAdminRoomRegistry creates an empty registry.
func NewAdminRoomRegistry(log zerolog.Logger) *AdminRoomRegistry {
	return &AdminRoomRegistry{
		byUser: make(map[id.UserID]*AdminRoom),
		byRoom: make(map[id.RoomID]*AdminRoom),
		log:    log.With().Str("component", "admin_rooms").Logger(),
	}
}

// HandleInvite records a qualifying direct invite from a bridged user and
// returns the join action to execute. Re-invites from an already-tracked user
// are accepted idempotently: no new mapping, no second join action.
func (r *AdminRoomRegistry) HandleInvite(inviter id.UserID, roomID id.RoomID) RoomAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byUser[inviter]; ok {
		if existing.RoomID == roomID {
			r.log.Debug().
				Str("user_id", inviter.String()).
				Str("room_id", roomID.String()).
				Msg("Duplicate admin room invite, already tracked")
		} else {
			r.log.Warn().
				Str("user_id", inviter.String()).
				Str("room_id", roomID.String()).
				Str("existing_room_id", existing.RoomID.String()).
				Msg("Ignoring invite from user who already has an admin room")
		}
		return RoomAction{}
	}
	room := &AdminRoom{
		RoomID:    roomID,
		UserID:    inviter,
		CreatedAt: time.Now(),
	}
	r.byUser[inviter] = room
	r.byRoom[roomID] = room
	return RoomAction{Join: true, RoomID: roomID}
}

// RoomFor returns the admin room tracked for a user, if any.
func (r *AdminRoomRegistry) RoomFor(user id.UserID) (id.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.byUser[user]
	if !ok {
		return "", false
	}
	return room.RoomID, true
}

// UserFor returns the user owning an admin room, if the room is tracked.
func (r *AdminRoomRegistry) UserFor(room id.RoomID) (id.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adminRoom, ok := r.byRoom[room]
	if !ok {
		return "", false
	}
	return adminRoom.UserID, true
}

// Len returns the number of tracked admin rooms.
func (r *AdminRoomRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
