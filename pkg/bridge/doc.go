// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package bridge implements the administrative core of a Matrix-IRC
// application service bridge: per-user admin control rooms, the
// authentication-gated command protocol, and the registration drift guard.
// Ordinary message relay between the two networks lives behind the IrcPool
// boundary and is not part of this package.
//
// # Core Types
//
// [Bridge] wires the components together and drives the mautrix appservice
// event intake.
//
// [AdminRoomRegistry] maps each bridged user to their private admin room and
// is the single source of truth for which rooms carry commands.
//
// [AuthGatekeeper] tracks, for each user and network pair, whether an
// identity check is unstarted, pending, or granted. It issues challenge URLs
// and consumes the external identity-check callbacks.
//
// # Registration Drift Guard
//
// --generate-registration binds a crc32 fingerprint of the IRC network
// configuration into the hs_token ([BindToken]). On every normal boot the
// fingerprint is recomputed and compared against the persisted one
// ([VerifyRegistration]); a mismatch aborts startup with [ErrConfigDrift]
// before any event is accepted, because the homeserver would otherwise keep
// using credentials generated for a different network layout.
//
// # Echo Prevention
//
// Events whose sender is the bridge's own service identity are dropped
// before the command interpreter runs. Without this a notice quoting a
// command could feed back into the interpreter and loop.
package bridge
