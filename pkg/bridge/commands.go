// Copyright 2024-2026 Aiku AI

package bridge

import (
	"fmt"
	"slices"
	"strings"
)

// Command is a structured instruction parsed from an admin room message.
type Command interface {
	commandName() string
}

// JoinCommand asks the bridge to join an IRC channel on a network.
type JoinCommand struct {
	Network string
	Channel string
}

func (JoinCommand) commandName() string { return "join" }

// MalformedCommandError describes why a "!"-prefixed message could not be
// parsed. It is always answered with a help notice and never escalated.
type MalformedCommandError struct {
	Reason string
}

func (e *MalformedCommandError) Error() string {
	return "malformed command: " + e.Reason
}

// ParseCommand interprets the body of an admin room message. A nil Command
// with a nil error means the text is not a command at all and should be
// ignored. Command keywords are case-sensitive.
func ParseCommand(body string, networks []string) (Command, error) {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "!") {
		return nil, nil
	}
	fields := strings.Fields(body)
	switch fields[0] {
	case "!join":
		return parseJoin(fields[1:], networks)
	default:
		return nil, &MalformedCommandError{Reason: fmt.Sprintf("unknown command %q", fields[0])}
	}
}

func parseJoin(args, networks []string) (Command, error) {
	var network, channel string
	switch len(args) {
	case 1:
		if len(networks) != 1 {
			return nil, &MalformedCommandError{Reason: "a network must be given when more than one is configured"}
		}
		network, channel = networks[0], args[0]
	case 2:
		network, channel = args[0], args[1]
		if !slices.Contains(networks, network) {
			return nil, &MalformedCommandError{Reason: fmt.Sprintf("unknown network %q", network)}
		}
	case 0:
		return nil, &MalformedCommandError{Reason: "a channel is required"}
	default:
		return nil, &MalformedCommandError{Reason: "!join takes a channel and an optional network"}
	}
	if !validChannelName(channel) {
		return nil, &MalformedCommandError{Reason: fmt.Sprintf("invalid channel name %q", channel)}
	}
	return JoinCommand{Network: network, Channel: channel}, nil
}

// validChannelName checks IRC channel name syntax: a channel sigil followed
// by at least one character, with no whitespace or commas.
func validChannelName(channel string) bool {
	if len(channel) < 2 {
		return false
	}
	if channel[0] != '#' && channel[0] != '&' {
		return false
	}
	return !strings.ContainsAny(channel, " \t,")
}

// HelpText builds the single notice sent in response to a malformed command.
func HelpText(reason string, networks []string) string {
	return fmt.Sprintf("%s\nUsage: !join [network] #channel\nConfigured networks: %s",
		reason, strings.Join(networks, ", "))
}
