// Copyright 2024-2026 Aiku AI

package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.mau.fi/util/random"
	"maunium.net/go/mautrix/appservice"
)

// fingerprintSeparator joins the random secret and the configuration
// fingerprint inside the hs_token. The secret is the credential; the
// fingerprint only detects configuration drift.
const fingerprintSeparator = "_crc"

// ErrConfigDrift is returned when the IRC network configuration no longer
// matches the fingerprint embedded in the last generated registration. The
// homeserver is then holding a stale registration and the bridge must not
// serve traffic until a new one is generated and installed.
var ErrConfigDrift = errors.New("IRC network configuration changed since the registration was generated")

// fingerprintEntry is the canonical serialization of one network for
// fingerprinting. Only fields that affect the homeserver-visible contract
// are included, so unrelated bridge settings never change the fingerprint.
type fingerprintEntry struct {
	Key      string `json:"key"`
	Nick     string `json:"nick"`
	Address  string `json:"address"`
	Port     uint16 `json:"port"`
	TLS      bool   `json:"tls"`
	AuthType string `json:"auth_type,omitempty"`
	AuthURL  string `json:"auth_url,omitempty"`
}

// ComputeFingerprint returns a deterministic digest of the IRC network
// configuration. Map iteration order does not affect the result.
func ComputeFingerprint(networks map[string]*NetworkConfig) string {
	entries := make([]fingerprintEntry, 0, len(networks))
	for key, net := range networks {
		entry := fingerprintEntry{
			Key:     key,
			Nick:    net.Nick,
			Address: net.Address,
			Port:    net.Port,
			TLS:     net.TLS,
		}
		if net.Auth != nil {
			entry.AuthType = net.Auth.Type
			entry.AuthURL = net.Auth.URL
		}
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b fingerprintEntry) int {
		return strings.Compare(a.Key, b.Key)
	})
	data, err := json.Marshal(entries)
	if err != nil {
		// Marshalling a slice of plain structs cannot fail.
		panic(err)
	}
	return strconv.FormatUint(uint64(crc32.ChecksumIEEE(data)), 16)
}

// BindToken produces the hs_token advertised to the homeserver: a fresh
// random secret with the configuration fingerprint appended.
func BindToken(fingerprint string) string {
	return random.String(64) + fingerprintSeparator + fingerprint
}

// FingerprintFromToken extracts the fingerprint embedded in a bound token.
func FingerprintFromToken(token string) (string, bool) {
	idx := strings.LastIndex(token, fingerprintSeparator)
	if idx < 0 {
		return "", false
	}
	return token[idx+len(fingerprintSeparator):], true
}

// GenerateRegistration builds a fresh registration artifact for the current
// configuration and writes it to the configured path. It always produces new
// tokens regardless of any previous artifact.
func GenerateRegistration(cfg *Config) (*appservice.Registration, error) {
	reg := appservice.CreateRegistration()
	reg.ID = cfg.AppService.ID
	reg.URL = cfg.AppService.Address
	reg.SenderLocalpart = cfg.AppService.BotLocalpart
	reg.AppToken = random.String(64)
	reg.ServerToken = BindToken(ComputeFingerprint(cfg.Networks))
	reg.Namespaces.UserIDs.Register(ghostUserIDRegex(cfg.Homeserver.Domain), true)
	if err := reg.Save(cfg.AppService.RegistrationPath); err != nil {
		return nil, fmt.Errorf("failed to write registration to %s: %w", cfg.AppService.RegistrationPath, err)
	}
	return reg, nil
}

// VerifyRegistration loads the most recently generated registration and
// checks it against the active configuration. A fingerprint mismatch means
// the operator changed the network config without telling the homeserver
// about a new registration, which is fatal.
func VerifyRegistration(cfg *Config) (*appservice.Registration, error) {
	reg, err := appservice.LoadRegistration(cfg.AppService.RegistrationPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load registration from %s (run with --generate-registration first): %w",
			cfg.AppService.RegistrationPath, err)
	}
	persisted, ok := FingerprintFromToken(reg.ServerToken)
	if !ok {
		return nil, fmt.Errorf("%w: hs_token carries no fingerprint", ErrConfigDrift)
	}
	current := ComputeFingerprint(cfg.Networks)
	if persisted != current {
		return nil, fmt.Errorf("%w: registration has %s, config computes %s; regenerate the registration and install it on the homeserver",
			ErrConfigDrift, persisted, current)
	}
	return reg, nil
}

func ghostUserIDRegex(domain string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^@%s.*:%s$", ghostLocalpartPrefix, regexp.QuoteMeta(domain)))
}
