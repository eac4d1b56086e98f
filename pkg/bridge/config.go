// Copyright 2024-2026 Aiku AI

package bridge

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
	"maunium.net/go/mautrix/id"
)

//go:embed example-config.yaml
var ExampleConfig string

// DefaultRegistrationPath is where the generated appservice registration is
// written when the config does not override it.
const DefaultRegistrationPath = "appservice-registration-irc.yaml"

// Config holds the full bridge configuration.
type Config struct {
	Homeserver   HomeserverConfig          `yaml:"homeserver"`
	AppService   AppServiceConfig          `yaml:"appservice"`
	AuthCallback AuthCallbackConfig        `yaml:"auth_callback"`
	Networks     map[string]*NetworkConfig `yaml:"networks"`
}

// HomeserverConfig identifies the homeserver the appservice registers with.
type HomeserverConfig struct {
	Address string `yaml:"address"`
	Domain  string `yaml:"domain"`
}

// AppServiceConfig describes how the bridge presents itself to the
// homeserver and where its transaction listener binds.
type AppServiceConfig struct {
	// ID is the appservice registration ID. Defaults to "irc".
	ID string `yaml:"id"`
	// Address is the URL the homeserver uses to reach the bridge.
	Address  string `yaml:"address"`
	Hostname string `yaml:"hostname"`
	Port     uint16 `yaml:"port"`
	// BotLocalpart is the localpart of the bridge's service identity.
	BotLocalpart string `yaml:"bot_localpart"`
	// RegistrationPath is where the registration artifact is written on
	// --generate-registration and read back on normal boot.
	RegistrationPath string `yaml:"registration_path"`
}

// AuthCallbackConfig configures the listener that receives identity-check
// completion callbacks from external providers.
type AuthCallbackConfig struct {
	ListenAddress string `yaml:"listen_address"`
	// RedirectBase is the externally reachable base URL of the callback
	// listener, used to build the redirect target embedded in challenge URLs.
	RedirectBase string `yaml:"redirect_base"`
}

// NetworkConfig describes a single configured IRC network.
type NetworkConfig struct {
	Nick    string             `yaml:"nick"`
	Address string             `yaml:"address"`
	Port    uint16             `yaml:"port"`
	TLS     bool               `yaml:"tls"`
	Auth    *NetworkAuthConfig `yaml:"auth"`
}

// NetworkAuthConfig is the identity-check policy for a network. A nil policy
// means commands on the network are never gated.
type NetworkAuthConfig struct {
	// Type selects the identity-check flavour. Only "cas" is recognized.
	Type string `yaml:"type"`
	// URL is the challenge URL users are sent to.
	URL string `yaml:"url"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess applies defaults and validates the loaded config.
func (c *Config) PostProcess() error {
	if c.Homeserver.Address == "" {
		return fmt.Errorf("homeserver.address is required")
	}
	if c.Homeserver.Domain == "" {
		return fmt.Errorf("homeserver.domain is required")
	}
	if c.AppService.BotLocalpart == "" {
		return fmt.Errorf("appservice.bot_localpart is required")
	}
	if c.AppService.ID == "" {
		c.AppService.ID = "irc"
	}
	if c.AppService.Hostname == "" {
		c.AppService.Hostname = "0.0.0.0"
	}
	if c.AppService.RegistrationPath == "" {
		c.AppService.RegistrationPath = DefaultRegistrationPath
	}
	if c.AuthCallback.ListenAddress == "" {
		c.AuthCallback.ListenAddress = ":4567"
	}
	if len(c.Networks) == 0 {
		return fmt.Errorf("at least one IRC network must be configured")
	}
	for key, net := range c.Networks {
		if net == nil {
			return fmt.Errorf("network %q has no configuration", key)
		}
		if net.Address == "" {
			return fmt.Errorf("network %q: address is required", key)
		}
		if net.Nick == "" {
			return fmt.Errorf("network %q: nick is required", key)
		}
		if net.Port == 0 {
			if net.TLS {
				net.Port = 6697
			} else {
				net.Port = 6667
			}
		}
		if net.Auth != nil {
			if net.Auth.Type != "cas" {
				return fmt.Errorf("network %q: unsupported auth type %q", key, net.Auth.Type)
			}
			if net.Auth.URL == "" {
				return fmt.Errorf("network %q: auth.url is required", key)
			}
			if c.AuthCallback.RedirectBase == "" {
				return fmt.Errorf("auth_callback.redirect_base is required when a network uses auth")
			}
		}
	}
	return nil
}

// LoadConfig reads, parses and validates a config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// BotMXID returns the Matrix user ID of the bridge's service identity.
func (c *Config) BotMXID() id.UserID {
	return id.NewUserID(c.AppService.BotLocalpart, c.Homeserver.Domain)
}

// NetworkKeys returns the configured network keys in sorted order.
func (c *Config) NetworkKeys() []string {
	keys := make([]string, 0, len(c.Networks))
	for key := range c.Networks {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
