// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command matrix-irc is a Matrix application service that bridges IRC
// networks. Each bridged user gets a private admin room for issuing
// commands; networks may require an external identity check before
// commands are accepted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aiku/matrix-irc/pkg/bridge"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath           string
	generateRegistration bool
)

var rootCmd = &cobra.Command{
	Use:          "matrix-irc",
	Short:        "A Matrix application service bridging IRC networks",
	Version:      fmt.Sprintf("%s (%s, built %s)", Tag, Commit, BuildTime),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the bridge config file")
	rootCmd.Flags().BoolVar(&generateRegistration, "generate-registration", false,
		"write a fresh appservice registration and exit")
}

func run(_ *cobra.Command, _ []string) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli}).
		With().Timestamp().Logger()

	cfg, err := bridge.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if generateRegistration {
		if _, err := bridge.GenerateRegistration(cfg); err != nil {
			return err
		}
		fmt.Printf("Generated registration file at %s\n", cfg.AppService.RegistrationPath)
		fmt.Println("The hs_token this bridge looks for has changed. The homeserver MUST be")
		fmt.Println("given the new registration file even if the config was not modified, e.g.")
		fmt.Printf("    app_service_config_files: [%q]\n", cfg.AppService.RegistrationPath)
		return nil
	}

	// The drift check must pass before any event intake starts.
	reg, err := bridge.VerifyRegistration(cfg)
	if err != nil {
		return err
	}

	br, err := bridge.New(cfg, reg, bridge.NewLoggingIrcPool(log), log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return br.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
