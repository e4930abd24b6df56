// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Command babble-service hosts the realtime coordination backend for
// a babble deployment: presence and typing state, the WebRTC signal
// mailbox, chat persistence, thread aggregates, and push fan-out,
// served over a CBOR Unix-socket protocol.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/babble-foundation/babble/fanout"
	"github.com/babble-foundation/babble/lib/clock"
	"github.com/babble-foundation/babble/lib/config"
	"github.com/babble-foundation/babble/lib/cron"
	"github.com/babble-foundation/babble/presence"
	"github.com/babble-foundation/babble/relay"
	"github.com/babble-foundation/babble/rpc"
	"github.com/babble-foundation/babble/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "babble-service:", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	pflag.StringVar(&configPath, "config", "", "path to babble.yaml (defaults to $BABBLE_CONFIG)")
	pflag.Parse()

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	st, err := store.Open(store.Config{
		Path:   cfg.Service.DatabasePath,
		Clock:  clk,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	presenceService := presence.NewService(presence.Config{
		Store:          st,
		Clock:          clk,
		Logger:         logger,
		TypingWindow:   cfg.Presence.TypingWindow,
		LivenessWindow: cfg.Presence.LivenessWindow,
	})
	signalRelay := relay.New(relay.Config{
		Store:     st,
		Clock:     clk,
		Logger:    logger,
		Retention: cfg.Relay.Retention,
	})
	notifier := fanout.New(fanout.Config{
		Store:  st,
		Pusher: &loggingPusher{logger: logger},
		Logger: logger,
	})
	go notifier.Run(ctx)

	service := &BabbleService{
		store:     st,
		presence:  presenceService,
		relay:     signalRelay,
		notifier:  notifier,
		clock:     clk,
		logger:    logger,
		startedAt: clk.Now(),
	}

	schedule, err := cron.Parse(cfg.Service.SweepSchedule)
	if err != nil {
		return err
	}
	go runSweeper(ctx, schedule, clk, logger, presenceService, signalRelay)

	server := rpc.NewServer(cfg.Service.SocketPath, logger)
	service.registerActions(server)

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- server.Serve(ctx)
	}()

	logger.Info("babble service running",
		"socket", cfg.Service.SocketPath,
		"database", cfg.Service.DatabasePath,
		"environment", cfg.Environment,
	)

	<-ctx.Done()
	logger.Info("shutting down")
	return <-socketDone
}
