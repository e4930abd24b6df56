// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"

	"github.com/babble-foundation/babble/lib/clock"
	"github.com/babble-foundation/babble/lib/cron"
	"github.com/babble-foundation/babble/presence"
	"github.com/babble-foundation/babble/relay"
)

// runSweeper fires the expired-row sweep on the cron schedule until
// ctx is cancelled. Reads never return expired rows, so a missed or
// late sweep costs disk, not correctness.
func runSweeper(ctx context.Context, schedule cron.Schedule, clk clock.Clock, logger *slog.Logger, presenceService *presence.Service, signalRelay *relay.Relay) {
	for {
		now := clk.Now()
		next, err := schedule.Next(now)
		if err != nil {
			logger.Error("sweep schedule has no next run", "error", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-clk.After(next.Sub(now)):
		}

		if err := presenceService.SweepExpired(ctx); err != nil {
			logger.Error("presence sweep failed", "error", err)
		}
		if err := signalRelay.PurgeExpired(ctx); err != nil {
			logger.Error("signal sweep failed", "error", err)
		}
	}
}
