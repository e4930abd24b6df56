// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/babble-foundation/babble/lib/clock"
	"github.com/babble-foundation/babble/lib/codec"
	"github.com/babble-foundation/babble/schema"
	"github.com/babble-foundation/babble/store"
)

// DefaultRetention is how long an undeleted signal stays visible to
// polls. ICE negotiation settles in seconds; anything older is
// leftovers from a failed or abandoned handshake.
const DefaultRetention = 30 * time.Second

// Config holds the relay parameters. A zero Retention takes the
// default.
type Config struct {
	Store     *store.Store
	Clock     clock.Clock
	Logger    *slog.Logger
	Retention time.Duration
}

// Relay is the signaling mailbox service.
type Relay struct {
	store     *store.Store
	clock     clock.Clock
	logger    *slog.Logger
	retention time.Duration
}

// New creates a relay over the given store.
func New(cfg Config) *Relay {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Relay{
		store:     cfg.Store,
		clock:     cfg.Clock,
		logger:    logger,
		retention: retention,
	}
}

// Send appends a signal to recipient's mailbox. Sender and recipient
// must both be in the same babble room at the moment of the write;
// the check and the append are atomic, so a concurrent leave yields
// precondition_failed rather than a signal into a vacated room.
func (r *Relay) Send(ctx context.Context, sender, recipient schema.UserID, kind schema.SignalKind, payload codec.RawMessage) (*schema.Signal, error) {
	if err := sender.Validate(); err != nil {
		return nil, err
	}
	if err := recipient.Validate(); err != nil {
		return nil, err
	}
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	return r.store.InsertSignal(ctx, sender, recipient, kind, payload)
}

// Poll returns recipient's pending signals, oldest first, leaving
// them in place. Polling also counts as liveness: the recipient's
// seen_at refreshes so the sweep does not mistake an active client
// for an abandoned one.
func (r *Relay) Poll(ctx context.Context, recipient schema.UserID) ([]schema.Signal, error) {
	if err := recipient.Validate(); err != nil {
		return nil, err
	}

	cutoff := r.clock.Now().Add(-r.retention)
	signals, err := r.store.ListSignalsFor(ctx, recipient, cutoff)
	if err != nil {
		return nil, err
	}
	if err := r.store.TouchParticipant(ctx, recipient); err != nil {
		return nil, err
	}
	return signals, nil
}

// Delete removes a consumed signal from the mailbox. Only the
// recipient may delete it; anyone else gets forbidden. Deleting an
// already-deleted or expired signal is a no-op so retries are safe.
func (r *Relay) Delete(ctx context.Context, caller schema.UserID, id string) error {
	if err := caller.Validate(); err != nil {
		return err
	}

	signal, err := r.store.GetSignal(ctx, id)
	if err != nil {
		return err
	}
	if signal == nil {
		return nil
	}
	if signal.Recipient != caller {
		return schema.Forbidden("signal %s belongs to %s", id, signal.Recipient)
	}
	return r.store.DeleteSignal(ctx, id)
}

// PurgeExpired reclaims signals older than the retention window.
// Called by the periodic sweep.
func (r *Relay) PurgeExpired(ctx context.Context) error {
	removed, err := r.store.PurgeSignalsBefore(ctx, r.clock.Now().Add(-r.retention))
	if err != nil {
		return err
	}
	if removed > 0 {
		r.logger.Info("signal sweep", "purged", removed)
	}
	return nil
}
