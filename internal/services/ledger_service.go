// Package services orchestrates the stores, the broker and the in-process
// notification hub around the pure computations in core.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"meurenda/internal/amqp"
	"meurenda/internal/core"
	"meurenda/internal/metrics"
	"meurenda/internal/notify"
	"meurenda/internal/ports"
)

// EventPublisher publishes change events for out-of-process consumers.
type EventPublisher interface {
	PublishChangeEvent(ctx context.Context, ev *amqp.ChangeEvent) error
}

// Notifier delivers snapshot-change signals to in-process subscribers.
type Notifier interface {
	Publish(userID string, ev notify.Event) int
}

// SnapshotInvalidator drops cached snapshots of a user.
type SnapshotInvalidator interface {
	Invalidate(userID string)
}

// LedgerStore is the write side a LedgerService needs.
type LedgerStore interface {
	ports.RecordWriter
	ports.GoalWriter
	ports.DataResetter
}

// LedgerService applies record and goal mutations. The store write is
// authoritative; publishing the change event is best effort and never
// fails the request.
type LedgerService struct {
	store     LedgerStore
	publisher EventPublisher
	snapshots SnapshotInvalidator
	hub       Notifier
}

// NewLedgerService wires the write path. publisher, snapshots and hub may be
// nil. Pass an untyped nil rather than a nil *amqp.Client for publisher.
func NewLedgerService(store LedgerStore, publisher EventPublisher, snapshots SnapshotInvalidator, hub Notifier) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		snapshots: snapshots,
		hub:       hub,
	}
}

// CreateRecord stores a new record and announces it.
func (s *LedgerService) CreateRecord(ctx context.Context, r core.Record) (core.Record, error) {
	created, err := s.store.CreateRecord(ctx, r)
	if err != nil {
		return core.Record{}, fmt.Errorf("save record: %w", err)
	}
	metrics.RecordsWritten.WithLabelValues(string(created.Kind), "create").Inc()

	s.changed(ctx, amqp.NewChangeEvent(amqp.RecordCreated, created.OwnerID, created.ID))
	return created, nil
}

func (s *LedgerService) DeleteRecord(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteRecord(ctx, userID, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	// Deletes only know the id.
	metrics.RecordsWritten.WithLabelValues(metrics.KindUnknown, "delete").Inc()

	s.changed(ctx, amqp.NewChangeEvent(amqp.RecordDeleted, userID, id))
	return nil
}

func (s *LedgerService) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	created, err := s.store.CreateGoal(ctx, g)
	if err != nil {
		return core.Goal{}, fmt.Errorf("save goal: %w", err)
	}
	metrics.GoalsWritten.WithLabelValues("create").Inc()

	s.changed(ctx, amqp.NewChangeEvent(amqp.GoalChanged, created.OwnerID, created.ID))
	return created, nil
}

// ReplaceGoal overwrites every field of an existing goal except its
// creation time.
func (s *LedgerService) ReplaceGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	replaced, err := s.store.ReplaceGoal(ctx, g)
	if err != nil {
		return core.Goal{}, fmt.Errorf("replace goal: %w", err)
	}
	metrics.GoalsWritten.WithLabelValues("replace").Inc()

	s.changed(ctx, amqp.NewChangeEvent(amqp.GoalChanged, replaced.OwnerID, replaced.ID))
	return replaced, nil
}

func (s *LedgerService) DeleteGoal(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteGoal(ctx, userID, id); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	metrics.GoalsWritten.WithLabelValues("delete").Inc()

	s.changed(ctx, amqp.NewChangeEvent(amqp.GoalChanged, userID, id))
	return nil
}

// ResetData removes all records and goals of userID. The account stays.
func (s *LedgerService) ResetData(ctx context.Context, userID string) error {
	if err := s.store.ResetUserData(ctx, userID); err != nil {
		return fmt.Errorf("reset user data: %w", err)
	}
	slog.InfoContext(ctx, "User data reset", "user_id", userID)

	s.changed(ctx, amqp.NewChangeEvent(amqp.DataReset, userID, ""))
	return nil
}

// changed runs after a successful write: drop the cached snapshot first so
// subscribers woken by the hub reload fresh data.
func (s *LedgerService) changed(ctx context.Context, ev *amqp.ChangeEvent) {
	if s.snapshots != nil {
		s.snapshots.Invalidate(ev.OwnerID)
	}

	if s.hub != nil {
		s.hub.Publish(ev.OwnerID, notify.Event{Reason: string(ev.Type), At: ev.Timestamp})
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping change event", "type", ev.Type)
		return
	}
	if err := s.publisher.PublishChangeEvent(ctx, ev); err != nil {
		metrics.EventPublishFailures.Inc()
		slog.ErrorContext(ctx, "Failed to publish change event",
			"type", ev.Type,
			"user_id", ev.OwnerID,
			"entity_id", ev.EntityID,
			"error", err)
	}
}
