// Package ports declares the storage interfaces the services depend on.
// Both the in-memory store and the SQLite repository implement them.
package ports

import (
	"context"
	"errors"

	"meurenda/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Ports for outbound adapters. Every read and write is scoped by owner.
type (
	// RecordReader returns the authoritative full list of a user's records.
	// Callers must not rely on ordering.
	RecordReader interface {
		ListRecords(ctx context.Context, userID string) ([]core.Record, error)
	}

	// RecordWriter creates and deletes whole records. The store assigns
	// ID and RecordedAt on create.
	RecordWriter interface {
		CreateRecord(ctx context.Context, r core.Record) (core.Record, error)
		DeleteRecord(ctx context.Context, userID, id string) error
	}

	GoalReader interface {
		ListGoals(ctx context.Context, userID string) ([]core.Goal, error)
	}

	// GoalWriter creates, fully replaces and deletes goals.
	GoalWriter interface {
		CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		ReplaceGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		DeleteGoal(ctx context.Context, userID, id string) error
	}

	// DataResetter removes every record and goal of a user in one batch.
	DataResetter interface {
		ResetUserData(ctx context.Context, userID string) error
	}

	UserStore interface {
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		UserByEmail(ctx context.Context, email string) (core.User, error)
		UserByID(ctx context.Context, id string) (core.User, error)
	}

	// ExportQueue tracks which records still have to be mirrored to the
	// spreadsheet.
	ExportQueue interface {
		RecordByID(ctx context.Context, id string) (core.Record, error)
		ExportPending(ctx context.Context, id string) (bool, error)
		PendingExports(ctx context.Context, limit int) ([]core.Record, error)
		MarkExported(ctx context.Context, id, ref string) error
		MarkExportFailed(ctx context.Context, id string) error
		// RequeueFailedExports moves failed records back to pending.
		RequeueFailedExports(ctx context.Context) (int, error)
	}

	// Store is everything a backend provides.
	Store interface {
		RecordReader
		RecordWriter
		GoalReader
		GoalWriter
		DataResetter
		UserStore
		ExportQueue
		Ping(ctx context.Context) error
		Close() error
	}
)
