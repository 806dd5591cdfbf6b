package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"meurenda/internal/core"
	"meurenda/internal/ports"

	_ "modernc.org/sqlite"
)

const dsnPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return "file:" + dbPath + sep + dsnPragmas
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.ID = uuid.NewString()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = r.now().UTC()

	_, err := r.db.ExecContext(ctx, insertUser, u.ID, u.Email, u.PasswordHash, u.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("user %s: %w", u.Email, ports.ErrConflict)
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, selectUserByEmail, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (core.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUserByID, id))
}

func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec core.Record) (core.Record, error) {
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}
	rec.ID = uuid.NewString()
	rec.RecordedAt = r.now().UTC()

	_, err := r.db.ExecContext(ctx, insertRecord,
		rec.ID, rec.OwnerID, string(rec.Kind), rec.Amount.Cents, rec.ProductCost.Cents,
		rec.Category, rec.Description, rec.OccurredAt.UnixMilli(), rec.RecordedAt.UnixMilli())
	if err != nil {
		return core.Record{}, fmt.Errorf("create record: %w", err)
	}

	slog.DebugContext(ctx, "Record saved to SQLite",
		"id", rec.ID,
		"kind", rec.Kind,
		"amount_cents", rec.Amount.Cents)

	return rec, nil
}

func (r *SQLiteRepository) DeleteRecord(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, deleteRecord, id, userID)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return expectAffected(res)
}

// ListRecords returns the user's records, most recent occurrence first.
func (r *SQLiteRepository) ListRecords(ctx context.Context, userID string) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, selectRecordsByOwner, userID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	g.ID = uuid.NewString()
	g.CreatedAt = r.now().UTC()

	_, err := r.db.ExecContext(ctx, insertGoal,
		g.ID, g.OwnerID, string(g.Horizon), g.Target.Cents, g.WorkDays,
		string(g.MarginMode), g.ManualMarginPercent, g.CreatedAt.UnixMilli())
	if err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	return g, nil
}

// ReplaceGoal overwrites every mutable field of an existing goal.
func (r *SQLiteRepository) ReplaceGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	res, err := r.db.ExecContext(ctx, replaceGoal,
		string(g.Horizon), g.Target.Cents, g.WorkDays, string(g.MarginMode), g.ManualMarginPercent,
		g.ID, g.OwnerID)
	if err != nil {
		return core.Goal{}, fmt.Errorf("replace goal: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return core.Goal{}, err
	}
	return scanGoal(r.db.QueryRowContext(ctx, selectGoal, g.ID))
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, deleteGoal, id, userID)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, selectGoalsByOwner, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ResetUserData deletes all records and goals of the user in one transaction.
func (r *SQLiteRepository) ResetUserData(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	recs, err := tx.ExecContext(ctx, deleteRecordsByOwner, userID)
	if err != nil {
		return fmt.Errorf("reset records: %w", err)
	}
	goals, err := tx.ExecContext(ctx, deleteGoalsByOwner, userID)
	if err != nil {
		return fmt.Errorf("reset goals: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}

	nr, _ := recs.RowsAffected()
	ng, _ := goals.RowsAffected()
	slog.InfoContext(ctx, "User data reset", "user_id", userID, "records", nr, "goals", ng)
	return nil
}

func (r *SQLiteRepository) RecordByID(ctx context.Context, id string) (core.Record, error) {
	return scanRecord(r.db.QueryRowContext(ctx, selectRecord, id))
}

func (r *SQLiteRepository) ExportPending(ctx context.Context, id string) (bool, error) {
	var status string
	if err := r.db.QueryRowContext(ctx, selectExportStatus, id).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ports.ErrNotFound
		}
		return false, fmt.Errorf("read export status: %w", err)
	}
	return status == "pending", nil
}

// PendingExports returns records not yet mirrored to the spreadsheet, oldest first.
func (r *SQLiteRepository) PendingExports(ctx context.Context, limit int) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, selectPendingExports, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending exports: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id, ref string) error {
	res, err := r.db.ExecContext(ctx, markExport, "exported", ref, id)
	if err != nil {
		return fmt.Errorf("mark record exported: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLiteRepository) MarkExportFailed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, markExport, "failed", "", id)
	if err != nil {
		return fmt.Errorf("mark record export failed: %w", err)
	}

	slog.WarnContext(ctx, "Record marked with export error", "id", id)
	return expectAffected(res)
}

func (r *SQLiteRepository) RequeueFailedExports(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, requeueFailed)
	if err != nil {
		return 0, fmt.Errorf("requeue failed exports: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (core.User, error) {
	var (
		u       core.User
		created int64
	)
	if err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, ports.ErrNotFound
		}
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return u, nil
}

// scanRecord parses the row through core.ParseKind so a corrupt kind
// surfaces as an error instead of reaching aggregation.
func scanRecord(s scanner) (core.Record, error) {
	var (
		rec                core.Record
		kind               string
		occurred, recorded int64
	)
	err := s.Scan(&rec.ID, &rec.OwnerID, &kind, &rec.Amount.Cents, &rec.ProductCost.Cents,
		&rec.Category, &rec.Description, &occurred, &recorded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Record{}, ports.ErrNotFound
		}
		return core.Record{}, fmt.Errorf("scan record: %w", err)
	}
	if rec.Kind, err = core.ParseKind(kind); err != nil {
		return core.Record{}, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	rec.OccurredAt = time.UnixMilli(occurred).UTC()
	rec.RecordedAt = time.UnixMilli(recorded).UTC()
	return rec, nil
}

func scanGoal(s scanner) (core.Goal, error) {
	var (
		g             core.Goal
		horizon, mode string
		created       int64
	)
	err := s.Scan(&g.ID, &g.OwnerID, &horizon, &g.Target.Cents, &g.WorkDays,
		&mode, &g.ManualMarginPercent, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Goal{}, ports.ErrNotFound
		}
		return core.Goal{}, fmt.Errorf("scan goal: %w", err)
	}
	if g.Horizon, err = core.ParseHorizon(horizon); err != nil {
		return core.Goal{}, fmt.Errorf("goal %s: %w", g.ID, err)
	}
	if g.MarginMode, err = core.ParseMarginMode(mode); err != nil {
		return core.Goal{}, fmt.Errorf("goal %s: %w", g.ID, err)
	}
	g.CreatedAt = time.UnixMilli(created).UTC()
	return g, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
