// Package storetest holds behaviour checks shared by every ports.Store
// implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meurenda/internal/core"
	"meurenda/internal/ports"
)

// Run exercises newStore with the full set of store checks. newStore must
// return an empty store on every call.
func Run(t *testing.T, newStore func(t *testing.T) ports.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("records", func(t *testing.T) { testRecords(t, newStore(t)) })
	t.Run("goals", func(t *testing.T) { testGoals(t, newStore(t)) })
	t.Run("reset", func(t *testing.T) { testReset(t, newStore(t)) })
	t.Run("exports", func(t *testing.T) { testExports(t, newStore(t)) })
}

func at(d int) time.Time {
	return time.Date(2024, time.June, d, 12, 0, 0, 0, time.UTC)
}

func sale(owner string, cents int64, day int) core.Record {
	return core.Record{
		OwnerID:     owner,
		Kind:        core.Sale,
		Amount:      core.Money{Cents: cents},
		Description: "venda",
		OccurredAt:  at(day),
	}
}

func seedUser(t *testing.T, s ports.Store, email string) core.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), core.User{Email: email, PasswordHash: "hash"})
	require.NoError(t, err)
	return u
}

func testUsers(t *testing.T, s ports.Store) {
	ctx := context.Background()

	u, err := s.CreateUser(ctx, core.User{Email: "  Ana@Example.com ", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.False(t, u.CreatedAt.IsZero())

	_, err = s.CreateUser(ctx, core.User{Email: "ana@example.com", PasswordHash: "other"})
	assert.ErrorIs(t, err, ports.ErrConflict)

	byEmail, err := s.UserByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, byID.Email)

	_, err = s.UserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ports.ErrNotFound)
	_, err = s.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func testRecords(t *testing.T, s ports.Store) {
	ctx := context.Background()
	ana := seedUser(t, s, "ana@example.com")
	bia := seedUser(t, s, "bia@example.com")

	first, err := s.CreateRecord(ctx, sale(ana.ID, 1000, 3))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.RecordedAt.IsZero())

	cost := sale(ana.ID, 5000, 10)
	cost.ProductCost = core.Money{Cents: 2000}
	second, err := s.CreateRecord(ctx, cost)
	require.NoError(t, err)

	exp := core.Record{
		OwnerID:     ana.ID,
		Kind:        core.Expense,
		Amount:      core.Money{Cents: 300},
		Category:    core.CategoryFixed,
		Description: "aluguel",
		OccurredAt:  at(5),
	}
	third, err := s.CreateRecord(ctx, exp)
	require.NoError(t, err)

	_, err = s.CreateRecord(ctx, sale(bia.ID, 999, 4))
	require.NoError(t, err)

	_, err = s.CreateRecord(ctx, core.Record{OwnerID: ana.ID, Kind: core.Sale, Description: "x"})
	assert.ErrorIs(t, err, core.ErrMissingDate)

	list, err := s.ListRecords(ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{second.ID, third.ID, first.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, int64(2000), list[0].ProductCost.Cents)
	assert.Equal(t, core.CategoryFixed, list[1].Category)
	assert.True(t, list[1].OccurredAt.Equal(at(5)))

	// deleting another user's record is indistinguishable from a missing one
	assert.ErrorIs(t, s.DeleteRecord(ctx, bia.ID, first.ID), ports.ErrNotFound)
	require.NoError(t, s.DeleteRecord(ctx, ana.ID, first.ID))
	assert.ErrorIs(t, s.DeleteRecord(ctx, ana.ID, first.ID), ports.ErrNotFound)

	list, err = s.ListRecords(ctx, ana.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	other, err := s.ListRecords(ctx, bia.ID)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func testGoals(t *testing.T, s ports.Store) {
	ctx := context.Background()
	ana := seedUser(t, s, "ana@example.com")

	g, err := s.CreateGoal(ctx, core.Goal{
		OwnerID:    ana.ID,
		Horizon:    core.Monthly,
		Target:     core.Money{Cents: 500000},
		MarginMode: core.Automatic,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)

	_, err = s.CreateGoal(ctx, core.Goal{OwnerID: ana.ID, Horizon: core.Custom, Target: core.Money{Cents: 1}, MarginMode: core.Automatic})
	assert.ErrorIs(t, err, core.ErrInvalidWorkDays)

	g.Horizon = core.Custom
	g.WorkDays = 12
	g.MarginMode = core.Manual
	g.ManualMarginPercent = 35
	replaced, err := s.ReplaceGoal(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, core.Custom, replaced.Horizon)
	assert.Equal(t, 12, replaced.WorkDays)
	assert.InDelta(t, 35.0, replaced.ManualMarginPercent, 1e-9)
	assert.WithinDuration(t, g.CreatedAt, replaced.CreatedAt, time.Millisecond)

	stranger := g
	stranger.OwnerID = "someone-else"
	_, err = s.ReplaceGoal(ctx, stranger)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	goals, err := s.ListGoals(ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, core.Manual, goals[0].MarginMode)

	assert.ErrorIs(t, s.DeleteGoal(ctx, "someone-else", g.ID), ports.ErrNotFound)
	require.NoError(t, s.DeleteGoal(ctx, ana.ID, g.ID))

	goals, err = s.ListGoals(ctx, ana.ID)
	require.NoError(t, err)
	assert.Empty(t, goals)
}

func testReset(t *testing.T, s ports.Store) {
	ctx := context.Background()
	ana := seedUser(t, s, "ana@example.com")
	bia := seedUser(t, s, "bia@example.com")

	for _, owner := range []string{ana.ID, bia.ID} {
		_, err := s.CreateRecord(ctx, sale(owner, 100, 1))
		require.NoError(t, err)
		_, err = s.CreateGoal(ctx, core.Goal{OwnerID: owner, Horizon: core.Weekly, Target: core.Money{Cents: 100}, MarginMode: core.Automatic})
		require.NoError(t, err)
	}

	require.NoError(t, s.ResetUserData(ctx, ana.ID))
	// resetting an empty account is a no-op
	require.NoError(t, s.ResetUserData(ctx, ana.ID))

	recs, err := s.ListRecords(ctx, ana.ID)
	require.NoError(t, err)
	assert.Empty(t, recs)
	goals, err := s.ListGoals(ctx, ana.ID)
	require.NoError(t, err)
	assert.Empty(t, goals)

	recs, err = s.ListRecords(ctx, bia.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	goals, err = s.ListGoals(ctx, bia.ID)
	require.NoError(t, err)
	assert.Len(t, goals, 1)

	_, err = s.UserByID(ctx, ana.ID)
	assert.NoError(t, err, "reset keeps the account itself")
}

func testExports(t *testing.T, s ports.Store) {
	ctx := context.Background()
	ana := seedUser(t, s, "ana@example.com")

	var ids []string
	for i := 1; i <= 3; i++ {
		r, err := s.CreateRecord(ctx, sale(ana.ID, int64(i*100), i))
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	pending, err := s.PendingExports(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	limited, err := s.PendingExports(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	require.NoError(t, s.MarkExported(ctx, ids[0], "Lancamentos!A2:H2"))
	require.NoError(t, s.MarkExportFailed(ctx, ids[1]))
	assert.ErrorIs(t, s.MarkExported(ctx, "missing", "ref"), ports.ErrNotFound)

	pending, err = s.PendingExports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[2], pending[0].ID)

	ok, err := s.ExportPending(ctx, ids[2])
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.ExportPending(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = s.ExportPending(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	n, err := s.RequeueFailedExports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	pending, err = s.PendingExports(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	r, err := s.RecordByID(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, int64(200), r.Amount.Cents)
	_, err = s.RecordByID(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}
