package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meurenda/internal/amqp"
	"meurenda/internal/core"
	"meurenda/internal/metrics"
	"meurenda/internal/notify"
	"meurenda/internal/ports"
	"meurenda/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.ChangeEvent
	err    error
}

func (p *recordingPublisher) PublishChangeEvent(_ context.Context, ev *amqp.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, *ev)
	return nil
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []amqp.EventType
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type invalidations struct {
	mu    sync.Mutex
	users []string
}

func (i *invalidations) Invalidate(userID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.users = append(i.users, userID)
}

func newSale(owner string, cents int64) core.Record {
	return core.Record{
		OwnerID:     owner,
		Kind:        core.Sale,
		Amount:      core.Money{Cents: cents},
		Description: "bolo",
		OccurredAt:  time.Date(2024, time.June, 20, 9, 0, 0, 0, time.UTC),
	}
}

func TestLedgerService_WritesPublishAndNotify(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	inv := &invalidations{}
	hub := notify.NewHub()
	events, unsub := hub.Subscribe("u1")
	defer unsub()

	svc := NewLedgerService(store, pub, inv, hub)

	rec, err := svc.CreateRecord(ctx, newSale("u1", 1000))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	goal, err := svc.CreateGoal(ctx, core.Goal{OwnerID: "u1", Horizon: core.Monthly, Target: core.Money{Cents: 300000}, MarginMode: core.Automatic})
	require.NoError(t, err)

	goal.Target = core.Money{Cents: 400000}
	_, err = svc.ReplaceGoal(ctx, goal)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRecord(ctx, "u1", rec.ID))
	require.NoError(t, svc.DeleteGoal(ctx, "u1", goal.ID))
	require.NoError(t, svc.ResetData(ctx, "u1"))

	assert.Equal(t, []amqp.EventType{
		amqp.RecordCreated,
		amqp.GoalChanged,
		amqp.GoalChanged,
		amqp.RecordDeleted,
		amqp.GoalChanged,
		amqp.DataReset,
	}, pub.types())
	assert.Len(t, inv.users, 6)
	assert.Len(t, events, 6)

	first := <-events
	assert.Equal(t, string(amqp.RecordCreated), first.Reason)
}

func TestLedgerService_DeleteMetricLabel(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New(), nil, nil, nil)
	rec, err := svc.CreateRecord(ctx, newSale("u1", 1000))
	require.NoError(t, err)

	deletes := metrics.RecordsWritten.WithLabelValues(metrics.KindUnknown, "delete")
	unlabelled := metrics.RecordsWritten.WithLabelValues("", "delete")
	before, emptyBefore := testutil.ToFloat64(deletes), testutil.ToFloat64(unlabelled)

	require.NoError(t, svc.DeleteRecord(ctx, "u1", rec.ID))
	assert.Equal(t, before+1, testutil.ToFloat64(deletes))
	assert.Equal(t, emptyBefore, testutil.ToFloat64(unlabelled))
}

func TestLedgerService_FailedWritesHaveNoSideEffects(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	inv := &invalidations{}
	svc := NewLedgerService(memory.New(), pub, inv, nil)

	_, err := svc.CreateRecord(ctx, core.Record{OwnerID: "u1", Kind: core.Sale})
	assert.Error(t, err)

	err = svc.DeleteRecord(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = svc.ReplaceGoal(ctx, core.Goal{ID: "missing", OwnerID: "u1", Horizon: core.Weekly, Target: core.Money{Cents: 100}, MarginMode: core.Automatic})
	assert.ErrorIs(t, err, ports.ErrNotFound)

	assert.Empty(t, pub.types())
	assert.Empty(t, inv.users)
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{err: errors.New("circuit breaker is open")}
	svc := NewLedgerService(store, pub, nil, nil)

	rec, err := svc.CreateRecord(ctx, newSale("u1", 500))
	require.NoError(t, err)

	recs, err := store.ListRecords(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rec.ID, recs[0].ID)
}

func TestLedgerService_NoPublisher(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, nil, nil)
	_, err := svc.CreateRecord(context.Background(), newSale("u1", 500))
	assert.NoError(t, err)
}
