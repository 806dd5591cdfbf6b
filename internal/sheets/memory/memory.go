package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"meurenda/internal/core"
	ports "meurenda/internal/sheets"
)

// Exporter keeps exported rows in memory. It backs local runs without a
// spreadsheet and the worker tests.
type Exporter struct {
	mu    sync.Mutex
	rows  []core.Record
	seq   int
	fail  error
	calls int
}

var _ ports.RecordExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// FailWith makes every following call return err until reset with nil.
func (e *Exporter) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = err
}

// AppendRecord stores the record and returns a synthetic row reference.
func (e *Exporter) AppendRecord(_ context.Context, r core.Record) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail != nil {
		return "", e.fail
	}
	e.seq++
	e.rows = append(e.rows, r)
	return fmt.Sprintf("mem:%d", e.seq), nil
}

func (e *Exporter) DeleteRecord(_ context.Context, id string) error {
	return e.deleteWhere(func(r core.Record) bool { return r.ID == id })
}

func (e *Exporter) DeleteOwner(_ context.Context, ownerID string) error {
	return e.deleteWhere(func(r core.Record) bool { return r.OwnerID == ownerID })
}

func (e *Exporter) deleteWhere(match func(core.Record) bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail != nil {
		return e.fail
	}
	e.rows = slices.DeleteFunc(e.rows, match)
	return nil
}

// Rows returns a copy of the exported rows in append order.
func (e *Exporter) Rows() []core.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.rows)
}

// Calls counts every exporter call, failed ones included.
func (e *Exporter) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
