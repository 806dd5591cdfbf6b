package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meurenda/internal/core"
	"meurenda/internal/ports"
)

const (
	exportPending = "pending"
	exportDone    = "exported"
	exportFailed  = "failed"
)

type storedRecord struct {
	rec    core.Record
	status string
	ref    string
}

// Store keeps users, records and goals in process memory.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	users   map[string]core.User
	emails  map[string]string
	records map[string]*storedRecord
	order   []string
	goals   map[string]core.Goal
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:     time.Now,
		users:   map[string]core.User{},
		emails:  map[string]string{},
		records: map[string]*storedRecord{},
		goals:   map[string]core.Goal{},
	}
}

// WithClock replaces the clock used for RecordedAt and CreatedAt stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error                { return nil }

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[email]; ok {
		return core.User{}, fmt.Errorf("user %s: %w", email, ports.ErrConflict)
	}
	u.ID = uuid.NewString()
	u.Email = email
	u.CreatedAt = s.now()
	s.users[u.ID] = u
	s.emails[email] = u.ID
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return core.User{}, ports.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) UserByID(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, ports.ErrNotFound
	}
	return u, nil
}

func (s *Store) CreateRecord(_ context.Context, r core.Record) (core.Record, error) {
	if err := r.Validate(); err != nil {
		return core.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.NewString()
	r.RecordedAt = s.now()
	s.records[r.ID] = &storedRecord{rec: r, status: exportPending}
	s.order = append(s.order, r.ID)
	return r, nil
}

func (s *Store) DeleteRecord(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.records[id]
	if !ok || sr.rec.OwnerID != userID {
		return ports.ErrNotFound
	}
	s.dropRecord(id)
	return nil
}

// ListRecords returns the user's records, most recent occurrence first.
func (s *Store) ListRecords(_ context.Context, userID string) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Record
	for _, id := range s.order {
		if r := s.records[id].rec; r.OwnerID == userID {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Record) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})
	return out, nil
}

func (s *Store) CreateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = uuid.NewString()
	g.CreatedAt = s.now()
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) ReplaceGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.goals[g.ID]
	if !ok || old.OwnerID != g.OwnerID {
		return core.Goal{}, ports.ErrNotFound
	}
	g.CreatedAt = old.CreatedAt
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) DeleteGoal(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.OwnerID != userID {
		return ports.ErrNotFound
	}
	delete(s.goals, id)
	return nil
}

func (s *Store) ListGoals(_ context.Context, userID string) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Goal
	for _, g := range s.goals {
		if g.OwnerID == userID {
			out = append(out, g)
		}
	}
	slices.SortFunc(out, func(a, b core.Goal) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) ResetUserData(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range slices.Clone(s.order) {
		if s.records[id].rec.OwnerID == userID {
			s.dropRecord(id)
		}
	}
	for id, g := range s.goals {
		if g.OwnerID == userID {
			delete(s.goals, id)
		}
	}
	return nil
}

func (s *Store) RecordByID(_ context.Context, id string) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.records[id]
	if !ok {
		return core.Record{}, ports.ErrNotFound
	}
	return sr.rec, nil
}

func (s *Store) ExportPending(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.records[id]
	if !ok {
		return false, ports.ErrNotFound
	}
	return sr.status == exportPending, nil
}

// PendingExports returns records not yet exported, oldest first.
func (s *Store) PendingExports(_ context.Context, limit int) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Record
	for _, id := range s.order {
		if len(out) >= limit {
			break
		}
		if sr := s.records[id]; sr.status == exportPending {
			out = append(out, sr.rec)
		}
	}
	return out, nil
}

func (s *Store) MarkExported(_ context.Context, id, ref string) error {
	return s.setStatus(id, exportDone, ref)
}

func (s *Store) MarkExportFailed(_ context.Context, id string) error {
	return s.setStatus(id, exportFailed, "")
}

func (s *Store) RequeueFailedExports(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sr := range s.records {
		if sr.status == exportFailed {
			sr.status = exportPending
			n++
		}
	}
	return n, nil
}

// ExportRef returns the spreadsheet reference stored for a record.
func (s *Store) ExportRef(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.records[id]
	if !ok || sr.status != exportDone {
		return "", false
	}
	return sr.ref, true
}

func (s *Store) setStatus(id, status, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.records[id]
	if !ok {
		return ports.ErrNotFound
	}
	sr.status = status
	sr.ref = ref
	return nil
}

// dropRecord must be called with mu held.
func (s *Store) dropRecord(id string) {
	delete(s.records, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
}
