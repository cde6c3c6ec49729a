package dispute

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"splitchain/notify"
)

func newTestService(repo *fakeRepo, splits *fakeSplits, sender *fakeSender) *Service {
	dispatcher := notify.NewDispatcher(sender, zerolog.Nop())
	svc := NewService(&fakePool{}, repo, splits, dispatcher, zerolog.Nop())
	seq := 0
	svc.WithIDGenerator(func() string {
		seq++
		return fmt.Sprintf("dispute-%d", seq)
	})
	return svc
}

// fakeRepo is an in-memory Repository. Like the real store it enforces the
// single-open-dispute index on insert.
type fakeRepo struct {
	mu      sync.Mutex
	records map[string]Record
	clock   func() time.Time

	insertErr          error
	updateStatusErrFor string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records: make(map[string]Record),
		clock:   time.Now,
	}
}

func (f *fakeRepo) put(rec Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.ID] = rec
}

func (f *fakeRepo) Insert(_ context.Context, _ pgx.Tx, rec Record) (Record, error) {
	if f.insertErr != nil {
		return Record{}, f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.Status == StatusOpen {
		for _, existing := range f.records {
			if existing.SplitID == rec.SplitID && existing.Status == StatusOpen {
				return Record{}, ErrOpenExists
			}
		}
	}
	now := f.clock()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, _ pgx.Tx, id string) (Record, error) {
	return f.Get(ctx, id)
}

func (f *fakeRepo) List(_ context.Context, filters Filters) ([]Record, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}

	matched := f.sorted(func(rec Record) bool {
		if filters.SplitID != "" && rec.SplitID != filters.SplitID {
			return false
		}
		if filters.Status != "" && rec.Status != filters.Status {
			return false
		}
		if filters.RaisedBy != "" && rec.RaisedBy != filters.RaisedBy {
			return false
		}
		if filters.Type != "" && rec.Type != filters.Type {
			return false
		}
		return true
	})

	total := len(matched)
	start := (filters.Page - 1) * filters.Limit
	if start > total {
		start = total
	}
	end := start + filters.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (f *fakeRepo) ListAll(_ context.Context, splitID string) ([]Record, error) {
	return f.sorted(func(rec Record) bool {
		return splitID == "" || rec.SplitID == splitID
	}), nil
}

func (f *fakeRepo) ListByStatus(_ context.Context, status Status) ([]Record, error) {
	return f.sorted(func(rec Record) bool { return rec.Status == status }), nil
}

func (f *fakeRepo) HasOpen(_ context.Context, splitID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.SplitID == splitID && rec.Status == StatusOpen {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) UpdateEvidence(_ context.Context, id string, evidence Evidence) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Evidence = &evidence
	rec.UpdatedAt = f.clock()
	f.records[id] = rec
	return rec, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id string, status Status) (Record, error) {
	if f.updateStatusErrFor == id {
		return Record{}, errors.New("dispute: forced update failure")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Status = status
	rec.UpdatedAt = f.clock()
	f.records[id] = rec
	return rec, nil
}

func (f *fakeRepo) SetResolution(_ context.Context, id string, status Status, res Resolution, resolvedBy string, resolvedAt time.Time) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Status = status
	rec.Resolution = &res
	rec.ResolvedBy = &resolvedBy
	rec.ResolvedAt = &resolvedAt
	rec.UpdatedAt = f.clock()
	f.records[id] = rec
	return rec, nil
}

func (f *fakeRepo) IncrementAppealCount(_ context.Context, _ pgx.Tx, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return 0, ErrNotFound
	}
	rec.AppealCount++
	rec.UpdatedAt = f.clock()
	f.records[id] = rec
	return rec.AppealCount, nil
}

func (f *fakeRepo) sorted(keep func(Record) bool) []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Record{}
	for _, rec := range f.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type freezeCall struct {
	splitID   string
	disputeID string
}

// fakeSplits records every collaborator call.
type fakeSplits struct {
	exists       map[string]bool
	participants map[string][]string

	freezes     []freezeCall
	unfreezes   []string
	adjustments map[string][]Adjustment

	freezeErr   error
	unfreezeErr error
}

func newFakeSplits() *fakeSplits {
	return &fakeSplits{
		exists:       make(map[string]bool),
		participants: make(map[string][]string),
		adjustments:  make(map[string][]Adjustment),
	}
}

func (f *fakeSplits) addSplit(id string, participants ...string) {
	f.exists[id] = true
	f.participants[id] = participants
}

func (f *fakeSplits) SplitExists(_ context.Context, splitID string) (bool, error) {
	return f.exists[splitID], nil
}

func (f *fakeSplits) IsParticipant(_ context.Context, splitID, identity string) (bool, error) {
	for _, p := range f.participants[splitID] {
		if p == identity {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSplits) Participants(_ context.Context, splitID string) ([]string, error) {
	return f.participants[splitID], nil
}

func (f *fakeSplits) Freeze(_ context.Context, splitID, disputeID string) error {
	if f.freezeErr != nil {
		return f.freezeErr
	}
	f.freezes = append(f.freezes, freezeCall{splitID: splitID, disputeID: disputeID})
	return nil
}

func (f *fakeSplits) Unfreeze(_ context.Context, splitID string) error {
	if f.unfreezeErr != nil {
		return f.unfreezeErr
	}
	f.unfreezes = append(f.unfreezes, splitID)
	return nil
}

func (f *fakeSplits) ApplyAdjustments(_ context.Context, splitID string, adjustments []Adjustment) error {
	f.adjustments[splitID] = append(f.adjustments[splitID], adjustments...)
	return nil
}

// fakeSender records fanned-out notifications; the dispatcher calls it
// concurrently.
type fakeSender struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (f *fakeSender) SendDisputeNotification(_ context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeSender) byEvent(event string) []notify.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []notify.Notification{}
	for _, n := range f.sent {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
