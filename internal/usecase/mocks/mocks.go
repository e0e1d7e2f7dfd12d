package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/usecase"
)

// ErrTxDone is returned when a finished Tx is used again.
var ErrTxDone = errors.New("mocks: transaction already committed or rolled back")

// Ledger is an in-memory entry store, transaction manager and locker.
//
// Writes made through a Tx are invisible to other transactions until Commit. Locks taken
// with Lock are exclusive per key and are released when the holding Tx ends, like
// pg_advisory_xact_lock. GetByIDForUpdate locks the entry the same way.
type Ledger struct {
	mu      sync.Mutex
	entries []*domain.Entry
	events  []*domain.OutboxEvent
	nextID  int64
	locks   map[string]chan struct{}

	// Hooks for error injection. A non-nil return aborts the call.
	BeginFunc  func(ctx context.Context) error
	AppendFunc func(entry *domain.Entry) error
	CommitFunc func(ctx context.Context) error
	SumFunc    func(userID string, kinds []domain.Kind) error
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		locks: make(map[string]chan struct{}),
	}
}

// Tx is a Ledger transaction.
type Tx struct {
	ledger  *Ledger
	pending []*domain.Entry
	events  []*domain.OutboxEvent
	held    []string
	done    bool
}

// Begin starts a transaction.
func (l *Ledger) Begin(ctx context.Context) (usecase.Transaction, error) {
	if l.BeginFunc != nil {
		if err := l.BeginFunc(ctx); err != nil {
			return nil, err
		}
	}
	return &Tx{ledger: l}, nil
}

// Commit publishes the transaction's writes and releases its locks.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}

	if t.ledger.CommitFunc != nil {
		if err := t.ledger.CommitFunc(ctx); err != nil {
			t.finish()
			return err
		}
	}

	t.ledger.mu.Lock()
	t.ledger.entries = append(t.ledger.entries, t.pending...)
	sort.Slice(t.ledger.entries, func(i, j int) bool { return t.ledger.entries[i].ID < t.ledger.entries[j].ID })
	t.ledger.events = append(t.ledger.events, t.events...)
	t.ledger.mu.Unlock()

	t.finish()
	return nil
}

// Rollback discards the transaction's writes and releases its locks.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *Tx) finish() {
	t.done = true
	t.pending = nil
	t.events = nil
	for _, key := range t.held {
		<-t.ledger.lockChan(key)
	}
	t.held = nil
}

func (l *Ledger) lockChan(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, fmt.Errorf("mocks: unexpected transaction type %T", tx)
	}
	if t.done {
		return nil, ErrTxDone
	}
	return t, nil
}

// Lock blocks until key is free or ctx is done. Locks are reentrant within one Tx.
func (l *Ledger) Lock(ctx context.Context, tx usecase.Transaction, key string) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	for _, h := range t.held {
		if h == key {
			return nil
		}
	}

	select {
	case l.lockChan(key) <- struct{}{}:
		t.held = append(t.held, key)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// visible returns committed entries plus those pending in tx, in id order.
func (l *Ledger) visible(tx usecase.Transaction) []*domain.Entry {
	l.mu.Lock()
	out := make([]*domain.Entry, len(l.entries))
	copy(out, l.entries)
	l.mu.Unlock()

	if t, ok := tx.(*Tx); ok && t != nil {
		out = append(out, t.pending...)
	}
	return out
}

func clone(e *domain.Entry) *domain.Entry {
	c := *e
	if e.ReversalOf != nil {
		v := *e.ReversalOf
		c.ReversalOf = &v
	}
	return &c
}

// Append assigns an ID and stages entry in tx, enforcing the store's uniqueness rules.
func (l *Ledger) Append(_ context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if l.AppendFunc != nil {
		if err := l.AppendFunc(entry); err != nil {
			return err
		}
	}

	for _, e := range l.visible(tx) {
		if entry.ReversalOf != nil && e.ReversalOf != nil && *e.ReversalOf == *entry.ReversalOf {
			return domain.ErrAlreadyReversed
		}
		if entry.Kind == domain.KindTransferIn && e.Kind == domain.KindTransferIn && e.GroupID == entry.GroupID {
			return fmt.Errorf("mocks: duplicate transfer_in for group %s", entry.GroupID)
		}
	}

	l.mu.Lock()
	l.nextID++
	entry.ID = l.nextID
	l.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	t.pending = append(t.pending, clone(entry))
	return nil
}

// GetByID returns a committed entry.
func (l *Ledger) GetByID(_ context.Context, id int64) (*domain.Entry, error) {
	for _, e := range l.visible(nil) {
		if e.ID == id {
			return clone(e), nil
		}
	}
	return nil, domain.ErrEntryNotFound
}

// GetByIDForUpdate locks and returns an entry visible to tx.
func (l *Ledger) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Entry, error) {
	if err := l.Lock(ctx, tx, fmt.Sprintf("entry:%d", id)); err != nil {
		return nil, err
	}
	for _, e := range l.visible(tx) {
		if e.ID == id {
			return clone(e), nil
		}
	}
	return nil, domain.ErrEntryNotFound
}

// FindReversalOf returns the entry reversing id, or nil.
func (l *Ledger) FindReversalOf(_ context.Context, tx usecase.Transaction, id int64) (*domain.Entry, error) {
	for _, e := range l.visible(tx) {
		if e.ReversalOf != nil && *e.ReversalOf == id {
			return clone(e), nil
		}
	}
	return nil, nil
}

// FindPairedTransferIn returns the transfer_in sharing out's group.
func (l *Ledger) FindPairedTransferIn(_ context.Context, tx usecase.Transaction, out *domain.Entry) (*domain.Entry, error) {
	for _, e := range l.visible(tx) {
		if e.Kind == domain.KindTransferIn && e.GroupID == out.GroupID {
			return clone(e), nil
		}
	}
	return nil, domain.ErrEntryNotFound
}

// SumAmount sums the user's entries of kinds created in [since, until).
func (l *Ledger) SumAmount(_ context.Context, tx usecase.Transaction, userID string, kinds []domain.Kind, since, until time.Time) (int64, error) {
	if l.SumFunc != nil {
		if err := l.SumFunc(userID, kinds); err != nil {
			return 0, err
		}
	}

	var total int64
	for _, e := range l.visible(tx) {
		if e.UserID != userID || e.CreatedAt.Before(since) || !e.CreatedAt.Before(until) {
			continue
		}
		for _, k := range kinds {
			if e.Kind == k {
				total += e.Amount
				break
			}
		}
	}
	return total, nil
}

// Balance returns the signed sum of the user's committed entries.
func (l *Ledger) Balance(_ context.Context, userID string) (int64, error) {
	var mine []*domain.Entry
	for _, e := range l.visible(nil) {
		if e.UserID == userID {
			mine = append(mine, e)
		}
	}
	return domain.Balance(mine), nil
}

// ListByUser returns the user's committed entries, newest first.
func (l *Ledger) ListByUser(_ context.Context, userID string, limit, offset int) ([]*domain.Entry, error) {
	var mine []*domain.Entry
	all := l.visible(nil)
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].UserID == userID {
			mine = append(mine, clone(all[i]))
		}
	}
	if offset >= len(mine) {
		return []*domain.Entry{}, nil
	}
	mine = mine[offset:]
	if limit < len(mine) {
		mine = mine[:limit]
	}
	return mine, nil
}

// FindByIdempotencyKey returns entries visible to tx carrying key, in id order.
func (l *Ledger) FindByIdempotencyKey(_ context.Context, tx usecase.Transaction, key string) ([]*domain.Entry, error) {
	var out []*domain.Entry
	for _, e := range l.visible(tx) {
		if e.IdempotencyKey == key {
			out = append(out, clone(e))
		}
	}
	return out, nil
}

// CheckConsistency totals committed transfer legs and counts groups missing one.
func (l *Ledger) CheckConsistency(_ context.Context) (domain.ConsistencyTotals, error) {
	var totals domain.ConsistencyTotals
	legs := make(map[string][2]int)
	for _, e := range l.visible(nil) {
		switch e.Kind {
		case domain.KindTransferOut:
			totals.TransferOut += e.Amount
			c := legs[e.GroupID]
			c[0]++
			legs[e.GroupID] = c
		case domain.KindTransferIn:
			totals.TransferIn += e.Amount
			c := legs[e.GroupID]
			c[1]++
			legs[e.GroupID] = c
		}
	}
	for _, c := range legs {
		if c[0] != 1 || c[1] != 1 {
			totals.UnpairedGroups++
		}
	}
	return totals, nil
}

// Entries returns a snapshot of all committed entries in id order.
func (l *Ledger) Entries() []*domain.Entry {
	all := l.visible(nil)
	out := make([]*domain.Entry, len(all))
	for i, e := range all {
		out[i] = clone(e)
	}
	return out
}

// Outbox returns an OutboxRepository backed by this ledger's transactions.
func (l *Ledger) Outbox() *Outbox {
	return &Outbox{ledger: l}
}

// Outbox is an in-memory OutboxRepository.
type Outbox struct {
	ledger *Ledger

	CreateFunc func(event *domain.OutboxEvent) error
}

// Create stages event in tx.
func (o *Outbox) Create(_ context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if o.CreateFunc != nil {
		if err := o.CreateFunc(event); err != nil {
			return err
		}
	}
	t.events = append(t.events, event)
	return nil
}

// GetUnpublished returns up to limit unpublished events, oldest first.
func (o *Outbox) GetUnpublished(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	o.ledger.mu.Lock()
	defer o.ledger.mu.Unlock()

	var out []*domain.OutboxEvent
	for _, ev := range o.ledger.events {
		if !ev.Published {
			out = append(out, ev)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// MarkPublished flags an event as delivered.
func (o *Outbox) MarkPublished(_ context.Context, id string, publishedAt time.Time) error {
	o.ledger.mu.Lock()
	defer o.ledger.mu.Unlock()

	for _, ev := range o.ledger.events {
		if ev.ID == id {
			ev.Published = true
			at := publishedAt
			ev.PublishedAt = &at
			return nil
		}
	}
	return fmt.Errorf("mocks: outbox event %s not found", id)
}

// DeletePublished removes events published before the cutoff.
func (o *Outbox) DeletePublished(_ context.Context, before time.Time) (int64, error) {
	o.ledger.mu.Lock()
	defer o.ledger.mu.Unlock()

	kept := o.ledger.events[:0]
	var deleted int64
	for _, ev := range o.ledger.events {
		if ev.Published && ev.PublishedAt != nil && ev.PublishedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	o.ledger.events = kept
	return deleted, nil
}

// Events returns a snapshot of committed outbox events.
func (o *Outbox) Events() []*domain.OutboxEvent {
	o.ledger.mu.Lock()
	defer o.ledger.mu.Unlock()

	out := make([]*domain.OutboxEvent, len(o.ledger.events))
	copy(out, o.ledger.events)
	return out
}

// SequenceIDGenerator returns prefix-1, prefix-2, ...
type SequenceIDGenerator struct {
	Prefix  string
	mu      sync.Mutex
	counter int
}

// NewSequenceIDGenerator creates a SequenceIDGenerator.
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	return &SequenceIDGenerator{Prefix: prefix}
}

func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%d", g.Prefix, g.counter)
}

// Clock is a settable usecase.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock reading t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// IdempotencyStore is an in-memory usecase.IdempotencyStore.
type IdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
	ReleaseFunc     func(ctx context.Context, key string) error
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *IdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *IdempotencyStore) Release(ctx context.Context, key string) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Get returns the stored value for key.
func (m *IdempotencyStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

var (
	_ usecase.EntryRepository    = (*Ledger)(nil)
	_ usecase.TransactionManager = (*Ledger)(nil)
	_ usecase.Locker             = (*Ledger)(nil)
	_ usecase.OutboxRepository   = (*Outbox)(nil)
	_ usecase.IDGenerator        = (*SequenceIDGenerator)(nil)
	_ usecase.Clock              = (*Clock)(nil)
	_ usecase.IdempotencyStore   = (*IdempotencyStore)(nil)
)
