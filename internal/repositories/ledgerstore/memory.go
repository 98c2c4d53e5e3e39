package ledgerstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"qiyana_splitledger/internal/models"
)

// MemoryStore keeps the ledger in process. Transactions work on a copy of
// the rows and swap it in on commit, so a failed callback leaves nothing
// behind. Transactions are serialised.
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[int64]models.Expense
	nextID int64
	now    func() time.Time

	// OnInsert, when set, runs before every insert; a non-nil error aborts
	// the insert. Used to inject storage failures.
	OnInsert func(e models.Expense) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[int64]models.Expense),
		now:  time.Now,
	}
}

// WithClock overrides the clock used to stamp Modified.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) QueryUnsettled(_ context.Context, f Filter) ([]models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return query(s.rows, f), nil
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:  s,
		rows:   make(map[int64]models.Expense, len(s.rows)),
		nextID: s.nextID,
	}
	for id, e := range s.rows {
		tx.rows[id] = e
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.rows = tx.rows
	s.nextID = tx.nextID
	return nil
}

// Len reports how many entries are stored.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type memoryTx struct {
	store  *MemoryStore
	rows   map[int64]models.Expense
	nextID int64
}

func (tx *memoryTx) QueryUnsettled(_ context.Context, f Filter) ([]models.Expense, error) {
	return query(tx.rows, f), nil
}

func (tx *memoryTx) Insert(_ context.Context, e models.Expense) (int64, error) {
	if tx.store.OnInsert != nil {
		if err := tx.store.OnInsert(e); err != nil {
			return 0, err
		}
	}

	tx.nextID++
	e = e.Clone()
	e.ID = tx.nextID
	e.Date = models.Day(e.Date)
	e.Modified = tx.store.now().UTC().Truncate(time.Microsecond)
	tx.rows[e.ID] = e
	return e.ID, nil
}

func (tx *memoryTx) DeleteByID(_ context.Context, id int64, modified time.Time) error {
	e, ok := tx.rows[id]
	if !ok || !e.Modified.Equal(modified) {
		return ErrConflict
	}
	delete(tx.rows, id)
	return nil
}

func query(rows map[int64]models.Expense, f Filter) []models.Expense {
	out := make([]models.Expense, 0)
	for _, e := range rows {
		if f.Match(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
