package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"pledge-desk/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// memoryState is everything the in-memory store holds
type memoryState struct {
	pledges map[string]models.Pledge
	entries map[string]models.ScheduleEntry
	txs     []models.PaymentTransaction
	fees    []models.OneTimeFee
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		pledges: make(map[string]models.Pledge, len(s.pledges)),
		entries: make(map[string]models.ScheduleEntry, len(s.entries)),
		txs:     append([]models.PaymentTransaction(nil), s.txs...),
		fees:    append([]models.OneTimeFee(nil), s.fees...),
	}
	for k, v := range s.pledges {
		c.pledges[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	return c
}

// memoryPledgeRepository keeps the ledger in process memory. It backs the
// sandbox when no database is configured. Lookups miss with
// gorm.ErrRecordNotFound like the gorm repository does.
type memoryPledgeRepository struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state *memoryState
}

// NewMemoryPledgeRepository creates an empty in-memory pledge repository
func NewMemoryPledgeRepository() PledgeRepository {
	return &memoryPledgeRepository{state: &memoryState{
		pledges: make(map[string]models.Pledge),
		entries: make(map[string]models.ScheduleEntry),
	}}
}

func (r *memoryPledgeRepository) Create(ctx context.Context, pledge *models.Pledge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	pledge.CreatedAt, pledge.UpdatedAt = now, now
	for i := range pledge.Entries {
		e := pledge.Entries[i]
		e.PledgeID = pledge.ID
		e.CreatedAt, e.UpdatedAt = now, now
		r.state.entries[e.ID] = e
	}
	stored := *pledge
	stored.Entries = nil
	r.state.pledges[pledge.ID] = stored
	return nil
}

func (r *memoryPledgeRepository) GetByID(ctx context.Context, id string) (*models.Pledge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.state.pledges[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *memoryPledgeRepository) Update(ctx context.Context, pledge *models.Pledge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.pledges[pledge.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	pledge.UpdatedAt = time.Now()
	stored := *pledge
	stored.Entries = nil
	r.state.pledges[pledge.ID] = stored
	return nil
}

func (r *memoryPledgeRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.state.pledges[id]
	return ok, nil
}

func (r *memoryPledgeRepository) sortedEntries(pledgeID string) []*models.ScheduleEntry {
	var out []*models.ScheduleEntry
	for _, e := range r.state.entries {
		if e.PledgeID == pledgeID {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodNumber < out[j].PeriodNumber })
	return out
}

func (r *memoryPledgeRepository) ListEntries(ctx context.Context, pledgeID string, offset, limit int) ([]*models.ScheduleEntry, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.sortedEntries(pledgeID)
	return window(all, offset, limit), int64(len(all)), nil
}

func (r *memoryPledgeRepository) AllEntries(ctx context.Context, pledgeID string) ([]*models.ScheduleEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedEntries(pledgeID), nil
}

func (r *memoryPledgeRepository) GetEntry(ctx context.Context, pledgeID, entryID string) (*models.ScheduleEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.state.entries[entryID]
	if !ok || e.PledgeID != pledgeID {
		return nil, gorm.ErrRecordNotFound
	}
	return &e, nil
}

func (r *memoryPledgeRepository) CreateEntries(ctx context.Context, entries []*models.ScheduleEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, e := range entries {
		e.CreatedAt, e.UpdatedAt = now, now
		r.state.entries[e.ID] = *e
	}
	return nil
}

func (r *memoryPledgeRepository) UpdateEntry(ctx context.Context, entry *models.ScheduleEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.UpdatedAt = time.Now()
	r.state.entries[entry.ID] = *entry
	return nil
}

func (r *memoryPledgeRepository) ListPastDueEntries(ctx context.Context, asOf time.Time) ([]*models.ScheduleEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.ScheduleEntry
	for _, e := range r.state.entries {
		if (e.Status == "PENDING" || e.Status == "OVERDUE") && e.DueDate.Before(asOf) {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PledgeID != out[j].PledgeID {
			return out[i].PledgeID < out[j].PledgeID
		}
		return out[i].PeriodNumber < out[j].PeriodNumber
	})
	return out, nil
}

func (r *memoryPledgeRepository) CreateTransaction(ctx context.Context, tx *models.PaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx.CreatedAt = time.Now()
	r.state.txs = append(r.state.txs, *tx)
	return nil
}

func (r *memoryPledgeRepository) ListTransactions(ctx context.Context, pledgeID string, offset, limit int) ([]*models.PaymentTransaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.PaymentTransaction
	// newest first
	for i := len(r.state.txs) - 1; i >= 0; i-- {
		if t := r.state.txs[i]; t.PledgeID == pledgeID {
			out = append(out, &t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TxDate.After(out[j].TxDate) })
	return window(out, offset, limit), int64(len(out)), nil
}

func (r *memoryPledgeRepository) SumTransactions(ctx context.Context, pledgeID string, types ...string) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := decimal.Zero
	for _, t := range r.state.txs {
		if t.PledgeID != pledgeID {
			continue
		}
		if len(types) > 0 && !contains(types, t.Type) {
			continue
		}
		sum = sum.Add(t.Amount)
	}
	return sum, nil
}

func (r *memoryPledgeRepository) CreateFee(ctx context.Context, fee *models.OneTimeFee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fee.CreatedAt = time.Now()
	r.state.fees = append(r.state.fees, *fee)
	return nil
}

func (r *memoryPledgeRepository) ListFees(ctx context.Context, pledgeID string, offset, limit int) ([]*models.OneTimeFee, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.OneTimeFee
	for _, f := range r.state.fees {
		if f.PledgeID == pledgeID {
			f := f
			out = append(out, &f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FeeDate.After(out[j].FeeDate) })
	return window(out, offset, limit), int64(len(out)), nil
}

// WithinTransaction serializes fn against other transactions and restores
// the previous state if fn fails
func (r *memoryPledgeRepository) WithinTransaction(ctx context.Context, fn func(repo PledgeRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	snapshot := r.state.clone()
	r.mu.RUnlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.state = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// memoryUserRepository is the in-memory counterpart of userRepository
type memoryUserRepository struct {
	mu     sync.RWMutex
	nextID uint
	users  map[uint]models.User
}

// NewMemoryUserRepository creates an empty in-memory user repository
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[uint]models.User)}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	r.nextID++
	now := time.Now()
	user.ID = r.nextID
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *memoryUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryUserRepository) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (r *memoryUserRepository) List(ctx context.Context, offset, limit int) ([]*models.User, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return window(out, offset, limit), int64(len(out)), nil
}
