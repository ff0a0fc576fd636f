package repositories

import (
	"context"
	"time"

	"pledge-desk/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// pledgeRepository implements PledgeRepository with gorm
type pledgeRepository struct {
	db *gorm.DB
}

// NewPledgeRepository creates a new pledge repository
func NewPledgeRepository(db *gorm.DB) PledgeRepository {
	return &pledgeRepository{db: db}
}

// Create creates a pledge together with any schedule entries attached to it
func (r *pledgeRepository) Create(ctx context.Context, pledge *models.Pledge) error {
	return r.db.WithContext(ctx).Create(pledge).Error
}

// GetByID gets a pledge by ID
func (r *pledgeRepository) GetByID(ctx context.Context, id string) (*models.Pledge, error) {
	var pledge models.Pledge
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&pledge).Error; err != nil {
		return nil, err
	}
	return &pledge, nil
}

// Update saves a pledge
func (r *pledgeRepository) Update(ctx context.Context, pledge *models.Pledge) error {
	return r.db.WithContext(ctx).Omit("Entries").Save(pledge).Error
}

// Exists checks if a pledge exists
func (r *pledgeRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Pledge{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// ListEntries lists schedule entries in period order with pagination
func (r *pledgeRepository) ListEntries(ctx context.Context, pledgeID string, offset, limit int) ([]*models.ScheduleEntry, int64, error) {
	var entries []*models.ScheduleEntry
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.ScheduleEntry{}).Where("pledge_id = ?", pledgeID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Where("pledge_id = ?", pledgeID).
		Order("period_number ASC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error

	return entries, total, err
}

// AllEntries lists every schedule entry of a pledge in period order
func (r *pledgeRepository) AllEntries(ctx context.Context, pledgeID string) ([]*models.ScheduleEntry, error) {
	var entries []*models.ScheduleEntry
	err := r.db.WithContext(ctx).
		Where("pledge_id = ?", pledgeID).
		Order("period_number ASC").
		Find(&entries).Error
	return entries, err
}

// GetEntry gets one schedule entry of a pledge
func (r *pledgeRepository) GetEntry(ctx context.Context, pledgeID, entryID string) (*models.ScheduleEntry, error) {
	var entry models.ScheduleEntry
	err := r.db.WithContext(ctx).
		Where("pledge_id = ? AND id = ?", pledgeID, entryID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// CreateEntries inserts schedule entries
func (r *pledgeRepository) CreateEntries(ctx context.Context, entries []*models.ScheduleEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

// UpdateEntry saves a schedule entry
func (r *pledgeRepository) UpdateEntry(ctx context.Context, entry *models.ScheduleEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

// ListPastDueEntries lists open entries whose due date is before asOf
func (r *pledgeRepository) ListPastDueEntries(ctx context.Context, asOf time.Time) ([]*models.ScheduleEntry, error) {
	var entries []*models.ScheduleEntry
	err := r.db.WithContext(ctx).
		Where("status IN ? AND due_date < ?", []string{"PENDING", "OVERDUE"}, asOf).
		Order("pledge_id ASC, period_number ASC").
		Find(&entries).Error
	return entries, err
}

// CreateTransaction records a ledger movement
func (r *pledgeRepository) CreateTransaction(ctx context.Context, tx *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// ListTransactions lists the payment history, newest first
func (r *pledgeRepository) ListTransactions(ctx context.Context, pledgeID string, offset, limit int) ([]*models.PaymentTransaction, int64, error) {
	var txs []*models.PaymentTransaction
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.PaymentTransaction{}).Where("pledge_id = ?", pledgeID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Where("pledge_id = ?", pledgeID).
		Order("tx_date DESC, created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&txs).Error

	return txs, total, err
}

// SumTransactions sums transaction amounts of the given types
func (r *pledgeRepository) SumTransactions(ctx context.Context, pledgeID string, types ...string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	q := r.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Select("SUM(amount)").
		Where("pledge_id = ?", pledgeID)
	if len(types) > 0 {
		q = q.Where("type IN ?", types)
	}
	if err := q.Row().Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// CreateFee records a one-time fee
func (r *pledgeRepository) CreateFee(ctx context.Context, fee *models.OneTimeFee) error {
	return r.db.WithContext(ctx).Create(fee).Error
}

// ListFees lists one-time fees, newest first
func (r *pledgeRepository) ListFees(ctx context.Context, pledgeID string, offset, limit int) ([]*models.OneTimeFee, int64, error) {
	var fees []*models.OneTimeFee
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.OneTimeFee{}).Where("pledge_id = ?", pledgeID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Where("pledge_id = ?", pledgeID).
		Order("fee_date DESC").
		Offset(offset).
		Limit(limit).
		Find(&fees).Error

	return fees, total, err
}

// WithinTransaction runs fn in a database transaction
func (r *pledgeRepository) WithinTransaction(ctx context.Context, fn func(repo PledgeRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pledgeRepository{db: tx})
	})
}
