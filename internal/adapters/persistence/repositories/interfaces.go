package repositories

import (
	"context"
	"time"

	"pledge-desk/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
}

// PledgeRepository defines the pledge ledger data access. List methods take
// an offset and limit; a negative limit lists everything.
type PledgeRepository interface {
	Create(ctx context.Context, pledge *models.Pledge) error
	GetByID(ctx context.Context, id string) (*models.Pledge, error)
	Update(ctx context.Context, pledge *models.Pledge) error
	Exists(ctx context.Context, id string) (bool, error)

	ListEntries(ctx context.Context, pledgeID string, offset, limit int) ([]*models.ScheduleEntry, int64, error)
	AllEntries(ctx context.Context, pledgeID string) ([]*models.ScheduleEntry, error)
	GetEntry(ctx context.Context, pledgeID, entryID string) (*models.ScheduleEntry, error)
	CreateEntries(ctx context.Context, entries []*models.ScheduleEntry) error
	UpdateEntry(ctx context.Context, entry *models.ScheduleEntry) error
	ListPastDueEntries(ctx context.Context, asOf time.Time) ([]*models.ScheduleEntry, error)

	CreateTransaction(ctx context.Context, tx *models.PaymentTransaction) error
	ListTransactions(ctx context.Context, pledgeID string, offset, limit int) ([]*models.PaymentTransaction, int64, error)
	SumTransactions(ctx context.Context, pledgeID string, types ...string) (decimal.Decimal, error)

	CreateFee(ctx context.Context, fee *models.OneTimeFee) error
	ListFees(ctx context.Context, pledgeID string, offset, limit int) ([]*models.OneTimeFee, int64, error)

	// WithinTransaction runs fn against a repository bound to one database
	// transaction. fn's error rolls everything back.
	WithinTransaction(ctx context.Context, fn func(repo PledgeRepository) error) error
}
