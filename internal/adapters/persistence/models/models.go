package models

import (
	"time"

	"pledge-desk/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Staff
// ============================================================

// User represents users table
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	FullName  string         `gorm:"size:150" json:"full_name"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Role      string         `gorm:"size:20;default:'CLERK'" json:"role"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}

// Roles
const (
	RoleClerk   = "CLERK"
	RoleManager = "MANAGER"
)

// ============================================================
// Pledge ledger
// ============================================================

// Pledge is one pawn contract
type Pledge struct {
	ID                 string          `gorm:"primaryKey;size:36" json:"id"`
	CustomerRef        string          `gorm:"size:50;not null;index" json:"customer_ref"`
	CustomerName       string          `gorm:"size:150" json:"customer_name"`
	Collateral         string          `gorm:"type:text" json:"collateral"`
	Principal          decimal.Decimal `gorm:"type:decimal(18,0);not null" json:"principal"`
	RemainingPrincipal decimal.Decimal `gorm:"type:decimal(18,0);not null" json:"remaining_principal"`
	InterestRate       decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"interest_rate"`
	RateUnit           string          `gorm:"size:30;not null" json:"rate_unit"`
	PeriodCount        int             `gorm:"not null" json:"period_count"`
	PeriodLength       int             `gorm:"not null" json:"period_length"`
	TermUnit           string          `gorm:"size:10;not null" json:"term_unit"`
	StartDate          time.Time       `gorm:"type:date;not null" json:"start_date"`
	Status             string          `gorm:"size:20;not null;default:'BORROWING';index" json:"status"`
	SettledAt          *time.Time      `json:"settled_at"`
	CreatedBy          uint            `json:"created_by"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relations
	Entries []ScheduleEntry `gorm:"foreignKey:PledgeID" json:"entries,omitempty"`
}

func (Pledge) TableName() string {
	return "pledges"
}

func (p *Pledge) ToDomain() *domain.PledgeContract {
	return &domain.PledgeContract{
		ID:           p.ID,
		CustomerRef:  p.CustomerRef,
		CustomerName: p.CustomerName,
		Collateral:   p.Collateral,
		Principal:    p.Principal,
		InterestRate: p.InterestRate,
		RateUnit:     domain.RateUnit(p.RateUnit),
		PeriodCount:  p.PeriodCount,
		PeriodLength: p.PeriodLength,
		TermUnit:     domain.TermUnit(p.TermUnit),
		StartDate:    domain.NewDate(p.StartDate),
		Status:       domain.ContractStatus(p.Status),
	}
}

// IsClosed reports whether the pledge no longer accepts mutations
func (p *Pledge) IsClosed() bool {
	return domain.ContractStatus(p.Status).IsTerminal()
}

// ScheduleEntry is one payment period of a pledge
type ScheduleEntry struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	PledgeID        string          `gorm:"size:36;not null;index:idx_entry_pledge_period,priority:1" json:"pledge_id"`
	PeriodNumber    int             `gorm:"not null;index:idx_entry_pledge_period,priority:2" json:"period_number"`
	StartDate       time.Time       `gorm:"type:date;not null" json:"start_date"`
	DueDate         time.Time       `gorm:"type:date;not null;index" json:"due_date"`
	InterestAmount  decimal.Decimal `gorm:"type:decimal(18,0);not null" json:"interest_amount"`
	PrincipalAmount decimal.Decimal `gorm:"type:decimal(18,0);not null" json:"principal_amount"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(18,0);not null" json:"total_amount"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(18,0);not null" json:"paid_amount"`
	PenaltyInterest decimal.Decimal `gorm:"type:decimal(18,0);not null" json:"penalty_interest"`
	Status          string          `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	PaidAt          *time.Time      `json:"paid_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ScheduleEntry) TableName() string {
	return "schedule_entries"
}

func (e *ScheduleEntry) ToDomain() domain.PaymentScheduleEntry {
	return domain.PaymentScheduleEntry{
		ID:              e.ID,
		PeriodNumber:    e.PeriodNumber,
		StartDate:       domain.NewDate(e.StartDate),
		DueDate:         domain.NewDate(e.DueDate),
		InterestAmount:  e.InterestAmount,
		PrincipalAmount: e.PrincipalAmount,
		TotalAmount:     e.TotalAmount,
		PaidAmount:      e.PaidAmount,
		PenaltyInterest: e.PenaltyInterest,
		Status:          domain.PeriodStatus(e.Status),
	}
}

// Owed is what is still due on the period, penalty included
func (e *ScheduleEntry) Owed() decimal.Decimal {
	return e.ToDomain().Outstanding()
}

// PaymentTransaction is one ledger movement on a pledge
type PaymentTransaction struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	PledgeID      string          `gorm:"size:36;not null;index" json:"pledge_id"`
	EntryID       *string         `gorm:"size:36;index" json:"entry_id"`
	PeriodNumber  int             `json:"period_number"`
	Type          string          `gorm:"size:30;not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,0);not null" json:"amount"`
	TxDate        time.Time       `gorm:"type:date;not null" json:"tx_date"`
	PaymentMethod string          `gorm:"size:20" json:"payment_method"`
	Note          string          `gorm:"type:text" json:"note"`
	PerformedBy   uint            `json:"performed_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

func (t *PaymentTransaction) ToDomain() domain.LedgerTransaction {
	return domain.LedgerTransaction{
		ID:            t.ID,
		Type:          domain.TransactionType(t.Type),
		PeriodNumber:  t.PeriodNumber,
		Amount:        t.Amount,
		Date:          domain.NewDate(t.TxDate),
		PaymentMethod: domain.PaymentMethod(t.PaymentMethod),
		Note:          t.Note,
	}
}

// OneTimeFee is a non-recurring charge such as storage or appraisal
type OneTimeFee struct {
	ID        string          `gorm:"primaryKey;size:36" json:"id"`
	PledgeID  string          `gorm:"size:36;not null;index" json:"pledge_id"`
	FeeType   string          `gorm:"size:50;not null" json:"fee_type"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,0);not null" json:"amount"`
	FeeDate   time.Time       `gorm:"type:date;not null" json:"fee_date"`
	Note      string          `gorm:"type:text" json:"note"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (OneTimeFee) TableName() string {
	return "one_time_fees"
}

func (f *OneTimeFee) ToDomain() domain.OneTimeFee {
	return domain.OneTimeFee{
		ID:      f.ID,
		FeeType: f.FeeType,
		Amount:  f.Amount,
		Date:    domain.NewDate(f.FeeDate),
		Note:    f.Note,
	}
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Pledge{},
		&ScheduleEntry{},
		&PaymentTransaction{},
		&OneTimeFee{},
	)
}
