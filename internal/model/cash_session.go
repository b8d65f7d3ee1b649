package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session statuses. A session is created open and transitions exactly once,
// irreversibly, to closed. The partial unique index uni_cash_sessions_open
// (see infra.NewDatabase) guarantees at most one open session system-wide.
const (
	SessionOpen   = "open"
	SessionClosed = "closed"
)

// Movement types as recorded by the origin systems.
const (
	MovementSale       = "sale"
	MovementMembership = "membership_payment"
	MovementIncome     = "income"
	MovementExpense    = "expense"
)

// Payment instruments. Balances are tracked per instrument; only cash
// carries the opening float.
const (
	MethodCash     = "cash"
	MethodTransfer = "transfer"
	MethodCard     = "credit_card"
)

// CashSession is one till session: an opening float, a ledger of movements,
// and — once closed — an immutable reconciliation snapshot.
type CashSession struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Status        string          `gorm:"type:varchar(20);not null;default:'open'"`
	OperatorID    uuid.UUID       `gorm:"type:uuid;not null"`
	OpeningAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	// Closing fields are written atomically with the status flip and never
	// touched again. Difference keeps the raw signed value even when the
	// closing is reported as balanced (|difference| < 0.01).
	ClosingAmount   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ClosingCash     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ClosingTransfer *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ClosingCard     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	// 4-digit scale: the sub-cent residual of a balanced closing is part of
	// the audit trail and must survive persistence.
	Difference *decimal.Decimal `gorm:"type:decimal(12,4)"`
	Notes           *string

	OpenedAt time.Time
	ClosedAt *time.Time

	Movements []Movement `gorm:"foreignKey:SessionID"`
}

// Movement is an immutable cash-affecting event in a session's ledger.
// Movements are NEVER modified or deleted — corrections are new
// compensating expense movements appended by the cancellation flows.
type Movement struct {
	// Auto-increment primary key doubles as the ledger's monotonic ordering.
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	SessionID     uuid.UUID       `gorm:"type:uuid;index;not null"`
	Type          string          `gorm:"type:varchar(30);not null"`
	PaymentMethod string          `gorm:"type:varchar(20);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Description   string

	// OriginCategory is set by the sale/membership cancellation flows so the
	// classifier does not have to parse the description. Older records carry
	// only the description text; those fall back to phrase matching.
	OriginCategory *string `gorm:"type:varchar(30)"`
	// PlanName is the structured membership plan label. When absent the
	// classifier falls back to splitting the "<label> - <plan>" description.
	PlanName *string `gorm:"type:varchar(80)"`

	OperatorID uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt  time.Time
}

// ValidMovementType reports whether t is a recognized movement type.
func ValidMovementType(t string) bool {
	switch t {
	case MovementSale, MovementMembership, MovementIncome, MovementExpense:
		return true
	}
	return false
}

// ValidPaymentMethod reports whether m is a recognized payment instrument.
func ValidPaymentMethod(m string) bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCard:
		return true
	}
	return false
}
