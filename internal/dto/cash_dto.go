package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenSessionRequest struct {
	OpeningAmount decimal.Decimal `json:"opening_amount" validate:"min=0"`
}

type AppendMovementRequest struct {
	SessionID     string          `json:"session_id"     validate:"required,uuid"`
	Type          string          `json:"type"           validate:"required,oneof=sale membership_payment income expense"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=cash transfer credit_card"`
	Amount        decimal.Decimal `json:"amount"         validate:"required,gt=0"`
	Description   string          `json:"description"`
	// Structured fields written by the origin systems; optional for
	// backwards compatibility with description-only records.
	OriginCategory *string `json:"origin_category" validate:"omitempty,oneof=sale membership"`
	PlanName       *string `json:"plan_name"`
}

// EnteredAmounts is the operator's physical count per instrument at close.
// All three are optional; at least one must be present and positive.
type EnteredAmounts struct {
	Cash     *decimal.Decimal `json:"cash"     validate:"omitempty,min=0"`
	Transfer *decimal.Decimal `json:"transfer" validate:"omitempty,min=0"`
	Card     *decimal.Decimal `json:"card"     validate:"omitempty,min=0"`
}

type CloseSessionRequest struct {
	SessionID string         `json:"session_id" validate:"required,uuid"`
	Entered   EnteredAmounts `json:"entered"    validate:"required"`
	Notes     *string        `json:"notes"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MovementResponse struct {
	ID            int64           `json:"id"`
	SessionID     string          `json:"session_id"`
	Type          string          `json:"type"`
	PaymentMethod string          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	CreatedAt     string          `json:"created_at"`
}

// MethodAmounts is a per-instrument money triple.
type MethodAmounts struct {
	Cash     decimal.Decimal `json:"cash"`
	Transfer decimal.Decimal `json:"transfer"`
	Card     decimal.Decimal `json:"credit_card"`
}

func (m MethodAmounts) Total() decimal.Decimal {
	return m.Cash.Add(m.Transfer).Add(m.Card)
}

// PlanTotal is one row of the membership-income-by-plan ranking.
type PlanTotal struct {
	Plan   string          `json:"plan"`
	Amount decimal.Decimal `json:"amount"`
}

// Breakdown is the ledger-derived aggregate for one session. It is a pure
// function of (opening_amount, ledger) and is recomputed on every request
// for open sessions.
type Breakdown struct {
	Income  MethodAmounts `json:"income_by_method"`
	Expense MethodAmounts `json:"expense_by_method"`
	// method → category → total, income and expense categories respectively.
	IncomeByCategory  map[string]map[string]decimal.Decimal `json:"income_by_method_and_category"`
	ExpenseByCategory map[string]map[string]decimal.Decimal `json:"expense_by_method_and_category"`
	MembershipByPlan  []PlanTotal                            `json:"membership_by_plan"`
	ExpectedCash      decimal.Decimal                        `json:"expected_cash"`
	ExpectedTransfer  decimal.Decimal                        `json:"expected_transfer"`
	ExpectedCard      decimal.Decimal                        `json:"expected_card"`
}

type SessionResponse struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	OperatorID    string          `json:"operator_id"`
	OpeningAmount decimal.Decimal `json:"opening_amount"`

	ClosingAmount   *decimal.Decimal `json:"closing_amount,omitempty"`
	ClosingCash     *decimal.Decimal `json:"closing_cash,omitempty"`
	ClosingTransfer *decimal.Decimal `json:"closing_transfer,omitempty"`
	ClosingCard     *decimal.Decimal `json:"closing_card,omitempty"`
	Difference      *decimal.Decimal `json:"difference,omitempty"`
	Balanced        *bool            `json:"balanced,omitempty"`
	Notes           *string          `json:"notes,omitempty"`

	OpenedAt string  `json:"opened_at"`
	ClosedAt *string `json:"closed_at,omitempty"`
}

// SessionReportResponse is the session detail view: the session plus its
// live (open) or final (closed) breakdown.
type SessionReportResponse struct {
	Session   SessionResponse `json:"session"`
	Breakdown *Breakdown      `json:"breakdown,omitempty"`
}
