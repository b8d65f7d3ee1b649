package service

import (
	"github.com/shopspring/decimal"

	"gymadmin/internal/apperr"
	"gymadmin/internal/dto"
)

// balancedTolerance: closings whose absolute difference is below one cent
// are reported balanced. The raw difference (sub-cent residual included)
// is still persisted for audit.
var balancedTolerance = decimal.New(1, -2)

// ClosingSnapshot is the reconciliation result persisted atomically with
// the closed status. Immutable once written.
type ClosingSnapshot struct {
	ClosingAmount   decimal.Decimal
	ClosingCash     decimal.Decimal
	ClosingTransfer decimal.Decimal
	ClosingCard     decimal.Decimal
	TotalExpected   decimal.Decimal
	Difference      decimal.Decimal
	Balanced        bool
	Notes           *string
}

// Reconcile compares the operator's entered counts against the
// ledger-derived expectation. Positive difference = surplus, negative =
// shortage. The difference keeps whatever precision the operator entered;
// rounding it here would hide exactly the residual the audit trail needs.
func Reconcile(b *dto.Breakdown, entered dto.EnteredAmounts, notes *string) (*ClosingSnapshot, error) {
	cash := orZero(entered.Cash)
	transfer := orZero(entered.Transfer)
	card := orZero(entered.Card)

	if !cash.IsPositive() && !transfer.IsPositive() && !card.IsPositive() {
		return nil, apperr.Validation("debe declararse al menos un monto de cierre mayor a cero")
	}

	totalEntered := cash.Add(transfer).Add(card)
	totalExpected := b.ExpectedCash.Add(b.ExpectedTransfer).Add(b.ExpectedCard)
	difference := totalEntered.Sub(totalExpected)

	return &ClosingSnapshot{
		ClosingAmount:   totalEntered,
		ClosingCash:     cash,
		ClosingTransfer: transfer,
		ClosingCard:     card,
		TotalExpected:   totalExpected,
		Difference:      difference,
		Balanced:        Balanced(difference),
		Notes:           notes,
	}, nil
}

// Balanced reports whether a difference is within the display tolerance
// (|difference| < 0.01). Balanced closings are displayed as zero but the
// stored difference is never overwritten.
func Balanced(difference decimal.Decimal) bool {
	return difference.Abs().LessThan(balancedTolerance)
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
