package service

import (
	"strings"

	"gymadmin/internal/model"
)

// Category is the semantic class of a movement, derived — never stored.
type Category string

const (
	CategorySaleIncome         Category = "sale_income"
	CategoryMembershipIncome   Category = "membership_income"
	CategoryManualIncome       Category = "manual_income"
	CategorySaleReversal       Category = "sale_reversal"
	CategoryMembershipReversal Category = "membership_reversal"
	CategoryManualExpense      Category = "manual_expense"
)

// DefaultPlanLabel groups membership payments whose plan cannot be determined.
const DefaultPlanLabel = "Other"

// Origin categories the cancellation flows stamp on compensating expenses.
const (
	OriginSale       = "sale"
	OriginMembership = "membership"
)

// Reversal movements are recorded generically as expenses by the sale and
// membership cancellation flows. Newer records carry OriginCategory; older
// ones only have these phrases somewhere in the description.
var (
	saleReversalPhrases = []string{
		"cancelación venta",
		"cancelacion venta",
		"anulación venta",
		"anulacion venta",
		"venta cancelada",
	}
	membershipReversalPhrases = []string{
		"cancelación membresía",
		"cancelacion membresia",
		"anulación membresía",
		"anulacion membresia",
		"membresía cancelada",
		"membresia cancelada",
	}
)

// Classify maps a movement to exactly one category. It never fails: an
// expense that matches no reversal signal is a manual expense.
func Classify(m *model.Movement) Category {
	switch m.Type {
	case model.MovementSale:
		return CategorySaleIncome
	case model.MovementMembership:
		return CategoryMembershipIncome
	case model.MovementIncome:
		return CategoryManualIncome
	case model.MovementExpense:
		return classifyExpense(m)
	}
	// Unknown types cannot be appended (ledger validation), but a defaulted
	// record read from an old store still maps somewhere deterministic.
	return CategoryManualExpense
}

func classifyExpense(m *model.Movement) Category {
	if m.OriginCategory != nil {
		switch *m.OriginCategory {
		case OriginSale:
			return CategorySaleReversal
		case OriginMembership:
			return CategoryMembershipReversal
		}
	}
	desc := strings.ToLower(m.Description)
	for _, p := range saleReversalPhrases {
		if strings.Contains(desc, p) {
			return CategorySaleReversal
		}
	}
	for _, p := range membershipReversalPhrases {
		if strings.Contains(desc, p) {
			return CategoryMembershipReversal
		}
	}
	return CategoryManualExpense
}

// IsIncome reports whether c adds to the expected balance.
func (c Category) IsIncome() bool {
	switch c {
	case CategorySaleIncome, CategoryMembershipIncome, CategoryManualIncome:
		return true
	}
	return false
}

// PlanLabel extracts the membership plan for a membership payment.
// The structured PlanName wins; records created before that field existed
// fall back to the "<label> - <plan>" description convention.
func PlanLabel(m *model.Movement) string {
	if m.PlanName != nil && strings.TrimSpace(*m.PlanName) != "" {
		return strings.TrimSpace(*m.PlanName)
	}
	if _, after, found := strings.Cut(m.Description, " - "); found {
		if plan := strings.TrimSpace(after); plan != "" {
			return plan
		}
	}
	return DefaultPlanLabel
}
