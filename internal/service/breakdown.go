package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"gymadmin/internal/dto"
	"gymadmin/internal/model"
)

// The aggregator works in an int64 cents domain. Amounts are rounded
// half-up to 2 decimals when they enter, summed as integers, and converted
// back to decimals at the edges, so repeated aggregation can never drift.

func toCents(d decimal.Decimal) int64 {
	// decimal.Round rounds half away from zero; movement amounts are
	// strictly positive magnitudes, so this is half-up.
	return d.Round(2).Shift(2).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// methodCents accumulates cents per payment instrument.
type methodCents map[string]int64

func (mc methodCents) amounts() dto.MethodAmounts {
	return dto.MethodAmounts{
		Cash:     fromCents(mc[model.MethodCash]),
		Transfer: fromCents(mc[model.MethodTransfer]),
		Card:     fromCents(mc[model.MethodCard]),
	}
}

// ComputeBreakdown aggregates a session's ledger into per-instrument and
// per-category totals and the expected balance per instrument. It is a pure
// function of (openingAmount, movements): identical inputs always produce
// identical output, so it serves both the live dashboard and the historical
// detail view.
func ComputeBreakdown(openingAmount decimal.Decimal, movements []model.Movement) *dto.Breakdown {
	income := methodCents{}
	expense := methodCents{}
	incomeByCat := map[string]map[string]int64{}
	expenseByCat := map[string]map[string]int64{}
	planCents := map[string]int64{}

	for i := range movements {
		m := &movements[i]
		cat := Classify(m)
		cents := toCents(m.Amount)
		method := m.PaymentMethod

		if cat.IsIncome() {
			income[method] += cents
			bump(incomeByCat, method, string(cat), cents)
			if cat == CategoryMembershipIncome {
				planCents[PlanLabel(m)] += cents
			}
		} else {
			expense[method] += cents
			bump(expenseByCat, method, string(cat), cents)
		}
	}

	openingCents := toCents(openingAmount)

	b := &dto.Breakdown{
		Income:            income.amounts(),
		Expense:           expense.amounts(),
		IncomeByCategory:  toDecimalGrid(incomeByCat),
		ExpenseByCategory: toDecimalGrid(expenseByCat),
		MembershipByPlan:  rankPlans(planCents),
		// Only cash carries the opening float.
		ExpectedCash:     fromCents(openingCents + income[model.MethodCash] - expense[model.MethodCash]),
		ExpectedTransfer: fromCents(income[model.MethodTransfer] - expense[model.MethodTransfer]),
		ExpectedCard:     fromCents(income[model.MethodCard] - expense[model.MethodCard]),
	}
	return b
}

func bump(grid map[string]map[string]int64, method, cat string, cents int64) {
	byCat, ok := grid[method]
	if !ok {
		byCat = map[string]int64{}
		grid[method] = byCat
	}
	byCat[cat] += cents
}

func toDecimalGrid(grid map[string]map[string]int64) map[string]map[string]decimal.Decimal {
	out := make(map[string]map[string]decimal.Decimal, len(grid))
	for method, byCat := range grid {
		row := make(map[string]decimal.Decimal, len(byCat))
		for cat, cents := range byCat {
			row[cat] = fromCents(cents)
		}
		out[method] = row
	}
	return out
}

// rankPlans sorts plan totals descending by amount. Ties break by plan name
// so repeated calls over the same ledger return identical output.
func rankPlans(planCents map[string]int64) []dto.PlanTotal {
	type row struct {
		plan  string
		cents int64
	}
	rows := make([]row, 0, len(planCents))
	for plan, cents := range planCents {
		rows = append(rows, row{plan, cents})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].cents != rows[j].cents {
			return rows[i].cents > rows[j].cents
		}
		return rows[i].plan < rows[j].plan
	})

	out := make([]dto.PlanTotal, len(rows))
	for i, r := range rows {
		out[i] = dto.PlanTotal{Plan: r.plan, Amount: fromCents(r.cents)}
	}
	return out
}
