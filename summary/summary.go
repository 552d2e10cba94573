// Package summary computes read-side expense aggregates. Money is summed in
// decimal so that totals of amounts like 0.1 + 0.2 come out exact.
package summary

import (
	"sort"

	"github.com/shopspring/decimal"

	models "github.com/phillip/isaithondar-go/models"
)

type bucket struct {
	total      decimal.Decimal
	reimbursed decimal.Decimal
	count      int
}

func (b *bucket) add(x *models.Expense) {
	amount := decimal.NewFromFloat(x.Amount)
	b.total = b.total.Add(amount)
	if x.Reimbursed {
		b.reimbursed = b.reimbursed.Add(amount)
	}
	b.count++
}

// ByType groups expenses by type. Rows are ordered by type name; a type with no
// reimbursed entries reports reimbursedAmount 0 and pendingAmount == totalAmount.
func ByType(expenses []models.Expense) []models.TypeSummary {
	buckets := map[string]*bucket{}
	for i := range expenses {
		x := &expenses[i]
		b, ok := buckets[x.Type]
		if !ok {
			b = &bucket{}
			buckets[x.Type] = b
		}
		b.add(x)
	}

	rows := make([]models.TypeSummary, 0, len(buckets))
	for typ, b := range buckets {
		rows = append(rows, models.TypeSummary{
			Type:             typ,
			TotalAmount:      b.total.InexactFloat64(),
			Count:            b.count,
			ReimbursedAmount: b.reimbursed.InexactFloat64(),
			PendingAmount:    b.total.Sub(b.reimbursed).InexactFloat64(),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Type < rows[j].Type })
	return rows
}

// Totals sums a whole selection regardless of type.
func Totals(expenses []models.Expense) models.Totals {
	var b bucket
	for i := range expenses {
		b.add(&expenses[i])
	}
	return models.Totals{
		TotalAmount:      b.total.InexactFloat64(),
		ReimbursedAmount: b.reimbursed.InexactFloat64(),
		PendingAmount:    b.total.Sub(b.reimbursed).InexactFloat64(),
	}
}
