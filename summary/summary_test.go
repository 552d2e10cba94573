package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "github.com/phillip/isaithondar-go/models"
)

func TestByType_FoodExample(t *testing.T) {
	expenses := []models.Expense{
		{Type: "Food", Amount: 100},
		{Type: "Food", Amount: 200, Reimbursed: true, Status: models.ExpenseReimbursed},
		{Type: "Food", Amount: 300, Status: models.ExpensePending},
	}

	rows := ByType(expenses)

	require.Len(t, rows, 1)
	assert.Equal(t, models.TypeSummary{
		Type:             "Food",
		TotalAmount:      600,
		Count:            3,
		ReimbursedAmount: 200,
		PendingAmount:    400,
	}, rows[0])
}

func TestByType_TypeWithoutReimbursements(t *testing.T) {
	rows := ByType([]models.Expense{
		{Type: "Transportation", Amount: 50},
		{Type: "Sound System", Amount: 75.5, Reimbursed: true},
		{Type: "Transportation", Amount: 25},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, "Sound System", rows[0].Type)
	assert.Equal(t, 75.5, rows[0].PendingAmount+rows[0].ReimbursedAmount)
	assert.Equal(t, "Transportation", rows[1].Type)
	assert.Equal(t, 0.0, rows[1].ReimbursedAmount)
	assert.Equal(t, 75.0, rows[1].PendingAmount)
	assert.Equal(t, 2, rows[1].Count)
}

func TestByType_Empty(t *testing.T) {
	rows := ByType(nil)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestTotals_DecimalExact(t *testing.T) {
	totals := Totals([]models.Expense{
		{Amount: 0.1},
		{Amount: 0.2, Reimbursed: true},
	})
	assert.Equal(t, 0.3, totals.TotalAmount)
	assert.Equal(t, 0.2, totals.ReimbursedAmount)
	assert.Equal(t, 0.1, totals.PendingAmount)
}
