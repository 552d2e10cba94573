package memstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/store"
	"github.com/phillip/isaithondar-go/summary"
)

func cloneExpense(x *models.Expense) *models.Expense {
	c := *x
	c.Tags = append([]string(nil), x.Tags...)
	if x.Receipt != nil {
		r := *x.Receipt
		c.Receipt = &r
	}
	return &c
}

func (s *Store) CreateExpense(_ context.Context, expense *models.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expense.ID.IsZero() {
		expense.ID = primitive.NewObjectID()
	}
	if _, ok := s.expenses[expense.ID]; ok {
		return store.ErrDuplicate
	}
	s.expenses[expense.ID] = cloneExpense(expense)
	return nil
}

func (s *Store) GetExpense(_ context.Context, id primitive.ObjectID) (*models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	x, ok := s.expenses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneExpense(x), nil
}

func expenseMatches(x *models.Expense, f store.ExpenseFilter) bool {
	if f.VisibleTo != nil && x.PaidBy != *f.VisibleTo {
		visible := false
		for _, id := range f.VisibleEvents {
			if id == x.Event {
				visible = true
				break
			}
		}
		if !visible {
			return false
		}
	}
	if f.Event != nil && x.Event != *f.Event {
		return false
	}
	if f.Type != "" && x.Type != f.Type {
		return false
	}
	if f.Status != "" && x.Status != f.Status {
		return false
	}
	if f.Reimbursed != nil && x.Reimbursed != *f.Reimbursed {
		return false
	}
	if f.StartDate != nil && x.Date.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && x.Date.After(*f.EndDate) {
		return false
	}
	return true
}

func lessExpense(a, b *models.Expense, field string) (bool, bool) {
	switch field {
	case "date":
		return a.Date.Before(b.Date), true
	case "amount":
		return a.Amount < b.Amount, true
	case "type":
		return a.Type < b.Type, true
	case "createdAt":
		return a.CreatedAt.Before(b.CreatedAt), true
	case "status":
		return a.Status < b.Status, true
	}
	return false, false
}

func (s *Store) selectExpenses(f store.ExpenseFilter) []models.Expense {
	var out []models.Expense
	for _, x := range s.expenses {
		if expenseMatches(x, f) {
			out = append(out, *cloneExpense(x))
		}
	}
	return out
}

func (s *Store) ListExpenses(_ context.Context, f store.ExpenseFilter) ([]models.Expense, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.selectExpenses(f)
	sortBy(out, f.Sort, "-date", lessExpense)
	return paginate(out, f.Page), int64(len(out)), nil
}

func (s *Store) ExpenseTotals(_ context.Context, f store.ExpenseFilter) (models.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return summary.Totals(s.selectExpenses(f)), nil
}

func (s *Store) EventExpenses(_ context.Context, eventID primitive.ObjectID) ([]models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectExpenses(store.ExpenseFilter{Event: &eventID}), nil
}

func guardAllows(x *models.Expense, g store.ExpenseGuard) bool {
	return !(g.Unreimbursed && x.Reimbursed)
}

func (s *Store) UpdateExpense(_ context.Context, id primitive.ObjectID, patch models.ExpensePatch, at time.Time, guard store.ExpenseGuard) (*models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, ok := s.expenses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !guardAllows(x, guard) {
		return nil, store.ErrConflict
	}
	patch.Apply(x)
	x.UpdatedAt = at
	return cloneExpense(x), nil
}

func (s *Store) TransitionExpense(_ context.Context, id primitive.ObjectID, t models.ExpenseTransition) (*models.Expense, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, ok := s.expenses[id]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	if !t.Allows(x.Status) {
		return cloneExpense(x), false, nil
	}
	t.Apply(x)
	return cloneExpense(x), true, nil
}

func (s *Store) DeleteExpense(_ context.Context, id primitive.ObjectID, guard store.ExpenseGuard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, ok := s.expenses[id]
	if !ok {
		return store.ErrNotFound
	}
	if !guardAllows(x, guard) {
		return store.ErrConflict
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) DeleteEventExpenses(_ context.Context, eventID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, x := range s.expenses {
		if x.Event == eventID {
			delete(s.expenses, id)
			n++
		}
	}
	return n, nil
}
