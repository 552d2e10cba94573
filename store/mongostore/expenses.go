package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/store"
)

var expenseSortFields = map[string]string{
	"date":      "date",
	"amount":    "amount",
	"type":      "type",
	"createdAt": "created_at",
	"status":    "status",
}

// expenseFilter builds the query document for an expense listing.
func expenseFilter(f store.ExpenseFilter) bson.M {
	filter := bson.M{}
	if f.Event != nil {
		filter["event"] = *f.Event
	}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Reimbursed != nil {
		filter["reimbursed"] = *f.Reimbursed
	}
	if f.StartDate != nil || f.EndDate != nil {
		date := bson.M{}
		if f.StartDate != nil {
			date["$gte"] = *f.StartDate
		}
		if f.EndDate != nil {
			date["$lte"] = *f.EndDate
		}
		filter["date"] = date
	}
	if f.VisibleTo != nil {
		events := f.VisibleEvents
		if events == nil {
			events = []primitive.ObjectID{}
		}
		filter["$or"] = bson.A{
			bson.M{"paid_by": *f.VisibleTo},
			bson.M{"event": bson.M{"$in": events}},
		}
	}
	return filter
}

// totalsPipeline sums amounts over the filtered selection, split on the
// reimbursed flag.
func totalsPipeline(filter bson.M) bson.A {
	return bson.A{
		bson.M{"$match": filter},
		bson.M{"$group": bson.M{
			"_id":          nil,
			"total_amount": bson.M{"$sum": "$amount"},
			"reimbursed_amount": bson.M{"$sum": bson.M{
				"$cond": bson.A{"$reimbursed", "$amount", 0},
			}},
		}},
	}
}

func expensePatchSet(p models.ExpensePatch, at time.Time) bson.M {
	set := bson.M{"updated_at": at}
	if p.Type != nil {
		set["type"] = *p.Type
	}
	if p.Amount != nil {
		set["amount"] = *p.Amount
	}
	if p.Currency != nil {
		set["currency"] = *p.Currency
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.PaidTo != nil {
		set["paid_to"] = *p.PaidTo
	}
	if p.PaymentMethod != nil {
		set["payment_method"] = *p.PaymentMethod
	}
	if p.Date != nil {
		set["date"] = *p.Date
	}
	if p.Notes != nil {
		set["notes"] = *p.Notes
	}
	if p.Tags != nil {
		set["tags"] = p.Tags
	}
	if p.Receipt != nil {
		set["receipt"] = p.Receipt
	}
	return set
}

// transitionUpdate mirrors ExpenseTransition.Apply as a $set document.
func transitionUpdate(t models.ExpenseTransition) bson.M {
	set := bson.M{"status": t.To, "updated_at": t.At}
	switch t.To {
	case models.ExpenseApproved:
		set["approved_by"] = t.By
		set["approved_at"] = t.At
	case models.ExpenseReimbursed:
		set["reimbursed"] = true
		set["reimbursed_by"] = t.By
		set["reimbursed_at"] = t.At
	}
	return bson.M{"$set": set}
}

// ---------------- EXPENSES ----------------

func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID.IsZero() {
		expense.ID = primitive.NewObjectID()
	}
	_, err := s.col(colExpenses).InsertOne(ctx, expense)
	return mapErr(err)
}

func (s *Store) GetExpense(ctx context.Context, id primitive.ObjectID) (*models.Expense, error) {
	var expense models.Expense
	if err := s.col(colExpenses).FindOne(ctx, bson.M{"_id": id}).Decode(&expense); err != nil {
		return nil, mapErr(err)
	}
	return &expense, nil
}

func (s *Store) ListExpenses(ctx context.Context, f store.ExpenseFilter) ([]models.Expense, int64, error) {
	sort := sortDoc(f.Sort, expenseSortFields, bson.D{{Key: "date", Value: -1}})
	return list[models.Expense](ctx, s.col(colExpenses), expenseFilter(f), findOptions(f.Page, sort))
}

func (s *Store) ExpenseTotals(ctx context.Context, f store.ExpenseFilter) (models.Totals, error) {
	cursor, err := s.col(colExpenses).Aggregate(ctx, totalsPipeline(expenseFilter(f)))
	if err != nil {
		return models.Totals{}, err
	}
	var rows []struct {
		TotalAmount      float64 `bson:"total_amount"`
		ReimbursedAmount float64 `bson:"reimbursed_amount"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return models.Totals{}, err
	}
	if len(rows) == 0 {
		return models.Totals{}, nil
	}
	return models.Totals{
		TotalAmount:      rows[0].TotalAmount,
		ReimbursedAmount: rows[0].ReimbursedAmount,
		PendingAmount:    rows[0].TotalAmount - rows[0].ReimbursedAmount,
	}, nil
}

func (s *Store) EventExpenses(ctx context.Context, eventID primitive.ObjectID) ([]models.Expense, error) {
	cursor, err := s.col(colExpenses).Find(ctx, bson.M{"event": eventID})
	if err != nil {
		return nil, err
	}
	out := []models.Expense{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// expenseWriteFilter matches id only while the guard holds.
func expenseWriteFilter(id primitive.ObjectID, g store.ExpenseGuard) bson.M {
	filter := bson.M{"_id": id}
	if g.Unreimbursed {
		filter["reimbursed"] = bson.M{"$ne": true}
	}
	return filter
}

// guardMiss tells a missing expense apart from one the guard rejected.
func (s *Store) guardMiss(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.GetExpense(ctx, id); err != nil {
		return err
	}
	return store.ErrConflict
}

func (s *Store) UpdateExpense(ctx context.Context, id primitive.ObjectID, patch models.ExpensePatch, at time.Time, guard store.ExpenseGuard) (*models.Expense, error) {
	updated, err := updateAndFetch[models.Expense](ctx, s.col(colExpenses), expenseWriteFilter(id, guard), bson.M{"$set": expensePatchSet(patch, at)})
	if err == store.ErrNotFound && guard.Unreimbursed {
		return nil, s.guardMiss(ctx, id)
	}
	return updated, err
}

func (s *Store) TransitionExpense(ctx context.Context, id primitive.ObjectID, t models.ExpenseTransition) (*models.Expense, bool, error) {
	filter := bson.M{"_id": id, "status": bson.M{"$in": t.From}}
	updated, err := updateAndFetch[models.Expense](ctx, s.col(colExpenses), filter, transitionUpdate(t))
	if err == nil {
		return updated, true, nil
	}
	if err != store.ErrNotFound {
		return nil, false, err
	}
	// No match: either the expense is gone or its status moved on.
	current, err := s.GetExpense(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id primitive.ObjectID, guard store.ExpenseGuard) error {
	err := deleteOne(ctx, s.col(colExpenses), expenseWriteFilter(id, guard))
	if err == store.ErrNotFound && guard.Unreimbursed {
		return s.guardMiss(ctx, id)
	}
	return err
}

func (s *Store) DeleteEventExpenses(ctx context.Context, eventID primitive.ObjectID) (int64, error) {
	res, err := s.col(colExpenses).DeleteMany(ctx, bson.M{"event": eventID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
