package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/store"
)

const (
	food      = "Food & Catering"
	transport = "Transportation"
)

// joinedMember returns a member already on the event roster.
func (f *fixture) joinedMember(t *testing.T, eventID primitive.ObjectID) models.Actor {
	t.Helper()
	m := f.member(t)
	_, err := f.memberships.Join(context.Background(), m, eventID, "")
	require.NoError(t, err)
	return m
}

func TestCreateExpense_Defaults(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, f.organizer, 10)
	m := f.joinedMember(t, event.ID)

	x := f.createExpense(t, m, event.ID, food, 500)
	assert.Equal(t, models.ExpensePending, x.Status)
	assert.False(t, x.Reimbursed)
	assert.Equal(t, "INR", x.Currency)
	assert.Equal(t, "cash", x.PaymentMethod)
	assert.Equal(t, m.UserID, x.PaidBy)
	assert.Equal(t, testNow, x.Date)
	assert.Equal(t, []string{}, x.Tags)
}

func TestCreateExpense_Validation(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, f.organizer, 10)

	_, err := f.expenses.Create(context.Background(), f.organizer, CreateExpenseInput{
		Event: event.ID, Type: "Fireworks", Amount: -1, Currency: "GBP",
	})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	fields := map[string]bool{}
	for _, fe := range verr.Fields {
		fields[fe.Field] = true
	}
	assert.True(t, fields["type"])
	assert.True(t, fields["amount"])
	assert.True(t, fields["currency"])
}

func TestCreateExpense_OutsiderForbidden(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, f.organizer, 10)

	_, err := f.expenses.Create(context.Background(), f.member(t), CreateExpenseInput{Event: event.ID, Type: food, Amount: 10})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.expenses.Create(context.Background(), f.organizer, CreateExpenseInput{Event: primitive.NewObjectID(), Type: food, Amount: 10})
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)
	x := f.createExpense(t, f.joinedMember(t, event.ID), event.ID, food, 500)

	approved, err := f.expenses.Approve(ctx, f.organizer, x.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, f.organizer.UserID, *approved.ApprovedBy)
	assert.Equal(t, testNow, *approved.ApprovedAt)

	_, err = f.expenses.Approve(ctx, f.organizer, x.ID)
	assert.ErrorIs(t, err, ErrAlreadyApproved)
}

func TestApprove_MemberForbidden(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, f.organizer, 10)
	m := f.joinedMember(t, event.ID)
	x := f.createExpense(t, m, event.ID, food, 500)

	_, err := f.expenses.Approve(context.Background(), m, x.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMarkReimbursed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)
	m := f.joinedMember(t, event.ID)
	x := f.createExpense(t, m, event.ID, food, 500)

	_, err := f.expenses.MarkReimbursed(ctx, f.organizer, x.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	done, err := f.expenses.MarkReimbursed(ctx, f.admin, x.ID)
	require.NoError(t, err)
	assert.True(t, done.Reimbursed)
	assert.Equal(t, models.ExpenseReimbursed, done.Status)
	assert.Equal(t, f.admin.UserID, *done.ReimbursedBy)
	assert.Equal(t, testNow, *done.ReimbursedAt)

	_, err = f.expenses.MarkReimbursed(ctx, f.admin, x.ID)
	assert.ErrorIs(t, err, ErrAlreadyReimbursed)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "Your expense has been reimbursed", f.mailer.sent[0].subject)
}

func TestMarkReimbursed_AfterApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)
	x := f.createExpense(t, f.organizer, event.ID, transport, 120)

	_, err := f.expenses.Approve(ctx, f.admin, x.ID)
	require.NoError(t, err)
	done, err := f.expenses.MarkReimbursed(ctx, f.admin, x.ID)
	require.NoError(t, err)
	assert.True(t, done.Reimbursed)
	assert.NotNil(t, done.ApprovedBy)
}

func TestMarkReimbursed_MailFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp down")
	event := f.createEvent(t, f.organizer, 10)
	x := f.createExpense(t, f.organizer, event.ID, food, 10)

	done, err := f.expenses.MarkReimbursed(context.Background(), f.admin, x.ID)
	require.NoError(t, err)
	assert.True(t, done.Reimbursed)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)

	pending := f.createExpense(t, f.organizer, event.ID, food, 10)
	rejected, err := f.expenses.Reject(ctx, f.organizer, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseRejected, rejected.Status)

	_, err = f.expenses.Approve(ctx, f.organizer, pending.ID)
	assert.ErrorIs(t, err, ErrAlreadyRejected)
	_, err = f.expenses.MarkReimbursed(ctx, f.admin, pending.ID)
	assert.ErrorIs(t, err, ErrAlreadyRejected)

	approved := f.createExpense(t, f.organizer, event.ID, food, 20)
	_, err = f.expenses.Approve(ctx, f.organizer, approved.ID)
	require.NoError(t, err)
	rejected, err = f.expenses.Reject(ctx, f.admin, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseRejected, rejected.Status)
}

func TestReject_ReimbursedIsFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)
	x := f.createExpense(t, f.organizer, event.ID, food, 10)

	_, err := f.expenses.MarkReimbursed(ctx, f.admin, x.ID)
	require.NoError(t, err)

	_, err = f.expenses.Reject(ctx, f.admin, x.ID)
	assert.ErrorIs(t, err, ErrAlreadyReimbursed)

	stored, err := f.expenses.Get(ctx, f.admin, x.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseReimbursed, stored.Status)
	assert.True(t, stored.Reimbursed)
}

func TestTransition_UnknownExpense(t *testing.T) {
	f := newFixture(t)
	_, err := f.expenses.Approve(context.Background(), f.admin, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrExpenseNotFound)
}

func TestUpdateExpense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)
	m := f.joinedMember(t, event.ID)
	x := f.createExpense(t, m, event.ID, food, 100)

	amount := 250.0
	updated, err := f.expenses.Update(ctx, m, x.ID, models.ExpensePatch{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, 250.0, updated.Amount)

	_, err = f.expenses.Update(ctx, f.organizer, x.ID, models.ExpensePatch{Amount: &amount})
	assert.ErrorIs(t, err, ErrForbidden)

	bad := "Fireworks"
	_, err = f.expenses.Update(ctx, m, x.ID, models.ExpensePatch{Type: &bad})
	assert.True(t, IsValidation(err))
}

func TestReimbursedExpenseIsLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)
	m := f.joinedMember(t, event.ID)
	x := f.createExpense(t, m, event.ID, food, 100)
	_, err := f.expenses.MarkReimbursed(ctx, f.admin, x.ID)
	require.NoError(t, err)

	notes := "late"
	_, err = f.expenses.Update(ctx, m, x.ID, models.ExpensePatch{Notes: &notes})
	assert.ErrorIs(t, err, ErrReimbursedLocked)
	assert.ErrorIs(t, f.expenses.Delete(ctx, m, x.ID), ErrReimbursedLocked)
	_, err = f.expenses.AttachReceipt(ctx, m, x.ID, reader("jpeg"), "bill.jpg")
	assert.ErrorIs(t, err, ErrReimbursedLocked)

	updated, err := f.expenses.Update(ctx, f.admin, x.ID, models.ExpensePatch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "late", updated.Notes)
	require.NoError(t, f.expenses.Delete(ctx, f.admin, x.ID))
}

func TestReimbursementBetweenReadAndWriteKeepsLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)
	m := f.joinedMember(t, event.ID)

	reimburseOnRead := func(id primitive.ObjectID) {
		_, err := f.expenses.Approve(ctx, f.admin, id)
		require.NoError(t, err)
		f.hooks.afterGetExpense = func() {
			_, err := f.expenses.MarkReimbursed(ctx, f.admin, id)
			require.NoError(t, err)
		}
	}

	x := f.createExpense(t, m, event.ID, food, 100)
	reimburseOnRead(x.ID)
	amount := 999.0
	_, err := f.expenses.Update(ctx, m, x.ID, models.ExpensePatch{Amount: &amount})
	assert.ErrorIs(t, err, ErrReimbursedLocked)
	stored, err := f.store.GetExpense(ctx, x.ID)
	require.NoError(t, err)
	assert.True(t, stored.Reimbursed)
	assert.Equal(t, 100.0, stored.Amount)

	y := f.createExpense(t, m, event.ID, transport, 40)
	reimburseOnRead(y.ID)
	assert.ErrorIs(t, f.expenses.Delete(ctx, m, y.ID), ErrReimbursedLocked)
	_, err = f.store.GetExpense(ctx, y.ID)
	assert.NoError(t, err)

	z := f.createExpense(t, m, event.ID, food, 60)
	reimburseOnRead(z.ID)
	_, err = f.expenses.AttachReceipt(ctx, m, z.ID, reader("jpeg"), "bill.jpg")
	assert.ErrorIs(t, err, ErrReimbursedLocked)
	require.Len(t, f.uploader.uploaded, 1)
	assert.Equal(t, f.uploader.uploaded, f.uploader.deleted)
	stored, err = f.store.GetExpense(ctx, z.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Receipt)
}

func TestDeleteExpense_RemovesReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)
	x := f.createExpense(t, f.organizer, event.ID, food, 100)

	withReceipt, err := f.expenses.AttachReceipt(ctx, f.organizer, x.ID, reader("pdf"), "bill.pdf")
	require.NoError(t, err)
	require.NotNil(t, withReceipt.Receipt)
	assert.Equal(t, "bill.pdf", withReceipt.Receipt.Filename)

	require.NoError(t, f.expenses.Delete(ctx, f.organizer, x.ID))
	assert.Equal(t, []string{withReceipt.Receipt.URL}, f.uploader.deleted)

	_, err = f.expenses.Get(ctx, f.admin, x.ID)
	assert.ErrorIs(t, err, ErrExpenseNotFound)
}

func TestAttachReceipt_ReplacesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)
	x := f.createExpense(t, f.organizer, event.ID, food, 100)

	first, err := f.expenses.AttachReceipt(ctx, f.organizer, x.ID, reader("a"), "a.jpg")
	require.NoError(t, err)
	second, err := f.expenses.AttachReceipt(ctx, f.organizer, x.ID, reader("b"), "b.jpg")
	require.NoError(t, err)

	assert.NotEqual(t, first.Receipt.URL, second.Receipt.URL)
	assert.Equal(t, []string{first.Receipt.URL}, f.uploader.deleted)
}

func TestAttachReceipt_UploadFailure(t *testing.T) {
	f := newFixture(t)
	f.uploader.fail = true
	event := f.createEvent(t, f.organizer, 10)
	x := f.createExpense(t, f.organizer, event.ID, food, 100)

	_, err := f.expenses.AttachReceipt(context.Background(), f.organizer, x.ID, reader("a"), "a.jpg")
	assert.Error(t, err)

	stored, _ := f.expenses.Get(context.Background(), f.organizer, x.ID)
	assert.Nil(t, stored.Receipt)
}

func TestGetExpense_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)
	payer := f.joinedMember(t, event.ID)
	peer := f.joinedMember(t, event.ID)
	x := f.createExpense(t, payer, event.ID, food, 100)

	_, err := f.expenses.Get(ctx, peer, x.ID)
	assert.NoError(t, err)
	_, err = f.expenses.Get(ctx, f.member(t), x.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// The payer keeps access after leaving the event.
	_, err = f.memberships.Leave(ctx, payer, event.ID)
	require.NoError(t, err)
	_, err = f.expenses.Get(ctx, payer, x.ID)
	assert.NoError(t, err)
}

func TestListExpenses_ScopingAndTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.createEvent(t, f.organizer, 10)
	other := f.createEvent(t, f.admin, 10)
	m := f.joinedMember(t, mine.ID)

	f.createExpense(t, m, mine.ID, food, 100)
	f.createExpense(t, f.organizer, mine.ID, transport, 50.5)
	hidden := f.createExpense(t, f.admin, other.ID, food, 999)

	list, err := f.expenses.List(ctx, m, store.ExpenseFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)
	for _, x := range list.Items {
		assert.NotEqual(t, hidden.ID, x.ID)
	}
	assert.Equal(t, 150.5, list.Totals.TotalAmount)
	assert.Equal(t, 150.5, list.Totals.PendingAmount)
	assert.Zero(t, list.Totals.ReimbursedAmount)

	all, err := f.expenses.List(ctx, f.admin, store.ExpenseFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.Total)
}

func TestListExpenses_PagedTotalsCoverWholeSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)
	for i := 0; i < 5; i++ {
		f.createExpense(t, f.organizer, event.ID, food, 10)
	}

	list, err := f.expenses.List(ctx, f.admin, store.ExpenseFilter{Page: store.Page{Page: 2, Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
	assert.EqualValues(t, 5, list.Total)
	assert.Equal(t, 50.0, list.Totals.TotalAmount)

	rows, err := f.expenses.Export(ctx, f.admin, store.ExpenseFilter{Page: store.Page{Page: 2, Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)
	m := f.joinedMember(t, event.ID)

	f.createExpense(t, m, event.ID, food, 0.1)
	paid := f.createExpense(t, m, event.ID, food, 0.2)
	f.createExpense(t, f.organizer, event.ID, transport, 40)
	_, err := f.expenses.MarkReimbursed(ctx, f.admin, paid.ID)
	require.NoError(t, err)

	rows, err := f.expenses.Summary(ctx, m, event.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, models.TypeSummary{Type: food, TotalAmount: 0.3, Count: 2, ReimbursedAmount: 0.2, PendingAmount: 0.1}, rows[0])
	assert.Equal(t, models.TypeSummary{Type: transport, TotalAmount: 40, Count: 1, ReimbursedAmount: 0, PendingAmount: 40}, rows[1])
}

func TestSummary_EmptyEvent(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, f.organizer, 10)

	rows, err := f.expenses.Summary(context.Background(), f.organizer, event.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSummary_Forbidden(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, f.organizer, 10)

	_, err := f.expenses.Summary(context.Background(), f.member(t), event.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSummary_CachedUntilExpensesChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)
	x := f.createExpense(t, f.organizer, event.ID, food, 100)

	_, err := f.expenses.Summary(ctx, f.organizer, event.ID)
	require.NoError(t, err)
	rows, err := f.expenses.Summary(ctx, f.organizer, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)
	assert.Equal(t, 100.0, rows[0].PendingAmount)

	before := f.cache.invalidated
	_, err = f.expenses.MarkReimbursed(ctx, f.admin, x.ID)
	require.NoError(t, err)
	assert.Equal(t, before+1, f.cache.invalidated)

	rows, err = f.expenses.Summary(ctx, f.organizer, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)
	assert.Equal(t, 100.0, rows[0].ReimbursedAmount)
	assert.Zero(t, rows[0].PendingAmount)
}

func TestSummary_NotCachedWhenExpensesChangeMidComputation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 10)
	f.createExpense(t, f.organizer, event.ID, food, 100)

	f.hooks.afterEventExpenses = func() {
		f.createExpense(t, f.organizer, event.ID, food, 50)
	}
	rows, err := f.expenses.Summary(ctx, f.organizer, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rows[0].TotalAmount)
	assert.Equal(t, 1, f.cache.stale)

	rows, err = f.expenses.Summary(ctx, f.organizer, event.ID)
	require.NoError(t, err)
	assert.Zero(t, f.cache.hits)
	assert.Equal(t, 150.0, rows[0].TotalAmount)
	assert.Equal(t, 2, rows[0].Count)

	rows, err = f.expenses.Summary(ctx, f.organizer, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)
	assert.Equal(t, 150.0, rows[0].TotalAmount)
}

func TestExpenseScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, f.organizer, 5)
	m := f.joinedMember(t, event.ID)

	x := f.createExpense(t, m, event.ID, food, 1200)
	x, err := f.expenses.Approve(ctx, f.organizer, x.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseApproved, x.Status)

	x, err = f.expenses.MarkReimbursed(ctx, f.admin, x.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseReimbursed, x.Status)

	_, err = f.expenses.Reject(ctx, f.admin, x.ID)
	assert.ErrorIs(t, err, ErrAlreadyReimbursed)

	rows, err := f.expenses.Summary(ctx, f.organizer, event.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1200.0, rows[0].ReimbursedAmount)
}
