package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/phillip/isaithondar-go/cache"
	"github.com/phillip/isaithondar-go/metrics"
	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/policy"
	"github.com/phillip/isaithondar-go/store"
	"github.com/phillip/isaithondar-go/summary"
	"github.com/phillip/isaithondar-go/utils"
)

// ExpenseService runs the expense lifecycle:
// pending -> approved -> reimbursed, and pending|approved -> rejected.
type ExpenseService struct {
	store    store.Store
	cache    cache.SummaryCache
	mailer   utils.Mailer
	uploader utils.Uploader
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      Clock
}

type ExpenseDeps struct {
	Store    store.Store
	Cache    cache.SummaryCache
	Mailer   utils.Mailer
	Uploader utils.Uploader
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	Now      Clock
}

func NewExpenseService(d ExpenseDeps) *ExpenseService {
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	if d.Mailer == nil {
		d.Mailer = utils.LogMailer{Log: d.Log}
	}
	if d.Uploader == nil {
		d.Uploader = utils.DisabledUploader{}
	}
	return &ExpenseService{
		store:    d.Store,
		cache:    d.Cache,
		mailer:   d.Mailer,
		uploader: d.Uploader,
		metrics:  d.Metrics,
		log:      d.Log,
		now:      orNow(d.Now),
	}
}

type CreateExpenseInput struct {
	Event         primitive.ObjectID
	Type          string
	Amount        float64
	Currency      string
	Description   string
	PaidTo        string
	PaymentMethod string
	Date          *time.Time
	Notes         string
	Tags          []string
}

func validateExpenseFields(typ *string, amount *float64, currency, method, description, paidTo, notes *string) error {
	var errs fieldErrors
	if typ != nil && !oneOf(*typ, models.ExpenseTypes) {
		errs.add("type", "Invalid expense type")
	}
	if amount != nil && *amount < 0 {
		errs.add("amount", "Amount must be a positive number")
	}
	if currency != nil && !oneOf(*currency, models.Currencies) {
		errs.add("currency", "Invalid currency")
	}
	if method != nil && !oneOf(*method, models.PaymentMethods) {
		errs.add("paymentMethod", "Invalid payment method")
	}
	if description != nil && length(*description) > 500 {
		errs.add("description", "Description cannot exceed 500 characters")
	}
	if paidTo != nil && length(*paidTo) > 200 {
		errs.add("paidTo", "Paid to cannot exceed 200 characters")
	}
	if notes != nil && length(*notes) > 500 {
		errs.add("notes", "Notes cannot exceed 500 characters")
	}
	return errs.err()
}

// Create records an expense paid by the actor against an event they can access.
func (s *ExpenseService) Create(ctx context.Context, actor models.Actor, in CreateExpenseInput) (*models.Expense, error) {
	if in.Currency == "" {
		in.Currency = "INR"
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = "cash"
	}
	if err := validateExpenseFields(&in.Type, &in.Amount, &in.Currency, &in.PaymentMethod, &in.Description, &in.PaidTo, &in.Notes); err != nil {
		return nil, err
	}

	event, err := getEvent(ctx, s.store, in.Event)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccessEventScopedResource(actor, event) {
		return nil, ErrForbidden
	}

	now := s.now()
	date := now
	if in.Date != nil {
		date = *in.Date
	}
	expense := &models.Expense{
		ID:            primitive.NewObjectID(),
		Event:         in.Event,
		Type:          in.Type,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Description:   in.Description,
		PaidBy:        actor.UserID,
		PaidTo:        in.PaidTo,
		PaymentMethod: in.PaymentMethod,
		Date:          date,
		Status:        models.ExpensePending,
		Notes:         in.Notes,
		Tags:          nonNil(normalizeTags(in.Tags)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return nil, err
	}
	s.invalidate(ctx, expense.Event)
	s.log.Info("expense created",
		zap.String("expense_id", expense.ID.Hex()),
		zap.String("event_id", expense.Event.Hex()),
		zap.String("user_id", actor.UserID.Hex()))
	return expense, nil
}

// Get returns an expense the actor paid for or whose event they can access.
func (s *ExpenseService) Get(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Expense, error) {
	expense, err := getExpense(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if policy.CanManageExpense(actor, expense) {
		return expense, nil
	}
	event, err := s.store.GetEvent(ctx, expense.Event)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if !policy.CanViewExpense(actor, expense, event) {
		return nil, ErrForbidden
	}
	return expense, nil
}

// ExpenseList is one page of expenses plus totals over the whole selection.
type ExpenseList struct {
	Items  []models.Expense
	Total  int64
	Totals models.Totals
}

// List scopes non-admins to expenses they paid or that belong to events they
// created or joined.
func (s *ExpenseService) List(ctx context.Context, actor models.Actor, f store.ExpenseFilter) (*ExpenseList, error) {
	if !actor.IsAdmin() {
		ids, err := s.store.EventIDsForUser(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		f.VisibleTo = &actor.UserID
		f.VisibleEvents = ids
	}
	items, total, err := s.store.ListExpenses(ctx, f)
	if err != nil {
		return nil, err
	}
	totals, err := s.store.ExpenseTotals(ctx, f)
	if err != nil {
		return nil, err
	}
	return &ExpenseList{Items: items, Total: total, Totals: totals}, nil
}

// Export returns the full scoped selection, ignoring paging.
func (s *ExpenseService) Export(ctx context.Context, actor models.Actor, f store.ExpenseFilter) ([]models.Expense, error) {
	f.Page = store.Page{}
	list, err := s.List(ctx, actor, f)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// authorizeChange applies the shared rule for update, delete and receipts:
// admin or payer, and only admins may touch a reimbursed expense.
func authorizeChange(actor models.Actor, expense *models.Expense) error {
	if !policy.CanManageExpense(actor, expense) {
		return ErrForbidden
	}
	if expense.Reimbursed && !actor.IsAdmin() {
		return ErrReimbursedLocked
	}
	return nil
}

// changeGuard repeats the reimbursed lock at write time, so a reimbursement
// landing after authorizeChange still blocks non-admins.
func changeGuard(actor models.Actor) store.ExpenseGuard {
	return store.ExpenseGuard{Unreimbursed: !actor.IsAdmin()}
}

func translateWrite(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return ErrReimbursedLocked
	}
	return translate(err, ErrExpenseNotFound)
}

func (s *ExpenseService) Update(ctx context.Context, actor models.Actor, id primitive.ObjectID, patch models.ExpensePatch) (*models.Expense, error) {
	expense, err := getExpense(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeChange(actor, expense); err != nil {
		return nil, err
	}
	if err := validateExpenseFields(patch.Type, patch.Amount, patch.Currency, patch.PaymentMethod, patch.Description, patch.PaidTo, patch.Notes); err != nil {
		return nil, err
	}
	patch.Tags = normalizeTags(patch.Tags)

	updated, err := s.store.UpdateExpense(ctx, id, patch, s.now(), changeGuard(actor))
	if err != nil {
		return nil, translateWrite(err)
	}
	s.invalidate(ctx, updated.Event)
	s.log.Info("expense updated", zap.String("expense_id", id.Hex()), zap.String("user_id", actor.UserID.Hex()))
	return updated, nil
}

func (s *ExpenseService) Delete(ctx context.Context, actor models.Actor, id primitive.ObjectID) error {
	expense, err := getExpense(ctx, s.store, id)
	if err != nil {
		return err
	}
	if err := authorizeChange(actor, expense); err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, id, changeGuard(actor)); err != nil {
		return translateWrite(err)
	}
	if expense.Receipt != nil {
		if err := s.uploader.Delete(ctx, expense.Receipt.URL); err != nil {
			s.log.Warn("failed to delete receipt", zap.String("expense_id", id.Hex()), zap.Error(err))
		}
	}
	s.invalidate(ctx, expense.Event)
	s.log.Info("expense deleted", zap.String("expense_id", id.Hex()), zap.String("user_id", actor.UserID.Hex()))
	return nil
}

// transitionBlocker explains why an expense in status cannot move.
func transitionBlocker(expense *models.Expense) error {
	if expense.Reimbursed {
		return ErrAlreadyReimbursed
	}
	switch expense.Status {
	case models.ExpenseApproved:
		return ErrAlreadyApproved
	case models.ExpenseRejected:
		return ErrAlreadyRejected
	case models.ExpenseReimbursed:
		return ErrAlreadyReimbursed
	}
	return fmt.Errorf("expense status %q does not allow this action", expense.Status)
}

func (s *ExpenseService) transition(ctx context.Context, id primitive.ObjectID, t models.ExpenseTransition) (*models.Expense, error) {
	current, err := getExpense(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if current.Reimbursed || !t.Allows(current.Status) {
		return nil, transitionBlocker(current)
	}
	updated, applied, err := s.store.TransitionExpense(ctx, id, t)
	if err != nil {
		return nil, translate(err, ErrExpenseNotFound)
	}
	if !applied {
		// Someone else moved the expense between our read and the update.
		return nil, transitionBlocker(updated)
	}
	s.invalidate(ctx, updated.Event)
	s.log.Info("expense status changed",
		zap.String("expense_id", id.Hex()),
		zap.String("status", string(t.To)),
		zap.String("user_id", t.By.Hex()))
	return updated, nil
}

func (s *ExpenseService) observe(to models.ExpenseStatus, err error) {
	s.metrics.Transition(string(to), outcome(err))
}

// Approve moves a pending expense to approved.
func (s *ExpenseService) Approve(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Expense, error) {
	if !policy.HasRole(actor, models.RoleAdmin, models.RoleOrganizer) {
		return nil, ErrForbidden
	}
	x, err := s.transition(ctx, id, models.ExpenseTransition{
		From: []models.ExpenseStatus{models.ExpensePending},
		To:   models.ExpenseApproved,
		By:   actor.UserID,
		At:   s.now(),
	})
	s.observe(models.ExpenseApproved, err)
	return x, err
}

// Reject ends the lifecycle of a pending or approved expense.
func (s *ExpenseService) Reject(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Expense, error) {
	if !policy.HasRole(actor, models.RoleAdmin, models.RoleOrganizer) {
		return nil, ErrForbidden
	}
	x, err := s.transition(ctx, id, models.ExpenseTransition{
		From: []models.ExpenseStatus{models.ExpensePending, models.ExpenseApproved},
		To:   models.ExpenseRejected,
		By:   actor.UserID,
		At:   s.now(),
	})
	s.observe(models.ExpenseRejected, err)
	return x, err
}

// MarkReimbursed records the repayment and notifies the payer.
func (s *ExpenseService) MarkReimbursed(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Expense, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	x, err := s.transition(ctx, id, models.ExpenseTransition{
		From: []models.ExpenseStatus{models.ExpensePending, models.ExpenseApproved},
		To:   models.ExpenseReimbursed,
		By:   actor.UserID,
		At:   s.now(),
	})
	s.observe(models.ExpenseReimbursed, err)
	if err != nil {
		return nil, err
	}
	s.notifyReimbursed(ctx, x)
	return x, nil
}

func (s *ExpenseService) notifyReimbursed(ctx context.Context, x *models.Expense) {
	payer, err := s.store.GetUser(ctx, x.PaidBy)
	if err != nil {
		s.log.Warn("reimbursement notice skipped: payer lookup failed", zap.String("expense_id", x.ID.Hex()), zap.Error(err))
		return
	}
	subject := "Your expense has been reimbursed"
	body := fmt.Sprintf("<p>Vanakkam %s,</p><p>Your %s expense of %.2f %s dated %s has been reimbursed.</p>",
		html.EscapeString(payer.Name), html.EscapeString(x.Type), x.Amount, x.Currency, x.Date.Format("02 Jan 2006"))
	if err := s.mailer.Send(ctx, payer.Email, payer.Name, subject, body); err != nil {
		s.log.Warn("reimbursement notice failed", zap.String("expense_id", x.ID.Hex()), zap.Error(err))
	}
}

// Summary returns the per-type breakdown for one event.
func (s *ExpenseService) Summary(ctx context.Context, actor models.Actor, eventID primitive.ObjectID) ([]models.TypeSummary, error) {
	event, err := getEvent(ctx, s.store, eventID)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccessEventScopedResource(actor, event) {
		return nil, ErrForbidden
	}

	entry, cacheErr := s.cache.Get(ctx, eventID)
	if cacheErr != nil {
		s.log.Warn("summary cache read failed", zap.String("event_id", eventID.Hex()), zap.Error(cacheErr))
	}
	s.metrics.CacheLookup(entry.Hit)
	if entry.Hit {
		return entry.Rows, nil
	}

	expenses, err := s.store.EventExpenses(ctx, eventID)
	if err != nil {
		return nil, err
	}
	rows := summary.ByType(expenses)
	if cacheErr != nil && !errors.Is(cacheErr, cache.ErrCorrupt) {
		return rows, nil
	}
	stored, err := s.cache.Set(ctx, eventID, entry.Generation, rows)
	if err != nil {
		s.log.Warn("summary cache write failed", zap.String("event_id", eventID.Hex()), zap.Error(err))
	} else if !stored {
		s.log.Debug("summary changed while computing, not cached", zap.String("event_id", eventID.Hex()))
	}
	return rows, nil
}

// AttachReceipt uploads a receipt and replaces any previous one.
func (s *ExpenseService) AttachReceipt(ctx context.Context, actor models.Actor, id primitive.ObjectID, file io.Reader, filename string) (*models.Expense, error) {
	expense, err := getExpense(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeChange(actor, expense); err != nil {
		return nil, err
	}

	u, err := s.uploader.Upload(ctx, file, utils.FolderReceipts)
	if err != nil {
		return nil, err
	}
	receipt := &models.Receipt{URL: u, Filename: filename, UploadedAt: s.now()}
	updated, err := s.store.UpdateExpense(ctx, id, models.ExpensePatch{Receipt: receipt}, s.now(), changeGuard(actor))
	if err != nil {
		_ = s.uploader.Delete(ctx, u)
		return nil, translateWrite(err)
	}
	if expense.Receipt != nil {
		if err := s.uploader.Delete(ctx, expense.Receipt.URL); err != nil {
			s.log.Warn("failed to delete old receipt", zap.String("expense_id", id.Hex()), zap.Error(err))
		}
	}
	return updated, nil
}

func (s *ExpenseService) invalidate(ctx context.Context, eventID primitive.ObjectID) {
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		s.log.Warn("summary cache invalidation failed", zap.String("event_id", eventID.Hex()), zap.Error(err))
	}
}
