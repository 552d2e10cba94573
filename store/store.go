// Package store defines the persistence boundary. Implementations live in
// store/mongostore (production) and store/memstore (tests and local runs).
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict means the record exists but failed a write precondition.
	ErrConflict = errors.New("record changed concurrently")
)

// ExpenseGuard narrows an expense write to records still in an editable state.
// The check runs atomically with the write.
type ExpenseGuard struct {
	Unreimbursed bool
}

// Page is a 1-based page request. Limit 0 means "no limit".
type Page struct {
	Page  int
	Limit int
}

func (p Page) Skip() int64 {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	return int64((p.Page - 1) * p.Limit)
}

// Sort is a list of fields, a leading "-" meaning descending (e.g. "-date,name").
type Sort []string

type EventFilter struct {
	Status    models.EventStatus
	Temple    *primitive.ObjectID
	StartDate *time.Time
	EndDate   *time.Time
	Search    string
	// Participant matches events created by or joined by this user.
	Participant *primitive.ObjectID
	Sort        Sort
	Page        Page
}

type ExpenseFilter struct {
	Event      *primitive.ObjectID
	Type       string
	Status     models.ExpenseStatus
	Reimbursed *bool
	StartDate  *time.Time
	EndDate    *time.Time
	// VisibleTo restricts non-admin listings to expenses the user paid or that
	// belong to one of VisibleEvents.
	VisibleTo     *primitive.ObjectID
	VisibleEvents []primitive.ObjectID
	Sort          Sort
	Page          Page
}

type UserFilter struct {
	Role   models.Role
	Search string
	Page   Page
}

type TempleFilter struct {
	City   string
	State  string
	Status models.TempleStatus
	Search string
	Page   Page
}

type PathigamFilter struct {
	Guru     string
	Category string
	Status   models.PathigamStatus
	Search   string
	Sort     Sort
	Page     Page
}

type EventStore interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id primitive.ObjectID) (*models.Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]models.Event, int64, error)
	// EventIDsForUser returns the ids of events the user created or joined.
	EventIDsForUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	UpdateEvent(ctx context.Context, id primitive.ObjectID, patch models.EventPatch, at time.Time) (*models.Event, error)
	DeleteEvent(ctx context.Context, id primitive.ObjectID) error
	// AddMember appends m only if the event is upcoming, m.User is not already on the
	// roster and the roster is below capacity. It reports whether the append happened.
	AddMember(ctx context.Context, eventID primitive.ObjectID, m models.Member) (bool, error)
	// RemoveMember pulls userID from the roster and reports whether an entry was removed.
	RemoveMember(ctx context.Context, eventID, userID primitive.ObjectID) (bool, error)
	AddEventImages(ctx context.Context, eventID primitive.ObjectID, images []models.Image) (*models.Event, error)
}

type ExpenseStore interface {
	CreateExpense(ctx context.Context, expense *models.Expense) error
	GetExpense(ctx context.Context, id primitive.ObjectID) (*models.Expense, error)
	ListExpenses(ctx context.Context, filter ExpenseFilter) ([]models.Expense, int64, error)
	// ExpenseTotals aggregates the same selection as ListExpenses, ignoring paging.
	ExpenseTotals(ctx context.Context, filter ExpenseFilter) (models.Totals, error)
	EventExpenses(ctx context.Context, eventID primitive.ObjectID) ([]models.Expense, error)
	// UpdateExpense and DeleteExpense return ErrConflict when the record exists
	// but does not satisfy guard.
	UpdateExpense(ctx context.Context, id primitive.ObjectID, patch models.ExpensePatch, at time.Time, guard ExpenseGuard) (*models.Expense, error)
	// TransitionExpense applies t only while the stored status is one of t.From.
	// It returns the updated record and whether the transition was applied.
	TransitionExpense(ctx context.Context, id primitive.ObjectID, t models.ExpenseTransition) (*models.Expense, bool, error)
	DeleteExpense(ctx context.Context, id primitive.ObjectID, guard ExpenseGuard) error
	DeleteEventExpenses(ctx context.Context, eventID primitive.ObjectID) (int64, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
	// UsersByIDs returns the users that exist among ids, in no particular order.
	UsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, patch models.UserPatch, at time.Time) (*models.User, error)
	DeleteUser(ctx context.Context, id primitive.ObjectID) error
}

type TempleStore interface {
	CreateTemple(ctx context.Context, temple *models.Temple) error
	GetTemple(ctx context.Context, id primitive.ObjectID) (*models.Temple, error)
	ListTemples(ctx context.Context, filter TempleFilter) ([]models.Temple, int64, error)
	UpdateTemple(ctx context.Context, id primitive.ObjectID, patch models.TemplePatch, at time.Time) (*models.Temple, error)
	DeleteTemple(ctx context.Context, id primitive.ObjectID) error
}

type PathigamStore interface {
	CreatePathigam(ctx context.Context, p *models.Pathigam) error
	GetPathigam(ctx context.Context, id primitive.ObjectID) (*models.Pathigam, error)
	ListPathigams(ctx context.Context, filter PathigamFilter) ([]models.Pathigam, int64, error)
	UpdatePathigam(ctx context.Context, id primitive.ObjectID, patch models.PathigamPatch, at time.Time) (*models.Pathigam, error)
	DeletePathigam(ctx context.Context, id primitive.ObjectID) error
	IncrementPathigamViews(ctx context.Context, id primitive.ObjectID) error
	// ToggleLike adds or removes the user's like and reports whether it is now liked.
	ToggleLike(ctx context.Context, id, userID primitive.ObjectID, at time.Time) (bool, error)
}

// Store is the full entity store.
type Store interface {
	EventStore
	ExpenseStore
	UserStore
	TempleStore
	PathigamStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
