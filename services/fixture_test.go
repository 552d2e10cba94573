package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/phillip/isaithondar-go/auth"
	"github.com/phillip/isaithondar-go/cache"
	"github.com/phillip/isaithondar-go/metrics"
	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/store/memstore"
)

var testNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakeUploader struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
	fail     bool
}

func (u *fakeUploader) Upload(_ context.Context, file io.Reader, folder string) (string, error) {
	if u.fail {
		return "", errors.New("cloudinary down")
	}
	if _, err := io.Copy(io.Discard, file); err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	url := fmt.Sprintf("https://res.cloudinary.com/demo/image/upload/%s/f%d.jpg", folder, len(u.uploaded))
	u.uploaded = append(u.uploaded, url)
	return url, nil
}

func (u *fakeUploader) Delete(_ context.Context, url string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted = append(u.deleted, url)
	return nil
}

type sentMail struct{ to, subject string }

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, _, subject, _ string) error {
	m.sent = append(m.sent, sentMail{to: to, subject: subject})
	return m.err
}

// countingCache is an in-process SummaryCache that records traffic.
type countingCache struct {
	mu          sync.Mutex
	rows        map[primitive.ObjectID][]models.TypeSummary
	gen         map[primitive.ObjectID]int64
	hits        int
	stale       int
	invalidated int
}

func newCountingCache() *countingCache {
	return &countingCache{
		rows: map[primitive.ObjectID][]models.TypeSummary{},
		gen:  map[primitive.ObjectID]int64{},
	}
}

func (c *countingCache) Get(_ context.Context, id primitive.ObjectID) (cache.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, ok := c.rows[id]
	if ok {
		c.hits++
	}
	return cache.Entry{Rows: rows, Hit: ok, Generation: c.gen[id]}, nil
}

func (c *countingCache) Set(_ context.Context, id primitive.ObjectID, generation int64, rows []models.TypeSummary) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[id] != generation {
		c.stale++
		return false, nil
	}
	c.rows[id] = rows
	return true, nil
}

func (c *countingCache) Invalidate(_ context.Context, id primitive.ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[id]++
	delete(c.rows, id)
	c.invalidated++
	return nil
}

// hookedStore runs one-shot callbacks between a service's read and its
// write, standing in for a concurrent request.
type hookedStore struct {
	*memstore.Store
	afterGetExpense    func()
	afterEventExpenses func()
	deleteEventErr     error
}

func fire(hook *func()) {
	if h := *hook; h != nil {
		*hook = nil
		h()
	}
}

func (h *hookedStore) GetExpense(ctx context.Context, id primitive.ObjectID) (*models.Expense, error) {
	x, err := h.Store.GetExpense(ctx, id)
	fire(&h.afterGetExpense)
	return x, err
}

func (h *hookedStore) EventExpenses(ctx context.Context, eventID primitive.ObjectID) ([]models.Expense, error) {
	xs, err := h.Store.EventExpenses(ctx, eventID)
	fire(&h.afterEventExpenses)
	return xs, err
}

func (h *hookedStore) DeleteEvent(ctx context.Context, id primitive.ObjectID) error {
	if h.deleteEventErr != nil {
		return h.deleteEventErr
	}
	return h.Store.DeleteEvent(ctx, id)
}

type fixture struct {
	store    *memstore.Store
	hooks    *hookedStore
	uploader *fakeUploader
	mailer   *fakeMailer
	cache    *countingCache

	events      *EventService
	memberships *MembershipService
	expenses    *ExpenseService
	auth        *AuthService
	users       *UserService
	temples     *TempleService
	pathigams   *PathigamService

	temple    *models.Temple
	admin     models.Actor
	organizer models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	log := zap.NewNop()
	m := metrics.New()
	hooks := &hookedStore{Store: s}
	f := &fixture{
		store:    s,
		hooks:    hooks,
		uploader: &fakeUploader{},
		mailer:   &fakeMailer{},
		cache:    newCountingCache(),
	}
	f.events = NewEventService(hooks, f.uploader, f.cache, log, fixedClock)
	f.memberships = NewMembershipService(s, m, log, fixedClock)
	f.expenses = NewExpenseService(ExpenseDeps{
		Store: hooks, Cache: f.cache, Mailer: f.mailer, Uploader: f.uploader, Metrics: m, Log: log, Now: fixedClock,
	})
	f.auth = NewAuthService(s, auth.NewTokenManager("test-secret", time.Hour, 24*time.Hour), log, fixedClock)
	f.users = NewUserService(s, log, fixedClock)
	f.temples = NewTempleService(s, log, fixedClock)
	f.pathigams = NewPathigamService(s, log, fixedClock)

	f.admin = f.newUser(t, "Admin", models.RoleAdmin)
	f.organizer = f.newUser(t, "Organizer", models.RoleOrganizer)

	temple, err := f.temples.Create(context.Background(), f.admin, &models.Temple{
		Name:     "Kapaleeshwarar Temple",
		Location: models.TempleLocation{Address: "Mylapore", City: "Chennai", State: "Tamil Nadu", Pincode: "600004"},
		Deity:    models.Deity{Primary: "Kapaleeshwarar"},
	})
	require.NoError(t, err)
	f.temple = temple
	return f
}

func (f *fixture) newUser(t *testing.T, name string, role models.Role) models.Actor {
	t.Helper()
	u := &models.User{
		Name:      name,
		Email:     fmt.Sprintf("%s-%s@example.org", name, primitive.NewObjectID().Hex()),
		Role:      role,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return models.Actor{UserID: u.ID, Role: role}
}

func (f *fixture) member(t *testing.T) models.Actor {
	return f.newUser(t, "Member", models.RoleMember)
}

func (f *fixture) createEvent(t *testing.T, by models.Actor, membersNeeded int) *models.Event {
	t.Helper()
	e, err := f.events.Create(context.Background(), by, CreateEventInput{
		Name:          "Thevaram Mutrodhal",
		Location:      "Mylapore",
		Temple:        f.temple.ID,
		Date:          testNow.AddDate(0, 0, 14),
		Time:          "18:30",
		MembersNeeded: membersNeeded,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) createExpense(t *testing.T, by models.Actor, eventID primitive.ObjectID, typ string, amount float64) *models.Expense {
	t.Helper()
	x, err := f.expenses.Create(context.Background(), by, CreateExpenseInput{Event: eventID, Type: typ, Amount: amount})
	require.NoError(t, err)
	return x
}

func reader(s string) io.Reader { return bytes.NewBufferString(s) }
