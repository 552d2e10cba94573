package routes

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/phillip/isaithondar-go/auth"
	"github.com/phillip/isaithondar-go/cache"
	controllers "github.com/phillip/isaithondar-go/controllers"
	"github.com/phillip/isaithondar-go/metrics"
	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/response"
	"github.com/phillip/isaithondar-go/services"
	"github.com/phillip/isaithondar-go/store/memstore"
	"github.com/phillip/isaithondar-go/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := utils.RegisterValidators(); err != nil {
		panic(err)
	}
}

type server struct {
	t       *testing.T
	router  *gin.Engine
	store   *memstore.Store
	tokens  *auth.TokenManager
	admin   string
	manager string
}

type body struct {
	Success    bool                    `json:"success"`
	Message    string                  `json:"message"`
	Data       json.RawMessage         `json:"data"`
	Count      *int                    `json:"count"`
	Pagination *response.Pagination `json:"pagination"`
	Totals     *models.Totals          `json:"totals"`
	Errors     []services.FieldError   `json:"errors"`
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := memstore.New()
	log := zap.NewNop()
	m := metrics.New()
	tokens := auth.NewTokenManager("test-secret", time.Hour, 24*time.Hour)
	summaries := cache.Nop{}

	env := &controllers.Env{
		Auth:        services.NewAuthService(s, tokens, log, nil),
		Users:       services.NewUserService(s, log, nil),
		Events:      services.NewEventService(s, nil, summaries, log, nil),
		Memberships: services.NewMembershipService(s, m, log, nil),
		Expenses:    services.NewExpenseService(services.ExpenseDeps{Store: s, Cache: summaries, Metrics: m, Log: log}),
		Temples:     services.NewTempleService(s, log, nil),
		Pathigams:   services.NewPathigamService(s, log, nil),
		Store:       s,
		Log:         log,
	}
	r := gin.New()
	r.Use(m.Middleware())
	SetupRoutes(r, env, tokens, m)

	srv := &server{t: t, router: r, store: s, tokens: tokens}
	srv.admin = srv.token(models.RoleAdmin)
	srv.manager = srv.token(models.RoleOrganizer)
	return srv
}

// token creates a user with role and returns an access token for it.
func (s *server) token(role models.Role) string {
	s.t.Helper()
	u := &models.User{
		Name:  string(role),
		Email: fmt.Sprintf("%s-%s@example.org", role, primitive.NewObjectID().Hex()),
		Role:  role,
	}
	require.NoError(s.t, s.store.CreateUser(context.Background(), u))
	pair, err := s.tokens.Issue(u)
	require.NoError(s.t, err)
	return pair.AccessToken
}

func (s *server) do(method, path, token string, payload any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &buf)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) body {
	t.Helper()
	var b body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b), w.Body.String())
	return b
}

func data[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &v))
	return v
}

func (s *server) temple() string {
	w := s.do(http.MethodPost, "/api/temples", s.manager, map[string]any{
		"name":     "Kapaleeshwarar Temple",
		"location": map[string]string{"address": "Mylapore", "city": "Chennai", "state": "Tamil Nadu"},
		"deity":    map[string]string{"primary": "Kapaleeshwarar"},
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return data[models.Temple](s.t, w).ID.Hex()
}

func (s *server) event(membersNeeded int) models.EventView {
	w := s.do(http.MethodPost, "/api/events", s.manager, map[string]any{
		"name":          "Thevaram Mutrodhal",
		"location":      "Mylapore",
		"temple":        s.temple(),
		"date":          time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
		"time":          "18:30",
		"membersNeeded": membersNeeded,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return data[models.EventView](s.t, w)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil).Code)

	w := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_request_duration_seconds_count{method="GET",route="/healthz",status="200"} 1`)
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)
	creds := map[string]string{"name": "Meena", "email": "meena@example.org", "password": "secret1"}

	w := s.do(http.MethodPost, "/api/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/register", "", creds)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "meena@example.org", "password": "nope12"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "meena@example.org", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	sess := data[struct {
		AccessToken  string      `json:"accessToken"`
		RefreshToken string      `json:"refreshToken"`
		User         models.User `json:"user"`
	}](t, w)
	assert.Equal(t, models.RoleMember, sess.User.Role)
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(http.MethodGet, "/api/auth/me", sess.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", sess.RefreshToken, nil).Code)

	w = s.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": sess.RefreshToken})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "X", "email": "bad", "password": "1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, decode(t, w).Errors, 3)
}

func TestEventMembershipOverHTTP(t *testing.T) {
	s := newServer(t)
	event := s.event(2)
	assert.Equal(t, 1, event.MembersCount)
	assert.Equal(t, 1, event.SpotsAvailable)

	a, b := s.token(models.RoleMember), s.token(models.RoleMember)
	path := "/api/events/" + event.ID.Hex()

	w := s.do(http.MethodPost, path+"/join", a, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	joined := data[models.EventView](t, w)
	assert.True(t, joined.IsFull)
	assert.Equal(t, 0, joined.SpotsAvailable)

	w = s.do(http.MethodPost, path+"/join", a, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Already joined this event", decode(t, w).Message)

	w = s.do(http.MethodPost, path+"/join", b, map[string]string{"role": "performer"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Event is full", decode(t, w).Message)

	w = s.do(http.MethodPost, path+"/leave", a, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, path+"/join", b, map[string]string{"role": "performer"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.MemberPerformer, data[models.EventView](t, w).MembersJoined[1].Role)

	w = s.do(http.MethodPost, path+"/leave", a, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, path+"/join", "", nil).Code)
}

func TestEventReadsAndETags(t *testing.T) {
	s := newServer(t)
	event := s.event(5)

	w := s.do(http.MethodGet, "/api/events?status=upcoming&limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	b := decode(t, w)
	assert.Equal(t, 1, *b.Count)
	assert.Equal(t, response.Pagination{Page: 1, Limit: 5, Total: 1, Pages: 1}, *b.Pagination)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = s.do(http.MethodGet, "/api/events?status=upcoming&limit=5", "", nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = s.do(http.MethodGet, "/api/events/"+event.ID.Hex(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	single := w.Header().Get("ETag")
	w = s.do(http.MethodGet, "/api/events/"+event.ID.Hex(), "", nil, "If-None-Match", single)
	assert.Equal(t, http.StatusNotModified, w.Code)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/events?limit=500", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/events?status=later", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/events/not-an-id", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/events/"+primitive.NewObjectID().Hex(), "", nil).Code)

	w = s.do(http.MethodGet, "/api/events/my/events", s.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *decode(t, w).Count)
}

func TestEventWrites(t *testing.T) {
	s := newServer(t)
	member := s.token(models.RoleMember)

	w := s.do(http.MethodPost, "/api/events", member, map[string]any{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/events", s.manager, map[string]any{
		"name": "Bad time", "location": "x", "temple": s.temple(),
		"date": "2099-01-01", "time": "7pm", "membersNeeded": 3,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	errs := decode(t, w).Errors
	require.Len(t, errs, 1)
	assert.Equal(t, "time", errs[0].Field)

	event := s.event(5)
	path := "/api/events/" + event.ID.Hex()
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, path, s.manager, map[string]any{}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, path, member, map[string]any{"notes": "x"}).Code)

	w = s.do(http.MethodPut, path, s.manager, map[string]any{"membersNeeded": 9, "tags": []string{"Evening"}})
	require.Equal(t, http.StatusOK, w.Code)
	updated := data[models.EventView](t, w)
	assert.Equal(t, 9, updated.MembersNeeded)
	assert.Equal(t, []string{"evening"}, updated.Tags)

	// Uploads are disabled in this server.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("images", "kolam.jpg")
	_, _ = fw.Write([]byte("jpeg"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path+"/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.manager)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, path, s.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, "", nil).Code)
}

func TestExpenseLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)
	event := s.event(5)
	member := s.token(models.RoleMember)
	outsider := s.token(models.RoleMember)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/events/"+event.ID.Hex()+"/join", member, nil).Code)

	newExpense := map[string]any{"event": event.ID.Hex(), "type": "Food & Catering", "amount": 1200.5, "description": "Lunch, for all"}
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/expenses", outsider, newExpense).Code)

	w := s.do(http.MethodPost, "/api/expenses", member, newExpense)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	x := data[models.Expense](t, w)
	assert.Equal(t, models.ExpensePending, x.Status)
	path := "/api/expenses/" + x.ID.Hex()

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, path+"/approve", member, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, path, outsider, nil).Code)

	w = s.do(http.MethodPut, path+"/approve", s.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ExpenseApproved, data[models.Expense](t, w).Status)

	w = s.do(http.MethodPut, path+"/approve", s.manager, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Expense already approved", decode(t, w).Message)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, path+"/reimburse", s.manager, nil).Code)
	w = s.do(http.MethodPut, path+"/reimburse", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, data[models.Expense](t, w).Reimbursed)

	w = s.do(http.MethodPut, path+"/reject", s.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Expense already reimbursed", decode(t, w).Message)

	w = s.do(http.MethodPut, path, member, map[string]any{"notes": "late"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cannot modify reimbursed expense", decode(t, w).Message)

	w = s.do(http.MethodGet, "/api/expenses/summary/"+event.ID.Hex(), member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows := data[[]models.TypeSummary](t, w)
	require.Len(t, rows, 1)
	assert.Equal(t, 1200.5, rows[0].ReimbursedAmount)
	assert.Zero(t, rows[0].PendingAmount)

	w = s.do(http.MethodGet, "/api/expenses?reimbursed=true", member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	b := decode(t, w)
	assert.Equal(t, 1, *b.Count)
	assert.Equal(t, 1200.5, b.Totals.ReimbursedAmount)

	w = s.do(http.MethodGet, "/api/expenses", outsider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, *decode(t, w).Count)

	w = s.do(http.MethodGet, "/api/expenses/export", member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1200.50", records[1][3])
	assert.Equal(t, "Lunch, for all", records[1][11])
}

func TestExportNeutralisesFormulas(t *testing.T) {
	s := newServer(t)
	event := s.event(5)

	w := s.do(http.MethodPost, "/api/expenses", s.manager, map[string]any{
		"event":       event.ID.Hex(),
		"type":        "Decorations",
		"amount":      75,
		"paidTo":      "@florist",
		"description": `=HYPERLINK("http://evil.example","click")`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/expenses/export", s.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "'@florist", records[1][8])
	assert.Equal(t, `'=HYPERLINK("http://evil.example","click")`, records[1][11])
}

func TestResponsesCarryUserNames(t *testing.T) {
	s := newServer(t)
	event := s.event(5)
	member := s.token(models.RoleMember)
	eventPath := "/api/events/" + event.ID.Hex()
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, eventPath+"/join", member, nil).Code)

	w := s.do(http.MethodPost, "/api/expenses", member, map[string]any{"event": event.ID.Hex(), "type": "Transportation", "amount": 80})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	path := "/api/expenses/" + data[models.Expense](t, w).ID.Hex()
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, path+"/approve", s.manager, nil).Code)

	w = s.do(http.MethodGet, path, member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	x := data[models.Expense](t, w)
	assert.Equal(t, "member", x.PaidByName)
	assert.Equal(t, "organizer", x.ApprovedByName)
	assert.Empty(t, x.ReimbursedByName)

	w = s.do(http.MethodGet, "/api/expenses?event="+event.ID.Hex(), s.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := data[[]models.Expense](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "member", list[0].PaidByName)

	w = s.do(http.MethodGet, eventPath, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := data[models.EventView](t, w)
	assert.Equal(t, "organizer", view.CreatedByName)
	require.Len(t, view.MembersJoined, 2)
	assert.Equal(t, "organizer", view.MembersJoined[0].Name)
	assert.Equal(t, "member", view.MembersJoined[1].Name)

	w = s.do(http.MethodGet, "/api/events", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	views := data[[]models.EventView](t, w)
	require.Len(t, views, 1)
	assert.Equal(t, "member", views[0].MembersJoined[1].Name)
}

func TestExpenseValidationOverHTTP(t *testing.T) {
	s := newServer(t)
	event := s.event(5)

	w := s.do(http.MethodPost, "/api/expenses", s.manager, map[string]any{"event": "nope", "type": "Food & Catering"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := map[string]bool{}
	for _, fe := range decode(t, w).Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["event"])
	assert.True(t, fields["amount"])

	w = s.do(http.MethodPost, "/api/expenses", s.manager, map[string]any{"event": event.ID.Hex(), "type": "Fireworks", "amount": 10})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "type", decode(t, w).Errors[0].Field)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/expenses?reimbursed=maybe", s.manager, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/expenses/"+primitive.NewObjectID().Hex(), s.admin, nil).Code)
}

func TestDirectoryOverHTTP(t *testing.T) {
	s := newServer(t)
	member := s.token(models.RoleMember)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/users", member, nil).Code)
	w := s.do(http.MethodGet, "/api/users?role=member", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *decode(t, w).Count)

	temple := s.temple()
	w = s.do(http.MethodGet, "/api/temples?city=chennai", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *decode(t, w).Count)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/api/temples/"+temple, member, nil).Code)

	w = s.do(http.MethodPost, "/api/pathigams", s.manager, map[string]any{
		"title": "Thodudaiya Seviyan", "titleTamil": "தோடுடைய செவியன்",
		"content": "He who wears the earring", "contentTamil": "தோடுடைய செவியன்",
		"transliteration": "thOTuTaiya seviyan", "category": "thevaram",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := data[models.Pathigam](t, w).ID.Hex()

	w = s.do(http.MethodGet, "/api/pathigams/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, data[models.Pathigam](t, w).Views)

	w = s.do(http.MethodPost, "/api/pathigams/"+id+"/like", member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"liked": true}, data[map[string]bool](t, w))
}
