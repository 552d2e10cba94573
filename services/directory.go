package services

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/policy"
	"github.com/phillip/isaithondar-go/store"
)

// ---------------- USERS ----------------

type UserService struct {
	users store.UserStore
	log   *zap.Logger
	now   Clock
}

func NewUserService(users store.UserStore, log *zap.Logger, now Clock) *UserService {
	return &UserService{users: users, log: log, now: orNow(now)}
}

func canManageUser(actor models.Actor, id primitive.ObjectID) bool {
	return actor.IsAdmin() || actor.UserID == id
}

func (s *UserService) List(ctx context.Context, actor models.Actor, f store.UserFilter) ([]models.User, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	return s.users.ListUsers(ctx, f)
}

func (s *UserService) Get(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.User, error) {
	if !canManageUser(actor, id) {
		return nil, ErrForbidden
	}
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, translate(err, ErrUserNotFound)
	}
	return user, nil
}

// Names maps user ids to display names. Unknown and zero ids are left out.
func (s *UserService) Names(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	unique := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	names := make(map[primitive.ObjectID]string, len(unique))
	if len(unique) == 0 {
		return names, nil
	}
	users, err := s.users.UsersByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

// Update lets users edit their own profile; only admins change roles.
func (s *UserService) Update(ctx context.Context, actor models.Actor, id primitive.ObjectID, patch models.UserPatch) (*models.User, error) {
	if !canManageUser(actor, id) {
		return nil, ErrForbidden
	}
	if patch.Role != nil && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	var errs fieldErrors
	if patch.Name != nil {
		if n := length(*patch.Name); n < 2 || n > 100 {
			errs.add("name", "Name must be between 2 and 100 characters")
		}
	}
	if patch.Role != nil && !patch.Role.Valid() {
		errs.add("role", "Invalid role")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	user, err := s.users.UpdateUser(ctx, id, patch, s.now())
	if err != nil {
		return nil, translate(err, ErrUserNotFound)
	}
	if patch.Role != nil {
		s.log.Info("user role changed",
			zap.String("user_id", id.Hex()),
			zap.String("role", string(*patch.Role)),
			zap.String("by", actor.UserID.Hex()))
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, actor models.Actor, id primitive.ObjectID) error {
	if !canManageUser(actor, id) {
		return ErrForbidden
	}
	return translate(s.users.DeleteUser(ctx, id), ErrUserNotFound)
}

// ---------------- TEMPLES ----------------

type TempleService struct {
	temples store.TempleStore
	log     *zap.Logger
	now     Clock
}

func NewTempleService(temples store.TempleStore, log *zap.Logger, now Clock) *TempleService {
	return &TempleService{temples: temples, log: log, now: orNow(now)}
}

const pincodeDigits = 6

func validateTemple(t *models.Temple) error {
	var errs fieldErrors
	if n := length(t.Name); n < 3 || n > 200 {
		errs.add("name", "Temple name must be between 3 and 200 characters")
	}
	if length(t.Location.Address) == 0 {
		errs.add("location.address", "Address is required")
	}
	if length(t.Location.City) == 0 {
		errs.add("location.city", "City is required")
	}
	if length(t.Location.State) == 0 {
		errs.add("location.state", "State is required")
	}
	if p := t.Location.Pincode; p != "" && (len(p) != pincodeDigits || strings.Trim(p, "0123456789") != "") {
		errs.add("location.pincode", "Pincode must be 6 digits")
	}
	if e := t.Contact.Email; e != "" && !validEmail(e) {
		errs.add("contact.email", "Please provide a valid email")
	}
	if w := t.Contact.Website; w != "" && !validHTTPURL(w) {
		errs.add("contact.website", "Website must be a valid URL")
	}
	if length(t.Deity.Primary) == 0 {
		errs.add("deity.primary", "Primary deity is required")
	}
	if t.Status != "" && !t.Status.Valid() {
		errs.add("status", "Invalid status")
	}
	return errs.err()
}

func (s *TempleService) Create(ctx context.Context, actor models.Actor, t *models.Temple) (*models.Temple, error) {
	if !policy.HasRole(actor, models.RoleAdmin, models.RoleOrganizer) {
		return nil, ErrForbidden
	}
	if t.Location.Country == "" {
		t.Location.Country = "India"
	}
	if t.Status == "" {
		t.Status = models.TempleActive
	}
	if err := validateTemple(t); err != nil {
		return nil, err
	}
	now := s.now()
	t.ID = primitive.NewObjectID()
	t.CreatedBy = actor.UserID
	t.IsVerified = t.IsVerified && actor.IsAdmin()
	t.Facilities = nonNil(t.Facilities)
	t.Tags = nonNil(normalizeTags(t.Tags))
	if t.Images == nil {
		t.Images = []models.Image{}
	}
	t.CreatedAt, t.UpdatedAt = now, now
	if err := s.temples.CreateTemple(ctx, t); err != nil {
		return nil, err
	}
	s.log.Info("temple created", zap.String("temple_id", t.ID.Hex()), zap.String("user_id", actor.UserID.Hex()))
	return t, nil
}

func (s *TempleService) Get(ctx context.Context, id primitive.ObjectID) (*models.Temple, error) {
	t, err := s.temples.GetTemple(ctx, id)
	if err != nil {
		return nil, translate(err, ErrTempleNotFound)
	}
	return t, nil
}

func (s *TempleService) List(ctx context.Context, f store.TempleFilter) ([]models.Temple, int64, error) {
	return s.temples.ListTemples(ctx, f)
}

func (s *TempleService) Update(ctx context.Context, actor models.Actor, id primitive.ObjectID, patch models.TemplePatch) (*models.Temple, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanManageOwned(actor, current.CreatedBy) {
		return nil, ErrForbidden
	}
	if patch.IsVerified != nil && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	preview := *current
	patch.Apply(&preview)
	if err := validateTemple(&preview); err != nil {
		return nil, err
	}
	patch.Tags = normalizeTags(patch.Tags)
	updated, err := s.temples.UpdateTemple(ctx, id, patch, s.now())
	if err != nil {
		return nil, translate(err, ErrTempleNotFound)
	}
	return updated, nil
}

func (s *TempleService) Delete(ctx context.Context, actor models.Actor, id primitive.ObjectID) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanManageOwned(actor, current.CreatedBy) {
		return ErrForbidden
	}
	return translate(s.temples.DeleteTemple(ctx, id), ErrTempleNotFound)
}

// ---------------- PATHIGAMS ----------------

type PathigamService struct {
	pathigams store.PathigamStore
	log       *zap.Logger
	now       Clock
}

func NewPathigamService(pathigams store.PathigamStore, log *zap.Logger, now Clock) *PathigamService {
	return &PathigamService{pathigams: pathigams, log: log, now: orNow(now)}
}

var pathigamCategories = []string{"thevaram", "guru-pathigam"}

var difficulties = []string{"beginner", "intermediate", "advanced"}

func validatePathigam(p *models.Pathigam) error {
	var errs fieldErrors
	if n := length(p.Title); n < 3 || n > 200 {
		errs.add("title", "Title must be between 3 and 200 characters")
	}
	if n := length(p.TitleTamil); n < 3 || n > 200 {
		errs.add("titleTamil", "Tamil title must be between 3 and 200 characters")
	}
	if length(p.Content) == 0 {
		errs.add("content", "English content is required")
	}
	if length(p.ContentTamil) == 0 {
		errs.add("contentTamil", "Tamil content is required")
	}
	if length(p.Transliteration) == 0 {
		errs.add("transliteration", "Transliteration is required")
	}
	if !oneOf(p.Category, pathigamCategories) {
		errs.add("category", "Invalid category")
	}
	if !oneOf(p.Guru, models.Gurus) {
		errs.add("guru", "Invalid guru")
	}
	if p.AudioURL != "" && !validHTTPURL(p.AudioURL) {
		errs.add("audioUrl", "Audio URL must be a valid URL")
	}
	if p.Difficulty != "" && !oneOf(p.Difficulty, difficulties) {
		errs.add("difficulty", "Invalid difficulty")
	}
	if p.Status != "" && !p.Status.Valid() {
		errs.add("status", "Invalid status")
	}
	return errs.err()
}

func (s *PathigamService) Create(ctx context.Context, actor models.Actor, p *models.Pathigam) (*models.Pathigam, error) {
	if !policy.HasRole(actor, models.RoleAdmin, models.RoleOrganizer) {
		return nil, ErrForbidden
	}
	if p.Difficulty == "" {
		p.Difficulty = "beginner"
	}
	if p.Status == "" {
		p.Status = models.PathigamPublished
	}
	if err := validatePathigam(p); err != nil {
		return nil, err
	}
	now := s.now()
	p.ID = primitive.NewObjectID()
	p.CreatedBy = actor.UserID
	p.Views = 0
	p.Likes = []models.Like{}
	p.Tags = nonNil(normalizeTags(p.Tags))
	p.CreatedAt, p.UpdatedAt = now, now
	if err := s.pathigams.CreatePathigam(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("pathigam created", zap.String("pathigam_id", p.ID.Hex()), zap.String("user_id", actor.UserID.Hex()))
	return p, nil
}

// View returns the hymn and counts the view.
func (s *PathigamService) View(ctx context.Context, id primitive.ObjectID) (*models.Pathigam, error) {
	if err := s.pathigams.IncrementPathigamViews(ctx, id); err != nil {
		return nil, translate(err, ErrPathigamNotFound)
	}
	p, err := s.pathigams.GetPathigam(ctx, id)
	if err != nil {
		return nil, translate(err, ErrPathigamNotFound)
	}
	return p, nil
}

func (s *PathigamService) List(ctx context.Context, f store.PathigamFilter) ([]models.Pathigam, int64, error) {
	return s.pathigams.ListPathigams(ctx, f)
}

func (s *PathigamService) Update(ctx context.Context, actor models.Actor, id primitive.ObjectID, patch models.PathigamPatch) (*models.Pathigam, error) {
	current, err := s.pathigams.GetPathigam(ctx, id)
	if err != nil {
		return nil, translate(err, ErrPathigamNotFound)
	}
	if !policy.CanManageOwned(actor, current.CreatedBy) {
		return nil, ErrForbidden
	}
	preview := *current
	patch.Apply(&preview)
	if err := validatePathigam(&preview); err != nil {
		return nil, err
	}
	patch.Tags = normalizeTags(patch.Tags)
	updated, err := s.pathigams.UpdatePathigam(ctx, id, patch, s.now())
	if err != nil {
		return nil, translate(err, ErrPathigamNotFound)
	}
	return updated, nil
}

func (s *PathigamService) Delete(ctx context.Context, actor models.Actor, id primitive.ObjectID) error {
	current, err := s.pathigams.GetPathigam(ctx, id)
	if err != nil {
		return translate(err, ErrPathigamNotFound)
	}
	if !policy.CanManageOwned(actor, current.CreatedBy) {
		return ErrForbidden
	}
	return translate(s.pathigams.DeletePathigam(ctx, id), ErrPathigamNotFound)
}

// ToggleLike reports whether the actor likes the hymn after the call.
func (s *PathigamService) ToggleLike(ctx context.Context, actor models.Actor, id primitive.ObjectID) (bool, error) {
	liked, err := s.pathigams.ToggleLike(ctx, id, actor.UserID, s.now())
	if err != nil {
		return false, translate(err, ErrPathigamNotFound)
	}
	return liked, nil
}
