package services

import (
	"context"
	"errors"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/phillip/isaithondar-go/cache"
	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/policy"
	"github.com/phillip/isaithondar-go/store"
	"github.com/phillip/isaithondar-go/utils"
)

const defaultDuration = 120

type EventService struct {
	store     store.Store
	uploader  utils.Uploader
	summaries cache.SummaryCache
	log       *zap.Logger
	now       Clock
}

func NewEventService(s store.Store, uploader utils.Uploader, summaries cache.SummaryCache, log *zap.Logger, now Clock) *EventService {
	if uploader == nil {
		uploader = utils.DisabledUploader{}
	}
	if summaries == nil {
		summaries = cache.Nop{}
	}
	return &EventService{store: s, uploader: uploader, summaries: summaries, log: log, now: orNow(now)}
}

type CreateEventInput struct {
	Name             string
	Description      string
	Location         string
	LocationURL      string
	Temple           primitive.ObjectID
	Date             time.Time
	Time             string
	Duration         int
	MembersNeeded    int
	Instruments      []string
	FoodRequired     bool
	FoodType         string
	Notes            string
	Guru             string
	ThevaramPathigam []primitive.ObjectID
	Tags             []string
	IsPublic         *bool
}

func (s *EventService) validateCreate(in CreateEventInput) error {
	var errs fieldErrors
	if n := length(in.Name); n < 3 || n > 200 {
		errs.add("name", "Event name must be between 3 and 200 characters")
	}
	if length(in.Description) > 2000 {
		errs.add("description", "Description cannot exceed 2000 characters")
	}
	if length(in.Location) == 0 {
		errs.add("location", "Location is required")
	}
	if in.LocationURL != "" && !validHTTPURL(in.LocationURL) {
		errs.add("locationUrl", "Location URL must be a valid http(s) URL")
	}
	if in.Temple.IsZero() {
		errs.add("temple", "Valid temple ID is required")
	}
	if !in.Date.After(s.now()) {
		errs.add("date", "Event date must be in the future")
	}
	if !utils.ValidTime(in.Time) {
		errs.add("time", "Time must be in HH:MM format")
	}
	if in.Duration < 0 {
		errs.add("duration", "Duration cannot be negative")
	}
	if in.MembersNeeded < 1 || in.MembersNeeded > 1000 {
		errs.add("membersNeeded", "Members needed must be between 1 and 1000")
	}
	if length(in.Notes) > 1000 {
		errs.add("notes", "Notes cannot exceed 1000 characters")
	}
	if !oneOf(in.Guru, models.Gurus) {
		errs.add("guru", "Invalid guru")
	}
	return errs.err()
}

// Create stores a new event. The creator is put on the roster as organizer.
func (s *EventService) Create(ctx context.Context, actor models.Actor, in CreateEventInput) (*models.Event, error) {
	if !policy.HasRole(actor, models.RoleAdmin, models.RoleOrganizer) {
		return nil, ErrForbidden
	}
	if err := s.validateCreate(in); err != nil {
		return nil, err
	}
	if _, err := s.store.GetTemple(ctx, in.Temple); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ValidationError{Fields: []FieldError{{Field: "temple", Message: "Temple not found"}}}
		}
		return nil, err
	}

	now := s.now()
	duration := in.Duration
	if duration == 0 {
		duration = defaultDuration
	}
	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}
	event := &models.Event{
		ID:               primitive.NewObjectID(),
		Name:             in.Name,
		Description:      in.Description,
		Location:         in.Location,
		LocationURL:      in.LocationURL,
		Temple:           in.Temple,
		Date:             in.Date,
		Time:             in.Time,
		Duration:         duration,
		MembersNeeded:    in.MembersNeeded,
		MembersJoined:    []models.Member{{User: actor.UserID, JoinedAt: now, Role: models.MemberOrganizer}},
		Instruments:      nonNil(in.Instruments),
		FoodRequired:     in.FoodRequired,
		FoodType:         in.FoodType,
		Notes:            in.Notes,
		Guru:             in.Guru,
		ThevaramPathigam: nonNilIDs(in.ThevaramPathigam),
		Status:           models.EventUpcoming,
		CreatedBy:        actor.UserID,
		Images:           []models.Image{},
		Tags:             nonNil(normalizeTags(in.Tags)),
		IsPublic:         isPublic,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	s.log.Info("event created",
		zap.String("event_id", event.ID.Hex()),
		zap.String("user_id", actor.UserID.Hex()))
	return event, nil
}

func (s *EventService) Get(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	return getEvent(ctx, s.store, id)
}

func (s *EventService) List(ctx context.Context, f store.EventFilter) ([]models.Event, int64, error) {
	return s.store.ListEvents(ctx, f)
}

// ListMine returns events the actor created or joined.
func (s *EventService) ListMine(ctx context.Context, actor models.Actor, f store.EventFilter) ([]models.Event, int64, error) {
	f.Participant = &actor.UserID
	return s.store.ListEvents(ctx, f)
}

func (s *EventService) validatePatch(p models.EventPatch) error {
	var errs fieldErrors
	if p.Name != nil {
		if n := length(*p.Name); n < 3 || n > 200 {
			errs.add("name", "Event name must be between 3 and 200 characters")
		}
	}
	if p.Description != nil && length(*p.Description) > 2000 {
		errs.add("description", "Description cannot exceed 2000 characters")
	}
	if p.Location != nil && length(*p.Location) == 0 {
		errs.add("location", "Location is required")
	}
	if p.LocationURL != nil && *p.LocationURL != "" && !validHTTPURL(*p.LocationURL) {
		errs.add("locationUrl", "Location URL must be a valid http(s) URL")
	}
	if p.Date != nil && !p.Date.After(s.now()) {
		errs.add("date", "Event date must be in the future")
	}
	if p.Time != nil && !utils.ValidTime(*p.Time) {
		errs.add("time", "Time must be in HH:MM format")
	}
	if p.Duration != nil && *p.Duration < 0 {
		errs.add("duration", "Duration cannot be negative")
	}
	if p.MembersNeeded != nil && (*p.MembersNeeded < 1 || *p.MembersNeeded > 1000) {
		errs.add("membersNeeded", "Members needed must be between 1 and 1000")
	}
	if p.Notes != nil && length(*p.Notes) > 1000 {
		errs.add("notes", "Notes cannot exceed 1000 characters")
	}
	if p.Guru != nil && !oneOf(*p.Guru, models.Gurus) {
		errs.add("guru", "Invalid guru")
	}
	if p.Status != nil && !p.Status.Valid() {
		errs.add("status", "Invalid status")
	}
	return errs.err()
}

// Update applies a partial update. Lowering membersNeeded below the current
// roster is allowed; the surplus is kept and only new joins are refused.
func (s *EventService) Update(ctx context.Context, actor models.Actor, id primitive.ObjectID, patch models.EventPatch) (*models.Event, error) {
	event, err := getEvent(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanManageEvent(actor, event) {
		return nil, ErrForbidden
	}
	if err := s.validatePatch(patch); err != nil {
		return nil, err
	}
	patch.Tags = normalizeTags(patch.Tags)

	updated, err := s.store.UpdateEvent(ctx, id, patch, s.now())
	if err != nil {
		return nil, translate(err, ErrEventNotFound)
	}
	s.log.Info("event updated", zap.String("event_id", id.Hex()), zap.String("user_id", actor.UserID.Hex()))
	return updated, nil
}

// Delete removes the event together with its expenses and uploaded images.
// Expenses left behind by a failed cascade are logged, not retried.
func (s *EventService) Delete(ctx context.Context, actor models.Actor, id primitive.ObjectID) error {
	event, err := getEvent(ctx, s.store, id)
	if err != nil {
		return err
	}
	if !policy.CanManageEvent(actor, event) {
		return ErrForbidden
	}

	// The event goes first: a failure here leaves its expenses untouched.
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return translate(err, ErrEventNotFound)
	}
	removed, err := s.store.DeleteEventExpenses(ctx, id)
	if err != nil {
		s.log.Error("event deleted but its expenses were not",
			zap.String("event_id", id.Hex()), zap.Error(err))
	}
	if err := s.summaries.Invalidate(ctx, id); err != nil {
		s.log.Warn("summary cache invalidation failed", zap.String("event_id", id.Hex()), zap.Error(err))
	}

	for _, img := range event.Images {
		if err := s.uploader.Delete(ctx, img.URL); err != nil {
			s.log.Warn("failed to delete event image", zap.String("event_id", id.Hex()), zap.String("url", img.URL), zap.Error(err))
		}
	}
	s.log.Info("event deleted",
		zap.String("event_id", id.Hex()),
		zap.String("user_id", actor.UserID.Hex()),
		zap.Int64("expenses_removed", removed))
	return nil
}

// ImageUpload is one file from a multipart request.
type ImageUpload struct {
	File    io.Reader
	Caption string
}

func (s *EventService) AddImages(ctx context.Context, actor models.Actor, id primitive.ObjectID, files []ImageUpload) (*models.Event, error) {
	event, err := getEvent(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanManageEvent(actor, event) {
		return nil, ErrForbidden
	}
	if len(files) == 0 {
		return nil, &ValidationError{Fields: []FieldError{{Field: "images", Message: "At least one image is required"}}}
	}

	images := make([]models.Image, 0, len(files))
	for _, f := range files {
		u, err := s.uploader.Upload(ctx, f.File, utils.FolderEvents)
		if err != nil {
			for _, done := range images {
				_ = s.uploader.Delete(ctx, done.URL)
			}
			return nil, err
		}
		images = append(images, models.Image{URL: u, Caption: f.Caption, UploadedAt: s.now()})
	}

	updated, err := s.store.AddEventImages(ctx, id, images)
	if err != nil {
		return nil, translate(err, ErrEventNotFound)
	}
	return updated, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilIDs(s []primitive.ObjectID) []primitive.ObjectID {
	if s == nil {
		return []primitive.ObjectID{}
	}
	return s
}
