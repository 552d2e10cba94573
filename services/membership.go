package services

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/phillip/isaithondar-go/metrics"
	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/policy"
	"github.com/phillip/isaithondar-go/store"
)

// joinAttempts bounds how often a join is retried when the conditional update
// misses but a fresh read says the join is still legal.
const joinAttempts = 3

// MembershipService mutates event rosters under the capacity and uniqueness rules.
type MembershipService struct {
	events  store.EventStore
	metrics *metrics.Metrics
	log     *zap.Logger
	now     Clock
}

func NewMembershipService(events store.EventStore, m *metrics.Metrics, log *zap.Logger, now Clock) *MembershipService {
	return &MembershipService{events: events, metrics: m, log: log, now: orNow(now)}
}

// joinBlocker returns the reason userID cannot join event, or nil.
func joinBlocker(event *models.Event, userID primitive.ObjectID) error {
	switch {
	case event.Status != models.EventUpcoming:
		return ErrEventNotJoinable
	case event.HasJoined(userID):
		return ErrAlreadyJoined
	case event.IsFull():
		return ErrEventFull
	}
	return nil
}

// Join adds the actor to the roster. An empty role means participant; joining
// as organizer needs the right to manage the event.
func (s *MembershipService) Join(ctx context.Context, actor models.Actor, eventID primitive.ObjectID, role models.MemberRole) (*models.Event, error) {
	event, err := s.join(ctx, actor, eventID, role)
	s.metrics.Membership("join", outcome(err))
	return event, err
}

func (s *MembershipService) join(ctx context.Context, actor models.Actor, eventID primitive.ObjectID, role models.MemberRole) (*models.Event, error) {
	if role == "" {
		role = models.MemberParticipant
	}
	if !role.Valid() {
		return nil, &ValidationError{Fields: []FieldError{{Field: "role", Message: "Invalid member role"}}}
	}

	event, err := getEvent(ctx, s.events, eventID)
	if err != nil {
		return nil, err
	}
	if role == models.MemberOrganizer && !policy.CanManageEvent(actor, event) {
		return nil, ErrForbidden
	}

	for attempt := 0; attempt < joinAttempts; attempt++ {
		if err := joinBlocker(event, actor.UserID); err != nil {
			return nil, err
		}
		ok, err := s.events.AddMember(ctx, eventID, models.Member{User: actor.UserID, JoinedAt: s.now(), Role: role})
		if err != nil {
			return nil, err
		}
		// Re-read either way: on success for the response, on a miss to find out why.
		event, err = getEvent(ctx, s.events, eventID)
		if err != nil {
			return nil, err
		}
		if ok {
			s.log.Info("member joined event",
				zap.String("event_id", eventID.Hex()),
				zap.String("user_id", actor.UserID.Hex()),
				zap.String("role", string(role)),
				zap.Int("members", event.MembersCount()))
			return event, nil
		}
	}
	if err := joinBlocker(event, actor.UserID); err != nil {
		return nil, err
	}
	return nil, ErrEventFull
}

// Leave removes the actor's roster entry.
func (s *MembershipService) Leave(ctx context.Context, actor models.Actor, eventID primitive.ObjectID) (*models.Event, error) {
	event, err := s.leave(ctx, actor, eventID)
	s.metrics.Membership("leave", outcome(err))
	return event, err
}

func (s *MembershipService) leave(ctx context.Context, actor models.Actor, eventID primitive.ObjectID) (*models.Event, error) {
	event, err := getEvent(ctx, s.events, eventID)
	if err != nil {
		return nil, err
	}
	if !event.HasJoined(actor.UserID) {
		return nil, ErrNotJoined
	}
	ok, err := s.events.RemoveMember(ctx, eventID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotJoined
	}
	event, err = getEvent(ctx, s.events, eventID)
	if err != nil {
		return nil, err
	}
	s.log.Info("member left event",
		zap.String("event_id", eventID.Hex()),
		zap.String("user_id", actor.UserID.Hex()),
		zap.Int("members", event.MembersCount()))
	return event, nil
}

// outcome turns an error into a metric label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, ErrNotJoined):
		return "not_joined"
	case errors.Is(err, ErrEventFull):
		return "event_full"
	case errors.Is(err, ErrEventNotJoinable):
		return "not_joinable"
	case errors.Is(err, ErrAlreadyApproved):
		return "already_approved"
	case errors.Is(err, ErrAlreadyRejected):
		return "already_rejected"
	case errors.Is(err, ErrAlreadyReimbursed):
		return "already_reimbursed"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case IsNotFound(err):
		return "not_found"
	case IsValidation(err):
		return "invalid"
	}
	return "error"
}
