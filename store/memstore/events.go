package memstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/store"
)

func cloneEvent(e *models.Event) *models.Event {
	c := *e
	c.MembersJoined = append([]models.Member(nil), e.MembersJoined...)
	c.Instruments = append([]string(nil), e.Instruments...)
	c.ThevaramPathigam = append([]primitive.ObjectID(nil), e.ThevaramPathigam...)
	c.Images = append([]models.Image(nil), e.Images...)
	c.Tags = append([]string(nil), e.Tags...)
	return &c
}

func (s *Store) CreateEvent(_ context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if _, ok := s.events[event.ID]; ok {
		return store.ErrDuplicate
	}
	s.events[event.ID] = cloneEvent(event)
	return nil
}

func (s *Store) GetEvent(_ context.Context, id primitive.ObjectID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneEvent(e), nil
}

func eventMatches(e *models.Event, f store.EventFilter) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Temple != nil && e.Temple != *f.Temple {
		return false
	}
	if f.StartDate != nil && e.Date.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && e.Date.After(*f.EndDate) {
		return false
	}
	if f.Search != "" && !containsFold(e.Name, f.Search) && !containsFold(e.Location, f.Search) {
		return false
	}
	if f.Participant != nil && e.CreatedBy != *f.Participant && !e.HasJoined(*f.Participant) {
		return false
	}
	return true
}

func lessEvent(a, b *models.Event, field string) (bool, bool) {
	switch field {
	case "date":
		return a.Date.Before(b.Date), true
	case "name":
		return a.Name < b.Name, true
	case "createdAt":
		return a.CreatedAt.Before(b.CreatedAt), true
	case "membersNeeded":
		return a.MembersNeeded < b.MembersNeeded, true
	case "status":
		return a.Status < b.Status, true
	}
	return false, false
}

func (s *Store) ListEvents(_ context.Context, f store.EventFilter) ([]models.Event, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Event
	for _, e := range s.events {
		if eventMatches(e, f) {
			out = append(out, *cloneEvent(e))
		}
	}
	sortBy(out, f.Sort, "-date", lessEvent)
	return paginate(out, f.Page), int64(len(out)), nil
}

func (s *Store) EventIDsForUser(_ context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []primitive.ObjectID
	for id, e := range s.events {
		if e.CreatedBy == userID || e.HasJoined(userID) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Store) UpdateEvent(_ context.Context, id primitive.ObjectID, patch models.EventPatch, at time.Time) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	patch.Apply(e)
	e.UpdatedAt = at
	return cloneEvent(e), nil
}

func (s *Store) DeleteEvent(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

func (s *Store) AddMember(_ context.Context, eventID primitive.ObjectID, m models.Member) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return false, nil
	}
	if e.Status != models.EventUpcoming || e.HasJoined(m.User) || e.IsFull() {
		return false, nil
	}
	*e = e.WithMember(m)
	e.UpdatedAt = m.JoinedAt
	return true, nil
}

func (s *Store) RemoveMember(_ context.Context, eventID, userID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok || !e.HasJoined(userID) {
		return false, nil
	}
	*e = e.WithoutMember(userID)
	e.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) AddEventImages(_ context.Context, eventID primitive.ObjectID, images []models.Image) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	e.Images = append(e.Images, images...)
	e.UpdatedAt = time.Now()
	return cloneEvent(e), nil
}
