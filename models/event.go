package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventUpcoming, EventOngoing, EventCompleted, EventCancelled:
		return true
	}
	return false
}

type MemberRole string

const (
	MemberParticipant MemberRole = "participant"
	MemberPerformer   MemberRole = "performer"
	MemberOrganizer   MemberRole = "organizer"
)

func (r MemberRole) Valid() bool {
	switch r {
	case MemberParticipant, MemberPerformer, MemberOrganizer:
		return true
	}
	return false
}

// Gurus accepted on events and pathigams. The empty string means "not set".
var Gurus = []string{"Thirugnana Sambandar", "Appar", "Sundarar", "Manikkavacakar", ""}

type Member struct {
	User     primitive.ObjectID `bson:"user" json:"user"`
	JoinedAt time.Time          `bson:"joined_at" json:"joinedAt"`
	Role     MemberRole         `bson:"role" json:"role"`
	Name     string             `bson:"-" json:"name,omitempty"`
}

type Image struct {
	URL        string    `bson:"url" json:"url"`
	Caption    string    `bson:"caption,omitempty" json:"caption,omitempty"`
	UploadedAt time.Time `bson:"uploaded_at" json:"uploadedAt"`
}

type Event struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name             string               `bson:"name" json:"name"`
	Description      string               `bson:"description,omitempty" json:"description,omitempty"`
	Location         string               `bson:"location" json:"location"`
	LocationURL      string               `bson:"location_url,omitempty" json:"locationUrl,omitempty"`
	Temple           primitive.ObjectID   `bson:"temple" json:"temple"`
	Date             time.Time            `bson:"date" json:"date"`
	Time             string               `bson:"time" json:"time"` // HH:MM
	Duration         int                  `bson:"duration" json:"duration"` // minutes
	MembersNeeded    int                  `bson:"members_needed" json:"membersNeeded"`
	MembersJoined    []Member             `bson:"members_joined" json:"membersJoined"`
	Instruments      []string             `bson:"instruments" json:"instruments"`
	FoodRequired     bool                 `bson:"food_required" json:"foodRequired"`
	FoodType         string               `bson:"food_type,omitempty" json:"foodType,omitempty"`
	Notes            string               `bson:"notes,omitempty" json:"notes,omitempty"`
	Guru             string               `bson:"guru,omitempty" json:"guru,omitempty"`
	ThevaramPathigam []primitive.ObjectID `bson:"thevaram_pathigam" json:"thevaramPathigam"`
	Status           EventStatus          `bson:"status" json:"status"`
	CreatedBy        primitive.ObjectID   `bson:"created_by" json:"createdBy"`
	Images           []Image              `bson:"images" json:"images"`
	Tags             []string             `bson:"tags" json:"tags"`
	IsPublic         bool                 `bson:"is_public" json:"isPublic"`
	CreatedAt        time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time            `bson:"updated_at" json:"updatedAt"`
}

// HasJoined reports whether userID is on the roster.
func (e *Event) HasJoined(userID primitive.ObjectID) bool {
	return e.memberIndex(userID) >= 0
}

func (e *Event) memberIndex(userID primitive.ObjectID) int {
	for i, m := range e.MembersJoined {
		if m.User == userID {
			return i
		}
	}
	return -1
}

func (e *Event) MembersCount() int { return len(e.MembersJoined) }

// SpotsAvailable can go negative when stored data already exceeds capacity.
func (e *Event) SpotsAvailable() int { return e.MembersNeeded - len(e.MembersJoined) }

func (e *Event) IsFull() bool { return len(e.MembersJoined) >= e.MembersNeeded }

// WithMember returns a copy of the event with m appended to the roster.
func (e Event) WithMember(m Member) Event {
	roster := make([]Member, len(e.MembersJoined), len(e.MembersJoined)+1)
	copy(roster, e.MembersJoined)
	e.MembersJoined = append(roster, m)
	return e
}

// WithoutMember returns a copy of the event with the first roster entry for userID removed.
func (e Event) WithoutMember(userID primitive.ObjectID) Event {
	i := e.memberIndex(userID)
	if i < 0 {
		return e
	}
	roster := make([]Member, 0, len(e.MembersJoined)-1)
	roster = append(roster, e.MembersJoined[:i]...)
	e.MembersJoined = append(roster, e.MembersJoined[i+1:]...)
	return e
}

// EventView is the JSON shape returned by the API: the stored event plus derived roster fields.
type EventView struct {
	Event
	MembersCount   int    `json:"membersCount"`
	SpotsAvailable int    `json:"spotsAvailable"`
	IsFull         bool   `json:"isFull"`
	CreatedByName  string `json:"createdByName,omitempty"`
}

func (e *Event) View() EventView {
	return EventView{
		Event:          *e,
		MembersCount:   e.MembersCount(),
		SpotsAvailable: e.SpotsAvailable(),
		IsFull:         e.IsFull(),
	}
}

// EventPatch carries the optional fields of an event update. Nil means "leave unchanged".
type EventPatch struct {
	Name             *string
	Description      *string
	Location         *string
	LocationURL      *string
	Temple           *primitive.ObjectID
	Date             *time.Time
	Time             *string
	Duration         *int
	MembersNeeded    *int
	Instruments      []string
	FoodRequired     *bool
	FoodType         *string
	Notes            *string
	Guru             *string
	ThevaramPathigam []primitive.ObjectID
	Status           *EventStatus
	Tags             []string
	IsPublic         *bool
	Images           []Image
}

func (p EventPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Location == nil && p.LocationURL == nil &&
		p.Temple == nil && p.Date == nil && p.Time == nil && p.Duration == nil &&
		p.MembersNeeded == nil && p.Instruments == nil && p.FoodRequired == nil &&
		p.FoodType == nil && p.Notes == nil && p.Guru == nil && p.ThevaramPathigam == nil &&
		p.Status == nil && p.Tags == nil && p.IsPublic == nil && p.Images == nil
}

// Apply writes the set fields of p onto e.
func (p EventPatch) Apply(e *Event) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.LocationURL != nil {
		e.LocationURL = *p.LocationURL
	}
	if p.Temple != nil {
		e.Temple = *p.Temple
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Time != nil {
		e.Time = *p.Time
	}
	if p.Duration != nil {
		e.Duration = *p.Duration
	}
	if p.MembersNeeded != nil {
		e.MembersNeeded = *p.MembersNeeded
	}
	if p.Instruments != nil {
		e.Instruments = p.Instruments
	}
	if p.FoodRequired != nil {
		e.FoodRequired = *p.FoodRequired
	}
	if p.FoodType != nil {
		e.FoodType = *p.FoodType
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.Guru != nil {
		e.Guru = *p.Guru
	}
	if p.ThevaramPathigam != nil {
		e.ThevaramPathigam = p.ThevaramPathigam
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Tags != nil {
		e.Tags = p.Tags
	}
	if p.IsPublic != nil {
		e.IsPublic = *p.IsPublic
	}
	if p.Images != nil {
		e.Images = p.Images
	}
}
