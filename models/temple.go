package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Coordinates struct for latitude and longitude
type Coordinates struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

type TempleLocation struct {
	Address     string       `bson:"address" json:"address"`
	City        string       `bson:"city" json:"city"`
	State       string       `bson:"state" json:"state"`
	Country     string       `bson:"country" json:"country"`
	Pincode     string       `bson:"pincode,omitempty" json:"pincode,omitempty"`
	Coordinates *Coordinates `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
}

type TempleContact struct {
	Phone   string `bson:"phone,omitempty" json:"phone,omitempty"`
	Email   string `bson:"email,omitempty" json:"email,omitempty"`
	Website string `bson:"website,omitempty" json:"website,omitempty"`
}

type Deity struct {
	Primary   string   `bson:"primary" json:"primary"`
	Secondary []string `bson:"secondary,omitempty" json:"secondary,omitempty"`
}

type TempleStatus string

const (
	TempleActive          TempleStatus = "active"
	TempleInactive        TempleStatus = "inactive"
	TempleUnderRenovation TempleStatus = "under_renovation"
)

func (s TempleStatus) Valid() bool {
	return s == TempleActive || s == TempleInactive || s == TempleUnderRenovation
}

var Facilities = []string{
	"parking", "restrooms", "drinking_water", "prasadam_counter", "book_stall",
	"audio_system", "wheelchair_accessible", "accommodation", "dining_hall",
}

type Temple struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Location    TempleLocation     `bson:"location" json:"location"`
	Contact     TempleContact      `bson:"contact" json:"contact"`
	Deity       Deity              `bson:"deity" json:"deity"`
	Facilities  []string           `bson:"facilities" json:"facilities"`
	Images      []Image            `bson:"images" json:"images"`
	Status      TempleStatus       `bson:"status" json:"status"`
	IsVerified  bool               `bson:"is_verified" json:"isVerified"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"createdBy"`
	Tags        []string           `bson:"tags" json:"tags"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

// FullAddress joins the address parts the way they are printed on event notices.
func (t *Temple) FullAddress() string {
	l := t.Location
	s := l.Address + ", " + l.City + ", " + l.State + ", " + l.Country
	if l.Pincode != "" {
		s += " - " + l.Pincode
	}
	return s
}

// TemplePatch replaces whole sub-documents when set.
type TemplePatch struct {
	Name        *string
	Description *string
	Location    *TempleLocation
	Contact     *TempleContact
	Deity       *Deity
	Facilities  []string
	Status      *TempleStatus
	IsVerified  *bool
	Tags        []string
}

func (p TemplePatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Location == nil && p.Contact == nil &&
		p.Deity == nil && p.Facilities == nil && p.Status == nil && p.IsVerified == nil && p.Tags == nil
}

func (p TemplePatch) Apply(t *Temple) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Location != nil {
		t.Location = *p.Location
	}
	if p.Contact != nil {
		t.Contact = *p.Contact
	}
	if p.Deity != nil {
		t.Deity = *p.Deity
	}
	if p.Facilities != nil {
		t.Facilities = p.Facilities
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.IsVerified != nil {
		t.IsVerified = *p.IsVerified
	}
	if p.Tags != nil {
		t.Tags = p.Tags
	}
}
