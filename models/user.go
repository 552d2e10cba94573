package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOrganizer Role = "organizer"
	RoleMember    Role = "member"
	RoleGuest     Role = "guest"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOrganizer, RoleMember, RoleGuest:
		return true
	}
	return false
}

type User struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name         string              `bson:"name" json:"name"`
	Email        string              `bson:"email" json:"email"`
	PasswordHash string              `bson:"password_hash" json:"-"`
	Role         Role                `bson:"role" json:"role"`
	Phone        string              `bson:"phone,omitempty" json:"phone,omitempty"`
	Temple       *primitive.ObjectID `bson:"temple,omitempty" json:"temple,omitempty"`
	CreatedAt    time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updated_at" json:"updatedAt"`
}

type UserPatch struct {
	Name   *string
	Phone  *string
	Role   *Role
	Temple *primitive.ObjectID
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Phone == nil && p.Role == nil && p.Temple == nil
}

func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Temple != nil {
		t := *p.Temple
		u.Temple = &t
	}
}

// Actor is the authenticated caller as resolved from a bearer token.
type Actor struct {
	UserID primitive.ObjectID
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
