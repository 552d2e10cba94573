// Package policy holds the role and ownership checks that gate every mutation.
// The functions are pure; callers decide how a false result is reported.
package policy

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
)

// CanManageEvent: admins manage every event, organizers only the ones they created.
func CanManageEvent(actor models.Actor, event *models.Event) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.Role == models.RoleOrganizer && event.CreatedBy == actor.UserID
}

// CanManageExpense: admins and the member who paid.
func CanManageExpense(actor models.Actor, expense *models.Expense) bool {
	return actor.IsAdmin() || expense.PaidBy == actor.UserID
}

// CanAccessEventScopedResource covers reads and writes of things that hang off an
// event (its expenses, its summary): admins, the creator, and anyone on the roster.
func CanAccessEventScopedResource(actor models.Actor, event *models.Event) bool {
	return actor.IsAdmin() || event.CreatedBy == actor.UserID || event.HasJoined(actor.UserID)
}

// CanViewExpense lets the payer through even after leaving the event.
func CanViewExpense(actor models.Actor, expense *models.Expense, event *models.Event) bool {
	if CanManageExpense(actor, expense) {
		return true
	}
	return event != nil && CanAccessEventScopedResource(actor, event)
}

// HasRole reports whether the actor holds one of roles.
func HasRole(actor models.Actor, roles ...models.Role) bool {
	for _, r := range roles {
		if actor.Role == r {
			return true
		}
	}
	return false
}

// CanManageOwned is the creator-or-admin rule used for temples and pathigams.
func CanManageOwned(actor models.Actor, createdBy primitive.ObjectID) bool {
	return actor.IsAdmin() || actor.UserID == createdBy
}
