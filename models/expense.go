package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ExpenseStatus string

const (
	ExpensePending    ExpenseStatus = "pending"
	ExpenseApproved   ExpenseStatus = "approved"
	ExpenseRejected   ExpenseStatus = "rejected"
	ExpenseReimbursed ExpenseStatus = "reimbursed"
)

func (s ExpenseStatus) Valid() bool {
	switch s {
	case ExpensePending, ExpenseApproved, ExpenseRejected, ExpenseReimbursed:
		return true
	}
	return false
}

// Terminal states accept no further transitions.
func (s ExpenseStatus) Terminal() bool {
	return s == ExpenseRejected || s == ExpenseReimbursed
}

var ExpenseTypes = []string{
	"Food & Catering",
	"Transportation",
	"Instruments Rental",
	"Decorations",
	"Sound System",
	"Venue Charges",
	"Printing & Materials",
	"Miscellaneous",
}

var Currencies = []string{"INR", "USD", "EUR"}

var PaymentMethods = []string{"cash", "card", "upi", "bank_transfer", "cheque"}

type Receipt struct {
	URL        string    `bson:"url" json:"url"`
	Filename   string    `bson:"filename,omitempty" json:"filename,omitempty"`
	UploadedAt time.Time `bson:"uploaded_at" json:"uploadedAt"`
}

type Expense struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Event         primitive.ObjectID  `bson:"event" json:"event"`
	Type          string              `bson:"type" json:"type"`
	Amount        float64             `bson:"amount" json:"amount"`
	Currency      string              `bson:"currency" json:"currency"`
	Description   string              `bson:"description,omitempty" json:"description,omitempty"`
	PaidBy        primitive.ObjectID  `bson:"paid_by" json:"paidBy"`
	PaidTo        string              `bson:"paid_to,omitempty" json:"paidTo,omitempty"`
	PaymentMethod string              `bson:"payment_method" json:"paymentMethod"`
	Date          time.Time           `bson:"date" json:"date"`
	Reimbursed    bool                `bson:"reimbursed" json:"reimbursed"`
	ReimbursedBy  *primitive.ObjectID `bson:"reimbursed_by,omitempty" json:"reimbursedBy,omitempty"`
	ReimbursedAt  *time.Time          `bson:"reimbursed_at,omitempty" json:"reimbursedAt,omitempty"`
	Receipt       *Receipt            `bson:"receipt,omitempty" json:"receipt,omitempty"`
	ApprovedBy    *primitive.ObjectID `bson:"approved_by,omitempty" json:"approvedBy,omitempty"`
	ApprovedAt    *time.Time          `bson:"approved_at,omitempty" json:"approvedAt,omitempty"`
	Status        ExpenseStatus       `bson:"status" json:"status"`
	Notes         string              `bson:"notes,omitempty" json:"notes,omitempty"`
	Tags          []string            `bson:"tags" json:"tags"`
	CreatedAt     time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time           `bson:"updated_at" json:"updatedAt"`

	// Display names filled in by the API layer; never stored.
	PaidByName       string `bson:"-" json:"paidByName,omitempty"`
	ApprovedByName   string `bson:"-" json:"approvedByName,omitempty"`
	ReimbursedByName string `bson:"-" json:"reimbursedByName,omitempty"`
}

// ExpensePatch holds the user-editable expense fields. Status, approval and
// reimbursement only change through lifecycle transitions.
type ExpensePatch struct {
	Type          *string
	Amount        *float64
	Currency      *string
	Description   *string
	PaidTo        *string
	PaymentMethod *string
	Date          *time.Time
	Notes         *string
	Tags          []string
	Receipt       *Receipt
}

func (p ExpensePatch) Empty() bool {
	return p.Type == nil && p.Amount == nil && p.Currency == nil && p.Description == nil &&
		p.PaidTo == nil && p.PaymentMethod == nil && p.Date == nil && p.Notes == nil &&
		p.Tags == nil && p.Receipt == nil
}

func (p ExpensePatch) Apply(x *Expense) {
	if p.Type != nil {
		x.Type = *p.Type
	}
	if p.Amount != nil {
		x.Amount = *p.Amount
	}
	if p.Currency != nil {
		x.Currency = *p.Currency
	}
	if p.Description != nil {
		x.Description = *p.Description
	}
	if p.PaidTo != nil {
		x.PaidTo = *p.PaidTo
	}
	if p.PaymentMethod != nil {
		x.PaymentMethod = *p.PaymentMethod
	}
	if p.Date != nil {
		x.Date = *p.Date
	}
	if p.Notes != nil {
		x.Notes = *p.Notes
	}
	if p.Tags != nil {
		x.Tags = p.Tags
	}
	if p.Receipt != nil {
		x.Receipt = p.Receipt
	}
}

// ExpenseTransition is a status change applied only when the stored status is one of From.
type ExpenseTransition struct {
	From []ExpenseStatus
	To   ExpenseStatus
	By   primitive.ObjectID
	At   time.Time
}

// Apply sets the status and the audit fields that belong to the target state.
func (t ExpenseTransition) Apply(x *Expense) {
	x.Status = t.To
	by, at := t.By, t.At
	switch t.To {
	case ExpenseApproved:
		x.ApprovedBy = &by
		x.ApprovedAt = &at
	case ExpenseReimbursed:
		x.Reimbursed = true
		x.ReimbursedBy = &by
		x.ReimbursedAt = &at
	}
	x.UpdatedAt = t.At
}

func (t ExpenseTransition) Allows(s ExpenseStatus) bool {
	for _, f := range t.From {
		if f == s {
			return true
		}
	}
	return false
}

// TypeSummary is one row of a per-event expense breakdown.
type TypeSummary struct {
	Type             string  `json:"type"`
	TotalAmount      float64 `json:"totalAmount"`
	Count            int     `json:"count"`
	ReimbursedAmount float64 `json:"reimbursedAmount"`
	PendingAmount    float64 `json:"pendingAmount"`
}

// Totals is the aggregate over an expense listing.
type Totals struct {
	TotalAmount      float64 `json:"totalAmount"`
	ReimbursedAmount float64 `json:"reimbursedAmount"`
	PendingAmount    float64 `json:"pendingAmount"`
}
