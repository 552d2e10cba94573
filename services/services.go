// Package services holds the business rules: membership, the expense
// lifecycle, summaries and the directory entities. Handlers call into it with
// the authenticated models.Actor.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/store"
)

// Clock lets tests pin "now".
type Clock func() time.Time

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// translate maps store.ErrNotFound to the entity-specific sentinel.
func translate(err, notFound error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	return err
}

func getEvent(ctx context.Context, s store.EventStore, id primitive.ObjectID) (*models.Event, error) {
	e, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, translate(err, ErrEventNotFound)
	}
	return e, nil
}

func getExpense(ctx context.Context, s store.ExpenseStore, id primitive.ObjectID) (*models.Expense, error) {
	x, err := s.GetExpense(ctx, id)
	if err != nil {
		return nil, translate(err, ErrExpenseNotFound)
	}
	return x, nil
}

var validate = validator.New()

func validHTTPURL(s string) bool { return validate.Var(s, "http_url") == nil }

func validEmail(s string) bool { return validate.Var(s, "email") == nil }

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

// normalizeTags lower-cases, trims and de-duplicates tags.
func normalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func length(s string) int { return len([]rune(strings.TrimSpace(s))) }
