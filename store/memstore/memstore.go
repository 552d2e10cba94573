// Package memstore is an in-process implementation of store.Store. It mirrors the
// conditional-update semantics of the Mongo store under a single mutex.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/store"
)

type Store struct {
	mu        sync.RWMutex
	events    map[primitive.ObjectID]*models.Event
	expenses  map[primitive.ObjectID]*models.Expense
	users     map[primitive.ObjectID]*models.User
	temples   map[primitive.ObjectID]*models.Temple
	pathigams map[primitive.ObjectID]*models.Pathigam
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		events:    make(map[primitive.ObjectID]*models.Event),
		expenses:  make(map[primitive.ObjectID]*models.Expense),
		users:     make(map[primitive.ObjectID]*models.User),
		temples:   make(map[primitive.ObjectID]*models.Temple),
		pathigams: make(map[primitive.ObjectID]*models.Pathigam),
	}
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

func paginate[T any](items []T, p store.Page) []T {
	skip := int(p.Skip())
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if p.Limit > 0 && len(items) > p.Limit {
		items = items[:p.Limit]
	}
	return items
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// sortBy orders items by the first key of spec that less knows, falling back to def.
// less returns (a<b, known).
func sortBy[T any](items []T, spec store.Sort, def string, less func(a, b *T, field string) (bool, bool)) {
	keys := append([]string{}, spec...)
	if len(keys) == 0 {
		keys = []string{def}
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, k := range keys {
			desc := strings.HasPrefix(k, "-")
			field := strings.TrimPrefix(k, "-")
			ab, known := less(&items[i], &items[j], field)
			if !known {
				continue
			}
			ba, _ := less(&items[j], &items[i], field)
			if !ab && !ba {
				continue
			}
			if desc {
				return ba
			}
			return ab
		}
		return false
	})
}
