package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/middleware"
	"github.com/phillip/isaithondar-go/services"
	"github.com/phillip/isaithondar-go/store"
	"github.com/phillip/isaithondar-go/utils"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04", "2006-01-02 15:04:05"}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// query collects problems while reading query parameters.
type query struct {
	c      *gin.Context
	fields []services.FieldError
}

func newQuery(c *gin.Context) *query { return &query{c: c} }

func (q *query) invalid(field, message string) {
	q.fields = append(q.fields, services.FieldError{Field: field, Message: message})
}

func (q *query) page() store.Page {
	p := store.Page{Page: 1, Limit: defaultLimit}
	if s := q.c.Query("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			q.invalid("page", "Page must be a positive integer")
		} else {
			p.Page = n
		}
	}
	if s := q.c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxLimit {
			q.invalid("limit", "Limit must be between 1 and 100")
		} else {
			p.Limit = n
		}
	}
	return p
}

func (q *query) date(name string) *time.Time {
	s := q.c.Query(name)
	if s == "" {
		return nil
	}
	t, ok := parseDate(s)
	if !ok {
		q.invalid(name, "Invalid date format, use RFC3339 or YYYY-MM-DD")
		return nil
	}
	return &t
}

// endDate treats a bare YYYY-MM-DD as inclusive of the whole day.
func (q *query) endDate(name string) *time.Time {
	t := q.date(name)
	if t != nil && len(q.c.Query(name)) == len("2006-01-02") {
		end := t.Add(24*time.Hour - time.Nanosecond)
		return &end
	}
	return t
}

func (q *query) objectID(name string) *primitive.ObjectID {
	s := q.c.Query(name)
	if s == "" {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		q.invalid(name, "Invalid "+name+" ID")
		return nil
	}
	return &id
}

func (q *query) boolean(name string) *bool {
	s := q.c.Query(name)
	if s == "" {
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		q.invalid(name, name+" must be true or false")
		return nil
	}
	return &b
}

func (q *query) sort() store.Sort {
	s := q.c.Query("sort")
	if s == "" {
		return nil
	}
	var out store.Sort
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ok writes a 400 when any parameter was invalid.
func (q *query) ok() bool {
	if len(q.fields) == 0 {
		return true
	}
	fail(q.c, http.StatusBadRequest, "Validation failed", q.fields...)
	return false
}

func pathID(c *gin.Context, name, what string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		badID(c, what)
		return primitive.NilObjectID, false
	}
	return id, true
}

// actor returns the authenticated caller; routes without auth never call it.
func actor(c *gin.Context) (models.Actor, bool) {
	a, ok := middleware.Actor(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "Authorization token required")
	}
	return a, ok
}

// notModified sets ETag and reports whether the client copy is current.
func notModified(c *gin.Context, etag string, lastModified time.Time) bool {
	c.Header("ETag", etag)
	if !lastModified.IsZero() {
		c.Header("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	}
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

func listETag[T any](c *gin.Context, items []T, total int64, id func(*T) primitive.ObjectID, updated func(*T) time.Time) (string, time.Time) {
	var latestID primitive.ObjectID
	var latest time.Time
	for i := range items {
		if u := updated(&items[i]); u.After(latest) {
			latest, latestID = u, id(&items[i])
		}
	}
	return utils.ListETag(latestID, latest, total, c.Request.URL.RawQuery), latest
}
