package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/response"
	"github.com/phillip/isaithondar-go/services"
	"github.com/phillip/isaithondar-go/store"
	"github.com/phillip/isaithondar-go/utils"
)

type eventRequest struct {
	Name             string   `json:"name" binding:"required"`
	Description      string   `json:"description"`
	Location         string   `json:"location" binding:"required"`
	LocationURL      string   `json:"locationUrl"`
	Temple           string   `json:"temple" binding:"required,objectid"`
	Date             string   `json:"date" binding:"required"`
	Time             string   `json:"time" binding:"required,hhmm"`
	Duration         int      `json:"duration"`
	MembersNeeded    int      `json:"membersNeeded" binding:"required"`
	Instruments      []string `json:"instruments"`
	FoodRequired     bool     `json:"foodRequired"`
	FoodType         string   `json:"foodType"`
	Notes            string   `json:"notes"`
	Guru             string   `json:"guru"`
	ThevaramPathigam []string `json:"thevaramPathigam" binding:"omitempty,dive,objectid"`
	Tags             []string `json:"tags"`
	IsPublic         *bool    `json:"isPublic"`
}

type eventPatchRequest struct {
	Name             *string             `json:"name"`
	Description      *string             `json:"description"`
	Location         *string             `json:"location"`
	LocationURL      *string             `json:"locationUrl"`
	Temple           *string             `json:"temple" binding:"omitempty,objectid"`
	Date             *string             `json:"date"`
	Time             *string             `json:"time" binding:"omitempty,hhmm"`
	Duration         *int                `json:"duration"`
	MembersNeeded    *int                `json:"membersNeeded"`
	Instruments      []string            `json:"instruments"`
	FoodRequired     *bool               `json:"foodRequired"`
	FoodType         *string             `json:"foodType"`
	Notes            *string             `json:"notes"`
	Guru             *string             `json:"guru"`
	ThevaramPathigam []string            `json:"thevaramPathigam" binding:"omitempty,dive,objectid"`
	Status           *models.EventStatus `json:"status"`
	Tags             []string            `json:"tags"`
	IsPublic         *bool               `json:"isPublic"`
}

func objectIDs(hexes []string) []primitive.ObjectID {
	if hexes == nil {
		return nil
	}
	ids := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		if id, err := primitive.ObjectIDFromHex(h); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r eventPatchRequest) patch() (models.EventPatch, []services.FieldError) {
	var bad []services.FieldError
	p := models.EventPatch{
		Name:             r.Name,
		Description:      r.Description,
		Location:         r.Location,
		LocationURL:      r.LocationURL,
		Time:             r.Time,
		Duration:         r.Duration,
		MembersNeeded:    r.MembersNeeded,
		Instruments:      r.Instruments,
		FoodRequired:     r.FoodRequired,
		FoodType:         r.FoodType,
		Notes:            r.Notes,
		Guru:             r.Guru,
		ThevaramPathigam: objectIDs(r.ThevaramPathigam),
		Status:           r.Status,
		Tags:             r.Tags,
		IsPublic:         r.IsPublic,
	}
	if r.Temple != nil {
		id, _ := primitive.ObjectIDFromHex(*r.Temple)
		p.Temple = &id
	}
	if r.Date != nil {
		d, ok := parseDate(*r.Date)
		if !ok {
			bad = append(bad, services.FieldError{Field: "date", Message: "Valid date is required"})
		}
		p.Date = &d
	}
	return p, bad
}

func views(events []models.Event) []models.EventView {
	out := make([]models.EventView, len(events))
	for i := range events {
		out[i] = events[i].View()
	}
	return out
}

func eventFilter(q *query) store.EventFilter {
	return store.EventFilter{
		Status:    models.EventStatus(q.c.Query("status")),
		Temple:    q.objectID("temple"),
		StartDate: q.date("startDate"),
		EndDate:   q.endDate("endDate"),
		Search:    q.c.Query("search"),
		Sort:      q.sort(),
		Page:      q.page(),
	}
}

func writeEventList(c *gin.Context, env *Env, events []models.Event, total int64, page store.Page) {
	etag, latest := listETag(c, events, total,
		func(e *models.Event) primitive.ObjectID { return e.ID },
		func(e *models.Event) time.Time { return e.UpdatedAt })
	if notModified(c, etag, latest) {
		return
	}
	out := views(events)
	nameEvents(c, env, out)
	respondList(c, out, len(events), response.NewPagination(page, total), nil)
}

// ---------------- LIST ----------------
func ListEvents(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := newQuery(c)
		f := eventFilter(q)
		if s := f.Status; s != "" && !s.Valid() {
			q.invalid("status", "Invalid status")
		}
		if !q.ok() {
			return
		}

		events, total, err := env.Events.List(c.Request.Context(), f)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		writeEventList(c, env, events, total, f.Page)
	}
}

// ---------------- MY EVENTS ----------------
func MyEvents(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		q := newQuery(c)
		f := eventFilter(q)
		if !q.ok() {
			return
		}

		events, total, err := env.Events.ListMine(c.Request.Context(), a, f)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		writeEventList(c, env, events, total, f.Page)
	}
}

// ---------------- GET ----------------
func GetEvent(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id", "event")
		if !ok {
			return
		}
		event, err := env.Events.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		if notModified(c, utils.GenerateETag(event.ID, event.UpdatedAt), event.UpdatedAt) {
			return
		}
		view := []models.EventView{event.View()}
		nameEvents(c, env, view)
		respond(c, http.StatusOK, "", view[0])
	}
}

// ---------------- CREATE ----------------
func CreateEvent(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		var req eventRequest
		if !bind(c, &req) {
			return
		}
		date, valid := parseDate(req.Date)
		if !valid {
			fail(c, http.StatusBadRequest, "Validation failed", services.FieldError{Field: "date", Message: "Valid date is required"})
			return
		}
		temple, _ := primitive.ObjectIDFromHex(req.Temple)

		event, err := env.Events.Create(c.Request.Context(), a, services.CreateEventInput{
			Name:             req.Name,
			Description:      req.Description,
			Location:         req.Location,
			LocationURL:      req.LocationURL,
			Temple:           temple,
			Date:             date,
			Time:             req.Time,
			Duration:         req.Duration,
			MembersNeeded:    req.MembersNeeded,
			Instruments:      req.Instruments,
			FoodRequired:     req.FoodRequired,
			FoodType:         req.FoodType,
			Notes:            req.Notes,
			Guru:             req.Guru,
			ThevaramPathigam: objectIDs(req.ThevaramPathigam),
			Tags:             req.Tags,
			IsPublic:         req.IsPublic,
		})
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusCreated, "Event created successfully", event.View())
	}
}

// ---------------- UPDATE ----------------
func UpdateEvent(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "event")
		if !ok {
			return
		}
		var req eventPatchRequest
		if !bind(c, &req) {
			return
		}
		patch, bad := req.patch()
		if len(bad) > 0 {
			fail(c, http.StatusBadRequest, "Validation failed", bad...)
			return
		}
		if patch.Empty() {
			fail(c, http.StatusBadRequest, "No fields to update")
			return
		}

		event, err := env.Events.Update(c.Request.Context(), a, id, patch)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "Event updated successfully", event.View())
	}
}

// ---------------- DELETE ----------------
func DeleteEvent(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "event")
		if !ok {
			return
		}
		if err := env.Events.Delete(c.Request.Context(), a, id); err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "Event deleted successfully", nil)
	}
}

// ---------------- MEMBERSHIP ----------------
func JoinEvent(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "event")
		if !ok {
			return
		}
		var req struct {
			Role models.MemberRole `json:"role"`
		}
		if c.Request.ContentLength > 0 && !bind(c, &req) {
			return
		}

		event, err := env.Memberships.Join(c.Request.Context(), a, id, req.Role)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "Successfully joined event", event.View())
	}
}

func LeaveEvent(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "event")
		if !ok {
			return
		}
		event, err := env.Memberships.Leave(c.Request.Context(), a, id)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "Successfully left event", event.View())
	}
}

// ---------------- IMAGES ----------------
func UploadEventImages(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "event")
		if !ok {
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid form data")
			return
		}

		files := form.File["images"]
		captions := form.Value["captions"]
		uploads := make([]services.ImageUpload, 0, len(files))
		for i, fh := range files {
			f, err := fh.Open()
			if err != nil {
				fail(c, http.StatusBadRequest, "Failed to open file "+fh.Filename)
				return
			}
			defer f.Close()
			up := services.ImageUpload{File: f}
			if i < len(captions) {
				up.Caption = captions[i]
			}
			uploads = append(uploads, up)
		}

		event, err := env.Events.AddImages(c.Request.Context(), a, id, uploads)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "Images uploaded successfully", event.View())
	}
}
