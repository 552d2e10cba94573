package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/response"
	"github.com/phillip/isaithondar-go/store"
	"github.com/phillip/isaithondar-go/utils"
)

type templeRequest struct {
	Name        string                `json:"name" binding:"required"`
	Description string                `json:"description"`
	Location    models.TempleLocation `json:"location"`
	Contact     models.TempleContact  `json:"contact"`
	Deity       models.Deity          `json:"deity"`
	Facilities  []string              `json:"facilities" binding:"omitempty,dive,oneof=parking restrooms drinking_water prasadam_counter book_stall audio_system wheelchair_accessible accommodation dining_hall"`
	Status      models.TempleStatus   `json:"status"`
	IsVerified  bool                  `json:"isVerified"`
	Tags        []string              `json:"tags"`
}

type templePatchRequest struct {
	Name        *string                `json:"name"`
	Description *string                `json:"description"`
	Location    *models.TempleLocation `json:"location"`
	Contact     *models.TempleContact  `json:"contact"`
	Deity       *models.Deity          `json:"deity"`
	Facilities  []string               `json:"facilities" binding:"omitempty,dive,oneof=parking restrooms drinking_water prasadam_counter book_stall audio_system wheelchair_accessible accommodation dining_hall"`
	Status      *models.TempleStatus   `json:"status"`
	IsVerified  *bool                  `json:"isVerified"`
	Tags        []string               `json:"tags"`
}

// ---------------- LIST ----------------
func ListTemples(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := newQuery(c)
		f := store.TempleFilter{
			City:   c.Query("city"),
			State:  c.Query("state"),
			Status: models.TempleStatus(c.Query("status")),
			Search: c.Query("search"),
			Page:   q.page(),
		}
		if f.Status != "" && !f.Status.Valid() {
			q.invalid("status", "Invalid status")
		}
		if !q.ok() {
			return
		}

		temples, total, err := env.Temples.List(c.Request.Context(), f)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		etag, latest := listETag(c, temples, total,
			func(t *models.Temple) primitive.ObjectID { return t.ID },
			func(t *models.Temple) time.Time { return t.UpdatedAt })
		if notModified(c, etag, latest) {
			return
		}
		respondList(c, temples, len(temples), response.NewPagination(f.Page, total), nil)
	}
}

// ---------------- GET ----------------
func GetTemple(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id", "temple")
		if !ok {
			return
		}
		t, err := env.Temples.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		if notModified(c, utils.GenerateETag(t.ID, t.UpdatedAt), t.UpdatedAt) {
			return
		}
		respond(c, http.StatusOK, "", t)
	}
}

// ---------------- CREATE ----------------
func CreateTemple(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		var req templeRequest
		if !bind(c, &req) {
			return
		}
		t, err := env.Temples.Create(c.Request.Context(), a, &models.Temple{
			Name:        req.Name,
			Description: req.Description,
			Location:    req.Location,
			Contact:     req.Contact,
			Deity:       req.Deity,
			Facilities:  req.Facilities,
			Status:      req.Status,
			IsVerified:  req.IsVerified,
			Tags:        req.Tags,
		})
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusCreated, "Temple created successfully", t)
	}
}

// ---------------- UPDATE ----------------
func UpdateTemple(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "temple")
		if !ok {
			return
		}
		var req templePatchRequest
		if !bind(c, &req) {
			return
		}
		patch := models.TemplePatch(req)
		if patch.Empty() {
			fail(c, http.StatusBadRequest, "No fields to update")
			return
		}
		t, err := env.Temples.Update(c.Request.Context(), a, id, patch)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "Temple updated successfully", t)
	}
}

// ---------------- DELETE ----------------
func DeleteTemple(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "temple")
		if !ok {
			return
		}
		if err := env.Temples.Delete(c.Request.Context(), a, id); err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "Temple deleted successfully", nil)
	}
}
