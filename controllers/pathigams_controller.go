package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/response"
	"github.com/phillip/isaithondar-go/store"
)

type pathigamRequest struct {
	Title           string                `json:"title" binding:"required"`
	TitleTamil      string                `json:"titleTamil" binding:"required"`
	Content         string                `json:"content" binding:"required"`
	ContentTamil    string                `json:"contentTamil" binding:"required"`
	Transliteration string                `json:"transliteration" binding:"required"`
	AudioURL        string                `json:"audioUrl"`
	Guru            string                `json:"guru"`
	Category        string                `json:"category" binding:"required"`
	Tags            []string              `json:"tags"`
	PathigamNumber  int                   `json:"pathigamNumber" binding:"gte=0"`
	VerseCount      int                   `json:"verseCount" binding:"gte=0"`
	Raga            string                `json:"raga"`
	Tala            string                `json:"tala"`
	Difficulty      string                `json:"difficulty"`
	Status          models.PathigamStatus `json:"status"`
}

// Field order matches models.PathigamPatch so the two convert directly.
type pathigamPatchRequest struct {
	Title           *string                `json:"title"`
	TitleTamil      *string                `json:"titleTamil"`
	Content         *string                `json:"content"`
	ContentTamil    *string                `json:"contentTamil"`
	Transliteration *string                `json:"transliteration"`
	AudioURL        *string                `json:"audioUrl"`
	Guru            *string                `json:"guru"`
	Category        *string                `json:"category"`
	Tags            []string               `json:"tags"`
	PathigamNumber  *int                   `json:"pathigamNumber" binding:"omitempty,gte=0"`
	VerseCount      *int                   `json:"verseCount" binding:"omitempty,gte=0"`
	Raga            *string                `json:"raga"`
	Tala            *string                `json:"tala"`
	Difficulty      *string                `json:"difficulty"`
	Status          *models.PathigamStatus `json:"status"`
}

// ---------------- LIST ----------------
func ListPathigams(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := newQuery(c)
		f := store.PathigamFilter{
			Guru:     c.Query("guru"),
			Category: c.Query("category"),
			Status:   models.PathigamStatus(c.Query("status")),
			Search:   c.Query("search"),
			Sort:     q.sort(),
			Page:     q.page(),
		}
		if f.Status != "" && !f.Status.Valid() {
			q.invalid("status", "Invalid status")
		}
		if !q.ok() {
			return
		}
		items, total, err := env.Pathigams.List(c.Request.Context(), f)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respondList(c, items, len(items), response.NewPagination(f.Page, total), nil)
	}
}

// ---------------- GET ----------------
func GetPathigam(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id", "pathigam")
		if !ok {
			return
		}
		p, err := env.Pathigams.View(c.Request.Context(), id)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "", p)
	}
}

// ---------------- CREATE ----------------
func CreatePathigam(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		var req pathigamRequest
		if !bind(c, &req) {
			return
		}
		p, err := env.Pathigams.Create(c.Request.Context(), a, &models.Pathigam{
			Title:           req.Title,
			TitleTamil:      req.TitleTamil,
			Content:         req.Content,
			ContentTamil:    req.ContentTamil,
			Transliteration: req.Transliteration,
			AudioURL:        req.AudioURL,
			Guru:            req.Guru,
			Category:        req.Category,
			Tags:            req.Tags,
			PathigamNumber:  req.PathigamNumber,
			VerseCount:      req.VerseCount,
			Raga:            req.Raga,
			Tala:            req.Tala,
			Difficulty:      req.Difficulty,
			Status:          req.Status,
		})
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusCreated, "Pathigam created successfully", p)
	}
}

// ---------------- UPDATE ----------------
func UpdatePathigam(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "pathigam")
		if !ok {
			return
		}
		var req pathigamPatchRequest
		if !bind(c, &req) {
			return
		}
		patch := models.PathigamPatch(req)
		if patch.Empty() {
			fail(c, http.StatusBadRequest, "No fields to update")
			return
		}
		p, err := env.Pathigams.Update(c.Request.Context(), a, id, patch)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "Pathigam updated successfully", p)
	}
}

// ---------------- DELETE ----------------
func DeletePathigam(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "pathigam")
		if !ok {
			return
		}
		if err := env.Pathigams.Delete(c.Request.Context(), a, id); err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "Pathigam deleted successfully", nil)
	}
}

// ---------------- LIKE ----------------
func TogglePathigamLike(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "pathigam")
		if !ok {
			return
		}
		liked, err := env.Pathigams.ToggleLike(c.Request.Context(), a, id)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "", gin.H{"liked": liked})
	}
}
