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
)

type sessionResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}

func session(s *services.Session) sessionResponse {
	return sessionResponse{
		User:         s.User,
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
		ExpiresAt:    s.Tokens.ExpiresAt,
	}
}

// ---------------- AUTH ----------------
func Register(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name     string `json:"name" binding:"required"`
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
			Phone    string `json:"phone"`
		}
		if !bind(c, &req) {
			return
		}
		s, err := env.Auth.Register(c.Request.Context(), services.RegisterInput{
			Name: req.Name, Email: req.Email, Password: req.Password, Phone: req.Phone,
		})
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusCreated, "User registered successfully", session(s))
	}
}

func Login(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if !bind(c, &req) {
			return
		}
		s, err := env.Auth.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "Login successful", session(s))
	}
}

func RefreshToken(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refreshToken" binding:"required"`
		}
		if !bind(c, &req) {
			return
		}
		s, err := env.Auth.Refresh(c.Request.Context(), req.RefreshToken)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "Token refreshed", session(s))
	}
}

func Me(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		user, err := env.Auth.Me(c.Request.Context(), a)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "", user)
	}
}

// ---------------- USERS ----------------
func ListUsers(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		q := newQuery(c)
		f := store.UserFilter{Role: models.Role(c.Query("role")), Search: c.Query("search"), Page: q.page()}
		if f.Role != "" && !f.Role.Valid() {
			q.invalid("role", "Invalid role")
		}
		if !q.ok() {
			return
		}
		users, total, err := env.Users.List(c.Request.Context(), a, f)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respondList(c, users, len(users), response.NewPagination(f.Page, total), nil)
	}
}

func GetUser(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "user")
		if !ok {
			return
		}
		user, err := env.Users.Get(c.Request.Context(), a, id)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "", user)
	}
}

func UpdateUser(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "user")
		if !ok {
			return
		}
		var req struct {
			Name   *string      `json:"name"`
			Phone  *string      `json:"phone"`
			Role   *models.Role `json:"role"`
			Temple *string      `json:"temple" binding:"omitempty,objectid"`
		}
		if !bind(c, &req) {
			return
		}
		patch := models.UserPatch{Name: req.Name, Phone: req.Phone, Role: req.Role}
		if req.Temple != nil {
			t, _ := primitive.ObjectIDFromHex(*req.Temple)
			patch.Temple = &t
		}
		if patch.Empty() {
			fail(c, http.StatusBadRequest, "No fields to update")
			return
		}
		user, err := env.Users.Update(c.Request.Context(), a, id, patch)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "User updated successfully", user)
	}
}

func DeleteUser(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "user")
		if !ok {
			return
		}
		if err := env.Users.Delete(c.Request.Context(), a, id); err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "User deleted successfully", nil)
	}
}
