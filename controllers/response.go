package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/phillip/isaithondar-go/auth"
	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/response"
	"github.com/phillip/isaithondar-go/services"
	"github.com/phillip/isaithondar-go/store"
	"github.com/phillip/isaithondar-go/utils"
)

// Env carries the services the handlers call into.
type Env struct {
	Auth        *services.AuthService
	Users       *services.UserService
	Events      *services.EventService
	Memberships *services.MembershipService
	Expenses    *services.ExpenseService
	Temples     *services.TempleService
	Pathigams   *services.PathigamService
	Store       store.Store
	Log         *zap.Logger
}

func respond(c *gin.Context, status int, message string, data any) {
	response.OK(c, status, message, data)
}

func respondList(c *gin.Context, data any, count int, p *response.Pagination, totals *models.Totals) {
	response.List(c, data, count, p, totals)
}

func fail(c *gin.Context, status int, message string, fields ...services.FieldError) {
	response.Fail(c, status, message, fields...)
}

func badID(c *gin.Context, what string) {
	fail(c, http.StatusBadRequest, "Invalid "+what+" ID")
}

// errorMessages holds the client-facing text for each sentinel. Lookups use
// errors.Is so wrapped errors keep the sentinel's message.
var errorMessages = []struct {
	err error
	msg string
}{
	{services.ErrEventNotFound, "Event not found"},
	{services.ErrExpenseNotFound, "Expense not found"},
	{services.ErrUserNotFound, "User not found"},
	{services.ErrTempleNotFound, "Temple not found"},
	{services.ErrPathigamNotFound, "Pathigam not found"},
	{services.ErrAlreadyJoined, "Already joined this event"},
	{services.ErrNotJoined, "Not a member of this event"},
	{services.ErrEventFull, "Event is full"},
	{services.ErrEventNotJoinable, "Event is not open for joining"},
	{services.ErrAlreadyApproved, "Expense already approved"},
	{services.ErrAlreadyRejected, "Expense already rejected"},
	{services.ErrAlreadyReimbursed, "Expense already reimbursed"},
	{services.ErrReimbursedLocked, "Cannot modify reimbursed expense"},
	{services.ErrInvalidCredentials, "Invalid email or password"},
	{auth.ErrInvalidToken, "Invalid or expired token"},
	{auth.ErrMissingToken, "Authorization token required"},
	{auth.ErrWrongKind, "Token kind not accepted here"},
}

func messageFor(err error, fallback string) string {
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return fallback
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		fail(c, http.StatusBadRequest, "Validation failed", verr.Fields...)
	case services.IsNotFound(err):
		fail(c, http.StatusNotFound, messageFor(err, "Not found"))
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, "Not authorized to perform this action")
	case services.IsConflict(err):
		fail(c, http.StatusBadRequest, messageFor(err, "Request conflicts with current state"))
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrWrongKind),
		errors.Is(err, auth.ErrMissingToken):
		fail(c, http.StatusUnauthorized, messageFor(err, "Not authorized"))
	case errors.Is(err, services.ErrEmailExists):
		fail(c, http.StatusConflict, "User already exists with this email")
	case errors.Is(err, utils.ErrUploadsDisabled):
		fail(c, http.StatusServiceUnavailable, "File uploads are not configured")
	default:
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "Server error")
	}
}

// bind decodes a JSON body and reports binding failures as field errors.
func bind(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]services.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, services.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		fail(c, http.StatusBadRequest, "Validation failed", fields...)
		return false
	}
	fail(c, http.StatusBadRequest, "Invalid request body")
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "objectid":
		return "Valid " + fe.Field() + " ID is required"
	case "hhmm":
		return "Time must be in HH:MM format"
	case "email":
		return "Please provide a valid email"
	case "min", "max", "gte", "lte":
		return fe.Field() + " is out of range"
	}
	return fe.Field() + " is invalid"
}
