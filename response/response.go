// Package response writes the JSON envelope shared by handlers and middleware.
package response

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/services"
	"github.com/phillip/isaithondar-go/store"
)

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func NewPagination(p store.Page, total int64) *Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return &Pagination{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

// Envelope is the body of every JSON response.
type Envelope struct {
	Success    bool                  `json:"success"`
	Message    string                `json:"message,omitempty"`
	Data       any                   `json:"data,omitempty"`
	Count      *int                  `json:"count,omitempty"`
	Pagination *Pagination           `json:"pagination,omitempty"`
	Totals     *models.Totals        `json:"totals,omitempty"`
	Errors     []services.FieldError `json:"errors,omitempty"`
}

func OK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

func List(c *gin.Context, data any, count int, p *Pagination, totals *models.Totals) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Count: &count, Pagination: p, Totals: totals})
}

// Fail aborts the chain with an error envelope.
func Fail(c *gin.Context, status int, message string, fields ...services.FieldError) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message, Errors: fields})
}

func Unauthorized(c *gin.Context, message string) {
	Fail(c, http.StatusUnauthorized, message)
}

func Forbidden(c *gin.Context) {
	Fail(c, http.StatusForbidden, "Not authorized to perform this action")
}
