package controllers

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/response"
	"github.com/phillip/isaithondar-go/services"
	"github.com/phillip/isaithondar-go/store"
)

type expenseRequest struct {
	Event         string   `json:"event" binding:"required,objectid"`
	Type          string   `json:"type" binding:"required"`
	Amount        *float64 `json:"amount" binding:"required"`
	Currency      string   `json:"currency"`
	Description   string   `json:"description"`
	PaidTo        string   `json:"paidTo"`
	PaymentMethod string   `json:"paymentMethod"`
	Date          string   `json:"date"`
	Notes         string   `json:"notes"`
	Tags          []string `json:"tags"`
}

type expensePatchRequest struct {
	Type          *string  `json:"type"`
	Amount        *float64 `json:"amount"`
	Currency      *string  `json:"currency"`
	Description   *string  `json:"description"`
	PaidTo        *string  `json:"paidTo"`
	PaymentMethod *string  `json:"paymentMethod"`
	Date          *string  `json:"date"`
	Notes         *string  `json:"notes"`
	Tags          []string `json:"tags"`
}

func expenseFilter(q *query) store.ExpenseFilter {
	f := store.ExpenseFilter{
		Event:      q.objectID("event"),
		Type:       q.c.Query("type"),
		Status:     models.ExpenseStatus(q.c.Query("status")),
		Reimbursed: q.boolean("reimbursed"),
		StartDate:  q.date("startDate"),
		EndDate:    q.endDate("endDate"),
		Sort:       q.sort(),
		Page:       q.page(),
	}
	if f.Status != "" && !f.Status.Valid() {
		q.invalid("status", "Invalid status")
	}
	return f
}

// ---------------- LIST ----------------
func ListExpenses(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		q := newQuery(c)
		f := expenseFilter(q)
		if !q.ok() {
			return
		}

		list, err := env.Expenses.List(c.Request.Context(), a, f)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		nameExpenses(c, env, list.Items)
		respondList(c, list.Items, len(list.Items), response.NewPagination(f.Page, list.Total), &list.Totals)
	}
}

var csvHeader = []string{"id", "event", "type", "amount", "currency", "status", "reimbursed", "paidBy", "paidTo", "paymentMethod", "date", "description"}

// csvCell quotes user text that a spreadsheet would otherwise run as a formula.
func csvCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

// ---------------- EXPORT ----------------
func ExportExpenses(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		q := newQuery(c)
		f := expenseFilter(q)
		if !q.ok() {
			return
		}

		rows, err := env.Expenses.Export(c.Request.Context(), a, f)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}

		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="expenses.csv"`)
		c.Status(http.StatusOK)
		w := csv.NewWriter(c.Writer)
		_ = w.Write(csvHeader)
		for _, x := range rows {
			_ = w.Write([]string{
				x.ID.Hex(),
				x.Event.Hex(),
				csvCell(x.Type),
				strconv.FormatFloat(x.Amount, 'f', 2, 64),
				csvCell(x.Currency),
				string(x.Status),
				strconv.FormatBool(x.Reimbursed),
				x.PaidBy.Hex(),
				csvCell(x.PaidTo),
				csvCell(x.PaymentMethod),
				x.Date.UTC().Format("2006-01-02"),
				csvCell(x.Description),
			})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = c.Error(err)
		}
	}
}

// ---------------- SUMMARY ----------------
func ExpenseSummary(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "eventId", "event")
		if !ok {
			return
		}
		rows, err := env.Expenses.Summary(c.Request.Context(), a, id)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "", rows)
	}
}

// ---------------- GET ----------------
func GetExpense(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "expense")
		if !ok {
			return
		}
		x, err := env.Expenses.Get(c.Request.Context(), a, id)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		one := []models.Expense{*x}
		nameExpenses(c, env, one)
		respond(c, http.StatusOK, "", one[0])
	}
}

// ---------------- CREATE ----------------
func CreateExpense(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		var req expenseRequest
		if !bind(c, &req) {
			return
		}
		in := services.CreateExpenseInput{
			Type:          req.Type,
			Amount:        *req.Amount,
			Currency:      req.Currency,
			Description:   req.Description,
			PaidTo:        req.PaidTo,
			PaymentMethod: req.PaymentMethod,
			Notes:         req.Notes,
			Tags:          req.Tags,
		}
		in.Event, _ = primitive.ObjectIDFromHex(req.Event)
		if req.Date != "" {
			d, valid := parseDate(req.Date)
			if !valid {
				fail(c, http.StatusBadRequest, "Validation failed", services.FieldError{Field: "date", Message: "Valid date is required"})
				return
			}
			in.Date = &d
		}

		x, err := env.Expenses.Create(c.Request.Context(), a, in)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusCreated, "Expense created successfully", x)
	}
}

// ---------------- UPDATE ----------------
func UpdateExpense(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "expense")
		if !ok {
			return
		}
		var req expensePatchRequest
		if !bind(c, &req) {
			return
		}
		patch := models.ExpensePatch{
			Type:          req.Type,
			Amount:        req.Amount,
			Currency:      req.Currency,
			Description:   req.Description,
			PaidTo:        req.PaidTo,
			PaymentMethod: req.PaymentMethod,
			Notes:         req.Notes,
			Tags:          req.Tags,
		}
		if req.Date != nil {
			d, valid := parseDate(*req.Date)
			if !valid {
				fail(c, http.StatusBadRequest, "Validation failed", services.FieldError{Field: "date", Message: "Valid date is required"})
				return
			}
			patch.Date = &d
		}
		if patch.Empty() {
			fail(c, http.StatusBadRequest, "No fields to update")
			return
		}

		x, err := env.Expenses.Update(c.Request.Context(), a, id, patch)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "Expense updated successfully", x)
	}
}

// ---------------- DELETE ----------------
func DeleteExpense(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "expense")
		if !ok {
			return
		}
		if err := env.Expenses.Delete(c.Request.Context(), a, id); err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "Expense deleted successfully", nil)
	}
}

// ---------------- LIFECYCLE ----------------
func expenseTransition(env *Env, message string, run func(c *gin.Context, a models.Actor, id primitive.ObjectID) (*models.Expense, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "expense")
		if !ok {
			return
		}
		x, err := run(c, a, id)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, message, x)
	}
}

func ApproveExpense(env *Env) gin.HandlerFunc {
	return expenseTransition(env, "Expense approved successfully",
		func(c *gin.Context, a models.Actor, id primitive.ObjectID) (*models.Expense, error) {
			return env.Expenses.Approve(c.Request.Context(), a, id)
		})
}

func RejectExpense(env *Env) gin.HandlerFunc {
	return expenseTransition(env, "Expense rejected",
		func(c *gin.Context, a models.Actor, id primitive.ObjectID) (*models.Expense, error) {
			return env.Expenses.Reject(c.Request.Context(), a, id)
		})
}

func ReimburseExpense(env *Env) gin.HandlerFunc {
	return expenseTransition(env, "Expense marked as reimbursed",
		func(c *gin.Context, a models.Actor, id primitive.ObjectID) (*models.Expense, error) {
			return env.Expenses.MarkReimbursed(c.Request.Context(), a, id)
		})
}

// ---------------- RECEIPT ----------------
func UploadReceipt(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id", "expense")
		if !ok {
			return
		}
		fh, err := c.FormFile("receipt")
		if err != nil {
			fail(c, http.StatusBadRequest, "Validation failed", services.FieldError{Field: "receipt", Message: "Receipt file is required"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			fail(c, http.StatusBadRequest, "Failed to open file "+fh.Filename)
			return
		}
		defer f.Close()

		x, err := env.Expenses.AttachReceipt(c.Request.Context(), a, id, f, fh.Filename)
		if err != nil {
			respondError(c, env.Log, err)
			return
		}
		respond(c, http.StatusOK, "Receipt uploaded successfully", x)
	}
}
