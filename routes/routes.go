package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/phillip/isaithondar-go/auth"
	controllers "github.com/phillip/isaithondar-go/controllers"
	"github.com/phillip/isaithondar-go/metrics"
	middleware "github.com/phillip/isaithondar-go/middleware"
	models "github.com/phillip/isaithondar-go/models"
)

func SetupRoutes(r *gin.Engine, env *controllers.Env, tokens *auth.TokenManager, m *metrics.Metrics) {
	r.GET("/healthz", controllers.Health(env))
	if m != nil {
		r.GET("/metrics", m.Handler())
	}

	api := r.Group("/api")
	authn := middleware.AuthMiddleware(tokens)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleOrganizer)

	// public
	api.POST("/auth/register", controllers.Register(env))
	api.POST("/auth/login", controllers.Login(env))
	api.POST("/auth/refresh", controllers.RefreshToken(env))
	api.GET("/auth/me", authn, controllers.Me(env))

	users := api.Group("/users")
	users.Use(authn)
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin), controllers.ListUsers(env))
		users.GET("/:id", controllers.GetUser(env))
		users.PATCH("/:id", controllers.UpdateUser(env))
		users.DELETE("/:id", controllers.DeleteUser(env))
	}

	events := api.Group("/events")
	{
		events.GET("", controllers.ListEvents(env))
		events.GET("/my/events", authn, controllers.MyEvents(env))
		events.GET("/:id", controllers.GetEvent(env))
		events.POST("", authn, staff, controllers.CreateEvent(env))
		events.PUT("/:id", authn, controllers.UpdateEvent(env))
		events.DELETE("/:id", authn, controllers.DeleteEvent(env))
		events.POST("/:id/join", authn, controllers.JoinEvent(env))
		events.POST("/:id/leave", authn, controllers.LeaveEvent(env))
		events.POST("/:id/images", authn, controllers.UploadEventImages(env))
	}

	expenses := api.Group("/expenses")
	expenses.Use(authn)
	{
		expenses.GET("", controllers.ListExpenses(env))
		expenses.GET("/export", controllers.ExportExpenses(env))
		expenses.GET("/summary/:eventId", controllers.ExpenseSummary(env))
		expenses.GET("/:id", controllers.GetExpense(env))
		expenses.POST("", controllers.CreateExpense(env))
		expenses.PUT("/:id", controllers.UpdateExpense(env))
		expenses.DELETE("/:id", controllers.DeleteExpense(env))
		expenses.PUT("/:id/approve", staff, controllers.ApproveExpense(env))
		expenses.PUT("/:id/reject", staff, controllers.RejectExpense(env))
		expenses.PUT("/:id/reimburse", middleware.RequireRoles(models.RoleAdmin), controllers.ReimburseExpense(env))
		expenses.POST("/:id/receipt", controllers.UploadReceipt(env))
	}

	temples := api.Group("/temples")
	{
		temples.GET("", controllers.ListTemples(env))
		temples.GET("/:id", controllers.GetTemple(env))
		temples.POST("", authn, staff, controllers.CreateTemple(env))
		temples.PUT("/:id", authn, controllers.UpdateTemple(env))
		temples.DELETE("/:id", authn, controllers.DeleteTemple(env))
	}

	pathigams := api.Group("/pathigams")
	{
		pathigams.GET("", controllers.ListPathigams(env))
		pathigams.GET("/:id", controllers.GetPathigam(env))
		pathigams.POST("", authn, staff, controllers.CreatePathigam(env))
		pathigams.PUT("/:id", authn, controllers.UpdatePathigam(env))
		pathigams.DELETE("/:id", authn, controllers.DeletePathigam(env))
		pathigams.POST("/:id/like", authn, controllers.TogglePathigamLike(env))
	}
}
