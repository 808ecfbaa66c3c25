package router

import (
	"strconv"

	"github.com/erpeaz/siteboard/app/controllers"
	"github.com/erpeaz/siteboard/internal/pkg/env"
	"github.com/erpeaz/siteboard/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Storage: limiterStorage(),
	}))

	// Auth stays public
	auth := api.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Post("/login", controllers.HandleLogin)

	protected := api.Group("", middleware.JWTAuthMiddleware())

	// Sites (upstream proxy)
	protected.Get("/sites", controllers.HandleListSites)
	protected.Get("/sites/:siteId", controllers.HandleGetSite)

	// Subscriptions
	protected.Get("/sites/:siteId/subscription", controllers.HandleGetSubscription)
	protected.Post("/sites/:siteId/subscription", controllers.HandleInitSubscription)
	protected.Patch("/sites/:siteId/subscription", controllers.HandleRenewSubscription)

	// Expenses
	protected.Get("/sites/:siteId/expenses", controllers.HandleListExpenses)
	protected.Post("/sites/:siteId/expenses", controllers.HandleCreateExpense)
	protected.Get("/sites/:siteId/expenses/summary", controllers.HandleExpenseSummary)
	protected.Put("/sites/:siteId/expenses/:expenseId", controllers.HandleUpdateExpense)
	protected.Delete("/sites/:siteId/expenses/:expenseId", controllers.HandleDeleteExpense)

	// Revenue
	protected.Get("/sites/:siteId/revenue/summary", controllers.HandleRevenueSummary)
	protected.Get("/sites/:siteId/revenue/fy-summary", controllers.HandleRevenueFYSummary)
	protected.Get("/sites/:siteId/revenue/transactions", controllers.HandleRevenueTransactions)
	protected.Get("/revenue/fy-overview", controllers.HandleRevenueFYOverview)

	// Notifications. mark-all-read is registered before :id/read so the
	// literal segment wins.
	protected.Get("/notifications", controllers.HandleListNotifications)
	protected.Post("/notifications", controllers.HandleCreateNotification)
	protected.Patch("/notifications/mark-all-read", controllers.HandleMarkAllNotificationsRead)
	protected.Patch("/notifications/:id/read", controllers.HandleMarkNotificationRead)
	protected.Get("/notifications/stream", controllers.HandleNotificationStream)

	// Admin
	admin := protected.Group("/admin", middleware.RequireAdmin())
	admin.Post("/reconcile", controllers.HandleForceReconcile)
}

func limiterStorage() *redisstorage.Storage {
	port, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host: env.GetEnv("CACHE_HOST", "localhost"),
		Port: port,
		// Keep limiter counters away from the app cache keyspace.
		Database: 1,
		Reset:    false,
	})
}
