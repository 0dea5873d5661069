package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/saeid-a/CoachLedgerBack/internal/config"
	"github.com/saeid-a/CoachLedgerBack/internal/handlers"
	"github.com/saeid-a/CoachLedgerBack/internal/middleware"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
	"github.com/saeid-a/CoachLedgerBack/internal/repository"
	"github.com/saeid-a/CoachLedgerBack/internal/services"
	cashws "github.com/saeid-a/CoachLedgerBack/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, hub *cashws.Hub) {
	userRepo := repository.NewUserRepository(db)
	mentorshipRepo := repository.NewMentorshipRepository(db)
	categoryRepo := repository.NewExpenseCategoryRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	registerRepo := repository.NewCashRegisterRepository(db)
	sessionRepo := repository.NewCashSessionRepository(db)
	movementRepo := repository.NewCashMovementRepository(db)
	var storageService services.StorageService
	if cfg.StorageConfigured() {
		storageService = services.NewSupabaseStorageService(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	}

	mentorshipService := services.NewMentorshipService(mentorshipRepo, userRepo, cfg.Batch)
	cashService := services.NewCashService(db, registerRepo, sessionRepo, movementRepo, expenseRepo, hub)
	expenseService := services.NewExpenseService(categoryRepo, expenseRepo, cashService, storageService, hub, cfg.Batch)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	mentorshipHandler := handlers.NewMentorshipHandler(mentorshipService)
	expenseHandler := handlers.NewExpenseHandler(expenseService)
	cashHandler := handlers.NewCashHandler(cashService)
	realtimeHandler := handlers.NewRealtimeHandler(hub, cfg.JWTSecret)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))
	coachOnly := middleware.RequireRole(models.RoleCoach)

	authProtected.Get("/coaches/:id/mentorships", mentorshipHandler.Catalog)

	mentorships := authProtected.Group("/mentorships")
	mentorships.Get("", mentorshipHandler.List)
	mentorships.Post("", coachOnly, mentorshipHandler.Create)
	mentorships.Get("/lookup", mentorshipHandler.Lookup)
	mentorships.Post("/bulk", coachOnly, mentorshipHandler.BulkCreate)
	mentorships.Put("/bulk", coachOnly, mentorshipHandler.BulkUpdate)
	mentorships.Delete("/bulk", coachOnly, mentorshipHandler.BulkDelete)
	mentorships.Get("/:id", mentorshipHandler.Get)
	mentorships.Put("/:id", coachOnly, mentorshipHandler.Update)
	mentorships.Delete("/:id", coachOnly, mentorshipHandler.Delete)

	categories := authProtected.Group("/expense-categories")
	categories.Get("", expenseHandler.ListCategories)
	categories.Post("", coachOnly, expenseHandler.CreateCategory)
	categories.Post("/defaults", coachOnly, expenseHandler.SeedDefaultCategories)
	categories.Put("/:id", coachOnly, expenseHandler.UpdateCategory)
	categories.Delete("/:id", coachOnly, expenseHandler.DeleteCategory)

	expenses := authProtected.Group("/expenses")
	expenses.Get("", expenseHandler.ListExpenses)
	expenses.Post("", coachOnly, expenseHandler.CreateExpense)
	expenses.Post("/overdue-sweep", coachOnly, expenseHandler.OverdueSweep)
	expenses.Get("/:id", expenseHandler.GetExpense)
	expenses.Put("/:id", coachOnly, expenseHandler.UpdateExpense)
	expenses.Delete("/:id", coachOnly, expenseHandler.DeleteExpense)
	expenses.Post("/:id/pay", coachOnly, expenseHandler.MarkPaid)
	expenses.Post("/:id/attachments", coachOnly, expenseHandler.AddAttachment)

	cash := authProtected.Group("/cash")
	cash.Get("/summary", cashHandler.Summary)

	registers := cash.Group("/registers")
	registers.Get("", cashHandler.ListRegisters)
	registers.Post("", coachOnly, cashHandler.CreateRegister)
	registers.Put("/:id", coachOnly, cashHandler.UpdateRegister)
	registers.Delete("/:id", coachOnly, cashHandler.DeleteRegister)
	registers.Get("/:id/sessions", cashHandler.ListSessions)
	registers.Post("/:id/sessions", coachOnly, cashHandler.OpenSession)
	registers.Get("/:id/sessions/current", cashHandler.CurrentSession)

	sessions := cash.Group("/sessions")
	sessions.Get("/:id", cashHandler.GetSession)
	sessions.Post("/:id/close", coachOnly, cashHandler.CloseSession)
	sessions.Get("/:id/movements", cashHandler.ListMovements)
	sessions.Post("/:id/movements", coachOnly, cashHandler.AddMovement)

	cash.Delete("/movements/:id", coachOnly, cashHandler.DeleteMovement)

	app.Use("/ws", realtimeHandler.WebSocketAuth)
	app.Get("/ws", websocket.New(realtimeHandler.HandleWebSocket))
}
