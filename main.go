package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/erpeaz/siteboard/app/controllers"
	"github.com/erpeaz/siteboard/app/repository"
	"github.com/erpeaz/siteboard/internal/pkg/cache"
	"github.com/erpeaz/siteboard/internal/pkg/database"
	"github.com/erpeaz/siteboard/internal/pkg/env"
	"github.com/erpeaz/siteboard/internal/pkg/notify"
	"github.com/erpeaz/siteboard/internal/pkg/reconcile"
	"github.com/erpeaz/siteboard/internal/pkg/router"
	"github.com/erpeaz/siteboard/internal/pkg/upstream"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	hub := notify.NewHub()
	client := upstream.NewClientFromEnv()
	job := reconcile.NewJob(client, repository.GetGlobalRepositories(), hub)
	controllers.Setup(client, hub, job)

	scheduler, err := reconcile.NewScheduler(job)
	if err != nil {
		log.Fatalf("invalid reconcile schedule: %v", err)
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{
		AppName: "SiteBoard",
	})
	app.Use(recover.New(), logger.New(), cors.New())
	app.Get("/metrics", monitor.New())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Server is running")
	})

	// ROUTER
	router.InstallRouter(app)

	return app
}
