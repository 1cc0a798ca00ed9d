package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/DiveDeskApp/DiveDesk/app/repository"
	"github.com/DiveDeskApp/DiveDesk/internal/pkg/cache"
	"github.com/DiveDeskApp/DiveDesk/internal/pkg/database"
	"github.com/DiveDeskApp/DiveDesk/internal/pkg/env"
	"github.com/DiveDeskApp/DiveDesk/internal/pkg/router"
	"github.com/DiveDeskApp/DiveDesk/internal/pkg/webhooks"
)

func main() {
	app, scheduler := NewApplication()
	scheduler.Start()
	defer scheduler.Stop()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *webhooks.Scheduler) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	app := fiber.New(fiber.Config{
		AppName:      "DiveDesk Webhooks",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app)

	// Background delivery scanner
	dispatcher := webhooks.NewDispatcher(repository.GetGlobalRepositories())
	scheduler := webhooks.NewScheduler(dispatcher, webhooks.DefaultScanInterval)

	return app, scheduler
}
