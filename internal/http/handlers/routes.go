package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	applog "timebank/internal/log"
	"timebank/internal/metrics"
)

// Register mounts the JSON API under /api/v1 plus the ops endpoints.
func Register(app *fiber.App, d *Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/api/v1")
	auth := RequireUser(d.AuthSvc, d.Tokens)

	loginLimiter := limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many attempts. Please try again later."})
		},
	})
	api.Post("/login", loginLimiter, d.Auth.Login)
	api.Post("/token", loginLimiter, d.Auth.Token)
	api.Post("/logout", d.Auth.Logout)

	api.Get("/categories", d.Catalog.Categories)
	api.Get("/tags", d.Catalog.Tags)

	api.Get("/listings", d.Listings.Search)
	api.Get("/listings/:id", d.Listings.Get)
	api.Post("/listings", auth, d.Listings.Create)
	api.Post("/listings/:id", auth, d.Listings.Edit)
	api.Patch("/listings/:id", auth, d.Listings.Edit)
	api.Delete("/listings/:id", auth, d.Listings.Delete)
	api.Get("/listings/:id/availability", d.Listings.Availability)
	api.Post("/listings/:id/availability", auth, d.Listings.AddAvailability)

	api.Post("/listings/:id/apply", auth, d.Applications.Apply)
	api.Get("/listings/:id/applications", auth, d.Applications.ForListing)
	api.Post("/listings/:id/select", auth, d.Applications.Select)
	api.Post("/listings/:id/complete", auth, d.Applications.Complete)

	api.Post("/transactions/:id/feedback", auth, d.Feedback.Submit)

	api.Get("/me", auth, d.Profiles.Me)
	me := api.Group("/me")
	me.Get("/listings", auth, d.Listings.Mine)
	me.Get("/applications", auth, d.Applications.Mine)
	me.Get("/transactions", auth, d.Profiles.Transactions)

	api.Get("/notifications", auth, d.Notifications.List)
	api.Post("/notifications/:id/read", auth, d.Notifications.Read)

	api.Get("/users/:id", d.Profiles.Get)
	api.Get("/users/:id/feedback", d.Feedback.ForUser)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Page not found")
	})
}
