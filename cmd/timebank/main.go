package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"timebank/internal/blob"
	"timebank/internal/config"
	"timebank/internal/http/handlers"
	applog "timebank/internal/log"
	"timebank/internal/metrics"
	"timebank/internal/repos"
	"timebank/internal/services"
	"timebank/internal/validate"
)

const usage = `usage: timebank [serve | load-tags FILE | recompute USER_ID]`

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
			applog.SetOutput(mw)
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	store := repos.NewStore(db)

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "serve":
		serve(cfg, store)
	case "load-tags":
		if len(os.Args) < 3 {
			log.Fatal(usage)
		}
		if err := loadTags(store, os.Args[2]); err != nil {
			log.Fatal(err)
		}
	case "recompute":
		if len(os.Args) < 3 {
			log.Fatal(usage)
		}
		id, ok := validate.ID(os.Args[2])
		if !ok {
			log.Fatal(usage)
		}
		if err := recompute(store, id); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatal(usage)
	}
}

func loadTags(store *repos.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	res, err := services.NewCatalogService(store).LoadTags(context.Background(), f)
	if err != nil {
		return fmt.Errorf("load tags from %s: %w", path, err)
	}
	log.Printf("[tags] created=%d existing=%d", res.Created, res.Existing)
	return nil
}

// recompute rebuilds one provider's reputation from stored history, e.g.
// after feedback rows were corrected by hand.
func recompute(store *repos.Store, userID int64) error {
	rep, err := services.NewFeedbackService(store, nil).Recompute(context.Background(), userID)
	if err != nil {
		return fmt.Errorf("recompute user %d: %w", userID, err)
	}
	log.Printf("[reputation] user=%d avg=%.2f multiplier=%.2f credit=%.2f", userID, rep.AvgRating, rep.Multiplier, rep.CreditMinutes)
	return nil
}

func openBlobs(cfg config.Config) (blob.Store, string) {
	if cfg.CloudinaryURL != "" {
		cs, err := blob.NewCloudinaryStore(cfg.CloudinaryURL)
		if err == nil {
			return cs, ""
		}
		log.Printf("[warn] %v; falling back to local media", err)
	}
	mediaDir := cfg.MediaDir
	if !filepath.IsAbs(mediaDir) {
		if abs, err := filepath.Abs(mediaDir); err == nil {
			mediaDir = abs
		}
	}
	return blob.NewLocalStore(mediaDir, "/media"), mediaDir
}

func serve(cfg config.Config, store *repos.Store) {
	if !cfg.Production() {
		if err := repos.SeedDemoUsers(context.Background(), store.DB()); err != nil {
			log.Printf("[warn] seeding demo users: %v", err)
		}
	}

	blobs, mediaDir := openBlobs(cfg)
	deps := handlers.NewDeps(store, cfg, blobs, services.LogDeliverer{}, nil)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(cfg.Production()),
		BodyLimit:    blob.MaxImageBytes + 1<<20,
	})

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(metrics.Middleware())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return strings.HasPrefix(p, "/media/") || p == "/metrics" || p == "/healthz"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}))

	// Local images only; Cloudinary serves its own.
	if mediaDir != "" {
		log.Printf("[static] /media -> %s", mediaDir)
		app.Get("/media/*", func(c *fiber.Ctx) error {
			path := c.Params("*")
			rawLower := strings.ToLower(path)
			if strings.Contains(rawLower, "..") || strings.Contains(rawLower, "%2e") || strings.Contains(rawLower, "\x00") {
				applog.Security(c, "media.traversal.block", map[string]any{"path": path})
				return c.SendStatus(fiber.StatusNotFound)
			}
			clean := filepath.Clean(path)
			if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
				applog.Security(c, "media.traversal.block", map[string]any{"path": path})
				return c.SendStatus(fiber.StatusNotFound)
			}
			return c.SendFile(filepath.Join(mediaDir, clean), true)
		})
	}

	handlers.Register(app, deps)

	log.Fatal(app.Listen(":" + cfg.Port))
}
