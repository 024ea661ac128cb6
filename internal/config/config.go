package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DBDSN         string
	MediaDir      string
	LogFile       string
	AppEnv        string
	JWTSecret     string
	CloudinaryURL string

	DescriptionMax   int
	ListingQuota     int
	ListingCooldown  time.Duration
	DisableRateLimit bool
}

// Production reports whether raw internal error text must be hidden from clients.
func (c Config) Production() bool { return strings.EqualFold(c.AppEnv, "production") }

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] no .env file, using process environment")
	}

	cfg := Config{
		Port:             getEnv("PORT", "8081"),
		DBDSN:            getEnv("DB_DSN", "timebank.db"), // sqlite file in project root
		MediaDir:         getEnv("MEDIA_DIR", "./web/media"),
		LogFile:          getEnv("LOG_FILE", ""),
		AppEnv:           getEnv("APP_ENV", "development"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret-change-me"),
		CloudinaryURL:    getEnv("CLOUDINARY_URL", ""),
		DescriptionMax:   getInt("DESCRIPTION_MAX", 1000),
		ListingQuota:     getInt("LISTING_QUOTA", 300),
		ListingCooldown:  getDuration("LISTING_COOLDOWN", 30*time.Second),
		DisableRateLimit: getBool("DISABLE_RATE_LIMIT_CHECK", false),
	}
	// Only two description profiles exist; anything else falls back to the short one.
	if cfg.DescriptionMax != 1000 && cfg.DescriptionMax != 5000 {
		log.Printf("[config] DESCRIPTION_MAX=%d unsupported, using 1000", cfg.DescriptionMax)
		cfg.DescriptionMax = 1000
	}

	log.Printf("[config] PORT=%s DB_DSN=%s MEDIA_DIR=%s APP_ENV=%s DESCRIPTION_MAX=%d QUOTA=%d COOLDOWN=%s",
		cfg.Port, redactDSN(cfg.DBDSN), cfg.MediaDir, cfg.AppEnv, cfg.DescriptionMax, cfg.ListingQuota, cfg.ListingCooldown)
	return cfg
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("[config] %s=%q is not an integer, using %d", key, v, def)
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("[config] %s=%q is not a duration, using %s", key, v, def)
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
