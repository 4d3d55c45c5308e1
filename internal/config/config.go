package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Secret      string
	DatabaseDSN string
	HTTPPort    string
	SeedCSV     string
	CORSOrigins []string

	AlertHorizonDays  int
	AlertHorizonMonth bool
	LowStockThreshold int64
	RefreshInterval   time.Duration
}

// Load reads configuration from a .env file, if present, and environment
// variables with reasonable defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("unable to read .env: %v", err)
	}

	secret := os.Getenv("SECRET")
	if secret == "" {
		secret = "dev_secret"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}
	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", port)
		port = "8080"
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "clinic.db"
	}

	seed := os.Getenv("SEED_CSV")
	if seed == "" {
		seed = "assets/inventory.csv"
	}

	origins := []string{"*"}
	if raw := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); raw != "" {
		origins = origins[:0]
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	horizon := intEnv("ALERT_HORIZON_DAYS", 30)
	if horizon < 0 {
		log.Printf("invalid ALERT_HORIZON_DAYS value %d, defaulting to 30", horizon)
		horizon = 30
	}

	threshold := intEnv("LOW_STOCK_THRESHOLD", 100)
	if threshold <= 0 {
		log.Printf("invalid LOW_STOCK_THRESHOLD value %d, defaulting to 100", threshold)
		threshold = 100
	}

	interval := 5 * time.Minute
	if raw := os.Getenv("ALERT_REFRESH_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			log.Printf("invalid ALERT_REFRESH_INTERVAL value %q, defaulting to 5m", raw)
		} else {
			interval = d
		}
	}

	return Config{
		Secret:            secret,
		DatabaseDSN:       dsn,
		HTTPPort:          port,
		SeedCSV:           seed,
		CORSOrigins:       origins,
		AlertHorizonDays:  horizon,
		AlertHorizonMonth: strings.EqualFold(os.Getenv("ALERT_HORIZON_MODE"), "month"),
		LowStockThreshold: int64(threshold),
		RefreshInterval:   interval,
	}
}

func intEnv(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s value %q, defaulting to %d", key, raw, def)
		return def
	}
	return n
}
