// Package config loads runtime configuration from the environment (with an
// optional .env file) and builds the shared logger. DGI connection
// parameters always come from here, never from code.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mikaelarth/fnev4/internal/dgi"
	"github.com/mikaelarth/fnev4/internal/resolve"
)

// App is the full runtime configuration.
type App struct {
	DatabasePath string
	ImportDir    string

	PollInterval  time.Duration
	WatchDebounce time.Duration
	Concurrency   int

	DiversCode string

	DGI dgi.Config
}

// Load reads configuration from the environment. A .env file next to the
// binary is honored when present.
func Load() App {
	godotenv.Load()

	return App{
		DatabasePath:  stringFromEnv("FNE_DB_PATH", "fnev4.db"),
		ImportDir:     stringFromEnv("FNE_IMPORT_DIR", ""),
		PollInterval:  durationFromEnv("FNE_POLL_INTERVAL_SECONDS", 60*time.Second),
		WatchDebounce: durationFromEnv("FNE_WATCH_DEBOUNCE_SECONDS", 2*time.Second),
		Concurrency:   intFromEnv("FNE_CERTIFY_CONCURRENCY", 4),
		DiversCode:    stringFromEnv("FNE_DIVERS_CLIENT_CODE", resolve.DiversClientCode),
		DGI: dgi.Config{
			BaseURL:     stringFromEnv("DGI_BASE_URL", ""),
			APIKey:      stringFromEnv("DGI_API_KEY", ""),
			PointOfSale: stringFromEnv("DGI_POINT_OF_SALE", ""),
			Timeout:     durationFromEnv("DGI_TIMEOUT_SECONDS", 30*time.Second),
			MaxRetries:  intFromEnv("DGI_MAX_RETRIES", 3),
		},
	}
}

// NewLogger builds the shared JSON logger.
func NewLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

func stringFromEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durationFromEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
