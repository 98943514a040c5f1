package config_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/mikaelarth/fnev4/internal/config"
	"github.com/mikaelarth/fnev4/internal/resolve"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, "fnev4.db", cfg.DatabasePath)
	assert.Equal(t, 60*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.WatchDebounce)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, resolve.DiversClientCode, cfg.DiversCode)
	assert.Equal(t, 30*time.Second, cfg.DGI.Timeout)
	assert.Equal(t, 3, cfg.DGI.MaxRetries)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("FNE_DB_PATH", "/var/lib/fne/invoices.db")
	t.Setenv("FNE_POLL_INTERVAL_SECONDS", "120")
	t.Setenv("FNE_CERTIFY_CONCURRENCY", "8")
	t.Setenv("FNE_DIVERS_CLIENT_CODE", "0000")
	t.Setenv("DGI_BASE_URL", "https://fne.dgi.example")
	t.Setenv("DGI_MAX_RETRIES", "5")

	cfg := config.Load()

	assert.Equal(t, "/var/lib/fne/invoices.db", cfg.DatabasePath)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "0000", cfg.DiversCode)
	assert.Equal(t, "https://fne.dgi.example", cfg.DGI.BaseURL)
	assert.Equal(t, 5, cfg.DGI.MaxRetries)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("FNE_POLL_INTERVAL_SECONDS", "soon")
	t.Setenv("FNE_CERTIFY_CONCURRENCY", "many")

	cfg := config.Load()
	assert.Equal(t, 60*time.Second, cfg.PollInterval)
	assert.Equal(t, 4, cfg.Concurrency)
}

func TestNewLogger(t *testing.T) {
	log := config.NewLogger(false)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	assert.Equal(t, logrus.DebugLevel, config.NewLogger(true).GetLevel())
}
