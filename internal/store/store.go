// Package store is the durable persistence layer: invoices and their
// lines, the VAT reference table, the client registry, import sessions and
// the append-only API log, all on an embedded SQLite database through gorm.
package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mikaelarth/fnev4/internal/model"
	"github.com/mikaelarth/fnev4/internal/money"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the database handle and exposes the persistence operations
// consumed by the importer and the certification orchestrator.
type Store struct {
	db  *gorm.DB
	log *logrus.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// Open opens (or creates) the SQLite database at path, migrates the schema
// and seeds the canonical VAT reference table.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	s := &Store{
		db:  db,
		log: logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := db.AutoMigrate(
		&model.Invoice{},
		&model.LineItem{},
		&model.VatType{},
		&model.Client{},
		&model.ImportSession{},
		&model.ApiLog{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	if err := s.seedVatTypes(); err != nil {
		return nil, fmt.Errorf("seed vat types: %w", err)
	}

	return s, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormlogger.Config{
				Colorful:      false,
				LogLevel:      gormlogger.Error,
				SlowThreshold: time.Second,
			},
		),
	}
}

// seedVatTypes inserts the four canonical codes issued by the authority.
// Rates are immutable once referenced by a certified invoice, so existing
// rows are left untouched.
func (s *Store) seedVatTypes() error {
	seed := []model.VatType{
		{Code: model.VatStandard, Rate: money.MustFromString("18"), Description: "Standard rate"},
		{Code: model.VatReduced, Rate: money.MustFromString("9"), Description: "Reduced rate"},
		{Code: model.VatExoneratedCo, Rate: money.Zero, Description: "Exonerated (conventional)"},
		{Code: model.VatExoneratedLe, Rate: money.Zero, Description: "Exonerated (legal)"},
	}
	for _, vt := range seed {
		if err := s.db.Where(model.VatType{Code: vt.Code}).FirstOrCreate(&vt).Error; err != nil {
			return err
		}
	}
	return nil
}
