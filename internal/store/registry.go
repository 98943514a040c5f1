package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mikaelarth/fnev4/internal/model"
	"github.com/mikaelarth/fnev4/internal/resolve"
)

// ClientByCode looks up a registry client by its code. It satisfies
// resolve.Registry.
func (s *Store) ClientByCode(ctx context.Context, code string) (*model.Client, error) {
	var client model.Client
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, resolve.ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// CreateClient adds a registry entry.
func (s *Store) CreateClient(ctx context.Context, client *model.Client) error {
	return s.db.WithContext(ctx).Create(client).Error
}

// ListClients lists live registry entries ordered by code.
func (s *Store) ListClients(ctx context.Context) ([]model.Client, error) {
	var clients []model.Client
	if err := s.db.WithContext(ctx).Order("code asc").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

// DeleteClient soft-deletes a registry entry.
func (s *Store) DeleteClient(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&model.Client{}, id).Error
}

// VatTypes returns the VAT reference table.
func (s *Store) VatTypes(ctx context.Context) ([]model.VatType, error) {
	var types []model.VatType
	if err := s.db.WithContext(ctx).Order("code asc").Find(&types).Error; err != nil {
		return nil, err
	}
	return types, nil
}
