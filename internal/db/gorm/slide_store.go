package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/slidetrace/internal/errs"
	"github.com/thebtf/slidetrace/pkg/models"
)

// SlideStore mirrors slide manifests into the database so replay needs only
// a DSN, not the tile directory.
type SlideStore struct {
	store *Store
}

// NewSlideStore creates a slide store.
func NewSlideStore(store *Store) *SlideStore {
	return &SlideStore{store: store}
}

// Upsert inserts or replaces a manifest.
func (s *SlideStore) Upsert(ctx context.Context, m *models.SlideManifest) error {
	row := toSlideRow(m)
	err := s.store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert slide %s: %w", m.SlideID, err)
	}
	return nil
}

// Get retrieves a manifest by slide ID.
func (s *SlideStore) Get(ctx context.Context, slideID string) (*models.SlideManifest, error) {
	var row SlideRow
	err := s.store.DB.WithContext(ctx).Where("slide_id = ?", slideID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrSlideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get slide: %w", err)
	}
	return fromSlideRow(row), nil
}

// List returns all stored manifests.
func (s *SlideStore) List(ctx context.Context) ([]*models.SlideManifest, error) {
	var rows []SlideRow
	if err := s.store.DB.WithContext(ctx).Order("slide_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}
	out := make([]*models.SlideManifest, len(rows))
	for i, row := range rows {
		out[i] = fromSlideRow(row)
	}
	return out, nil
}
