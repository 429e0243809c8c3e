package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"saas-billing/internal/domain/plans"
)

// PlanCatalogRepository stores the last catalog built from the provider.
type PlanCatalogRepository struct {
	db *gorm.DB
}

func NewPlanCatalogRepository(db *gorm.DB) *PlanCatalogRepository {
	return &PlanCatalogRepository{db: db}
}

// ReplaceAll swaps the stored catalog for entries in one transaction.
func (r *PlanCatalogRepository) ReplaceAll(ctx context.Context, entries []plans.CatalogEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&plans.CatalogEntry{}).Error; err != nil {
			return fmt.Errorf("clear plan catalog: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		rows := make([]plans.CatalogEntry, len(entries))
		for i, e := range entries {
			e.ID = 0
			rows[i] = e
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("store plan catalog: %w", err)
		}
		return nil
	})
}

// List returns the stored catalog in display order.
func (r *PlanCatalogRepository) List(ctx context.Context) ([]plans.CatalogEntry, error) {
	var entries []plans.CatalogEntry
	if err := r.db.WithContext(ctx).
		Order("sort_order ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list plan catalog: %w", err)
	}
	return entries, nil
}
