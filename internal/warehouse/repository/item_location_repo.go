package repository

import (
	"context"
	"errors"
	"time"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ItemLocationRepository persists default/suggested product placements.
type ItemLocationRepository struct {
	db *gorm.DB
}

func NewItemLocationRepository(db *gorm.DB) *ItemLocationRepository {
	return &ItemLocationRepository{db: db}
}

// Upsert assigns an item to a location, updating the existing row when the
// (item, location, client) triple is already present.
func (r *ItemLocationRepository) Upsert(ctx context.Context, itemID, locationID string, clientID *string, updatedBy string) (*entity.ItemLocation, error) {
	var result *entity.ItemLocation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("item_id = ? AND location_id = ?", itemID, locationID)
		if clientID != nil && *clientID != "" {
			query = query.Where("client_id = ?", *clientID)
		} else {
			query = query.Where("client_id IS NULL OR client_id = ''")
		}

		var existing entity.ItemLocation
		err := query.First(&existing).Error
		if err == nil {
			existing.UpdatedBy = updatedBy
			existing.UpdatedAt = time.Now()
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			result = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		assignment := entity.ItemLocation{
			ID:         uuid.New().String()[:32],
			ItemID:     itemID,
			LocationID: locationID,
			ClientID:   clientID,
			UpdatedBy:  updatedBy,
			UpdatedAt:  time.Now(),
			CreatedAt:  time.Now(),
		}
		if err := tx.Create(&assignment).Error; err != nil {
			return err
		}
		result = &assignment
		return nil
	})
	return result, err
}

// Delete unassigns an item from a location.
func (r *ItemLocationRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.ItemLocation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByItem lists the placement suggestions for a product, most recently
// confirmed first.
func (r *ItemLocationRepository) FindByItem(ctx context.Context, itemID string, clientID *string) ([]entity.ItemLocation, error) {
	var items []entity.ItemLocation
	query := r.db.WithContext(ctx).Where("item_id = ?", itemID)
	if clientID != nil && *clientID != "" {
		query = query.Where("client_id = ? OR client_id IS NULL OR client_id = ''", *clientID)
	}
	err := query.Order("updated_at DESC").Find(&items).Error
	return items, err
}

// FindByLocation lists the items assigned to a location.
func (r *ItemLocationRepository) FindByLocation(ctx context.Context, locationID string) ([]entity.ItemLocation, error) {
	var items []entity.ItemLocation
	err := r.db.WithContext(ctx).Where("location_id = ?", locationID).Find(&items).Error
	return items, err
}
