package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// unitCodePad is the zero-padded width of the numeric suffix of a unit code.
const unitCodePad = 5

// InventoryUnitRepository persists labeled inventory units (pallets/lots).
type InventoryUnitRepository struct {
	db *gorm.DB
}

func NewInventoryUnitRepository(db *gorm.DB) *InventoryUnitRepository {
	return &InventoryUnitRepository{db: db}
}

// Create inserts a unit, assigning its code from the counter stored in
// warehouse_config. Read, insert and increment happen in one transaction so
// concurrent receiving operations can never produce duplicate codes.
func (r *InventoryUnitRepository) Create(ctx context.Context, unit *entity.InventoryUnit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prefixRow entity.ConfigEntry
		if err := tx.Where("key = ?", entity.ConfigKeyUnitPrefix).First(&prefixRow).Error; err != nil {
			return fmt.Errorf("unit code prefix not configured: %w", err)
		}

		var counterRow entity.ConfigEntry
		counter := 1
		err := tx.Where("key = ?", entity.ConfigKeyUnitCounter).First(&counterRow).Error
		if err == nil {
			counter, err = strconv.Atoi(counterRow.Value)
			if err != nil {
				return fmt.Errorf("invalid unit counter value %q: %w", counterRow.Value, err)
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if unit.ID == "" {
			unit.ID = uuid.New().String()[:32]
		}
		unit.UnitCode = fmt.Sprintf("%s%0*d", prefixRow.Value, unitCodePad, counter)
		if unit.CreatedAt.IsZero() {
			unit.CreatedAt = time.Now()
		}
		if err := tx.Create(unit).Error; err != nil {
			return err
		}

		next := entity.ConfigEntry{
			Key:       entity.ConfigKeyUnitCounter,
			Value:     strconv.Itoa(counter + 1),
			UpdatedAt: time.Now(),
		}
		return tx.Save(&next).Error
	})
}

// FindByCode looks a unit up by the code printed on its label. Input is
// normalized to uppercase; a query carrying the configured prefix is used as
// a unit code, a bare number is expanded with the prefix and padding.
func (r *InventoryUnitRepository) FindByCode(ctx context.Context, query string) (*entity.InventoryUnit, error) {
	code := strings.ToUpper(strings.TrimSpace(query))

	prefix, err := NewConfigRepository(r.db).GetOrDefault(ctx, entity.ConfigKeyUnitPrefix, "")
	if err != nil {
		return nil, err
	}
	prefix = strings.ToUpper(prefix)

	if prefix != "" && !strings.HasPrefix(code, prefix) {
		if n, convErr := strconv.Atoi(code); convErr == nil {
			code = fmt.Sprintf("%s%0*d", prefix, unitCodePad, n)
		}
	}

	var unit entity.InventoryUnit
	err = r.db.WithContext(ctx).Where("unit_code = ?", code).First(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &unit, nil
}

// FindByID returns one unit.
func (r *InventoryUnitRepository) FindByID(ctx context.Context, id string) (*entity.InventoryUnit, error) {
	var unit entity.InventoryUnit
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &unit, nil
}

// FindByLocation lists the units stored at a location.
func (r *InventoryUnitRepository) FindByLocation(ctx context.Context, locationID string) ([]entity.InventoryUnit, error) {
	var units []entity.InventoryUnit
	err := r.db.WithContext(ctx).Where("location_id = ?", locationID).Order("unit_code ASC").Find(&units).Error
	return units, err
}

// Move changes the location of a unit and appends a movement record.
func (r *InventoryUnitRepository) Move(ctx context.Context, id string, toLocationID *string, movedBy, notes string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var unit entity.InventoryUnit
		if err := tx.Where("id = ?", id).First(&unit).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		movement := entity.Movement{
			ID:             uuid.New().String()[:32],
			UnitID:         unit.ID,
			UnitCode:       unit.UnitCode,
			FromLocationID: unit.LocationID,
			ToLocationID:   toLocationID,
			MovedBy:        movedBy,
			MovedAt:        time.Now(),
			Notes:          notes,
		}
		if err := tx.Create(&movement).Error; err != nil {
			return err
		}

		return tx.Model(&entity.InventoryUnit{}).Where("id = ?", id).
			Update("location_id", toLocationID).Error
	})
}

// Delete removes a unit.
func (r *InventoryUnitRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.InventoryUnit{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
