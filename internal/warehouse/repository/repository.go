package repository

import (
	"errors"

	"gorm.io/gorm"
)

// Store-level errors. Handlers translate these into user-facing messages;
// nothing below this layer retries.
var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateCode = errors.New("code already exists")
	ErrLocationInUse = errors.New("location or a descendant is still referenced")
	ErrLocked        = errors.New("entity is locked by another session")
	ErrNotLockOwner  = errors.New("lock is held by a different user")
)

// Repositories is the warehouse store collection.
type Repositories struct {
	Location      *LocationRepository
	ItemLocation  *ItemLocationRepository
	InventoryUnit *InventoryUnitRepository
	Config        *ConfigRepository
	Dispatch      *DispatchRepository
}

// NewRepositories creates the warehouse store collection.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Location:      NewLocationRepository(db),
		ItemLocation:  NewItemLocationRepository(db),
		InventoryUnit: NewInventoryUnitRepository(db),
		Config:        NewConfigRepository(db),
		Dispatch:      NewDispatchRepository(db),
	}
}
