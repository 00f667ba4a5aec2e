package entity

import "time"

// InventoryUnit is a labeled physical grouping (pallet/lot) of one product at
// one location. UnitCode is generated from the monotonically increasing
// counter stored in warehouse_config.
type InventoryUnit struct {
	ID              string    `json:"id" gorm:"primaryKey;size:32"`
	UnitCode        string    `json:"unit_code" gorm:"size:20;uniqueIndex;not null"`
	ProductID       string    `json:"product_id" gorm:"size:50;not null;index"`
	HumanReadableID string    `json:"human_readable_id" gorm:"size:100"`
	DocumentID      string    `json:"document_id" gorm:"size:50"`
	LocationID      *string   `json:"location_id" gorm:"size:32;index"`
	Quantity        float64   `json:"quantity" gorm:"type:decimal(12,3);default:1"`
	Notes           string    `json:"notes" gorm:"type:text"`
	CreatedAt       time.Time `json:"created_at"`
	CreatedBy       string    `json:"created_by" gorm:"size:100"`
}

func (InventoryUnit) TableName() string {
	return "inventory_units"
}

// Movement records an inventory unit changing location.
type Movement struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	UnitID         string    `json:"unit_id" gorm:"size:32;not null;index"`
	UnitCode       string    `json:"unit_code" gorm:"size:20"`
	FromLocationID *string   `json:"from_location_id" gorm:"size:32"`
	ToLocationID   *string   `json:"to_location_id" gorm:"size:32"`
	MovedBy        string    `json:"moved_by" gorm:"size:100"`
	MovedAt        time.Time `json:"moved_at"`
	Notes          string    `json:"notes" gorm:"type:text"`
}

func (Movement) TableName() string {
	return "movements"
}

// ConfigEntry is a key/value row of the warehouse_config table. Holds the
// unit-code prefix and counter among other module settings.
type ConfigEntry struct {
	Key       string    `json:"key" gorm:"primaryKey;size:50;column:key"`
	Value     string    `json:"value" gorm:"size:500"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ConfigEntry) TableName() string {
	return "warehouse_config"
}

// warehouse_config keys
const (
	ConfigKeyUnitPrefix  = "unit_code_prefix"
	ConfigKeyUnitCounter = "unit_code_counter"
	ConfigKeyStrictScan  = "strict_scan_mode"
)
