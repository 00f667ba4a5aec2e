package entity

import "time"

// LocationType is the level of a node in the physical location tree.
type LocationType string

const (
	LocationTypeBuilding LocationType = "building"
	LocationTypeZone     LocationType = "zone"
	LocationTypeRack     LocationType = "rack"
	LocationTypeShelf    LocationType = "shelf"
	LocationTypeBin      LocationType = "bin"
)

// IsValid checks the location type against the known levels.
func (t LocationType) IsValid() bool {
	switch t {
	case LocationTypeBuilding, LocationTypeZone, LocationTypeRack, LocationTypeShelf, LocationTypeBin:
		return true
	default:
		return false
	}
}

// Location is a node of the warehouse location tree
// (building → zone → rack → shelf → bin). The tree is a forest: ParentID nil
// means root. Lock fields implement the advisory lock claimed by guided
// bulk-edit sessions.
type Location struct {
	ID       string       `json:"id" gorm:"primaryKey;size:32"`
	Name     string       `json:"name" gorm:"size:200;not null"`
	Code     string       `json:"code" gorm:"size:50;uniqueIndex;not null"`
	Type     LocationType `json:"type" gorm:"size:20;not null"`
	ParentID *string      `json:"parent_id" gorm:"size:32;index"`

	IsLocked       bool       `json:"is_locked" gorm:"default:false"`
	LockedBy       string     `json:"locked_by" gorm:"size:100"`
	LockedByUserID string     `json:"locked_by_user_id" gorm:"size:32"`
	LockedAt       *time.Time `json:"locked_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Location) TableName() string {
	return "locations"
}

// ItemLocation is a default/suggested placement of a product, optionally
// scoped to a customer. Unique per (ItemID, LocationID, ClientID).
type ItemLocation struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	ItemID     string    `json:"item_id" gorm:"size:50;not null;index:idx_item_locations_item"`
	LocationID string    `json:"location_id" gorm:"size:32;not null;index"`
	ClientID   *string   `json:"client_id" gorm:"size:50"`
	UpdatedBy  string    `json:"updated_by" gorm:"size:100"`
	UpdatedAt  time.Time `json:"updated_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ItemLocation) TableName() string {
	return "item_locations"
}
