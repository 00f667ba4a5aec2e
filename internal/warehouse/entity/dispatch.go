package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AssignmentStatus is the state of a document inside a dispatch container.
type AssignmentStatus string

const (
	AssignmentStatusPending     AssignmentStatus = "pending"
	AssignmentStatusPartial     AssignmentStatus = "partial"
	AssignmentStatusDiscrepancy AssignmentStatus = "discrepancy"
	AssignmentStatusCompleted   AssignmentStatus = "completed"
)

// IsValid checks the status against the closed set.
func (s AssignmentStatus) IsValid() bool {
	switch s {
	case AssignmentStatusPending, AssignmentStatusPartial, AssignmentStatusDiscrepancy, AssignmentStatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransitionTo enforces the assignment status transition table.
func (s AssignmentStatus) CanTransitionTo(target AssignmentStatus) bool {
	validTransitions := map[AssignmentStatus][]AssignmentStatus{
		AssignmentStatusPending:     {AssignmentStatusPartial, AssignmentStatusDiscrepancy, AssignmentStatusCompleted},
		AssignmentStatusPartial:     {AssignmentStatusPartial, AssignmentStatusDiscrepancy, AssignmentStatusCompleted},
		AssignmentStatusDiscrepancy: {},
		AssignmentStatusCompleted:   {},
	}

	for _, allowed := range validTransitions[s] {
		if target == allowed {
			return true
		}
	}
	return false
}

// VerificationItem is one line of a dispatch verification session. Ephemeral:
// it only reaches the database as part of a DispatchLog snapshot.
type VerificationItem struct {
	LineID                  string  `json:"line_id"`
	ItemCode                string  `json:"item_code"`
	Description             string  `json:"description"`
	Barcode                 string  `json:"barcode"`
	RequiredQuantity        float64 `json:"required_quantity"`
	VerifiedQuantity        float64 `json:"verified_quantity"`
	DisplayVerifiedQuantity string  `json:"display_verified_quantity"`
	IsManualOverride        bool    `json:"is_manual_override"`
}

// IsComplete reports whether the line meets its required quantity.
func (v VerificationItem) IsComplete() bool {
	return v.VerifiedQuantity >= v.RequiredQuantity
}

// HasDiscrepancy reports a short, surplus or untouched line.
func (v VerificationItem) HasDiscrepancy() bool {
	return v.VerifiedQuantity != v.RequiredQuantity
}

// VerificationItems is the snapshot column stored with a dispatch log.
type VerificationItems []VerificationItem

func (v VerificationItems) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (v *VerificationItems) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	var bytes []byte
	switch t := value.(type) {
	case []byte:
		bytes = t
	case string:
		bytes = []byte(t)
	default:
		return fmt.Errorf("failed to scan VerificationItems: %v", value)
	}
	return json.Unmarshal(bytes, v)
}

// DispatchLog is the append-only audit record written exactly once per
// finalize action. Never updated after creation.
type DispatchLog struct {
	ID                 string            `json:"id" gorm:"primaryKey;size:32"`
	DocumentID         string            `json:"document_id" gorm:"size:50;not null;index"`
	DocumentType       string            `json:"document_type" gorm:"size:20"`
	VerifiedAt         time.Time         `json:"verified_at"`
	VerifiedByUserID   string            `json:"verified_by_user_id" gorm:"size:32"`
	VerifiedByUserName string            `json:"verified_by_user_name" gorm:"size:100"`
	Items              VerificationItems `json:"items" gorm:"type:text"`
	Notes              string            `json:"notes" gorm:"type:text"`
	VehiclePlate       string            `json:"vehicle_plate" gorm:"size:20"`
	DriverName         string            `json:"driver_name" gorm:"size:100"`
	IsPartial          bool              `json:"is_partial" gorm:"default:false"`
	CreatedAt          time.Time         `json:"created_at"`
}

func (DispatchLog) TableName() string {
	return "dispatch_logs"
}

// DispatchContainer is a named, lockable batch of documents worked as a route.
type DispatchContainer struct {
	ID             string     `json:"id" gorm:"primaryKey;size:32"`
	Name           string     `json:"name" gorm:"size:200;not null"`
	CreatedBy      string     `json:"created_by" gorm:"size:100"`
	CreatedAt      time.Time  `json:"created_at"`
	IsLocked       bool       `json:"is_locked" gorm:"default:false"`
	LockedBy       string     `json:"locked_by" gorm:"size:100"`
	LockedByUserID string     `json:"locked_by_user_id" gorm:"size:32"`
	LockedAt       *time.Time `json:"locked_at"`

	Assignments []DispatchAssignment `json:"assignments,omitempty" gorm:"foreignKey:ContainerID"`
}

func (DispatchContainer) TableName() string {
	return "dispatch_containers"
}

// DispatchAssignment binds a document to a container. A document appears in
// at most one active container; moving rewrites ContainerID.
type DispatchAssignment struct {
	ID           string           `json:"id" gorm:"primaryKey;size:32"`
	ContainerID  string           `json:"container_id" gorm:"size:32;not null;index"`
	DocumentID   string           `json:"document_id" gorm:"size:50;not null;uniqueIndex"`
	DocumentType string           `json:"document_type" gorm:"size:20"`
	ClientID     string           `json:"client_id" gorm:"size:50"`
	ClientName   string           `json:"client_name" gorm:"size:200"`
	Status       AssignmentStatus `json:"status" gorm:"size:20;default:pending"`
	SortOrder    int              `json:"sort_order" gorm:"default:0"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (DispatchAssignment) TableName() string {
	return "dispatch_assignments"
}
