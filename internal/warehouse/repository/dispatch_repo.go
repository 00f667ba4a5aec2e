package repository

import (
	"context"
	"errors"
	"time"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"gorm.io/gorm"
)

// DispatchRepository persists dispatch logs, containers and assignments.
type DispatchRepository struct {
	db *gorm.DB
}

func NewDispatchRepository(db *gorm.DB) *DispatchRepository {
	return &DispatchRepository{db: db}
}

// === Dispatch logs (append-only) ===

// CreateLog appends one audit record. Logs are never updated.
func (r *DispatchRepository) CreateLog(ctx context.Context, log *entity.DispatchLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// FindLogsByDocument lists the audit trail for a document, newest first.
func (r *DispatchRepository) FindLogsByDocument(ctx context.Context, documentID string) ([]entity.DispatchLog, error) {
	var logs []entity.DispatchLog
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("verified_at DESC").
		Find(&logs).Error
	return logs, err
}

// ListLogs pages through the audit trail with optional filters.
func (r *DispatchRepository) ListLogs(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.DispatchLog, int64, error) {
	var logs []entity.DispatchLog
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.DispatchLog{})
	if doc := filters["document_id"]; doc != "" {
		query = query.Where("document_id = ?", doc)
	}
	if user := filters["verified_by"]; user != "" {
		query = query.Where("verified_by_user_id = ?", user)
	}
	if from := filters["from"]; from != "" {
		query = query.Where("verified_at >= ?", from)
	}
	if to := filters["to"]; to != "" {
		query = query.Where("verified_at <= ?", to)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("verified_at DESC").Offset(offset).Limit(pageSize).Find(&logs).Error
	return logs, total, err
}

// === Containers ===

// CreateContainer inserts a container.
func (r *DispatchRepository) CreateContainer(ctx context.Context, c *entity.DispatchContainer) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// FindContainerByID returns a container with its assignments ordered.
func (r *DispatchRepository) FindContainerByID(ctx context.Context, id string) (*entity.DispatchContainer, error) {
	var c entity.DispatchContainer
	err := r.db.WithContext(ctx).
		Preload("Assignments", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListContainers lists containers, newest first.
func (r *DispatchRepository) ListContainers(ctx context.Context) ([]entity.DispatchContainer, error) {
	var containers []entity.DispatchContainer
	err := r.db.WithContext(ctx).
		Preload("Assignments", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Order("created_at DESC").
		Find(&containers).Error
	return containers, err
}

// DeleteContainer removes an empty container.
func (r *DispatchRepository) DeleteContainer(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entity.DispatchAssignment{}).Where("container_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrLocationInUse
		}
		res := tx.Where("id = ?", id).Delete(&entity.DispatchContainer{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// LockContainer claims the advisory container lock.
func (r *DispatchRepository) LockContainer(ctx context.Context, id, userID, userName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c entity.DispatchContainer
		if err := tx.Where("id = ?", id).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if c.IsLocked && c.LockedByUserID != userID {
			return ErrLocked
		}
		now := time.Now()
		return tx.Model(&entity.DispatchContainer{}).Where("id = ?", id).Updates(map[string]interface{}{
			"is_locked":         true,
			"locked_by":         userName,
			"locked_by_user_id": userID,
			"locked_at":         &now,
		}).Error
	})
}

// UnlockContainer drops the advisory container lock. With force an
// administrator can release a lock held by someone else.
func (r *DispatchRepository) UnlockContainer(ctx context.Context, id, userID string, force bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c entity.DispatchContainer
		if err := tx.Where("id = ?", id).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !force && c.IsLocked && c.LockedByUserID != userID {
			return ErrNotLockOwner
		}
		return tx.Model(&entity.DispatchContainer{}).Where("id = ?", id).Updates(map[string]interface{}{
			"is_locked":         false,
			"locked_by":         "",
			"locked_by_user_id": "",
			"locked_at":         nil,
		}).Error
	})
}

// === Assignments ===

// CreateAssignment binds a document to a container. A document can only sit
// in one active container, so an existing binding is a duplicate.
func (r *DispatchRepository) CreateAssignment(ctx context.Context, a *entity.DispatchAssignment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entity.DispatchAssignment{}).Where("document_id = ?", a.DocumentID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateCode
		}
		return tx.Create(a).Error
	})
}

// FindAssignmentByDocument returns the active binding of a document.
func (r *DispatchRepository) FindAssignmentByDocument(ctx context.Context, documentID string) (*entity.DispatchAssignment, error) {
	var a entity.DispatchAssignment
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindAssignmentsByContainer lists a container's documents in work order.
func (r *DispatchRepository) FindAssignmentsByContainer(ctx context.Context, containerID string) ([]entity.DispatchAssignment, error) {
	var items []entity.DispatchAssignment
	err := r.db.WithContext(ctx).
		Where("container_id = ?", containerID).
		Order("sort_order ASC").
		Find(&items).Error
	return items, err
}

// NextPending returns the next pending document of a container after the
// given sort position, or ErrNotFound when the route is exhausted.
func (r *DispatchRepository) NextPending(ctx context.Context, containerID string, afterSort int) (*entity.DispatchAssignment, error) {
	var a entity.DispatchAssignment
	err := r.db.WithContext(ctx).
		Where("container_id = ? AND status = ? AND sort_order > ?", containerID, entity.AssignmentStatusPending, afterSort).
		Order("sort_order ASC").
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// UpdateAssignmentStatus persists a status transition.
func (r *DispatchRepository) UpdateAssignmentStatus(ctx context.Context, id string, status entity.AssignmentStatus) error {
	res := r.db.WithContext(ctx).Model(&entity.DispatchAssignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MoveAssignment reassigns a document to another container, appending it at
// the end of the target route.
func (r *DispatchRepository) MoveAssignment(ctx context.Context, documentID, toContainerID string) (*entity.DispatchAssignment, error) {
	var moved *entity.DispatchAssignment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target entity.DispatchContainer
		if err := tx.Where("id = ?", toContainerID).First(&target).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var a entity.DispatchAssignment
		if err := tx.Where("document_id = ?", documentID).First(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var maxSort int
		row := tx.Model(&entity.DispatchAssignment{}).
			Where("container_id = ?", toContainerID).
			Select("COALESCE(MAX(sort_order), 0)").
			Row()
		if err := row.Scan(&maxSort); err != nil {
			return err
		}

		a.ContainerID = toContainerID
		a.SortOrder = maxSort + 1
		a.UpdatedAt = time.Now()
		if err := tx.Save(&a).Error; err != nil {
			return err
		}
		moved = &a
		return nil
	})
	return moved, err
}
