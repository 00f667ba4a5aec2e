package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"gorm.io/gorm"
)

// maxPathDepth bounds parent walks so an accidentally introduced cycle can
// never hang a request.
const maxPathDepth = 32

// LocationRepository persists the physical location tree.
type LocationRepository struct {
	db *gorm.DB
}

func NewLocationRepository(db *gorm.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// Create inserts one node. Fails with ErrDuplicateCode on a code collision.
func (r *LocationRepository) Create(ctx context.Context, loc *entity.Location) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Location{}).
		Where("code = ?", loc.Code).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateCode
	}
	return r.db.WithContext(ctx).Create(loc).Error
}

// CreateBulk inserts a generated subtree atomically. Any code collision
// aborts the whole batch.
func (r *LocationRepository) CreateBulk(ctx context.Context, locs []entity.Location) error {
	if len(locs) == 0 {
		return nil
	}
	codes := make([]string, 0, len(locs))
	for _, l := range locs {
		codes = append(codes, l.Code)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entity.Location{}).Where("code IN ?", codes).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateCode
		}
		return tx.CreateInBatches(locs, 200).Error
	})
}

// FindByID returns one node.
func (r *LocationRepository) FindByID(ctx context.Context, id string) (*entity.Location, error) {
	var loc entity.Location
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&loc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &loc, nil
}

// FindByCode returns one node by its unique code.
func (r *LocationRepository) FindByCode(ctx context.Context, code string) (*entity.Location, error) {
	var loc entity.Location
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&loc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &loc, nil
}

// FindAll lists nodes with optional filters.
func (r *LocationRepository) FindAll(ctx context.Context, filters map[string]string) ([]entity.Location, error) {
	var locs []entity.Location
	query := r.db.WithContext(ctx).Model(&entity.Location{})

	if t := filters["type"]; t != "" {
		query = query.Where("type = ?", t)
	}
	if parent := filters["parent_id"]; parent != "" {
		query = query.Where("parent_id = ?", parent)
	}
	if search := filters["search"]; search != "" {
		like := "%" + search + "%"
		query = query.Where("code LIKE ? OR name LIKE ?", like, like)
	}

	err := query.Order("code ASC").Find(&locs).Error
	return locs, err
}

// FindChildren lists the direct children of a node.
func (r *LocationRepository) FindChildren(ctx context.Context, parentID string) ([]entity.Location, error) {
	var locs []entity.Location
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("code ASC").
		Find(&locs).Error
	return locs, err
}

// Subtree returns the node and every descendant, breadth-first. A visited set
// guards against accidental cycles in the parent references.
func (r *LocationRepository) Subtree(ctx context.Context, rootID string) ([]entity.Location, error) {
	root, err := r.FindByID(ctx, rootID)
	if err != nil {
		return nil, err
	}

	result := []entity.Location{*root}
	visited := map[string]bool{root.ID: true}
	frontier := []string{root.ID}

	for len(frontier) > 0 {
		var children []entity.Location
		if err := r.db.WithContext(ctx).Where("parent_id IN ?", frontier).Find(&children).Error; err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, c := range children {
			if visited[c.ID] {
				continue
			}
			visited[c.ID] = true
			result = append(result, c)
			frontier = append(frontier, c.ID)
		}
	}

	return result, nil
}

// Delete removes a node and its descendants. Fails with ErrLocationInUse if
// the node or any descendant is referenced by an inventory unit or an
// item-location assignment.
func (r *LocationRepository) Delete(ctx context.Context, id string) error {
	subtree, err := r.Subtree(ctx, id)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(subtree))
	for _, l := range subtree {
		ids = append(ids, l.ID)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entity.InventoryUnit{}).Where("location_id IN ?", ids).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrLocationInUse
		}
		if err := tx.Model(&entity.ItemLocation{}).Where("location_id IN ?", ids).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrLocationInUse
		}
		return tx.Where("id IN ?", ids).Delete(&entity.Location{}).Error
	})
}

// Lock claims the advisory lock on a set of nodes. Fails with ErrLocked if
// any of them is already locked by a different user.
func (r *LocationRepository) Lock(ctx context.Context, ids []string, userID, userName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked int64
		if err := tx.Model(&entity.Location{}).
			Where("id IN ? AND is_locked = ? AND locked_by_user_id <> ?", ids, true, userID).
			Count(&locked).Error; err != nil {
			return err
		}
		if locked > 0 {
			return ErrLocked
		}
		now := time.Now()
		return tx.Model(&entity.Location{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"is_locked":         true,
			"locked_by":         userName,
			"locked_by_user_id": userID,
			"locked_at":         &now,
		}).Error
	})
}

// Release drops the advisory lock, only for the user who holds it.
func (r *LocationRepository) Release(ctx context.Context, ids []string, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var foreign int64
		if err := tx.Model(&entity.Location{}).
			Where("id IN ? AND is_locked = ? AND locked_by_user_id <> ?", ids, true, userID).
			Count(&foreign).Error; err != nil {
			return err
		}
		if foreign > 0 {
			return ErrNotLockOwner
		}
		return tx.Model(&entity.Location{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"is_locked":         false,
			"locked_by":         "",
			"locked_by_user_id": "",
			"locked_at":         nil,
		}).Error
	})
}

// ForceRelease is the administrative override for abandoned locks.
func (r *LocationRepository) ForceRelease(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&entity.Location{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_locked":         false,
		"locked_by":         "",
		"locked_by_user_id": "",
		"locked_at":         nil,
	}).Error
}

// Path renders the full path of a node by walking parent links to the root.
// The walk is bounded and tracks visited ids so it terminates even if a cycle
// was accidentally introduced.
func (r *LocationRepository) Path(ctx context.Context, id, separator string) (string, error) {
	names := make([]string, 0, 8)
	visited := map[string]bool{}
	current := id

	for depth := 0; depth < maxPathDepth; depth++ {
		if visited[current] {
			break
		}
		visited[current] = true

		loc, err := r.FindByID(ctx, current)
		if err != nil {
			if errors.Is(err, ErrNotFound) && depth > 0 {
				// dangling parent reference, stop at what we have
				break
			}
			return "", err
		}
		names = append(names, loc.Name)
		if loc.ParentID == nil || *loc.ParentID == "" {
			break
		}
		current = *loc.ParentID
	}

	// reverse: root first
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, separator), nil
}
