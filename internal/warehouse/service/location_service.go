package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// rack templates place at most two slots per depth position, front and back
const maxRackDepth = 2

var depthSuffixes = [maxRackDepth]string{"F", "T"}

var (
	ErrInvalidLocationType = errors.New("invalid location type")
	ErrInvalidRackTemplate = errors.New("invalid rack template parameters")
	ErrParentNotFound      = errors.New("parent location not found")
)

// LocationService owns the physical location tree.
type LocationService struct {
	repos  *repository.Repositories
	opts   Options
	logger *zap.Logger
}

func NewLocationService(repos *repository.Repositories, opts Options, logger *zap.Logger) *LocationService {
	return &LocationService{repos: repos, opts: opts, logger: logger}
}

// CreateLocationRequest creates a single node.
type CreateLocationRequest struct {
	Name     string  `json:"name" binding:"required"`
	Code     string  `json:"code" binding:"required"`
	Type     string  `json:"type" binding:"required"`
	ParentID *string `json:"parent_id"`
}

// Create inserts one location node.
func (s *LocationService) Create(ctx context.Context, req *CreateLocationRequest) (*entity.Location, error) {
	locType := entity.LocationType(req.Type)
	if !locType.IsValid() {
		return nil, ErrInvalidLocationType
	}

	if req.ParentID != nil && *req.ParentID != "" {
		if _, err := s.repos.Location.FindByID(ctx, *req.ParentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, err
		}
	} else {
		req.ParentID = nil
	}

	loc := &entity.Location{
		ID:        uuid.New().String()[:32],
		Name:      req.Name,
		Code:      strings.ToUpper(strings.TrimSpace(req.Code)),
		Type:      locType,
		ParentID:  req.ParentID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.repos.Location.Create(ctx, loc); err != nil {
		return nil, err
	}
	return loc, nil
}

// RackTemplateRequest expands a parameterized rack into a full subtree:
// level → position → depth, with derived codes
// {prefix}-{levelLetter}-{positionNumber}[-F|-T].
type RackTemplateRequest struct {
	Name      string  `json:"name" binding:"required"`
	Prefix    string  `json:"prefix" binding:"required"`
	ParentID  *string `json:"parent_id"`
	Levels    int     `json:"levels" binding:"required"`
	Positions int     `json:"positions" binding:"required"`
	Depth     int     `json:"depth"`
}

// CreateRackFromTemplate deterministically generates the rack subtree. With
// levels=L, positions=P, depth=D the result is 1 + L + L*P + L*P*D nodes.
func (s *LocationService) CreateRackFromTemplate(ctx context.Context, req *RackTemplateRequest) ([]entity.Location, error) {
	if req.Levels < 1 || req.Levels > 26 || req.Positions < 1 || req.Depth < 0 || req.Depth > maxRackDepth {
		return nil, ErrInvalidRackTemplate
	}

	prefix := strings.ToUpper(strings.TrimSpace(req.Prefix))
	now := time.Now()

	nodes := make([]entity.Location, 0, 1+req.Levels*(1+req.Positions*(1+req.Depth)))

	rack := entity.Location{
		ID:        uuid.New().String()[:32],
		Name:      req.Name,
		Code:      prefix,
		Type:      entity.LocationTypeRack,
		ParentID:  req.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	nodes = append(nodes, rack)

	for l := 0; l < req.Levels; l++ {
		levelLetter := string(rune('A' + l))
		level := entity.Location{
			ID:        uuid.New().String()[:32],
			Name:      fmt.Sprintf("%s Nivel %s", req.Name, levelLetter),
			Code:      fmt.Sprintf("%s-%s", prefix, levelLetter),
			Type:      entity.LocationTypeShelf,
			ParentID:  &nodes[0].ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		nodes = append(nodes, level)
		levelID := level.ID

		for p := 1; p <= req.Positions; p++ {
			position := entity.Location{
				ID:        uuid.New().String()[:32],
				Name:      fmt.Sprintf("%s Nivel %s Posición %d", req.Name, levelLetter, p),
				Code:      fmt.Sprintf("%s-%s-%d", prefix, levelLetter, p),
				Type:      entity.LocationTypeBin,
				ParentID:  &levelID,
				CreatedAt: now,
				UpdatedAt: now,
			}
			nodes = append(nodes, position)
			positionID := position.ID

			for d := 0; d < req.Depth; d++ {
				slot := entity.Location{
					ID:        uuid.New().String()[:32],
					Name:      fmt.Sprintf("%s %s", position.Name, depthSuffixes[d]),
					Code:      fmt.Sprintf("%s-%s", position.Code, depthSuffixes[d]),
					Type:      entity.LocationTypeBin,
					ParentID:  &positionID,
					CreatedAt: now,
					UpdatedAt: now,
				}
				nodes = append(nodes, slot)
			}
		}
	}

	if err := s.repos.Location.CreateBulk(ctx, nodes); err != nil {
		return nil, err
	}

	s.logger.Info("rack template expanded",
		zap.String("prefix", prefix),
		zap.Int("levels", req.Levels),
		zap.Int("positions", req.Positions),
		zap.Int("depth", req.Depth),
		zap.Int("nodes", len(nodes)),
	)
	return nodes, nil
}

// CloneRackRequest deep-copies an existing rack subtree under a new name,
// rewriting codes by prefix substitution.
type CloneRackRequest struct {
	SourceRackID string  `json:"source_rack_id" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	Prefix       string  `json:"prefix" binding:"required"`
	ParentID     *string `json:"parent_id"`
}

// CloneRack copies the shape of an existing rack. The clone is isomorphic:
// same tree, same relative codes with only the prefix substituted, all ids new.
func (s *LocationService) CloneRack(ctx context.Context, req *CloneRackRequest) ([]entity.Location, error) {
	subtree, err := s.repos.Location.Subtree(ctx, req.SourceRackID)
	if err != nil {
		return nil, err
	}
	if len(subtree) == 0 || subtree[0].Type != entity.LocationTypeRack {
		return nil, ErrInvalidRackTemplate
	}

	oldPrefix := subtree[0].Code
	newPrefix := strings.ToUpper(strings.TrimSpace(req.Prefix))
	now := time.Now()

	idMap := make(map[string]string, len(subtree))
	for _, node := range subtree {
		idMap[node.ID] = uuid.New().String()[:32]
	}

	clones := make([]entity.Location, 0, len(subtree))
	for i, node := range subtree {
		clone := entity.Location{
			ID:        idMap[node.ID],
			Name:      strings.Replace(node.Name, subtree[0].Name, req.Name, 1),
			Code:      strings.Replace(node.Code, oldPrefix, newPrefix, 1),
			Type:      node.Type,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if i == 0 {
			clone.Name = req.Name
			clone.ParentID = req.ParentID
		} else if node.ParentID != nil {
			if newParent, ok := idMap[*node.ParentID]; ok {
				clone.ParentID = &newParent
			}
		}
		clones = append(clones, clone)
	}

	if err := s.repos.Location.CreateBulk(ctx, clones); err != nil {
		return nil, err
	}

	s.logger.Info("rack cloned",
		zap.String("source", req.SourceRackID),
		zap.String("prefix", newPrefix),
		zap.Int("nodes", len(clones)),
	)
	return clones, nil
}

// Get returns a node.
func (s *LocationService) Get(ctx context.Context, id string) (*entity.Location, error) {
	return s.repos.Location.FindByID(ctx, id)
}

// List lists nodes with filters.
func (s *LocationService) List(ctx context.Context, filters map[string]string) ([]entity.Location, error) {
	return s.repos.Location.FindAll(ctx, filters)
}

// Children lists the direct children of a node.
func (s *LocationService) Children(ctx context.Context, parentID string) ([]entity.Location, error) {
	return s.repos.Location.FindChildren(ctx, parentID)
}

// Delete removes a node and its descendants, refusing when anything still
// references the subtree.
func (s *LocationService) Delete(ctx context.Context, id string) error {
	return s.repos.Location.Delete(ctx, id)
}

// Lock claims the advisory lock on a set of nodes for a guided edit session.
func (s *LocationService) Lock(ctx context.Context, ids []string, userID, userName string) error {
	return s.repos.Location.Lock(ctx, ids, userID, userName)
}

// Release drops the advisory lock.
func (s *LocationService) Release(ctx context.Context, ids []string, userID string) error {
	return s.repos.Location.Release(ctx, ids, userID)
}

// ForceRelease is the administrative recovery for abandoned locks.
func (s *LocationService) ForceRelease(ctx context.Context, id string) error {
	return s.repos.Location.ForceRelease(ctx, id)
}

// Path renders the display path of a node.
func (s *LocationService) Path(ctx context.Context, id string) (string, error) {
	return s.repos.Location.Path(ctx, id, s.opts.PathSeparator)
}
