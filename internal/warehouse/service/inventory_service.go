package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/erp"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/shared/labels"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InventoryService owns inventory units and item-location assignments.
type InventoryService struct {
	repos    *repository.Repositories
	catalog  erp.ProductCatalog
	location *LocationService
	notifier Notifier
	logger   *zap.Logger
}

func NewInventoryService(repos *repository.Repositories, catalog erp.ProductCatalog, location *LocationService, notifier Notifier, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		repos:    repos,
		catalog:  catalog,
		location: location,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateUnitRequest registers one labeled unit.
type CreateUnitRequest struct {
	ProductID       string  `json:"product_id" binding:"required"`
	HumanReadableID string  `json:"human_readable_id"`
	DocumentID      string  `json:"document_id"`
	LocationID      *string `json:"location_id"`
	Quantity        string  `json:"quantity"`
	Notes           string  `json:"notes"`
}

// ParseQuantity falls back to 1 when the raw value is unparseable.
func ParseQuantity(raw string) float64 {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" {
		return 1
	}
	q, err := strconv.ParseFloat(raw, 64)
	if err != nil || q <= 0 {
		return 1
	}
	return q
}

// CreateUnit registers a unit, assigning its code atomically from the
// configured counter.
func (s *InventoryService) CreateUnit(ctx context.Context, userName string, req *CreateUnitRequest) (*entity.InventoryUnit, error) {
	if req.LocationID != nil && *req.LocationID == "" {
		req.LocationID = nil
	}
	if req.LocationID != nil {
		if _, err := s.repos.Location.FindByID(ctx, *req.LocationID); err != nil {
			return nil, err
		}
	}

	unit := &entity.InventoryUnit{
		ID:              uuid.New().String()[:32],
		ProductID:       req.ProductID,
		HumanReadableID: req.HumanReadableID,
		DocumentID:      req.DocumentID,
		LocationID:      req.LocationID,
		Quantity:        ParseQuantity(req.Quantity),
		Notes:           req.Notes,
		CreatedAt:       time.Now(),
		CreatedBy:       userName,
	}
	if err := s.repos.InventoryUnit.Create(ctx, unit); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		locationID := ""
		if unit.LocationID != nil {
			locationID = *unit.LocationID
		}
		s.notifier.UnitReceived(unit.UnitCode, unit.ProductID, locationID)
	}

	s.logger.Info("inventory unit created",
		zap.String("unit_code", unit.UnitCode),
		zap.String("product_id", unit.ProductID),
	)
	return unit, nil
}

// LookupUnit finds a unit by scanned code or bare number.
func (s *InventoryService) LookupUnit(ctx context.Context, query string) (*entity.InventoryUnit, error) {
	return s.repos.InventoryUnit.FindByCode(ctx, query)
}

// MoveUnit relocates a unit and records the movement.
func (s *InventoryService) MoveUnit(ctx context.Context, id string, toLocationID *string, movedBy, notes string) error {
	if toLocationID != nil && *toLocationID != "" {
		if _, err := s.repos.Location.FindByID(ctx, *toLocationID); err != nil {
			return err
		}
	}
	return s.repos.InventoryUnit.Move(ctx, id, toLocationID, movedBy, notes)
}

// DeleteUnit removes a unit.
func (s *InventoryService) DeleteUnit(ctx context.Context, id string) error {
	return s.repos.InventoryUnit.Delete(ctx, id)
}

// RenderUnitLabel builds the printable label for a unit: QR plus barcode of
// the unit code, product data and the location path.
func (s *InventoryService) RenderUnitLabel(ctx context.Context, unitID string) ([]byte, error) {
	unit, err := s.repos.InventoryUnit.FindByID(ctx, unitID)
	if err != nil {
		return nil, err
	}

	description := ""
	if s.catalog != nil {
		if product, err := s.catalog.GetProduct(ctx, unit.ProductID); err == nil {
			description = product.Description
		} else {
			s.logger.Warn("product lookup failed for label", zap.String("product_id", unit.ProductID), zap.Error(err))
		}
	}

	path := ""
	if unit.LocationID != nil {
		if path, err = s.location.Path(ctx, *unit.LocationID); err != nil {
			return nil, err
		}
	}

	return labels.RenderUnitLabel(labels.UnitLabel{
		UnitCode:     unit.UnitCode,
		ProductID:    unit.ProductID,
		Description:  description,
		LotID:        unit.HumanReadableID,
		DocumentID:   unit.DocumentID,
		LocationPath: path,
	})
}

// AssignItem upserts a default placement for a product.
func (s *InventoryService) AssignItem(ctx context.Context, itemID, locationID string, clientID *string, updatedBy string) (*entity.ItemLocation, error) {
	if _, err := s.repos.Location.FindByID(ctx, locationID); err != nil {
		return nil, err
	}
	return s.repos.ItemLocation.Upsert(ctx, itemID, locationID, clientID, updatedBy)
}

// UnassignItem removes a default placement.
func (s *InventoryService) UnassignItem(ctx context.Context, id string) error {
	return s.repos.ItemLocation.Delete(ctx, id)
}

// SuggestionResult is one placement suggestion with its rendered path.
type SuggestionResult struct {
	Assignment entity.ItemLocation `json:"assignment"`
	Path       string              `json:"path"`
}

// Suggestions lists the known placements for a product, paths included.
func (s *InventoryService) Suggestions(ctx context.Context, itemID string, clientID *string) ([]SuggestionResult, error) {
	assignments, err := s.repos.ItemLocation.FindByItem(ctx, itemID, clientID)
	if err != nil {
		return nil, err
	}

	results := make([]SuggestionResult, 0, len(assignments))
	for _, a := range assignments {
		path, err := s.location.Path(ctx, a.LocationID)
		if err != nil {
			// suggestion pointing at a vanished location is skipped, not fatal
			s.logger.Warn("suggestion path failed", zap.String("location_id", a.LocationID), zap.Error(err))
			continue
		}
		results = append(results, SuggestionResult{Assignment: a, Path: path})
	}
	return results, nil
}

// UnitsAtLocation lists the units stored at a location.
func (s *InventoryService) UnitsAtLocation(ctx context.Context, locationID string) ([]entity.InventoryUnit, error) {
	return s.repos.InventoryUnit.FindByLocation(ctx, locationID)
}
