package handler

import (
	"errors"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/repository"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/service"
	"github.com/gin-gonic/gin"
)

// InventoryHandler serves inventory units and item assignments.
type InventoryHandler struct {
	svc *service.InventoryService
}

func NewInventoryHandler(svc *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// CreateUnit registers a new inventory unit with an auto-assigned code.
// POST /api/v1/units
func (h *InventoryHandler) CreateUnit(c *gin.Context) {
	var req service.CreateUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	unit, err := h.svc.CreateUnit(c.Request.Context(), GetUserName(c), &req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			BadRequest(c, "La ubicación indicada no existe")
			return
		}
		InternalError(c, "Error al registrar la unidad: "+err.Error())
		return
	}
	Created(c, unit)
}

// Lookup finds a unit by full code or bare sequence number.
// GET /api/v1/units/lookup?q=INV00042
func (h *InventoryHandler) Lookup(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		BadRequest(c, "El parámetro q es obligatorio")
		return
	}

	unit, err := h.svc.LookupUnit(c.Request.Context(), q)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "La unidad no existe")
			return
		}
		InternalError(c, "Error al buscar la unidad: "+err.Error())
		return
	}
	Success(c, unit)
}

type moveUnitRequest struct {
	LocationID *string `json:"location_id"`
	Notes      string  `json:"notes"`
}

// Move relocates a unit and records the movement.
// POST /api/v1/units/:id/move
func (h *InventoryHandler) Move(c *gin.Context) {
	var req moveUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	err := h.svc.MoveUnit(c.Request.Context(), c.Param("id"), req.LocationID, GetUserName(c), req.Notes)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "La unidad o la ubicación no existe")
			return
		}
		InternalError(c, "Error al mover la unidad: "+err.Error())
		return
	}
	Success(c, nil)
}

// Delete removes a unit from the registry.
// DELETE /api/v1/units/:id
func (h *InventoryHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteUnit(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "La unidad no existe")
			return
		}
		InternalError(c, "Error al eliminar la unidad: "+err.Error())
		return
	}
	Success(c, nil)
}

// Label streams the printable PDF label for a unit.
// GET /api/v1/units/:id/label
func (h *InventoryHandler) Label(c *gin.Context) {
	pdf, err := h.svc.RenderUnitLabel(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "La unidad no existe")
			return
		}
		InternalError(c, "Error al generar la etiqueta: "+err.Error())
		return
	}
	c.Header("Content-Disposition", "inline; filename=etiqueta.pdf")
	c.Data(200, "application/pdf", pdf)
}

type assignItemRequest struct {
	ItemID     string  `json:"item_id" binding:"required"`
	LocationID string  `json:"location_id" binding:"required"`
	ClientID   *string `json:"client_id"`
}

// Assign stores or updates a default location for an item.
// POST /api/v1/item-locations
func (h *InventoryHandler) Assign(c *gin.Context) {
	var req assignItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	assignment, err := h.svc.AssignItem(c.Request.Context(), req.ItemID, req.LocationID, req.ClientID, GetUserName(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			BadRequest(c, "La ubicación indicada no existe")
			return
		}
		InternalError(c, "Error al asignar el artículo: "+err.Error())
		return
	}
	Success(c, assignment)
}

// Unassign removes a stored default location.
// DELETE /api/v1/item-locations/:id
func (h *InventoryHandler) Unassign(c *gin.Context) {
	if err := h.svc.UnassignItem(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "La asignación no existe")
			return
		}
		InternalError(c, "Error al eliminar la asignación: "+err.Error())
		return
	}
	Success(c, nil)
}

// Suggestions returns the stored locations for an item, client defaults
// first, each with its readable path.
// GET /api/v1/items/:id/suggestions?client_id=xxx
func (h *InventoryHandler) Suggestions(c *gin.Context) {
	var clientID *string
	if v := c.Query("client_id"); v != "" {
		clientID = &v
	}

	suggestions, err := h.svc.Suggestions(c.Request.Context(), c.Param("id"), clientID)
	if err != nil {
		InternalError(c, "Error al obtener sugerencias: "+err.Error())
		return
	}
	Success(c, gin.H{"items": suggestions})
}
