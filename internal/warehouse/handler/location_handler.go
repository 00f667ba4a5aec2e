package handler

import (
	"errors"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/repository"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/service"
	"github.com/gin-gonic/gin"
)

// LocationHandler serves the location tree and item assignment endpoints.
type LocationHandler struct {
	svc       *service.LocationService
	inventory *service.InventoryService
}

func NewLocationHandler(svc *service.LocationService, inventory *service.InventoryService) *LocationHandler {
	return &LocationHandler{svc: svc, inventory: inventory}
}

// Create adds a single location node.
// POST /api/v1/locations
func (h *LocationHandler) Create(c *gin.Context) {
	var req service.CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	location, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateCode):
			Conflict(c, "El código de ubicación ya existe")
		case errors.Is(err, service.ErrInvalidLocationType):
			BadRequest(c, "Tipo de ubicación inválido")
		case errors.Is(err, service.ErrParentNotFound):
			BadRequest(c, "La ubicación padre no existe")
		default:
			InternalError(c, "Error al crear la ubicación: "+err.Error())
		}
		return
	}
	Created(c, location)
}

// CreateRack generates a full rack subtree from the level/position template.
// POST /api/v1/locations/racks
func (h *LocationHandler) CreateRack(c *gin.Context) {
	var req service.RackTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	locations, err := h.svc.CreateRackFromTemplate(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRackTemplate):
			BadRequest(c, "Plantilla de rack inválida")
		case errors.Is(err, service.ErrParentNotFound):
			BadRequest(c, "La ubicación padre no existe")
		case errors.Is(err, repository.ErrDuplicateCode):
			Conflict(c, "Algún código generado ya existe")
		default:
			InternalError(c, "Error al crear el rack: "+err.Error())
		}
		return
	}
	Created(c, gin.H{"items": locations, "count": len(locations)})
}

// CloneRack duplicates an existing rack under a new prefix.
// POST /api/v1/locations/racks/clone
func (h *LocationHandler) CloneRack(c *gin.Context) {
	var req service.CloneRackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	locations, err := h.svc.CloneRack(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "El rack de origen no existe")
		case errors.Is(err, service.ErrInvalidLocationType):
			BadRequest(c, "La ubicación de origen no es un rack")
		case errors.Is(err, repository.ErrDuplicateCode):
			Conflict(c, "Algún código generado ya existe")
		default:
			InternalError(c, "Error al clonar el rack: "+err.Error())
		}
		return
	}
	Created(c, gin.H{"items": locations, "count": len(locations)})
}

// List returns locations filtered by type, parent or search term.
// GET /api/v1/locations?type=rack&parent_id=xxx&search=xxx
func (h *LocationHandler) List(c *gin.Context) {
	filters := map[string]string{}
	for _, key := range []string{"type", "parent_id", "search"} {
		if v := c.Query(key); v != "" {
			filters[key] = v
		}
	}

	locations, err := h.svc.List(c.Request.Context(), filters)
	if err != nil {
		InternalError(c, "Error al listar ubicaciones: "+err.Error())
		return
	}
	Success(c, gin.H{"items": locations})
}

// Get returns one location.
// GET /api/v1/locations/:id
func (h *LocationHandler) Get(c *gin.Context) {
	location, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "La ubicación no existe")
			return
		}
		InternalError(c, "Error al obtener la ubicación: "+err.Error())
		return
	}
	Success(c, location)
}

// Children returns the direct children of a node.
// GET /api/v1/locations/:id/children
func (h *LocationHandler) Children(c *gin.Context) {
	children, err := h.svc.Children(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "Error al obtener ubicaciones hijas: "+err.Error())
		return
	}
	Success(c, gin.H{"items": children})
}

// Path returns the breadcrumb path for a node.
// GET /api/v1/locations/:id/path
func (h *LocationHandler) Path(c *gin.Context) {
	path, err := h.svc.Path(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "La ubicación no existe")
			return
		}
		InternalError(c, "Error al calcular la ruta: "+err.Error())
		return
	}
	Success(c, gin.H{"path": path})
}

// Units returns the inventory units stored at a location.
// GET /api/v1/locations/:id/units
func (h *LocationHandler) Units(c *gin.Context) {
	units, err := h.inventory.UnitsAtLocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "Error al obtener unidades: "+err.Error())
		return
	}
	Success(c, gin.H{"items": units})
}

// Delete removes a location and its subtree when nothing references it.
// DELETE /api/v1/locations/:id
func (h *LocationHandler) Delete(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "La ubicación no existe")
		case errors.Is(err, repository.ErrLocationInUse):
			Conflict(c, "La ubicación tiene unidades o artículos asignados")
		default:
			InternalError(c, "Error al eliminar la ubicación: "+err.Error())
		}
		return
	}
	Success(c, nil)
}

type lockRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// Lock takes the cooperative edit lock on one or more locations.
// POST /api/v1/locations/lock
func (h *LocationHandler) Lock(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	err := h.svc.Lock(c.Request.Context(), req.IDs, GetUserID(c), GetUserName(c))
	if err != nil {
		if errors.Is(err, repository.ErrLocked) {
			Conflict(c, "Alguna ubicación ya está bloqueada por otro usuario")
			return
		}
		InternalError(c, "Error al bloquear ubicaciones: "+err.Error())
		return
	}
	Success(c, nil)
}

// Release gives back the lock held by the caller.
// POST /api/v1/locations/release
func (h *LocationHandler) Release(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	err := h.svc.Release(c.Request.Context(), req.IDs, GetUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotLockOwner) {
			Forbidden(c, "El bloqueo pertenece a otro usuario")
			return
		}
		InternalError(c, "Error al liberar ubicaciones: "+err.Error())
		return
	}
	Success(c, nil)
}

// ForceRelease evicts any lock holder. Admin only (enforced by the route).
// POST /api/v1/locations/:id/force-release
func (h *LocationHandler) ForceRelease(c *gin.Context) {
	if err := h.svc.ForceRelease(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "La ubicación no existe")
			return
		}
		InternalError(c, "Error al liberar la ubicación: "+err.Error())
		return
	}
	Success(c, nil)
}
