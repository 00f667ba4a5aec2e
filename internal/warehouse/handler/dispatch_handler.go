package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/erp"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/repository"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/service"
	"github.com/gin-gonic/gin"
)

// DispatchHandler serves the verification workflow, containers and the
// audit log.
type DispatchHandler struct {
	svc *service.DispatchService
}

func NewDispatchHandler(svc *service.DispatchService) *DispatchHandler {
	return &DispatchHandler{svc: svc}
}

// SearchDocuments proxies the ERP document search.
// GET /api/v1/dispatch/documents?q=xxx
func (h *DispatchHandler) SearchDocuments(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		BadRequest(c, "El parámetro q es obligatorio")
		return
	}

	docs, err := h.svc.SearchDocuments(c.Request.Context(), q)
	if err != nil {
		InternalError(c, "Error al buscar documentos: "+err.Error())
		return
	}
	Success(c, gin.H{"items": docs})
}

// StartSession loads a document and opens the caller's verification session.
// POST /api/v1/dispatch/session
func (h *DispatchHandler) StartSession(c *gin.Context) {
	var req service.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	session, err := h.svc.Start(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		if errors.Is(err, erp.ErrDocumentNotFound) {
			NotFound(c, "El documento no existe en el ERP")
			return
		}
		InternalError(c, "Error al cargar el documento: "+err.Error())
		return
	}
	Success(c, session)
}

// GetSession returns the caller's current session.
// GET /api/v1/dispatch/session
func (h *DispatchHandler) GetSession(c *gin.Context) {
	session, err := h.svc.Snapshot(GetUserID(c))
	if err != nil {
		NotFound(c, "No hay una sesión de despacho activa")
		return
	}
	Success(c, session)
}

// AbandonSession drops the caller's session without persisting.
// DELETE /api/v1/dispatch/session
func (h *DispatchHandler) AbandonSession(c *gin.Context) {
	h.svc.Abandon(GetUserID(c))
	Success(c, nil)
}

type scanRequest struct {
	Code string `json:"code" binding:"required"`
}

// Scan processes one scanned code.
// POST /api/v1/dispatch/session/scan
func (h *DispatchHandler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	result, err := h.svc.Scan(GetUserID(c), req.Code)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	Success(c, result)
}

type confirmAllRequest struct {
	LineID string `json:"line_id" binding:"required"`
	Accept *bool  `json:"accept" binding:"required"`
}

// ConfirmAll resolves the full-quantity confirmation prompt.
// POST /api/v1/dispatch/session/confirm-all
func (h *DispatchHandler) ConfirmAll(c *gin.Context) {
	var req confirmAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	item, err := h.svc.ConfirmAll(GetUserID(c), req.LineID, *req.Accept)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	Success(c, item)
}

type setQuantityRequest struct {
	LineID   string `json:"line_id" binding:"required"`
	Quantity string `json:"quantity" binding:"required"`
}

// SetQuantity applies a manual quantity entry.
// POST /api/v1/dispatch/session/quantity
func (h *DispatchHandler) SetQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	result, err := h.svc.SetQuantity(GetUserID(c), req.LineID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidQuantity):
			BadRequest(c, "Cantidad inválida")
		case errors.Is(err, service.ErrQuantityDecrease):
			Conflict(c, "La cantidad verificada no puede disminuir")
		default:
			h.sessionError(c, err)
		}
		return
	}
	Success(c, result)
}

// Finalize closes the session and writes the audit record. A 409 with code
// 40901 asks for the move-or-accept choice, 40902 for the discrepancy
// confirmation.
// POST /api/v1/dispatch/session/finalize
func (h *DispatchHandler) Finalize(c *gin.Context) {
	var req service.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	result, err := h.svc.Finalize(c.Request.Context(), GetUserID(c), GetUserName(c), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChoiceRequired):
			Error(c, 40901, "Hay líneas sin verificar: mueva el documento o acepte la discrepancia")
		case errors.Is(err, service.ErrConfirmRequired):
			Error(c, 40902, "Hay discrepancias: confirme para finalizar")
		case errors.Is(err, service.ErrFinalizeInFlight):
			Conflict(c, "La finalización ya está en curso")
		case errors.Is(err, service.ErrInvalidTransition):
			Conflict(c, "El documento ya fue despachado")
		default:
			h.sessionError(c, err)
		}
		return
	}
	Success(c, result)
}

type moveRequest struct {
	ContainerID string `json:"container_id" binding:"required"`
}

// MoveToContainer moves the in-progress document to another container as a
// partial dispatch.
// POST /api/v1/dispatch/session/move
func (h *DispatchHandler) MoveToContainer(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	err := h.svc.MoveToContainer(c.Request.Context(), GetUserID(c), GetUserName(c), req.ContainerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "El contenedor de destino no existe")
			return
		}
		h.sessionError(c, err)
		return
	}
	Success(c, nil)
}

func (h *DispatchHandler) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoActiveSession):
		NotFound(c, "No hay una sesión de despacho activa")
	case errors.Is(err, service.ErrWrongState):
		Conflict(c, "La operación no es válida en el estado actual")
	case errors.Is(err, service.ErrLineNotFound):
		NotFound(c, "La línea no existe en el documento")
	default:
		InternalError(c, "Error en la sesión de despacho: "+err.Error())
	}
}

// ============================================================
// Containers
// ============================================================

type createContainerRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateContainer opens a new dispatch container.
// POST /api/v1/dispatch/containers
func (h *DispatchHandler) CreateContainer(c *gin.Context) {
	var req createContainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	container, err := h.svc.CreateContainer(c.Request.Context(), req.Name, GetUserName(c))
	if err != nil {
		InternalError(c, "Error al crear el contenedor: "+err.Error())
		return
	}
	Created(c, container)
}

// ListContainers returns all containers.
// GET /api/v1/dispatch/containers
func (h *DispatchHandler) ListContainers(c *gin.Context) {
	containers, err := h.svc.ListContainers(c.Request.Context())
	if err != nil {
		InternalError(c, "Error al listar contenedores: "+err.Error())
		return
	}
	Success(c, gin.H{"items": containers})
}

// GetContainer returns a container with its route.
// GET /api/v1/dispatch/containers/:id
func (h *DispatchHandler) GetContainer(c *gin.Context) {
	container, err := h.svc.GetContainer(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "El contenedor no existe")
			return
		}
		InternalError(c, "Error al obtener el contenedor: "+err.Error())
		return
	}
	Success(c, container)
}

// ContainerProgress summarizes the container route state.
// GET /api/v1/dispatch/containers/:id/progress
func (h *DispatchHandler) ContainerProgress(c *gin.Context) {
	progress, err := h.svc.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "Error al calcular el avance: "+err.Error())
		return
	}
	Success(c, progress)
}

// DeleteContainer removes an empty container.
// DELETE /api/v1/dispatch/containers/:id
func (h *DispatchHandler) DeleteContainer(c *gin.Context) {
	err := h.svc.DeleteContainer(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "El contenedor no existe")
		case errors.Is(err, repository.ErrLocationInUse):
			Conflict(c, "El contenedor tiene documentos asignados")
		default:
			InternalError(c, "Error al eliminar el contenedor: "+err.Error())
		}
		return
	}
	Success(c, nil)
}

// LockContainer takes the cooperative lock.
// POST /api/v1/dispatch/containers/:id/lock
func (h *DispatchHandler) LockContainer(c *gin.Context) {
	err := h.svc.LockContainer(c.Request.Context(), c.Param("id"), GetUserID(c), GetUserName(c))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "El contenedor no existe")
		case errors.Is(err, repository.ErrLocked):
			Conflict(c, "El contenedor está bloqueado por otro usuario")
		default:
			InternalError(c, "Error al bloquear el contenedor: "+err.Error())
		}
		return
	}
	Success(c, nil)
}

// UnlockContainer releases the caller's lock.
// POST /api/v1/dispatch/containers/:id/unlock
func (h *DispatchHandler) UnlockContainer(c *gin.Context) {
	err := h.svc.UnlockContainer(c.Request.Context(), c.Param("id"), GetUserID(c), false)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "El contenedor no existe")
		case errors.Is(err, repository.ErrNotLockOwner):
			Forbidden(c, "El bloqueo pertenece a otro usuario")
		default:
			InternalError(c, "Error al liberar el contenedor: "+err.Error())
		}
		return
	}
	Success(c, nil)
}

// ForceUnlockContainer evicts any lock holder. Admin only.
// POST /api/v1/dispatch/containers/:id/force-unlock
func (h *DispatchHandler) ForceUnlockContainer(c *gin.Context) {
	err := h.svc.UnlockContainer(c.Request.Context(), c.Param("id"), GetUserID(c), true)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "El contenedor no existe")
			return
		}
		InternalError(c, "Error al liberar el contenedor: "+err.Error())
		return
	}
	Success(c, nil)
}

type addDocumentRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
}

// AddDocument assigns a document to a container.
// POST /api/v1/dispatch/containers/:id/documents
func (h *DispatchHandler) AddDocument(c *gin.Context) {
	var req addDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	assignment, err := h.svc.AddDocument(c.Request.Context(), c.Param("id"), req.DocumentID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "El contenedor no existe")
		case errors.Is(err, erp.ErrDocumentNotFound):
			NotFound(c, "El documento no existe en el ERP")
		case errors.Is(err, repository.ErrDuplicateCode):
			Conflict(c, "El documento ya está asignado a un contenedor")
		default:
			InternalError(c, "Error al asignar el documento: "+err.Error())
		}
		return
	}
	Created(c, assignment)
}

// ============================================================
// Audit log
// ============================================================

// History returns the audit trail of one document.
// GET /api/v1/dispatch/documents/:id/history
func (h *DispatchHandler) History(c *gin.Context) {
	logs, err := h.svc.DocumentHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "Error al obtener el historial: "+err.Error())
		return
	}
	Success(c, gin.H{"items": logs})
}

func logFilters(c *gin.Context) map[string]string {
	filters := map[string]string{}
	for _, key := range []string{"document_id", "verified_by", "from", "to"} {
		if v := c.Query(key); v != "" {
			filters[key] = v
		}
	}
	return filters
}

// ListLogs pages through the dispatch audit log.
// GET /api/v1/dispatch/logs?document_id=xxx&verified_by=xxx&from=xxx&to=xxx
func (h *DispatchHandler) ListLogs(c *gin.Context) {
	page, pageSize := GetPagination(c)

	logs, total, err := h.svc.ListLogs(c.Request.Context(), page, pageSize, logFilters(c))
	if err != nil {
		InternalError(c, "Error al listar el historial: "+err.Error())
		return
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: logs,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// ExportLogs streams the filtered audit log as a spreadsheet.
// GET /api/v1/dispatch/logs/export
func (h *DispatchHandler) ExportLogs(c *gin.Context) {
	data, err := h.svc.ExportLogs(c.Request.Context(), logFilters(c))
	if err != nil {
		InternalError(c, "Error al exportar el historial: "+err.Error())
		return
	}

	filename := fmt.Sprintf("despachos-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(200, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
