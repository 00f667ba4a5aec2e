package handler

import (
	"errors"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/repository"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/service"
	"github.com/gin-gonic/gin"
)

// ReceivingHandler serves the guided receiving wizard.
type ReceivingHandler struct {
	svc *service.ReceivingService
}

func NewReceivingHandler(svc *service.ReceivingService) *ReceivingHandler {
	return &ReceivingHandler{svc: svc}
}

// Start opens the wizard for the caller.
// POST /api/v1/receiving/wizard
func (h *ReceivingHandler) Start(c *gin.Context) {
	Success(c, h.svc.StartWizard(GetUserID(c)))
}

// State returns the caller's current wizard step.
// GET /api/v1/receiving/wizard
func (h *ReceivingHandler) State(c *gin.Context) {
	state, err := h.svc.State(GetUserID(c))
	if err != nil {
		NotFound(c, "No hay un asistente de recepción activo")
		return
	}
	Success(c, state)
}

// Cancel drops the wizard.
// DELETE /api/v1/receiving/wizard
func (h *ReceivingHandler) Cancel(c *gin.Context) {
	h.svc.Cancel(GetUserID(c))
	Success(c, nil)
}

type selectProductRequest struct {
	ProductID string  `json:"product_id" binding:"required"`
	ClientID  *string `json:"client_id"`
}

// SelectProduct resolves the product and loads location suggestions.
// POST /api/v1/receiving/wizard/product
func (h *ReceivingHandler) SelectProduct(c *gin.Context) {
	var req selectProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	state, err := h.svc.SelectProduct(c.Request.Context(), GetUserID(c), req.ProductID, req.ClientID)
	if err != nil {
		if errors.Is(err, service.ErrNoSuchProduct) {
			NotFound(c, "El producto no existe en el catálogo")
			return
		}
		h.wizardError(c, err)
		return
	}
	Success(c, state)
}

type selectLocationRequest struct {
	LocationID string `json:"location_id" binding:"required"`
	// Suggested marks the location as coming from the suggestion list.
	Suggested bool `json:"suggested"`
}

// SelectLocation picks the destination location.
// POST /api/v1/receiving/wizard/location
func (h *ReceivingHandler) SelectLocation(c *gin.Context) {
	var req selectLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	var (
		state *service.WizardState
		err   error
	)
	if req.Suggested {
		state, err = h.svc.ChooseSuggested(c.Request.Context(), GetUserID(c), req.LocationID)
	} else {
		state, err = h.svc.ChooseNew(c.Request.Context(), GetUserID(c), req.LocationID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "La ubicación no existe")
			return
		}
		h.wizardError(c, err)
		return
	}
	Success(c, state)
}

type saveDefaultRequest struct {
	Save *bool `json:"save" binding:"required"`
}

// SetSaveAsDefault flips the save-as-default toggle.
// POST /api/v1/receiving/wizard/save-default
func (h *ReceivingHandler) SetSaveAsDefault(c *gin.Context) {
	var req saveDefaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	state, err := h.svc.SetSaveAsDefault(GetUserID(c), *req.Save)
	if err != nil {
		h.wizardError(c, err)
		return
	}
	Success(c, state)
}

// Confirm registers the unit and finishes the wizard.
// POST /api/v1/receiving/wizard/confirm
func (h *ReceivingHandler) Confirm(c *gin.Context) {
	var req service.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Solicitud inválida: "+err.Error())
		return
	}

	state, err := h.svc.Confirm(c.Request.Context(), GetUserID(c), GetUserName(c), &req)
	if err != nil {
		h.wizardError(c, err)
		return
	}
	Success(c, state)
}

// GoBack rewinds the wizard one step.
// POST /api/v1/receiving/wizard/back
func (h *ReceivingHandler) GoBack(c *gin.Context) {
	state, err := h.svc.GoBack(GetUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrCannotGoBack) {
			Conflict(c, "No se puede retroceder desde este paso")
			return
		}
		h.wizardError(c, err)
		return
	}
	Success(c, state)
}

// Label streams the label of the unit registered by the wizard.
// GET /api/v1/receiving/wizard/label
func (h *ReceivingHandler) Label(c *gin.Context) {
	pdf, err := h.svc.Label(c.Request.Context(), GetUserID(c))
	if err != nil {
		h.wizardError(c, err)
		return
	}
	c.Header("Content-Disposition", "inline; filename=etiqueta.pdf")
	c.Data(200, "application/pdf", pdf)
}

func (h *ReceivingHandler) wizardError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoWizard):
		NotFound(c, "No hay un asistente de recepción activo")
	case errors.Is(err, service.ErrWrongStep):
		Conflict(c, "La operación no es válida en el paso actual")
	default:
		InternalError(c, "Error en el asistente de recepción: "+err.Error())
	}
}
