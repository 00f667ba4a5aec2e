package handler

import (
	"errors"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/hacienda"
	"github.com/gin-gonic/gin"
)

// HaciendaHandler exposes the tax authority lookups used by the dispatch
// screens.
type HaciendaHandler struct {
	client *hacienda.Client
}

func NewHaciendaHandler(client *hacienda.Client) *HaciendaHandler {
	return &HaciendaHandler{client: client}
}

// TaxStatus looks up a taxpayer by identification number.
// GET /api/v1/hacienda/contribuyentes/:id
func (h *HaciendaHandler) TaxStatus(c *gin.Context) {
	status, err := h.client.GetTaxStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, hacienda.ErrNotFound) {
			NotFound(c, "La identificación no está registrada en Hacienda")
			return
		}
		InternalError(c, "Error al consultar Hacienda: "+err.Error())
		return
	}
	Success(c, status)
}

// Exemption looks up an exemption authorization.
// GET /api/v1/hacienda/exoneraciones/:authNumber
func (h *HaciendaHandler) Exemption(c *gin.Context) {
	exemption, err := h.client.GetExemption(c.Request.Context(), c.Param("authNumber"))
	if err != nil {
		if errors.Is(err, hacienda.ErrNotFound) {
			NotFound(c, "La autorización de exoneración no existe")
			return
		}
		InternalError(c, "Error al consultar Hacienda: "+err.Error())
		return
	}
	Success(c, exemption)
}

// ExchangeRate returns the current CRC/USD exchange rate.
// GET /api/v1/hacienda/tipo-cambio
func (h *HaciendaHandler) ExchangeRate(c *gin.Context) {
	rate, err := h.client.GetExchangeRate(c.Request.Context())
	if err != nil {
		InternalError(c, "Error al consultar el tipo de cambio: "+err.Error())
		return
	}
	Success(c, rate)
}
