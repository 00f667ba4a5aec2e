package handler

import (
	"strconv"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/hacienda"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/service"
	"github.com/gin-gonic/gin"
)

// Handlers is the HTTP handler collection.
type Handlers struct {
	Location  *LocationHandler
	Inventory *InventoryHandler
	Dispatch  *DispatchHandler
	Receiving *ReceivingHandler
	Hacienda  *HaciendaHandler
	SSE       *SSEHandler
}

// NewHandlers wires the handlers. hacienda may be nil (endpoints disabled).
func NewHandlers(svc *service.Services, hac *hacienda.Client) *Handlers {
	h := &Handlers{
		Location:  NewLocationHandler(svc.Location, svc.Inventory),
		Inventory: NewInventoryHandler(svc.Inventory),
		Dispatch:  NewDispatchHandler(svc.Dispatch),
		Receiving: NewReceivingHandler(svc.Receiving),
		SSE:       NewSSEHandler(),
	}
	if hac != nil {
		h.Hacienda = NewHaciendaHandler(hac)
	}
	return h
}

// Response is the common envelope.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse wraps a paged list.
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination carries paging metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Success writes a 200 envelope.
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created writes a 201 envelope.
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error writes an error envelope. The HTTP status is the leading three
// digits of the business code.
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// GetUserID reads the authenticated user id from the context.
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetUserName reads the authenticated display name from the context.
func GetUserName(c *gin.Context) string {
	userName, _ := c.Get("user_name")
	if name, ok := userName.(string); ok {
		return name
	}
	return ""
}

// GetPagination reads page/page_size query parameters with defaults.
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
