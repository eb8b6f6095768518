package handlers

import (
	"github.com/gin-gonic/gin"

	"retailledger/internal/domain/restock"
	"retailledger/internal/infrastructure/http/v1/dto"
)

// RestockHandler serves inventory items, returns and restocks.
type RestockHandler struct {
	*BaseHandler
	service *restock.Service
}

// NewRestockHandler creates a new restock handler.
func NewRestockHandler(base *BaseHandler, service *restock.Service) *RestockHandler {
	return &RestockHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts the restock endpoints on rg.
func (h *RestockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	items := rg.Group("/inventory/items")
	{
		items.POST("", h.RegisterItem)
		items.GET("/:id", h.GetItem)
	}

	returns := rg.Group("/returns")
	{
		returns.POST("", h.CreateReturn)
		returns.GET("/:returnId", h.GetReturn)
		returns.POST("/:returnId/lines/:lineId/restock", h.Restock)
	}

	rg.GET("/restocks/pending", h.ListPending)
}

// RegisterItem adds an inventory item.
// POST /inventory/items
func (h *RestockHandler) RegisterItem(c *gin.Context) {
	var req dto.RegisterItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToDomain()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	item, err := h.service.RegisterItem(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, item)
}

// GetItem returns an inventory item.
// GET /inventory/items/:id
func (h *RestockHandler) GetItem(c *gin.Context) {
	itemID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	item, err := h.service.GetItem(c.Request.Context(), itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, item)
}

// CreateReturn registers a sales return.
// POST /returns
func (h *RestockHandler) CreateReturn(c *gin.Context) {
	var req dto.CreateReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToDomain()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	r, err := h.service.CreateReturn(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, r)
}

// GetReturn returns a return with its lines.
// GET /returns/:returnId
func (h *RestockHandler) GetReturn(c *gin.Context) {
	returnID, ok := h.PathID(c, "returnId")
	if !ok {
		return
	}
	r, err := h.service.GetReturn(c.Request.Context(), returnID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, r)
}

// Restock puts part of a return line back into stock.
// POST /returns/:returnId/lines/:lineId/restock
func (h *RestockHandler) Restock(c *gin.Context) {
	returnID, ok := h.PathID(c, "returnId")
	if !ok {
		return
	}
	lineID, ok := h.PathID(c, "lineId")
	if !ok {
		return
	}
	var req dto.RestockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.Restock(c.Request.Context(), returnID, lineID, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, res)
}

// ListPending lists return lines with stock left to put back.
// GET /restocks/pending
func (h *RestockHandler) ListPending(c *gin.Context) {
	var q dto.PendingRestocksQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	rows, err := h.service.ListPending(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if rows == nil {
		rows = []restock.PendingRow{}
	}
	h.OK(c, dto.ListResponse[restock.PendingRow]{Items: rows, Limit: filter.Limit, Offset: filter.Offset})
}
