package handlers

import (
	"github.com/gin-gonic/gin"

	"retailledger/internal/domain/settlement"
	"retailledger/internal/infrastructure/http/v1/dto"
)

// SettlementHandler serves sales and outstanding balances.
type SettlementHandler struct {
	*BaseHandler
	service *settlement.Service
}

// NewSettlementHandler creates a new settlement handler.
func NewSettlementHandler(base *BaseHandler, service *settlement.Service) *SettlementHandler {
	return &SettlementHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts the settlement endpoints on rg.
func (h *SettlementHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sales := rg.Group("/sales")
	{
		sales.POST("/settlement", h.ComputeSettlement)
		sales.POST("", h.RecordSale)
		sales.GET("/:id", h.GetSale)
	}
	rg.GET("/outstanding", h.AggregateOutstanding)
}

// ComputeSettlement previews the payment/credit split of a sale.
// POST /sales/settlement
func (h *SettlementHandler) ComputeSettlement(c *gin.Context) {
	var req dto.SettlementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	split, err := settlement.ComputeSplit(req.Total, req.PaymentAmount, req.IsFullyCredit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, split)
}

// RecordSale records a sale and posts its credit part to the linked account.
// POST /sales
func (h *SettlementHandler) RecordSale(c *gin.Context) {
	var req dto.RecordSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToDomain()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	sale, err := h.service.RecordSale(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sale)
}

// GetSale returns a sale.
// GET /sales/:id
func (h *SettlementHandler) GetSale(c *gin.Context) {
	saleID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	sale, err := h.service.GetSale(c.Request.Context(), saleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, sale)
}

// AggregateOutstanding sums outstanding amounts per customer.
// GET /outstanding?phone=&name=
func (h *SettlementHandler) AggregateOutstanding(c *gin.Context) {
	var q dto.OutstandingQuery
	if !h.BindQuery(c, &q) {
		return
	}
	balances, err := h.service.AggregateOutstanding(c.Request.Context(), q.Phone, q.Name)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.ListResponse[settlement.OutstandingBalance]{Items: balances})
}
