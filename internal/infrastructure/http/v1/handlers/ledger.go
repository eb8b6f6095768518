package handlers

import (
	"github.com/gin-gonic/gin"

	appctx "retailledger/internal/core/context"
	"retailledger/internal/domain/ledger"
	"retailledger/internal/infrastructure/http/v1/dto"
	"retailledger/internal/infrastructure/http/v1/middleware"
)

// LedgerHandler serves accounts and their credit/debit transactions.
type LedgerHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(base *BaseHandler, service *ledger.Service) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts the ledger endpoints on rg.
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	accounts := rg.Group("/accounts")
	{
		accounts.POST("", h.CreateAccount)
		accounts.GET("/:id", h.GetAccount)
		accounts.PATCH("/:id/status", h.SetAccountStatus)
		accounts.POST("/:id/transactions", h.CreateTransaction)
		accounts.GET("/:id/transactions", h.ListTransactions)
		accounts.GET("/:id/summary", h.GetSummary)
	}

	txs := rg.Group("/transactions")
	{
		txs.GET("/:id", h.GetTransaction)
		txs.PATCH("/:id", h.UpdateTransaction)
		txs.DELETE("/:id", h.DeleteTransaction)
	}

	rg.GET("/ledger/reconcile", middleware.RequireRole(appctx.RoleAdmin), h.Reconcile)
}

// CreateAccount opens an account.
// POST /accounts
func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	var req dto.CreateAccountRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToDomain()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	account, err := h.service.CreateAccount(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, account)
}

// GetAccount returns an account.
// GET /accounts/:id
func (h *LedgerHandler) GetAccount(c *gin.Context) {
	accountID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	account, err := h.service.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, account)
}

// SetAccountStatus activates or deactivates an account.
// PATCH /accounts/:id/status
func (h *LedgerHandler) SetAccountStatus(c *gin.Context) {
	accountID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.SetAccountStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	account, err := h.service.SetAccountStatus(c.Request.Context(), accountID, ledger.AccountStatus(req.Status))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, account)
}

// CreateTransaction posts a CREDIT or DEBIT. Retries carrying the same
// Idempotency-Key return the first result.
// POST /accounts/:id/transactions
func (h *LedgerHandler) CreateTransaction(c *gin.Context) {
	accountID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.CreateTransactionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	t, err := h.service.Create(
		c.Request.Context(),
		accountID,
		ledger.EntryType(req.Type),
		req.Amount,
		req.Meta(middleware.GetIdempotencyKey(c)),
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, t)
}

// ListTransactions lists an account's transactions, newest first.
// GET /accounts/:id/transactions
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	accountID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}
	page.Defaults()

	items, err := h.service.ListTransactions(c.Request.Context(), accountID, page.Limit, page.Offset)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.ListResponse[ledger.Transaction]{Items: items, Limit: page.Limit, Offset: page.Offset})
}

// GetSummary returns the account's credit/debit totals.
// GET /accounts/:id/summary
func (h *LedgerHandler) GetSummary(c *gin.Context) {
	accountID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	summary, err := h.service.GetAccountSummary(c.Request.Context(), accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, summary)
}

// GetTransaction returns one transaction.
// GET /transactions/:id
func (h *LedgerHandler) GetTransaction(c *gin.Context) {
	txID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	t, err := h.service.GetTransaction(c.Request.Context(), txID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, t)
}

// UpdateTransaction changes a transaction and rebalances its account.
// PATCH /transactions/:id
func (h *LedgerHandler) UpdateTransaction(c *gin.Context) {
	txID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateTransactionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	t, err := h.service.Update(c.Request.Context(), txID, patch)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, t)
}

// DeleteTransaction removes a transaction and reverts its balance effect.
// DELETE /transactions/:id?expectedVersion=N
func (h *LedgerHandler) DeleteTransaction(c *gin.Context) {
	txID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var q dto.DeleteTransactionQuery
	if !h.BindQuery(c, &q) {
		return
	}

	if err := h.service.Delete(c.Request.Context(), txID, q.ExpectedVersion); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Reconcile compares stored balances with the transaction log.
// GET /ledger/reconcile
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	divergences, err := h.service.Reconcile(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if divergences == nil {
		divergences = []ledger.Divergence{}
	}
	h.OK(c, dto.DivergenceResponse{Consistent: len(divergences) == 0, Divergences: divergences})
}
