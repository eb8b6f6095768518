package v1_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/app"
	"retailledger/internal/config"
	appctx "retailledger/internal/core/context"
	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/auth"
	"retailledger/internal/domain/ledger"
	"retailledger/internal/domain/restock"
	"retailledger/internal/domain/settlement"
	v1 "retailledger/internal/infrastructure/http/v1"
	"retailledger/pkg/logger"
)

const testSecret = "router-test-secret-0123456789abcdef"

var (
	admin     = &appctx.Actor{UserID: "admin", Role: appctx.RoleAdmin}
	cashierB1 = &appctx.Actor{UserID: "cashier-b1", Role: appctx.RoleCashier, BranchID: "b1"}
	cashierB2 = &appctx.Actor{UserID: "cashier-b2", Role: appctx.RoleCashier, BranchID: "b2"}
	keeperW1  = &appctx.Actor{UserID: "keeper-w1", Role: appctx.RoleWarehouseKeeper, WarehouseID: "w1"}
)

type apiClient struct {
	t      *testing.T
	router http.Handler
	jwt    *auth.JWTService
}

func newClient(t *testing.T) *apiClient {
	t.Helper()

	cfg := &config.Config{
		Ledger: config.LedgerConfig{
			OperationTimeout:  2 * time.Second,
			CreditLimitPolicy: string(ledger.RuleReject),
			BalancePolicy:     string(ledger.RuleReject),
			IdempotencyTTL:    time.Hour,
		},
	}
	services := app.NewMemory(cfg)
	t.Cleanup(services.Close)

	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig(testSecret))
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       logger.NewNop(),
		JWTValidator: jwtSvc,
		Ledger:       services.Ledger,
		Restock:      services.Restock,
		Settlement:   services.Settlement,
		Readiness:    services.Readiness,
		Storage:      services.Storage,
		Version:      "test",
	})
	return &apiClient{t: t, router: router, jwt: jwtSvc}
}

func (c *apiClient) do(actor *appctx.Actor, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, _, err := c.jwt.GenerateAccessToken(*actor)
		require.NoError(c.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details"`
	Retryable bool           `json:"retryable"`
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	assert.Equal(t, code, decode[errorBody](t, w).Code)
}

func money(s string) types.Money { return types.MustMoney(s) }

func (c *apiClient) openAccount(actor *appctx.Actor, branch, limit string) ledger.Account {
	c.t.Helper()
	w := c.do(actor, http.MethodPost, "/api/v1/accounts", map[string]any{
		"name":        "Customer",
		"phone":       "555-1212",
		"scope":       map[string]string{"kind": "BRANCH", "id": branch},
		"creditLimit": limit,
	})
	require.Equal(c.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[ledger.Account](c.t, w)
}

func TestHealth_NoAuthRequired(t *testing.T) {
	c := newClient(t)

	w := c.do(nil, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = c.do(nil, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = c.do(nil, http.MethodGet, "/health/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[map[string]any](t, w)
	assert.Equal(t, config.DriverMemory, info["storage"])
}

func TestAuth_RejectsMissingOrInvalidToken(t *testing.T) {
	c := newClient(t)
	path := "/api/v1/accounts/" + id.New().String()

	assertError(t, c.do(nil, http.MethodGet, path, nil), http.StatusUnauthorized, "UNAUTHORIZED")
	assertError(t, c.do(nil, http.MethodGet, path, nil, "Authorization", "Bearer not-a-token"), http.StatusUnauthorized, "UNAUTHORIZED")
	assertError(t, c.do(nil, http.MethodGet, path, nil, "Authorization", "Basic abc"), http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestLedger_CreditLimitAndIdempotentRetry(t *testing.T) {
	c := newClient(t)
	acc := c.openAccount(cashierB1, "b1", "100")
	txPath := fmt.Sprintf("/api/v1/accounts/%s/transactions", acc.ID)

	credit := map[string]any{"type": "CREDIT", "amount": "60", "description": "tab"}
	first := c.do(cashierB1, http.MethodPost, txPath, credit, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	retry := c.do(cashierB1, http.MethodPost, txPath, credit, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, retry.Code, retry.Body.String())
	assert.Equal(t, decode[ledger.Transaction](t, first).ID, decode[ledger.Transaction](t, retry).ID)

	over := c.do(cashierB1, http.MethodPost, txPath, map[string]any{"type": "CREDIT", "amount": "50"})
	assertError(t, over, http.StatusUnprocessableEntity, "CREDIT_LIMIT_EXCEEDED")

	w := c.do(cashierB1, http.MethodGet, fmt.Sprintf("/api/v1/accounts/%s/summary", acc.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[ledger.Summary](t, w)
	assert.True(t, summary.TotalCredit.Equal(money("60")))
	assert.True(t, summary.CurrentBalance.Equal(money("60")))
	assert.Equal(t, 1, summary.Count)

	w = c.do(cashierB1, http.MethodGet, txPath+"?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Items []ledger.Transaction `json:"items"`
	}](t, w)
	assert.Len(t, list.Items, 1)
}

func TestLedger_DebitBeyondBalanceRejected(t *testing.T) {
	c := newClient(t)
	acc := c.openAccount(cashierB1, "b1", "100")
	txPath := fmt.Sprintf("/api/v1/accounts/%s/transactions", acc.ID)

	w := c.do(cashierB1, http.MethodPost, txPath, map[string]any{"type": "DEBIT", "amount": "1"})
	assertError(t, w, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE")

	w = c.do(cashierB1, http.MethodPost, txPath, map[string]any{"type": "DEBIT", "amount": "-1"})
	assertError(t, w, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestLedger_ScopeAndRoleEnforced(t *testing.T) {
	c := newClient(t)
	acc := c.openAccount(cashierB1, "b1", "100")

	w := c.do(cashierB2, http.MethodGet, "/api/v1/accounts/"+acc.ID.String(), nil)
	assertError(t, w, http.StatusForbidden, "SCOPE_ACCESS_DENIED")

	w = c.do(cashierB2, http.MethodPost, "/api/v1/accounts", map[string]any{
		"name":  "Elsewhere",
		"scope": map[string]string{"kind": "BRANCH", "id": "b1"},
	})
	assertError(t, w, http.StatusForbidden, "SCOPE_ACCESS_DENIED")

	w = c.do(cashierB1, http.MethodGet, "/api/v1/ledger/reconcile", nil)
	assertError(t, w, http.StatusForbidden, "SCOPE_ACCESS_DENIED")

	w = c.do(admin, http.MethodGet, "/api/v1/ledger/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[map[string]any](t, w)["consistent"].(bool))
}

func TestLedger_UpdateAndDeleteHonourVersion(t *testing.T) {
	c := newClient(t)
	acc := c.openAccount(cashierB1, "b1", "100")

	w := c.do(cashierB1, http.MethodPost, fmt.Sprintf("/api/v1/accounts/%s/transactions", acc.ID), map[string]any{"type": "CREDIT", "amount": "40"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[ledger.Transaction](t, w)
	txPath := "/api/v1/transactions/" + created.ID.String()

	w = c.do(cashierB1, http.MethodPatch, txPath, map[string]any{"amount": "30", "expectedVersion": created.Version + 5})
	assertError(t, w, http.StatusConflict, "CONFLICT")

	w = c.do(cashierB1, http.MethodPatch, txPath, map[string]any{"amount": "30", "expectedVersion": created.Version})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[ledger.Transaction](t, w)
	assert.Equal(t, created.Version+1, updated.Version)
	assert.True(t, updated.Amount.Equal(money("30")))

	w = c.do(cashierB1, http.MethodPatch, txPath, map[string]any{})
	assertError(t, w, http.StatusBadRequest, "VALIDATION_ERROR")

	w = c.do(cashierB1, http.MethodDelete, fmt.Sprintf("%s?expectedVersion=%d", txPath, created.Version), nil)
	assertError(t, w, http.StatusConflict, "CONFLICT")

	w = c.do(cashierB1, http.MethodDelete, fmt.Sprintf("%s?expectedVersion=%d", txPath, updated.Version), nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	assertError(t, c.do(cashierB1, http.MethodGet, txPath, nil), http.StatusNotFound, "NOT_FOUND")

	w = c.do(cashierB1, http.MethodGet, "/api/v1/accounts/"+acc.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[ledger.Account](t, w).CurrentBalance.IsZero())
}

func TestLedger_InvalidPathID(t *testing.T) {
	c := newClient(t)
	assertError(t, c.do(cashierB1, http.MethodGet, "/api/v1/accounts/not-a-uuid", nil), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestRestock_PartialThenOvershoot(t *testing.T) {
	c := newClient(t)
	scope := map[string]string{"kind": "WAREHOUSE", "id": "w1"}

	w := c.do(keeperW1, http.MethodPost, "/api/v1/inventory/items", map[string]any{
		"sku": "SKU-1", "name": "Kettle", "scope": scope, "initialStock": "2",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode[restock.InventoryItem](t, w)

	w = c.do(keeperW1, http.MethodPost, "/api/v1/returns", map[string]any{
		"scope": scope,
		"lines": []map[string]any{{"inventoryItemId": item.ID.String(), "quantity": "5"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ret := decode[restock.Return](t, w)
	require.Len(t, ret.Lines, 1)
	restockPath := fmt.Sprintf("/api/v1/returns/%s/lines/%s/restock", ret.ID, ret.Lines[0].ID)

	w = c.do(keeperW1, http.MethodPost, restockPath, map[string]any{"quantity": "3"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[restock.Result](t, w)
	assert.Equal(t, types.NewQuantityFromUnits(2), res.RemainingAfter)
	assert.Equal(t, restock.ReturnPartial, res.ReturnStatus)
	assert.False(t, res.Completed)

	w = c.do(keeperW1, http.MethodPost, restockPath, map[string]any{"quantity": "3"})
	assertError(t, w, http.StatusUnprocessableEntity, "EXCEEDS_REMAINING")

	w = c.do(admin, http.MethodGet, "/api/v1/restocks/pending?state=PARTIAL", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pending := decode[struct {
		Items []restock.PendingRow `json:"items"`
	}](t, w)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, ret.Lines[0].ID, pending.Items[0].LineID)

	w = c.do(keeperW1, http.MethodGet, "/api/v1/restocks/pending", nil)
	assertError(t, w, http.StatusForbidden, "SCOPE_ACCESS_DENIED")

	w = c.do(keeperW1, http.MethodPost, restockPath, map[string]any{"quantity": "2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[restock.Result](t, w).Completed)

	w = c.do(keeperW1, http.MethodGet, "/api/v1/inventory/items/"+item.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.NewQuantityFromUnits(7), decode[restock.InventoryItem](t, w).CurrentStock)
}

func TestSettlement_PreviewRecordAndOutstanding(t *testing.T) {
	c := newClient(t)

	w := c.do(cashierB1, http.MethodPost, "/api/v1/sales/settlement", map[string]any{
		"total": "100", "paymentAmount": "30",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	split := decode[settlement.Split](t, w)
	assert.True(t, split.CreditAmount.Equal(money("70")))
	assert.Equal(t, settlement.PaymentPartial, split.Status)

	acc := c.openAccount(cashierB1, "b1", "500")
	w = c.do(cashierB1, http.MethodPost, "/api/v1/sales", map[string]any{
		"scope":         map[string]string{"kind": "BRANCH", "id": "b1"},
		"accountId":     acc.ID.String(),
		"customerName":  "Ada",
		"customerPhone": "555-0001",
		"total":         "100",
		"paymentAmount": "30",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sale := decode[settlement.Sale](t, w)
	require.NotNil(t, sale.LedgerTransactionID)
	assert.True(t, sale.OutstandingAmount.Equal(money("70")))

	w = c.do(cashierB1, http.MethodGet, "/api/v1/sales/"+sale.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = c.do(cashierB1, http.MethodGet, "/api/v1/outstanding?phone=555-0001", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode[struct {
		Items []settlement.OutstandingBalance `json:"items"`
	}](t, w)
	require.Len(t, out.Items, 1)
	assert.True(t, out.Items[0].TotalOutstanding.Equal(money("70")))
	assert.Equal(t, 1, out.Items[0].PendingSalesCount)

	w = c.do(cashierB2, http.MethodGet, "/api/v1/outstanding?phone=555-0001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[struct {
		Items []settlement.OutstandingBalance `json:"items"`
	}](t, w).Items)

	w = c.do(cashierB1, http.MethodGet, fmt.Sprintf("/api/v1/accounts/%s", acc.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[ledger.Account](t, w).CurrentBalance.Equal(money("70")))

	for _, entry := range []struct{ ref, amount string }{{"PAYMENT", "70"}, {"RETURN", "10"}} {
		w = c.do(cashierB1, http.MethodPost, "/api/v1/accounts/"+acc.ID.String()+"/transactions", map[string]any{
			"type":      "DEBIT",
			"amount":    entry.amount,
			"reference": map[string]string{"type": entry.ref, "id": sale.ID.String()},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = c.do(cashierB1, http.MethodGet, "/api/v1/outstanding?name=ada", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out = decode[struct {
		Items []settlement.OutstandingBalance `json:"items"`
	}](t, w)
	require.Len(t, out.Items, 1)
	assert.True(t, out.Items[0].TotalOutstanding.Equal(money("-10")))
	assert.True(t, out.Items[0].IsCredit)
}

func TestIdempotencyKey_TooLong(t *testing.T) {
	c := newClient(t)
	acc := c.openAccount(cashierB1, "b1", "100")

	long := string(bytes.Repeat([]byte("k"), 300))
	w := c.do(cashierB1, http.MethodPost, fmt.Sprintf("/api/v1/accounts/%s/transactions", acc.ID),
		map[string]any{"type": "CREDIT", "amount": "1"}, "Idempotency-Key", long)
	assertError(t, w, http.StatusBadRequest, "VALIDATION_ERROR")
}
