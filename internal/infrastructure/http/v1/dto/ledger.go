package dto

import (
	"retailledger/internal/core/apperror"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/ledger"
)

// CreateAccountRequest opens a ledger account.
type CreateAccountRequest struct {
	Name        string      `json:"name" binding:"required,max=200"`
	Phone       string      `json:"phone" binding:"max=50"`
	Scope       Scope       `json:"scope"`
	CreditLimit types.Money `json:"creditLimit"`
}

// ToDomain converts the request.
func (r CreateAccountRequest) ToDomain() (ledger.NewAccount, error) {
	scope, err := r.Scope.ToDomain()
	if err != nil {
		return ledger.NewAccount{}, err
	}
	return ledger.NewAccount{
		Name:        r.Name,
		Phone:       r.Phone,
		Scope:       scope,
		CreditLimit: r.CreditLimit,
	}, nil
}

// SetAccountStatusRequest activates or deactivates an account.
type SetAccountStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=ACTIVE INACTIVE"`
}

// ReferenceDTO links a transaction to a business document.
type ReferenceDTO struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// CreateTransactionRequest posts a CREDIT or DEBIT.
type CreateTransactionRequest struct {
	Type        string        `json:"type" binding:"required,oneof=CREDIT DEBIT"`
	Amount      types.Money   `json:"amount"`
	Description string        `json:"description" binding:"max=500"`
	Reference   *ReferenceDTO `json:"reference"`
}

// Meta builds the transaction attributes. idempotencyKey comes from the request header.
func (r CreateTransactionRequest) Meta(idempotencyKey string) ledger.Meta {
	meta := ledger.Meta{Description: r.Description, IdempotencyKey: idempotencyKey}
	if r.Reference != nil {
		meta.Reference = ledger.Reference{Type: ledger.ReferenceType(r.Reference.Type), ID: r.Reference.ID}
	}
	return meta
}

// UpdateTransactionRequest lists the fields a client may change.
type UpdateTransactionRequest struct {
	Type            *string      `json:"type" binding:"omitempty,oneof=CREDIT DEBIT"`
	Amount          *types.Money `json:"amount"`
	Description     *string      `json:"description" binding:"omitempty,max=500"`
	ExpectedVersion *int         `json:"expectedVersion"`
}

// ToPatch converts the request.
func (r UpdateTransactionRequest) ToPatch() (ledger.Patch, error) {
	patch := ledger.Patch{
		Amount:          r.Amount,
		Description:     r.Description,
		ExpectedVersion: r.ExpectedVersion,
	}
	if r.Type != nil {
		t := ledger.EntryType(*r.Type)
		patch.Type = &t
	}
	if patch.IsEmpty() {
		return ledger.Patch{}, apperror.NewValidation("nothing to update")
	}
	return patch, nil
}

// DeleteTransactionQuery carries the optimistic lock of a delete.
type DeleteTransactionQuery struct {
	ExpectedVersion *int `form:"expectedVersion"`
}

// DivergenceResponse lists accounts whose stored balance drifted from their log.
type DivergenceResponse struct {
	Consistent  bool                `json:"consistent"`
	Divergences []ledger.Divergence `json:"divergences"`
}
