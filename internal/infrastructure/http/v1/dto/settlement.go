package dto

import (
	"retailledger/internal/core/types"
	"retailledger/internal/domain/settlement"
)

// SettlementRequest asks how a sale total splits into payment and credit.
type SettlementRequest struct {
	Total         types.Money `json:"total"`
	PaymentAmount types.Money `json:"paymentAmount"`
	IsFullyCredit bool        `json:"isFullyCredit"`
}

// RecordSaleRequest records a sale with its settlement.
type RecordSaleRequest struct {
	Scope         Scope       `json:"scope"`
	AccountID     *string     `json:"accountId"`
	CustomerName  string      `json:"customerName" binding:"max=200"`
	CustomerPhone string      `json:"customerPhone" binding:"max=50"`
	Total         types.Money `json:"total"`
	PaymentAmount types.Money `json:"paymentAmount"`
	IsFullyCredit bool        `json:"isFullyCredit"`
}

// ToDomain converts the request.
func (r RecordSaleRequest) ToDomain() (settlement.SaleInput, error) {
	scope, err := r.Scope.ToDomain()
	if err != nil {
		return settlement.SaleInput{}, err
	}
	accountID, err := ParseOptionalID("accountId", r.AccountID)
	if err != nil {
		return settlement.SaleInput{}, err
	}
	return settlement.SaleInput{
		Scope:         scope,
		AccountID:     accountID,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		Total:         r.Total,
		PaymentAmount: r.PaymentAmount,
		FullyCredit:   r.IsFullyCredit,
	}, nil
}

// OutstandingQuery filters the outstanding balance aggregation.
type OutstandingQuery struct {
	Phone string `form:"phone"`
	Name  string `form:"name"`
}
