package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"retailledger/internal/core/apperror"
	appctx "retailledger/internal/core/context"
	"retailledger/internal/core/id"
	"retailledger/internal/core/numerator"
	"retailledger/internal/core/security"
	"retailledger/internal/core/tx"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/ledger"
	"retailledger/pkg/logger"
)

// Service records sales and aggregates outstanding balances.
type Service struct {
	repo      Repository
	ledger    CreditPoster
	txm       tx.Manager
	gate      *security.Gate
	numerator numerator.Generator
	numbering numerator.Config
	timeout   time.Duration
	now       func() time.Time
}

// NewService creates the settlement service.
func NewService(repo Repository, poster CreditPoster, txm tx.Manager, gate *security.Gate, gen numerator.Generator, timeout time.Duration) *Service {
	return &Service{
		repo:      repo,
		ledger:    poster,
		txm:       txm,
		gate:      gate,
		numerator: gen,
		numbering: numerator.DefaultConfig("SL"),
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RecordSale stores a sale with its resolved split. When the sale is linked
// to a ledger account and has a credit part, a CREDIT referencing the sale is
// posted to that account in the same transaction.
func (s *Service) RecordSale(ctx context.Context, in SaleInput) (*Sale, error) {
	if err := in.Scope.Validate(); err != nil {
		return nil, err
	}
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	if in.AccountID == nil && in.CustomerName == "" && in.CustomerPhone == "" && (in.FullyCredit || in.PaymentAmount.LessThan(in.Total)) {
		return nil, apperror.NewValidation("a sale on credit needs an account or a customer name or phone")
	}

	split, err := ComputeSplit(in.Total, in.PaymentAmount, in.FullyCredit)
	if err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeWrite(ctx, in.Scope); err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	now := s.now()
	sale := &Sale{
		ID:                id.New(),
		Scope:             in.Scope,
		AccountID:         in.AccountID,
		CustomerName:      in.CustomerName,
		CustomerPhone:     in.CustomerPhone,
		Total:             types.RoundCents(in.Total),
		PaymentAmount:     split.PaymentAmount,
		CreditAmount:      split.CreditAmount,
		OutstandingAmount: split.CreditAmount,
		PaymentStatus:     split.Status,
		CreatedBy:         appctx.GetUserID(ctx),
		CreatedAt:         now,
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := s.numerator.GetNextNumber(ctx, s.numbering, nil, now)
		if err != nil {
			return fmt.Errorf("allocate sale number: %w", err)
		}
		sale.Number = number

		if sale.AccountID != nil && sale.CreditAmount.IsPositive() {
			t, err := s.ledger.PostInTx(ctx, *sale.AccountID, ledger.Credit, sale.CreditAmount, ledger.Meta{
				Description: "Sale " + number,
				Reference:   ledger.Reference{Type: ledger.RefSale, ID: sale.ID.String()},
			})
			if err != nil {
				return err
			}
			sale.LedgerTransactionID = &t.ID
		}

		return s.repo.CreateSale(ctx, sale)
	})
	if err != nil {
		return nil, apperror.Normalize(err)
	}

	logger.Info(ctx, "sale recorded",
		"sale_id", sale.ID,
		"number", sale.Number,
		"total", types.FormatMoney(sale.Total),
		"credit", types.FormatMoney(sale.CreditAmount),
		"payment_status", sale.PaymentStatus,
	)
	return sale, nil
}

// GetSale returns a sale visible to the actor.
func (s *Service) GetSale(ctx context.Context, saleID id.ID) (*Sale, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	access, err := s.gate.ReadScope(ctx)
	if err != nil {
		return nil, err
	}
	if !access.CanAccess(sale.Scope) {
		return nil, apperror.NewScopeAccessDenied("record is outside of the actor's scope").WithDetail("scope", sale.Scope.String())
	}
	return sale, nil
}

// AggregateOutstanding sums the signed outstanding amount of matching sales
// per (customer name, phone). Payments and refunds posted to the ledger with a
// reference to a sale reduce its amount and may turn it negative, in which
// case the store owes the customer.
//
// Customers are matched by text because walk-in sales carry no durable
// customer id; identical name and phone pairs from different people are merged.
//
// Results are limited to the actor's scopes unless the actor is ADMIN.
func (s *Service) AggregateOutstanding(ctx context.Context, phone, name string) ([]OutstandingBalance, error) {
	access, err := s.gate.ReadScope(ctx)
	if err != nil {
		return nil, err
	}

	filter := OutstandingFilter{
		Phone:        strings.TrimSpace(phone),
		Name:         strings.TrimSpace(name),
		Unrestricted: access.Unrestricted,
		Scopes:       access.FilterScopes(nil),
	}
	if !filter.Unrestricted && len(filter.Scopes) == 0 {
		return []OutstandingBalance{}, nil
	}

	balances, err := s.repo.AggregateOutstanding(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("aggregate outstanding: %w", err)
	}
	for i := range balances {
		balances[i].IsCredit = balances[i].TotalOutstanding.IsNegative()
	}
	return balances, nil
}
