package sale_repo

import (
	"strings"
	"testing"

	"retailledger/internal/core/id"
	"retailledger/internal/core/security"
	"retailledger/internal/domain/settlement"
)

const outstandingSelect = "SELECT s.customer_name AS account_name, s.customer_phone AS phone, SUM(o.amount) AS total_outstanding, COUNT(*) AS pending_sales_count FROM sales s " + outstandingJoin

func TestOutstandingQuery(t *testing.T) {
	repo := New(nil)

	tests := []struct {
		name     string
		filter   settlement.OutstandingFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "unrestricted without filters",
			filter:   settlement.OutstandingFilter{Unrestricted: true},
			wantSQL:  outstandingSelect + " WHERE o.amount <> 0 GROUP BY s.customer_name, s.customer_phone ORDER BY s.customer_name, s.customer_phone",
			wantArgs: []any{},
		},
		{
			name: "phone and name within one branch",
			filter: settlement.OutstandingFilter{
				Phone:  "555",
				Name:   "Ann",
				Scopes: []security.Scope{security.BranchScope("b1")},
			},
			wantSQL:  outstandingSelect + " WHERE o.amount <> 0 AND s.customer_phone = $1 AND lower(s.customer_name) = lower($2) AND ((s.scope_kind = $3 AND s.scope_id = $4)) GROUP BY s.customer_name, s.customer_phone ORDER BY s.customer_name, s.customer_phone",
			wantArgs: []any{"555", "Ann", "BRANCH", "b1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.outstandingQuery(tt.filter).ToSql()
			if err != nil {
				t.Fatalf("ToSql failed: %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("SQL mismatch\nwant: %s\ngot:  %s", tt.wantSQL, sql)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("Args count mismatch\nwant: %d\ngot:  %d", len(tt.wantArgs), len(args))
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("Arg %d mismatch\nwant: %v\ngot:  %v", i, tt.wantArgs[i], args[i])
				}
			}
		})
	}
}

func TestOutstandingJoinNetsLinkedEntries(t *testing.T) {
	for _, want := range []string{
		"CASE WHEN s.account_id IS NULL THEN s.credit_amount ELSE 0 END",
		"t.reference_type IN ('SALE', 'PAYMENT', 'RETURN') AND t.reference_id = s.id::text",
		"r.sale_id = s.id",
	} {
		if !strings.Contains(outstandingJoin, want) {
			t.Errorf("outstanding join lacks %q", want)
		}
	}
}

func TestSelectSale(t *testing.T) {
	saleID := id.New()
	sql, args, err := New(nil).selectSale(saleID).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	want := "SELECT s.id, s.number, s.scope_kind, s.scope_id, s.account_id, s.customer_name, s.customer_phone, s.total, s.payment_amount, s.credit_amount, s.payment_status, s.ledger_transaction_id, s.created_by, s.created_at, o.amount AS outstanding_amount FROM sales s " + outstandingJoin + " WHERE s.id = $1"
	if sql != want {
		t.Errorf("SQL mismatch\nwant: %s\ngot:  %s", want, sql)
	}
	if len(args) != 1 || args[0] != saleID {
		t.Errorf("unexpected args %v", args)
	}
}
