package contract

import "testing"

func TestTransactionKind_Sign(t *testing.T) {
	tests := []struct {
		kind TransactionKind
		want int64
	}{
		{TransactionDeposit, 1},
		{TransactionOrderCredit, 1},
		{TransactionWithdraw, -1},
		{TransactionOrderDebit, -1},
	}
	for _, tt := range tests {
		if got := tt.kind.Sign(); got != tt.want {
			t.Errorf("%s.Sign() = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestOrder_Total(t *testing.T) {
	o := Order{Quantity: 4, UnitPrice: 250}
	if got := o.Total(); got != 1000 {
		t.Errorf("Total() = %d, want 1000", got)
	}
}
