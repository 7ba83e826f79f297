package orderservice

import (
	"testing"
	"time"

	"github.com/tradecore/platform/pkg/contract"
)

func TestToOrderResponse(t *testing.T) {
	now := time.Now()
	o := contract.Order{
		OrderID:   "ord_1",
		Subject:   "user_1",
		AssetID:   "AAPL",
		Side:      contract.OrderSideBuy,
		Type:      contract.OrderTypeMarket,
		Quantity:  10,
		UnitPrice: 19250,
		Status:    contract.OrderCompleted,
		CreatedAt: now,
	}

	resp := toOrderResponse(o)

	if resp.Total != 192500 {
		t.Errorf("Total = %d, want 192500", resp.Total)
	}
	if resp.Side != "buy" {
		t.Errorf("Side = %q, want buy", resp.Side)
	}
	if resp.Type != "market" {
		t.Errorf("Type = %q, want market", resp.Type)
	}
	if resp.Status != "completed" {
		t.Errorf("Status = %q, want completed", resp.Status)
	}
	if resp.OrderID != o.OrderID || resp.Subject != o.Subject || resp.AssetID != o.AssetID {
		t.Errorf("identity fields not preserved: %+v", resp)
	}
}
