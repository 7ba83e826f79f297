package orders

import (
	"errors"
	"testing"

	"github.com/tradecore/platform/pkg/contract"
)

func validAsset() contract.Asset {
	return contract.Asset{AssetID: "AAPL", UnitPrice: 100, Quantity: 1000}
}

func TestValidate_RejectsNonPositiveQuantity(t *testing.T) {
	req := Request{AssetID: "AAPL", Side: contract.OrderSideBuy, Quantity: 0}
	if err := validate(req, validAsset()); !errors.Is(err, contract.ErrInvalidOrder) {
		t.Fatalf("validate() error = %v, want ErrInvalidOrder", err)
	}
}

func TestValidate_RejectsUnknownSide(t *testing.T) {
	req := Request{AssetID: "AAPL", Side: "short", Quantity: 1}
	if err := validate(req, validAsset()); !errors.Is(err, contract.ErrInvalidOrder) {
		t.Fatalf("validate() error = %v, want ErrInvalidOrder", err)
	}
}

func TestValidate_RejectsTotalOverCeiling(t *testing.T) {
	asset := validAsset()
	asset.UnitPrice = MaxOrderTotal
	req := Request{AssetID: "AAPL", Side: contract.OrderSideBuy, Quantity: 2}
	if err := validate(req, asset); !errors.Is(err, contract.ErrInvalidOrder) {
		t.Fatalf("validate() error = %v, want ErrInvalidOrder", err)
	}
}

func TestValidate_AcceptsWellFormedBuy(t *testing.T) {
	req := Request{AssetID: "AAPL", Side: contract.OrderSideBuy, Quantity: 10}
	if err := validate(req, validAsset()); err != nil {
		t.Fatalf("validate() error = %v, want nil", err)
	}
}
