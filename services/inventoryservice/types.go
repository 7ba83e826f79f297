package inventoryservice

import (
	"time"

	"github.com/tradecore/platform/pkg/contract"
)

// AssetResponse is the wire shape for a single inventory asset.
type AssetResponse struct {
	AssetID   string    `json:"asset_id"`
	Category  string    `json:"category"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unit_price"`
	Quantity  int64     `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toAssetResponse(a contract.Asset) AssetResponse {
	return AssetResponse{
		AssetID:   a.AssetID,
		Category:  a.Category,
		Name:      a.Name,
		UnitPrice: a.UnitPrice,
		Quantity:  a.Quantity,
		UpdatedAt: a.UpdatedAt,
	}
}
