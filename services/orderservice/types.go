package orderservice

import (
	"time"

	"github.com/tradecore/platform/pkg/contract"
)

// CreateOrderRequest is the POST /orders wire shape.
type CreateOrderRequest struct {
	AssetID  string `json:"asset_id" validate:"required"`
	Side     string `json:"side" validate:"required,oneof=buy sell"`
	Type     string `json:"type" validate:"required,oneof=market limit"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
}

// OrderResponse is the wire shape for a single Order.
type OrderResponse struct {
	OrderID   string    `json:"order_id"`
	Subject   string    `json:"subject"`
	AssetID   string    `json:"asset_id"`
	Side      string    `json:"side"`
	Type      string    `json:"type"`
	Quantity  int64     `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
	Total     int64     `json:"total"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toOrderResponse(o contract.Order) OrderResponse {
	return OrderResponse{
		OrderID:   o.OrderID,
		Subject:   o.Subject,
		AssetID:   o.AssetID,
		Side:      string(o.Side),
		Type:      string(o.Type),
		Quantity:  o.Quantity,
		UnitPrice: o.UnitPrice,
		Total:     o.Total(),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
	}
}

// Holding is one asset position within a subject's portfolio: the net
// quantity bought minus sold across completed orders.
type Holding struct {
	AssetID      string `json:"asset_id"`
	NetQuantity  int64  `json:"net_quantity"`
	OrdersFilled int64  `json:"orders_filled"`
}

// PortfolioResponse is the GET /portfolio/{subject} wire shape.
type PortfolioResponse struct {
	Subject  string    `json:"subject"`
	Holdings []Holding `json:"holdings"`
}
