package router

import "time"

// DownstreamURLs maps a downstream name to its base URL, populated from
// config at startup.
type DownstreamURLs map[string]string

// NewTable builds the gateway's route table. Each route names a rate class
// ("auth", "default", "mutation") that maps into internal/ratelimit.Class
// via config.
func NewTable() []Route {
	return []Route{
		{
			Name: "auth.register", Method: "POST", PathPattern: "/api/v1/auth/register",
			Downstream: "user", AuthRequired: false, RateClass: "auth",
		},
		{
			Name: "auth.login", Method: "POST", PathPattern: "/api/v1/auth/login",
			Downstream: "user", AuthRequired: false, RateClass: "auth",
		},
		{
			Name: "auth.logout", Method: "POST", PathPattern: "/api/v1/auth/logout",
			Downstream: "user", AuthRequired: true, AllowedRoles: ValidRoles, RateClass: "default",
			BreakerEnabled: true,
		},
		{
			Name: "auth.me", Method: "GET", PathPattern: "/api/v1/auth/me",
			Downstream: "user", AuthRequired: true, AllowedRoles: ValidRoles, RateClass: "default",
			BreakerEnabled: true, CacheTTL: 5 * time.Minute,
		},
		{
			Name: "inventory.list", Method: "GET", PathPattern: "/api/v1/inventory/assets",
			Downstream: "inventory", AuthRequired: false, RateClass: "default",
			BreakerEnabled: true, CacheTTL: time.Minute,
		},
		{
			Name: "inventory.get", Method: "GET", PathPattern: "/api/v1/inventory/assets/{id}",
			Downstream: "inventory", AuthRequired: false, RateClass: "default",
			BreakerEnabled: true, CacheTTL: 5 * time.Minute,
		},
		{
			Name: "balance.get", Method: "GET", PathPattern: "/api/v1/balance",
			Downstream: "user", AuthRequired: true, AllowedRoles: CustomerAndAbove, RateClass: "default",
			BreakerEnabled: true,
		},
		{
			Name: "balance.deposit", Method: "POST", PathPattern: "/api/v1/balance/deposit",
			Downstream: "user", AuthRequired: true, AllowedRoles: CustomerAndAbove, RateClass: "mutation",
			BreakerEnabled: true,
		},
		{
			Name: "balance.withdraw", Method: "POST", PathPattern: "/api/v1/balance/withdraw",
			Downstream: "user", AuthRequired: true, AllowedRoles: CustomerAndAbove, RateClass: "mutation",
			BreakerEnabled: true,
		},
		{
			Name: "balance.transactions", Method: "GET", PathPattern: "/api/v1/balance/transactions",
			Downstream: "user", AuthRequired: true, AllowedRoles: CustomerAndAbove, RateClass: "default",
			BreakerEnabled: true,
		},
		{
			Name: "orders.create", Method: "POST", PathPattern: "/api/v1/orders",
			Downstream: "order", AuthRequired: true, AllowedRoles: CustomerAndAbove, RateClass: "mutation",
			BreakerEnabled: true,
		},
		{
			Name: "orders.get", Method: "GET", PathPattern: "/api/v1/orders/{id}",
			Downstream: "order", AuthRequired: true, AllowedRoles: CustomerAndAbove, RateClass: "default",
			BreakerEnabled: true,
		},
		{
			Name: "orders.list", Method: "GET", PathPattern: "/api/v1/orders",
			Downstream: "order", AuthRequired: true, AllowedRoles: CustomerAndAbove, RateClass: "default",
			BreakerEnabled: true,
		},
		{
			Name: "portfolio.get", Method: "GET", PathPattern: "/api/v1/portfolio/{subject}",
			Downstream: "order", AuthRequired: true, OwnerOrAdmin: true, RateClass: "default",
			BreakerEnabled: true,
		},
		{
			Name: "health", Method: "GET", PathPattern: "/health",
			Downstream: "", AuthRequired: false, RateClass: "",
		},
		{
			Name: "metrics", Method: "GET", PathPattern: "/metrics",
			Downstream: "", AuthRequired: false, RateClass: "",
		},
	}
}

// ValidRoles and CustomerAndAbove spell out internal/auth's role names as
// plain strings for the route table; Middleware checks Route.AllowedRoles
// against the request's Identity.Role.
var ValidRoles = []string{"public", "customer", "vip", "admin"}
var CustomerAndAbove = []string{"customer", "vip", "admin"}
