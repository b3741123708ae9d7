package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrRollupExists reports a duplicate aggregation attempt for a date.
// Rollups are immutable once created; regeneration requires an explicit
// delete first.
var ErrRollupExists = errors.New("rollup already exists for date")

// SalesSummary is the headline block of a daily rollup
type SalesSummary struct {
	TotalOrders       int             `json:"total_orders" bson:"total_orders"`
	TotalRevenue      decimal.Decimal `json:"total_revenue" bson:"total_revenue"`
	TotalProfit       decimal.Decimal `json:"total_profit" bson:"total_profit"`
	AverageOrderValue decimal.Decimal `json:"average_order_value" bson:"average_order_value"`
	ProfitMargin      decimal.Decimal `json:"profit_margin" bson:"profit_margin"`
}

// PartnerSales is one partner's slice of a day
type PartnerSales struct {
	PartnerID  uuid.UUID       `json:"partner_id" bson:"partner_id"`
	Orders     int             `json:"orders" bson:"orders"`
	Revenue    decimal.Decimal `json:"revenue" bson:"revenue"`
	Commission decimal.Decimal `json:"commission" bson:"commission"`
	Payout     decimal.Decimal `json:"payout" bson:"payout"`
}

// ProductSales is one product's sales within a day
type ProductSales struct {
	ProductID uuid.UUID       `json:"product_id" bson:"product_id"`
	Name      string          `json:"name" bson:"name"`
	Quantity  int             `json:"quantity" bson:"quantity"`
	Revenue   decimal.Decimal `json:"revenue" bson:"revenue"`
}

// PaymentBreakdown groups a day's payments by status and method
type PaymentBreakdown struct {
	ByStatus map[string]int `json:"by_status" bson:"by_status"`
	ByMethod map[string]int `json:"by_method" bson:"by_method"`
}

// OperationalMetrics covers delivery performance for a day
type OperationalMetrics struct {
	AvgDeliveryMinutes float64 `json:"avg_delivery_minutes" bson:"avg_delivery_minutes"`
	Delivered          int     `json:"delivered" bson:"delivered"`
	Cancelled          int     `json:"cancelled" bson:"cancelled"`
	Failed             int     `json:"failed" bson:"failed"`
}

// DailyRollup is the pre-aggregated analytics record for one calendar
// date in the reporting timezone. At most one rollup exists per date.
// It is derived data and can always be rebuilt from orders and payments.
type DailyRollup struct {
	ID   uuid.UUID `json:"id" bson:"_id"`
	Date time.Time `json:"date" bson:"date"`

	Sales       SalesSummary       `json:"sales" bson:"sales"`
	Partners    []PartnerSales     `json:"partners" bson:"partners"`
	TopPartners []PartnerSales     `json:"top_partners" bson:"top_partners"`
	TopProducts []ProductSales     `json:"top_products" bson:"top_products"`
	Payments    PaymentBreakdown   `json:"payments" bson:"payments"`
	Operational OperationalMetrics `json:"operational" bson:"operational"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
