package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sanketyelugotla/zlift-ledger/internal/domain"
)

// OrderRepository defines order data access. Update is an optimistic
// write: it matches on the order's loaded version and fails with a
// conflict error when another writer got there first.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	Update(ctx context.Context, order *domain.Order) error
	List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error)

	// FindCreatedBetween returns orders with created_at in [from, to),
	// ordered by creation time
	FindCreatedBetween(ctx context.Context, from, to time.Time) ([]*domain.Order, error)

	// FindDeliveredBetween returns delivered orders with delivered_at in
	// [from, to), ordered by delivery time
	FindDeliveredBetween(ctx context.Context, from, to time.Time) ([]*domain.Order, error)
}

// PaymentRepository defines payment data access
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Payment, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.Payment, error)
	GetByGatewayTransactionID(ctx context.Context, txnID string) (*domain.Payment, error)
	Update(ctx context.Context, payment *domain.Payment) error

	// FindCreatedBetween returns payments with created_at in [from, to)
	FindCreatedBetween(ctx context.Context, from, to time.Time) ([]*domain.Payment, error)
}

// RollupRepository defines daily rollup data access. Insert enforces the
// one-rollup-per-date invariant and returns domain.ErrRollupExists on a
// duplicate date.
type RollupRepository interface {
	Insert(ctx context.Context, rollup *domain.DailyRollup) error
	GetByDate(ctx context.Context, date time.Time) (*domain.DailyRollup, error)
	DeleteByDate(ctx context.Context, date time.Time) error
}
