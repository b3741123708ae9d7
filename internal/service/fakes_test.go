package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanketyelugotla/zlift-ledger/internal/domain"
	platformErrors "github.com/sanketyelugotla/zlift-ledger/internal/platform/errors"
	"github.com/sanketyelugotla/zlift-ledger/internal/repository/interfaces"
)

// In-memory repositories mirroring the MongoDB implementations,
// including the optimistic version check on Update.

type memOrderRepo struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]domain.Order
	scanErr error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[uuid.UUID]domain.Order)}
}

func (r *memOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return platformErrors.NewConflict("order already exists")
	}
	r.orders[order.ID] = *order
	return nil
}

func (r *memOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, platformErrors.NewNotFound("order not found")
	}
	copied := order
	return &copied, nil
}

func (r *memOrderRepo) Update(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.ID]
	if !ok {
		return platformErrors.NewNotFound("order not found")
	}
	if stored.Version != order.Version {
		return platformErrors.NewConflict("order was modified concurrently")
	}
	order.Version++
	r.orders[order.ID] = *order
	return nil
}

func (r *memOrderRepo) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, order := range r.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.PartnerID != nil && order.PartnerID != *filter.PartnerID {
			continue
		}
		copied := order
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memOrderRepo) FindCreatedBetween(ctx context.Context, from, to time.Time) ([]*domain.Order, error) {
	if r.scanErr != nil {
		return nil, r.scanErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, order := range r.orders {
		if !order.CreatedAt.Before(from) && order.CreatedAt.Before(to) {
			copied := order
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memOrderRepo) FindDeliveredBetween(ctx context.Context, from, to time.Time) ([]*domain.Order, error) {
	if r.scanErr != nil {
		return nil, r.scanErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, order := range r.orders {
		if order.DeliveredAt == nil {
			continue
		}
		if !order.DeliveredAt.Before(from) && order.DeliveredAt.Before(to) {
			copied := order
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeliveredAt.Before(*out[j].DeliveredAt) })
	return out, nil
}

type memPaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]domain.Payment
	scanErr  error
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: make(map[uuid.UUID]domain.Payment)}
}

func (r *memPaymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[payment.ID]; ok {
		return platformErrors.NewConflict("payment already exists")
	}
	r.payments[payment.ID] = *payment
	return nil
}

func (r *memPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[id]
	if !ok {
		return nil, platformErrors.NewNotFound("payment not found")
	}
	copied := payment
	return &copied, nil
}

func (r *memPaymentRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Payment
	for _, id := range ids {
		if payment, ok := r.payments[id]; ok {
			copied := payment
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Payment
	for _, payment := range r.payments {
		if payment.OrderID == orderID {
			copied := payment
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) GetByGatewayTransactionID(ctx context.Context, txnID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, payment := range r.payments {
		if payment.GatewayTransactionID == txnID {
			copied := payment
			return &copied, nil
		}
	}
	return nil, platformErrors.NewNotFound("payment not found")
}

func (r *memPaymentRepo) Update(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.payments[payment.ID]
	if !ok {
		return platformErrors.NewNotFound("payment not found")
	}
	if stored.Version != payment.Version {
		return platformErrors.NewConflict("payment was modified concurrently")
	}
	payment.Version++
	r.payments[payment.ID] = *payment
	return nil
}

func (r *memPaymentRepo) FindCreatedBetween(ctx context.Context, from, to time.Time) ([]*domain.Payment, error) {
	if r.scanErr != nil {
		return nil, r.scanErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Payment
	for _, payment := range r.payments {
		if !payment.CreatedAt.Before(from) && payment.CreatedAt.Before(to) {
			copied := payment
			out = append(out, &copied)
		}
	}
	return out, nil
}

type memRollupRepo struct {
	mu      sync.Mutex
	rollups map[string]domain.DailyRollup
	getErr  error
}

func newMemRollupRepo() *memRollupRepo {
	return &memRollupRepo{rollups: make(map[string]domain.DailyRollup)}
}

func rollupKey(date time.Time) string {
	return date.Format("2006-01-02")
}

func (r *memRollupRepo) Insert(ctx context.Context, rollup *domain.DailyRollup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := rollupKey(rollup.Date)
	if _, ok := r.rollups[key]; ok {
		return domain.ErrRollupExists
	}
	r.rollups[key] = *rollup
	return nil
}

func (r *memRollupRepo) GetByDate(ctx context.Context, date time.Time) (*domain.DailyRollup, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rollup, ok := r.rollups[rollupKey(date)]
	if !ok {
		return nil, platformErrors.NewNotFound("no rollup for date")
	}
	copied := rollup
	return &copied, nil
}

func (r *memRollupRepo) DeleteByDate(ctx context.Context, date time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := rollupKey(date)
	if _, ok := r.rollups[key]; !ok {
		return platformErrors.NewNotFound("no rollup for date")
	}
	delete(r.rollups, key)
	return nil
}

var (
	_ interfaces.OrderRepository   = (*memOrderRepo)(nil)
	_ interfaces.PaymentRepository = (*memPaymentRepo)(nil)
	_ interfaces.RollupRepository  = (*memRollupRepo)(nil)
)
