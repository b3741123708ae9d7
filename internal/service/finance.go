package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sanketyelugotla/zlift-ledger/internal/domain"
)

// FinanceCalculator derives the per-order financial snapshot from the
// raw order amounts. Recompute is a pure, idempotent function of its
// inputs so it can be re-run at any lifecycle point.
type FinanceCalculator struct{}

// NewFinanceCalculator creates a finance calculator
func NewFinanceCalculator() *FinanceCalculator {
	return &FinanceCalculator{}
}

// Recompute fills the order's derived financial fields:
//
//	grossRevenue  = totalAmount
//	payout        = totalAmount - commission
//	netProfit     = totalAmount - payout - deliveryCost - transactionFees
//	profitMargin  = netProfit / totalAmount * 100, rounded to 2 decimals
//
// A commission exceeding the total makes the payout negative, which is
// reported as ErrInconsistentLedger rather than clamped to zero.
func (c *FinanceCalculator) Recompute(order *domain.Order, commission, deliveryCost, transactionFees decimal.Decimal) error {
	if commission.IsNegative() {
		return fmt.Errorf("%w: negative commission %s", domain.ErrInconsistentLedger, commission)
	}
	if deliveryCost.IsNegative() {
		return fmt.Errorf("%w: negative delivery cost %s", domain.ErrInconsistentLedger, deliveryCost)
	}
	if transactionFees.IsNegative() {
		return fmt.Errorf("%w: negative transaction fees %s", domain.ErrInconsistentLedger, transactionFees)
	}
	if err := order.ValidateTotals(); err != nil {
		return err
	}

	payout := order.TotalAmount.Sub(commission)
	if payout.IsNegative() {
		return fmt.Errorf("%w: payout %s is negative, commission %s exceeds total %s",
			domain.ErrInconsistentLedger, payout, commission, order.TotalAmount)
	}

	netProfit := order.TotalAmount.Sub(payout).Sub(deliveryCost).Sub(transactionFees)

	order.GrossRevenue = order.TotalAmount
	order.CommissionAmount = commission
	order.PartnerPayout = payout
	order.DeliveryCost = deliveryCost
	order.TransactionFees = transactionFees
	order.NetProfit = netProfit
	order.ProfitMargin = domain.Ratio(netProfit, order.TotalAmount)

	return nil
}

// CommissionFor computes the commission amount for an order total at a
// partner's rate. The rate is a fraction, e.g. 0.15 for 15%.
func (c *FinanceCalculator) CommissionFor(total, rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%w: commission rate %s outside [0, 1]", domain.ErrInconsistentLedger, rate)
	}
	return total.Mul(rate).Round(2), nil
}
