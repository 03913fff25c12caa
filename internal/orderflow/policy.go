package orderflow

import (
	"fmt"

	"github.com/shopspring/decimal"

	"quickbite/internal/domain"
)

// customerRefundRates is the refund percentage a customer gets when they
// cancel in a given status. Statuses absent here are not customer-cancellable.
var customerRefundRates = map[domain.OrderStatus]int64{
	domain.StatusPending:   100,
	domain.StatusConfirmed: 100,
	domain.StatusPreparing: 50,
}

// feeStatuses are the statuses where a customer cancellation carries the flat fee.
var feeStatuses = map[domain.OrderStatus]bool{
	domain.StatusConfirmed: true,
	domain.StatusPreparing: true,
}

type Policy struct {
	// FeeThreshold is the order total at or above which FlatFee applies.
	FeeThreshold int64
	FlatFee      int64
}

func DefaultPolicy() Policy { return Policy{FeeThreshold: 15000, FlatFee: 1000} }

type CancelQuote struct {
	Status       domain.OrderStatus `json:"status"`
	Total        int64              `json:"total"`
	RefundRate   int64              `json:"refund_rate"`
	Fee          int64              `json:"fee"`
	RefundAmount int64              `json:"refund_amount"`
}

// Fee is zero below the threshold and the flat fee at or above it.
func (p Policy) Fee(total int64) int64 {
	if total < p.FeeThreshold {
		return 0
	}
	return p.FlatFee
}

// Quote works out whether initiator may cancel an order in status and what
// gets refunded.
func (p Policy) Quote(status domain.OrderStatus, total int64, initiator domain.Role) (CancelQuote, error) {
	if err := Check(status, domain.StatusCancelled, initiator); err != nil {
		if Known(status) && !Terminal(status) {
			return CancelQuote{}, fmt.Errorf("%w: %v", ErrNotCancellable, err)
		}
		return CancelQuote{}, err
	}
	if total < 0 {
		return CancelQuote{}, fmt.Errorf("negative order total %d", total)
	}

	q := CancelQuote{Status: status, Total: total, RefundRate: 100}
	if initiator == domain.RoleCustomer {
		rate, ok := customerRefundRates[status]
		if !ok {
			return CancelQuote{}, fmt.Errorf("%w: %s", ErrNotCancellable, status)
		}
		q.RefundRate = rate
		if feeStatuses[status] {
			q.Fee = p.Fee(total)
		}
	}

	refund := decimal.NewFromInt(total).
		Mul(decimal.NewFromInt(q.RefundRate)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		Sub(decimal.NewFromInt(q.Fee))
	if refund.IsNegative() {
		refund = decimal.Zero
	}
	q.RefundAmount = refund.IntPart()
	return q, nil
}

// Points earned for a delivered order: floor(total * ratePercent / 100).
func Points(total, ratePercent int64) int64 {
	if total <= 0 || ratePercent <= 0 {
		return 0
	}
	return decimal.NewFromInt(total).
		Mul(decimal.NewFromInt(ratePercent)).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart()
}
