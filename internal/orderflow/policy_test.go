package orderflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickbite/internal/domain"
)

func TestFee(t *testing.T) {
	p := Policy{FeeThreshold: 15000, FlatFee: 1000}
	assert.Equal(t, int64(0), p.Fee(0))
	assert.Equal(t, int64(0), p.Fee(14999))
	assert.Equal(t, int64(1000), p.Fee(15000))
	assert.Equal(t, int64(1000), p.Fee(80000))
}

func TestQuote(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name      string
		status    domain.OrderStatus
		total     int64
		initiator domain.Role
		rate      int64
		fee       int64
		refund    int64
	}{
		{"pending full refund, no fee", domain.StatusPending, 20000, domain.RoleCustomer, 100, 0, 20000},
		{"confirmed below threshold", domain.StatusConfirmed, 12000, domain.RoleCustomer, 100, 0, 12000},
		{"confirmed at threshold", domain.StatusConfirmed, 15000, domain.RoleCustomer, 100, 1000, 14000},
		{"preparing half refund with fee", domain.StatusPreparing, 23001, domain.RoleCustomer, 50, 1000, 10501},
		{"preparing small order", domain.StatusPreparing, 9999, domain.RoleCustomer, 50, 0, 5000},
		{"owner rejects while preparing", domain.StatusPreparing, 23000, domain.RoleOwner, 100, 0, 23000},
		{"admin cancels ready order", domain.StatusReady, 30000, domain.RoleAdmin, 100, 0, 30000},
		{"zero total", domain.StatusPending, 0, domain.RoleCustomer, 100, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := p.Quote(tt.status, tt.total, tt.initiator)
			require.NoError(t, err)
			assert.Equal(t, tt.rate, q.RefundRate)
			assert.Equal(t, tt.fee, q.Fee)
			assert.Equal(t, tt.refund, q.RefundAmount)
			assert.Equal(t, tt.total, q.Total)
		})
	}
}

func TestQuoteRefundNeverNegative(t *testing.T) {
	p := Policy{FeeThreshold: 100, FlatFee: 5000}
	q, err := p.Quote(domain.StatusPreparing, 1000, domain.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, int64(0), q.RefundAmount)
}

func TestQuoteRejects(t *testing.T) {
	p := DefaultPolicy()

	_, err := p.Quote(domain.StatusReady, 10000, domain.RoleCustomer)
	assert.ErrorIs(t, err, ErrNotCancellable)

	_, err = p.Quote(domain.StatusDelivering, 10000, domain.RoleAdmin)
	assert.ErrorIs(t, err, ErrNotCancellable)

	_, err = p.Quote(domain.StatusPickedUp, 10000, domain.RoleRider)
	assert.ErrorIs(t, err, ErrNotCancellable)

	_, err = p.Quote(domain.StatusDelivered, 10000, domain.RoleAdmin)
	assert.ErrorIs(t, err, ErrTerminal)

	_, err = p.Quote(domain.StatusPending, -1, domain.RoleCustomer)
	assert.Error(t, err)
}

func TestPoints(t *testing.T) {
	assert.Equal(t, int64(235), Points(23599, 1))
	assert.Equal(t, int64(0), Points(99, 1))
	assert.Equal(t, int64(0), Points(10000, 0))
	assert.Equal(t, int64(1500), Points(30000, 5))
}
