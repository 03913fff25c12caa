// Package orderflow holds the order status transition table and the
// cancellation/refund policy that goes with it.
package orderflow

import (
	"errors"
	"fmt"
	"slices"

	"quickbite/internal/domain"
)

var (
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrTerminal          = errors.New("order is already closed")
	ErrInvalidTransition = errors.New("transition not allowed")
	ErrNotAllowed        = errors.New("role may not perform this transition")
	ErrNotCancellable    = errors.New("order can no longer be cancelled")
)

type edge struct {
	from, to domain.OrderStatus
}

var transitions = map[edge][]domain.Role{
	{domain.StatusPending, domain.StatusConfirmed}:    {domain.RoleOwner, domain.RoleAdmin},
	{domain.StatusPending, domain.StatusCancelled}:    {domain.RoleCustomer, domain.RoleOwner, domain.RoleAdmin},
	{domain.StatusConfirmed, domain.StatusPreparing}:  {domain.RoleOwner, domain.RoleAdmin},
	{domain.StatusConfirmed, domain.StatusCancelled}:  {domain.RoleCustomer, domain.RoleOwner, domain.RoleAdmin},
	{domain.StatusPreparing, domain.StatusReady}:      {domain.RoleOwner, domain.RoleAdmin},
	{domain.StatusPreparing, domain.StatusCancelled}:  {domain.RoleCustomer, domain.RoleOwner, domain.RoleAdmin},
	{domain.StatusReady, domain.StatusPickedUp}:       {domain.RoleRider, domain.RoleAdmin},
	{domain.StatusReady, domain.StatusCancelled}:      {domain.RoleAdmin},
	{domain.StatusPickedUp, domain.StatusDelivering}:  {domain.RoleRider, domain.RoleAdmin},
	{domain.StatusDelivering, domain.StatusDelivered}: {domain.RoleRider, domain.RoleAdmin},
}

// Sequence is the forward path in display order, cancelled last.
var Sequence = []domain.OrderStatus{
	domain.StatusPending,
	domain.StatusConfirmed,
	domain.StatusPreparing,
	domain.StatusReady,
	domain.StatusPickedUp,
	domain.StatusDelivering,
	domain.StatusDelivered,
	domain.StatusCancelled,
}

func Known(s domain.OrderStatus) bool { return slices.Contains(Sequence, s) }

func Terminal(s domain.OrderStatus) bool {
	return s == domain.StatusDelivered || s == domain.StatusCancelled
}

func CanTransition(from, to domain.OrderStatus) bool {
	_, ok := transitions[edge{from, to}]
	return ok
}

// Check validates a requested transition for an actor role.
func Check(from, to domain.OrderStatus, role domain.Role) error {
	if !Known(from) || !Known(to) {
		return fmt.Errorf("%w: %s -> %s", ErrUnknownStatus, from, to)
	}
	if Terminal(from) {
		return fmt.Errorf("%w: %s", ErrTerminal, from)
	}
	roles, ok := transitions[edge{from, to}]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if !slices.Contains(roles, role) {
		return fmt.Errorf("%w: %s cannot move %s -> %s", ErrNotAllowed, role, from, to)
	}
	return nil
}

// Next lists the statuses role can move an order in from to, in Sequence order.
func Next(from domain.OrderStatus, role domain.Role) []domain.OrderStatus {
	var out []domain.OrderStatus
	for _, to := range Sequence {
		if roles, ok := transitions[edge{from, to}]; ok && slices.Contains(roles, role) {
			out = append(out, to)
		}
	}
	return out
}

// Acceptable reports whether a rider may still take an order in status s.
func Acceptable(s domain.OrderStatus) bool {
	return s == domain.StatusConfirmed || s == domain.StatusPreparing || s == domain.StatusReady
}

var labels = map[string]map[domain.OrderStatus]string{
	"ko": {
		domain.StatusPending:    "주문 접수 대기",
		domain.StatusConfirmed:  "주문 확인",
		domain.StatusPreparing:  "조리 중",
		domain.StatusReady:      "픽업 대기",
		domain.StatusPickedUp:   "픽업 완료",
		domain.StatusDelivering: "배달 중",
		domain.StatusDelivered:  "배달 완료",
		domain.StatusCancelled:  "주문 취소",
	},
	"en": {
		domain.StatusPending:    "Waiting for restaurant",
		domain.StatusConfirmed:  "Confirmed",
		domain.StatusPreparing:  "Preparing",
		domain.StatusReady:      "Ready for pickup",
		domain.StatusPickedUp:   "Picked up",
		domain.StatusDelivering: "On the way",
		domain.StatusDelivered:  "Delivered",
		domain.StatusCancelled:  "Cancelled",
	},
}

func Label(s domain.OrderStatus, lang string) string {
	m, ok := labels[lang]
	if !ok {
		m = labels["ko"]
	}
	if l, ok := m[s]; ok {
		return l
	}
	return string(s)
}
