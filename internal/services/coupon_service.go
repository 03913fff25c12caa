package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
	"quickbite/internal/repos"
	"quickbite/internal/validate"
)

type CouponService struct {
	Coupons *repos.CouponRepo
	Now     func() time.Time
}

type CouponInput struct {
	Code        string            `json:"code" validate:"required,min=3,max=20,alphanum"`
	Kind        domain.CouponKind `json:"kind" validate:"required,oneof=percentage flat"`
	Value       int64             `json:"value" validate:"gt=0"`
	MinOrder    int64             `json:"min_order" validate:"gte=0"`
	MaxDiscount int64             `json:"max_discount" validate:"gte=0"`
	UsageLimit  int               `json:"usage_limit" validate:"gte=0"`
	ExpiresAt   time.Time         `json:"expires_at" validate:"required"`
}

type CouponCheck struct {
	Code     string `json:"code"`
	Subtotal int64  `json:"subtotal"`
	Discount int64  `json:"discount"`
}

func (s *CouponService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Discount is what c takes off subtotal: a percentage capped by MaxDiscount
// when set, or a flat value. Never more than subtotal.
func Discount(c domain.Coupon, subtotal int64) int64 {
	var d decimal.Decimal
	switch c.Kind {
	case domain.CouponPercentage:
		d = decimal.NewFromInt(subtotal).Mul(decimal.NewFromInt(c.Value)).Div(decimal.NewFromInt(100)).Floor()
		if c.MaxDiscount > 0 {
			d = decimal.Min(d, decimal.NewFromInt(c.MaxDiscount))
		}
	case domain.CouponFlat:
		d = decimal.NewFromInt(c.Value)
	}
	d = decimal.Min(d, decimal.NewFromInt(subtotal))
	if d.IsNegative() {
		return 0
	}
	return d.IntPart()
}

func (s *CouponService) usable(c *domain.Coupon, subtotal int64) error {
	switch {
	case !c.Active:
		return apperr.Invalidf("coupon %s is inactive", c.Code)
	case c.ExpiresAt <= s.now().Format(repos.TimeFormat):
		return apperr.Invalidf("coupon %s has expired", c.Code)
	case c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit:
		return apperr.Invalidf("coupon %s has been used up", c.Code)
	case subtotal < c.MinOrder:
		return apperr.Invalidf("coupon %s needs an order of at least %d", c.Code, c.MinOrder)
	}
	return nil
}

// Validate checks code against subtotal and returns the discount it would give.
func (s *CouponService) Validate(ctx context.Context, code string, subtotal int64) (*CouponCheck, error) {
	return s.check(ctx, s.Coupons, code, subtotal)
}

func (s *CouponService) check(ctx context.Context, coupons *repos.CouponRepo, code string, subtotal int64) (*CouponCheck, error) {
	code, ok := validate.CouponCode(code)
	if !ok {
		return nil, apperr.Invalidf("invalid coupon code")
	}
	if subtotal < 0 {
		return nil, apperr.Invalidf("invalid subtotal")
	}
	c, err := coupons.Get(ctx, code)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Invalidf("unknown coupon %s", code)
		}
		return nil, err
	}
	if err := s.usable(c, subtotal); err != nil {
		return nil, err
	}
	return &CouponCheck{Code: c.Code, Subtotal: subtotal, Discount: Discount(*c, subtotal)}, nil
}

// redeem validates and consumes one use inside the caller's transaction.
func (s *CouponService) redeem(ctx context.Context, coupons *repos.CouponRepo, code string, subtotal int64) (*CouponCheck, error) {
	chk, err := s.check(ctx, coupons, code, subtotal)
	if err != nil {
		return nil, err
	}
	if err := coupons.Redeem(ctx, chk.Code); err != nil {
		return nil, err
	}
	return chk, nil
}

func (s *CouponService) Create(ctx context.Context, in CouponInput) (*domain.Coupon, error) {
	code, ok := validate.CouponCode(in.Code)
	if !ok {
		return nil, apperr.Invalidf("invalid coupon code")
	}
	switch in.Kind {
	case domain.CouponPercentage:
		if in.Value <= 0 || in.Value > 100 {
			return nil, apperr.Invalidf("percentage must be 1..100")
		}
	case domain.CouponFlat:
		if in.Value <= 0 {
			return nil, apperr.Invalidf("flat value must be positive")
		}
	default:
		return nil, apperr.Invalidf("unknown coupon kind %q", in.Kind)
	}
	if in.MinOrder < 0 || in.MaxDiscount < 0 || in.UsageLimit < 0 {
		return nil, apperr.Invalidf("limits must not be negative")
	}
	if !in.ExpiresAt.After(s.now()) {
		return nil, apperr.Invalidf("expiry must be in the future")
	}
	c := &domain.Coupon{
		Code:        code,
		Kind:        in.Kind,
		Value:       in.Value,
		MinOrder:    in.MinOrder,
		MaxDiscount: in.MaxDiscount,
		UsageLimit:  in.UsageLimit,
		ExpiresAt:   in.ExpiresAt.UTC().Format(repos.TimeFormat),
		Active:      true,
	}
	if err := s.Coupons.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CouponService) List(ctx context.Context) ([]domain.Coupon, error) {
	return s.Coupons.List(ctx)
}

func (s *CouponService) Deactivate(ctx context.Context, code string) error {
	code, ok := validate.CouponCode(code)
	if !ok {
		return apperr.Invalidf("invalid coupon code")
	}
	return s.Coupons.SetActive(ctx, code, false)
}
