package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/keyhub-dev/keyhub/internal/repository"
)

// CouponService activates balance top-up codes. Each code may be used at
// most once per user and at most usage_limit times overall.
type CouponService struct {
	coupons repository.CouponRepository
	users   repository.UserRepository
	logger  *slog.Logger
}

// NewCouponService assembles the coupon service.
func NewCouponService(coupons repository.CouponRepository, users repository.UserRepository, logger *slog.Logger) *CouponService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CouponService{coupons: coupons, users: users, logger: logger}
}

// Activate redeems a code for the user and returns the credited amount.
func (s *CouponService) Activate(ctx context.Context, tgID int64, code string) (float64, error) {
	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrCouponNotFound
		}
		return 0, err
	}

	used, err := s.coupons.UsageExists(ctx, coupon.Code, tgID)
	if err != nil {
		return 0, err
	}
	if used {
		return 0, ErrCouponAlreadyUsed
	}

	if err := s.users.Ensure(ctx, tgID); err != nil {
		return 0, err
	}
	if err := s.coupons.RecordUsage(ctx, coupon.Code, tgID); err != nil {
		return 0, err
	}
	if err := s.users.AdjustBalance(ctx, tgID, coupon.Amount); err != nil {
		return 0, err
	}

	s.logger.Info("coupon activated", "tg_id", tgID, "code", coupon.Code, "amount", coupon.Amount)
	return coupon.Amount, nil
}
