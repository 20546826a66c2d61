package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/keyhub-dev/keyhub/internal/repository"
)

// UserService registers users on first contact and records referral
// attribution.
type UserService struct {
	users     repository.UserRepository
	referrals repository.ReferralRepository
	logger    *slog.Logger
}

// NewUserService assembles the user service.
func NewUserService(users repository.UserRepository, referrals repository.ReferralRepository, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{users: users, referrals: referrals, logger: logger}
}

// Register ensures the user row exists. A positive referrer id records the
// referral; duplicates and self-referrals are silently ignored.
func (s *UserService) Register(ctx context.Context, tgID, referrerTgID int64) error {
	if err := s.users.Ensure(ctx, tgID); err != nil {
		return err
	}
	if referrerTgID > 0 && referrerTgID != tgID {
		if err := s.referrals.Record(ctx, tgID, referrerTgID); err != nil {
			s.logger.Warn("referral record failed", "tg_id", tgID, "referrer", referrerTgID, "error", err)
		}
	}
	return nil
}

// ParseReferralPayload extracts the referrer id from a deep-link start
// payload of the form "ref_<tg_id>". Returns 0 for anything else.
func ParseReferralPayload(payload string) int64 {
	raw, ok := strings.CutPrefix(strings.TrimSpace(payload), "ref_")
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// TrialAvailable reports whether the user may still claim a trial key.
func (s *UserService) TrialAvailable(ctx context.Context, tgID int64) (bool, error) {
	user, err := s.users.Find(ctx, tgID)
	if err != nil {
		if err == repository.ErrNotFound {
			return true, nil
		}
		return false, err
	}
	return user.Trial <= 0, nil
}
