package sqlstore

import (
	"context"
	"database/sql"

	"github.com/keyhub-dev/keyhub/internal/repository"
)

type couponRepo struct {
	db *DB
}

func (r *couponRepo) FindByCode(ctx context.Context, code string) (*repository.Coupon, error) {
	const query = `SELECT code, amount, usage_limit, usage_count FROM coupons
        WHERE code = ? AND usage_count < usage_limit`
	var c repository.Coupon
	if err := r.db.QueryRowContext(ctx, query, code).Scan(&c.Code, &c.Amount, &c.UsageLimit, &c.UsageCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *couponRepo) UsageExists(ctx context.Context, code string, tgID int64) (bool, error) {
	const query = `SELECT COUNT(*) FROM coupon_usages WHERE code = ? AND tg_id = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, code, tgID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *couponRepo) RecordUsage(ctx context.Context, code string, tgID int64) error {
	const insert = `INSERT INTO coupon_usages (code, tg_id) VALUES (?, ?)`
	if _, err := r.db.ExecContext(ctx, insert, code, tgID); err != nil {
		return err
	}
	const bump = `UPDATE coupons SET usage_count = usage_count + 1 WHERE code = ?`
	_, err := r.db.ExecContext(ctx, bump, code)
	return err
}

type referralRepo struct {
	db *DB
}

func (r *referralRepo) Record(ctx context.Context, tgID, referrerTgID int64) error {
	const query = `INSERT INTO referrals (tg_id, referrer_tg_id) VALUES (?, ?)
        ON CONFLICT (tg_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, tgID, referrerTgID)
	return err
}
