package sqlstore

import (
	"context"
	"database/sql"

	"github.com/keyhub-dev/keyhub/internal/repository"
)

type userRepo struct {
	db *DB
}

func (r *userRepo) Ensure(ctx context.Context, tgID int64) error {
	const query = `INSERT INTO users (tg_id, balance, trial) VALUES (?, 0, 0)
        ON CONFLICT (tg_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, tgID)
	return err
}

func (r *userRepo) Find(ctx context.Context, tgID int64) (*repository.User, error) {
	const query = `SELECT tg_id, balance, trial FROM users WHERE tg_id = ?`
	var u repository.User
	if err := r.db.QueryRowContext(ctx, query, tgID).Scan(&u.TgID, &u.Balance, &u.Trial); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) SetTrial(ctx context.Context, tgID int64, used int) error {
	const query = `UPDATE users SET trial = ? WHERE tg_id = ?`
	res, err := r.db.ExecContext(ctx, query, used, tgID)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) AdjustBalance(ctx context.Context, tgID int64, delta float64) error {
	const query = `UPDATE users SET balance = balance + ? WHERE tg_id = ?`
	res, err := r.db.ExecContext(ctx, query, delta, tgID)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
