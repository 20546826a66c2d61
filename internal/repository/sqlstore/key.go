package sqlstore

import (
	"context"
	"database/sql"

	"github.com/keyhub-dev/keyhub/internal/repository"
)

type keyRepo struct {
	db *DB
}

const keyColumns = `tg_id, client_id, email, created_at, expiry_time, server_id, public_link, remnawave_link`

func (r *keyRepo) FindByEmail(ctx context.Context, email string) (*repository.Key, error) {
	const query = `SELECT ` + keyColumns + ` FROM keys WHERE email = ?`
	row := r.db.QueryRowContext(ctx, query, email)
	key, err := scanKey(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return key, nil
}

func (r *keyRepo) Insert(ctx context.Context, key *repository.Key) error {
	const query = `INSERT INTO keys (tg_id, client_id, email, created_at, expiry_time, server_id, public_link, remnawave_link)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		key.TgID, key.ClientID, key.Email, key.CreatedAt, key.ExpiryTime,
		key.ServerID, nullable(key.PublicLink), nullable(key.RemnawaveLink))
	return err
}

func (r *keyRepo) Reassign(ctx context.Context, tgID int64, email, serverID, clientID string) error {
	const query = `UPDATE keys SET server_id = ?, client_id = ? WHERE tg_id = ? AND email = ?`
	res, err := r.db.ExecContext(ctx, query, serverID, clientID, tgID, email)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *keyRepo) CountByEmail(ctx context.Context, email string) (int, error) {
	const query = `SELECT COUNT(*) FROM keys WHERE email = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *keyRepo) ListExpiringBetween(ctx context.Context, fromMs, toMs int64) ([]*repository.Key, error) {
	const query = `SELECT ` + keyColumns + ` FROM keys WHERE expiry_time >= ? AND expiry_time < ? ORDER BY expiry_time ASC`
	rows, err := r.db.QueryContext(ctx, query, fromMs, toMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*repository.Key
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func scanKey(row rowScanner) (*repository.Key, error) {
	var k repository.Key
	var publicLink, remnawaveLink sql.NullString
	if err := row.Scan(&k.TgID, &k.ClientID, &k.Email, &k.CreatedAt, &k.ExpiryTime, &k.ServerID, &publicLink, &remnawaveLink); err != nil {
		return nil, err
	}
	k.PublicLink = publicLink.String
	k.RemnawaveLink = remnawaveLink.String
	return &k, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
