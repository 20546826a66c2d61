package sqlstore

import (
	"context"
	"database/sql"

	"github.com/keyhub-dev/keyhub/internal/repository"
)

type serverRepo struct {
	db *DB
}

const serverColumns = `server_name, api_url, panel_type, cluster_name, inbound_id, subscription_url`

func (r *serverRepo) FindByName(ctx context.Context, name string) (*repository.Server, error) {
	const query = `SELECT ` + serverColumns + ` FROM servers WHERE server_name = ?`
	row := r.db.QueryRowContext(ctx, query, name)
	server, err := scanServer(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return server, nil
}

func (r *serverRepo) ListByCluster(ctx context.Context, cluster string) ([]*repository.Server, error) {
	const query = `SELECT ` + serverColumns + ` FROM servers WHERE cluster_name = ? ORDER BY server_name ASC`
	return r.list(ctx, query, cluster)
}

func (r *serverRepo) ListByClusterExcluding(ctx context.Context, cluster, exclude string) ([]*repository.Server, error) {
	const query = `SELECT ` + serverColumns + ` FROM servers WHERE cluster_name = ? AND server_name != ? ORDER BY server_name ASC`
	return r.list(ctx, query, cluster, exclude)
}

func (r *serverRepo) ClusterOf(ctx context.Context, serverName string) (string, error) {
	const query = `SELECT cluster_name FROM servers WHERE server_name = ?`
	var cluster string
	if err := r.db.QueryRowContext(ctx, query, serverName).Scan(&cluster); err != nil {
		if err == sql.ErrNoRows {
			return "", repository.ErrNotFound
		}
		return "", err
	}
	return cluster, nil
}

func (r *serverRepo) LeastLoadedCluster(ctx context.Context) (string, error) {
	// Keys reference either a member server (country-selection mode) or the
	// cluster itself, so both count as load.
	const query = `SELECT s.cluster_name, COUNT(k.email) AS total
        FROM servers s
        LEFT JOIN keys k ON k.server_id = s.server_name OR k.server_id = s.cluster_name
        GROUP BY s.cluster_name
        ORDER BY total ASC, s.cluster_name ASC
        LIMIT 1`
	var cluster string
	var total int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&cluster, &total); err != nil {
		if err == sql.ErrNoRows {
			return "", repository.ErrNotFound
		}
		return "", err
	}
	return cluster, nil
}

func (r *serverRepo) list(ctx context.Context, query string, args ...any) ([]*repository.Server, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []*repository.Server
	for rows.Next() {
		server, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, server)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return servers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (*repository.Server, error) {
	var s repository.Server
	if err := row.Scan(&s.Name, &s.APIURL, &s.PanelType, &s.ClusterName, &s.InboundID, &s.SubscriptionURL); err != nil {
		return nil, err
	}
	return &s, nil
}
