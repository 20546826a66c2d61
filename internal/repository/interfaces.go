package repository

import "context"

// ServerRepository reads the server directory. There is deliberately no
// write path here: directory rows belong to admin tooling, and every call
// re-reads current state so admin edits are visible immediately.
type ServerRepository interface {
	FindByName(ctx context.Context, name string) (*Server, error)
	ListByCluster(ctx context.Context, cluster string) ([]*Server, error)
	ListByClusterExcluding(ctx context.Context, cluster, exclude string) ([]*Server, error)
	ClusterOf(ctx context.Context, serverName string) (string, error)
	// LeastLoadedCluster picks the cluster currently referenced by the
	// fewest keys, counting both direct cluster references and references
	// to member servers.
	LeastLoadedCluster(ctx context.Context) (string, error)
}

// KeyRepository persists credential records.
type KeyRepository interface {
	FindByEmail(ctx context.Context, email string) (*Key, error)
	Insert(ctx context.Context, key *Key) error
	// Reassign moves an existing key to another server, updating only the
	// server reference and client id. Used on migration; never inserts.
	Reassign(ctx context.Context, tgID int64, email, serverID, clientID string) error
	CountByEmail(ctx context.Context, email string) (int, error)
	ListExpiringBetween(ctx context.Context, fromMs, toMs int64) ([]*Key, error)
}

// UserRepository backs balance and trial side effects.
type UserRepository interface {
	Ensure(ctx context.Context, tgID int64) error
	Find(ctx context.Context, tgID int64) (*User, error)
	SetTrial(ctx context.Context, tgID int64, used int) error
	AdjustBalance(ctx context.Context, tgID int64, delta float64) error
}

// CouponRepository handles activation codes.
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	UsageExists(ctx context.Context, code string, tgID int64) (bool, error)
	RecordUsage(ctx context.Context, code string, tgID int64) error
}

// ReferralRepository records who invited whom. Inserts are best effort and
// duplicate-safe.
type ReferralRepository interface {
	Record(ctx context.Context, tgID, referrerTgID int64) error
}
