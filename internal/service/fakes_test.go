package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/keyhub-dev/keyhub/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeKeyRepo is an in-memory KeyRepository keyed by email.
type fakeKeyRepo struct {
	mu   sync.Mutex
	keys map[string]*repository.Key

	insertCount   int
	reassignCount int
}

func newFakeKeyRepo(keys ...*repository.Key) *fakeKeyRepo {
	repo := &fakeKeyRepo{keys: make(map[string]*repository.Key)}
	for _, key := range keys {
		copied := *key
		repo.keys[key.Email] = &copied
	}
	return repo
}

func (r *fakeKeyRepo) FindByEmail(_ context.Context, email string) (*repository.Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *key
	return &copied, nil
}

func (r *fakeKeyRepo) Insert(_ context.Context, key *repository.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *key
	r.keys[key.Email] = &copied
	r.insertCount++
	return nil
}

func (r *fakeKeyRepo) Reassign(_ context.Context, tgID int64, email, serverID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[email]
	if !ok || key.TgID != tgID {
		return repository.ErrNotFound
	}
	key.ServerID = serverID
	key.ClientID = clientID
	r.reassignCount++
	return nil
}

func (r *fakeKeyRepo) CountByEmail(_ context.Context, email string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[email]; ok {
		return 1, nil
	}
	return 0, nil
}

func (r *fakeKeyRepo) ListExpiringBetween(_ context.Context, fromMs, toMs int64) ([]*repository.Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.Key
	for _, key := range r.keys {
		if key.ExpiryTime >= fromMs && key.ExpiryTime <= toMs {
			copied := *key
			out = append(out, &copied)
		}
	}
	return out, nil
}

// fakeServerRepo serves a static directory in declaration order.
type fakeServerRepo struct {
	servers      []*repository.Server
	leastCluster string
}

func (r *fakeServerRepo) FindByName(_ context.Context, name string) (*repository.Server, error) {
	for _, server := range r.servers {
		if server.Name == name {
			return server, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeServerRepo) ListByCluster(_ context.Context, cluster string) ([]*repository.Server, error) {
	var out []*repository.Server
	for _, server := range r.servers {
		if server.ClusterName == cluster {
			out = append(out, server)
		}
	}
	return out, nil
}

func (r *fakeServerRepo) ListByClusterExcluding(ctx context.Context, cluster, exclude string) ([]*repository.Server, error) {
	members, err := r.ListByCluster(ctx, cluster)
	if err != nil {
		return nil, err
	}
	var out []*repository.Server
	for _, server := range members {
		if server.Name != exclude {
			out = append(out, server)
		}
	}
	return out, nil
}

func (r *fakeServerRepo) ClusterOf(_ context.Context, serverName string) (string, error) {
	for _, server := range r.servers {
		if server.Name == serverName {
			return server.ClusterName, nil
		}
	}
	return "", repository.ErrNotFound
}

func (r *fakeServerRepo) LeastLoadedCluster(_ context.Context) (string, error) {
	if r.leastCluster == "" {
		return "", repository.ErrNotFound
	}
	return r.leastCluster, nil
}

// fakeUserRepo tracks balance and trial mutations.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int64]*repository.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*repository.User)}
}

func (r *fakeUserRepo) Ensure(_ context.Context, tgID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[tgID]; !ok {
		r.users[tgID] = &repository.User{TgID: tgID}
	}
	return nil
}

func (r *fakeUserRepo) Find(_ context.Context, tgID int64) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[tgID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) SetTrial(_ context.Context, tgID int64, used int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[tgID]; ok {
		user.Trial = used
	}
	return nil
}

func (r *fakeUserRepo) AdjustBalance(_ context.Context, tgID int64, delta float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[tgID]; ok {
		user.Balance += delta
	}
	return nil
}

// fakeCouponRepo keeps coupons and usage pairs in memory.
type fakeCouponRepo struct {
	mu      sync.Mutex
	coupons map[string]*repository.Coupon
	usages  map[string]map[int64]bool
}

func newFakeCouponRepo(coupons ...*repository.Coupon) *fakeCouponRepo {
	repo := &fakeCouponRepo{
		coupons: make(map[string]*repository.Coupon),
		usages:  make(map[string]map[int64]bool),
	}
	for _, coupon := range coupons {
		copied := *coupon
		repo.coupons[coupon.Code] = &copied
	}
	return repo
}

func (r *fakeCouponRepo) FindByCode(_ context.Context, code string) (*repository.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	coupon, ok := r.coupons[code]
	if !ok || coupon.UsageCount >= coupon.UsageLimit {
		return nil, repository.ErrNotFound
	}
	copied := *coupon
	return &copied, nil
}

func (r *fakeCouponRepo) UsageExists(_ context.Context, code string, tgID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usages[code][tgID], nil
}

func (r *fakeCouponRepo) RecordUsage(_ context.Context, code string, tgID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usages[code] == nil {
		r.usages[code] = make(map[int64]bool)
	}
	r.usages[code][tgID] = true
	if coupon, ok := r.coupons[code]; ok {
		coupon.UsageCount++
	}
	return nil
}

// fakeReferralRepo records referral pairs.
type fakeReferralRepo struct {
	mu      sync.Mutex
	records map[int64]int64
}

func newFakeReferralRepo() *fakeReferralRepo {
	return &fakeReferralRepo{records: make(map[int64]int64)}
}

func (r *fakeReferralRepo) Record(_ context.Context, tgID, referrerTgID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[tgID]; !ok {
		r.records[tgID] = referrerTgID
	}
	return nil
}
