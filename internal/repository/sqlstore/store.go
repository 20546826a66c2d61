package sqlstore

import (
	"github.com/keyhub-dev/keyhub/internal/repository"
)

// Store wires SQL-backed repository implementations.
type Store struct {
	db        *DB
	servers   repository.ServerRepository
	keys      repository.KeyRepository
	users     repository.UserRepository
	coupons   repository.CouponRepository
	referrals repository.ReferralRepository
}

// NewStore constructs a repository store on top of a dialect-aware DB.
func NewStore(db *DB) *Store {
	return &Store{
		db:        db,
		servers:   &serverRepo{db: db},
		keys:      &keyRepo{db: db},
		users:     &userRepo{db: db},
		coupons:   &couponRepo{db: db},
		referrals: &referralRepo{db: db},
	}
}

func (s *Store) Servers() repository.ServerRepository {
	return s.servers
}

func (s *Store) Keys() repository.KeyRepository {
	return s.keys
}

func (s *Store) Users() repository.UserRepository {
	return s.users
}

func (s *Store) Coupons() repository.CouponRepository {
	return s.coupons
}

func (s *Store) Referrals() repository.ReferralRepository {
	return s.referrals
}
