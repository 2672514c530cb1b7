package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repos groups the repositories bound to one database handle. Inside
// UnitOfWork.Do that handle is a transaction.
type Repos struct {
	Users        UserRepository
	Wallets      WalletRepository
	Transactions TransactionRepository
	Payments     PaymentRepository
	Outbox       OutboxRepository
}

func NewRepos(db *gorm.DB) *Repos {
	return &Repos{
		Users:        NewUserRepo(db),
		Wallets:      NewWalletRepo(db),
		Transactions: NewTransactionRepo(db),
		Payments:     NewPaymentRepo(db),
		Outbox:       NewOutboxRepo(db),
	}
}

// UnitOfWork scopes multi-step mutations. Do commits when fn returns nil and
// rolls back otherwise.
type UnitOfWork interface {
	Repos() *Repos
	Do(ctx context.Context, fn func(r *Repos) error) error
}

type GormUnitOfWork struct {
	db    *gorm.DB
	repos *Repos
}

func NewUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db, repos: NewRepos(db)}
}

func (u *GormUnitOfWork) Repos() *Repos {
	return u.repos
}

func (u *GormUnitOfWork) Do(ctx context.Context, fn func(r *Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepos(tx))
	})
}
