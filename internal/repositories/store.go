package repositories

import (
	"context"
	"errors"
	"fmt"

	"finsync/internal/common"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// TxStarter is a DBTX that can open transactions.
type TxStarter interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store groups the repositories the reconciliation engine writes through.
type Store interface {
	Payments() PaymentRepository
	Subscriptions() SubscriptionRepository
	PlanChanges() PlanChangeRequestRepository
	// WithinTx runs fn against repositories bound to a single transaction.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

type pgStore struct {
	starter       TxStarter
	payments      PaymentRepository
	subscriptions SubscriptionRepository
	planChanges   PlanChangeRequestRepository
}

func NewStore(db TxStarter) Store {
	return newPgStore(db, db)
}

func newPgStore(db DBTX, starter TxStarter) *pgStore {
	return &pgStore{
		starter:       starter,
		payments:      NewPaymentRepository(db),
		subscriptions: NewSubscriptionRepository(db),
		planChanges:   NewPlanChangeRequestRepository(db),
	}
}

func (s *pgStore) Payments() PaymentRepository { return s.payments }
func (s *pgStore) Subscriptions() SubscriptionRepository { return s.subscriptions }
func (s *pgStore) PlanChanges() PlanChangeRequestRepository { return s.planChanges }

func (s *pgStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	// already inside a transaction
	if s.starter == nil {
		return fn(s)
	}

	tx, err := s.starter.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(newPgStore(tx, nil)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrNotFound
	}
	return err
}
