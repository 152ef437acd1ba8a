/*
engine.go - The sale engine

PURPOSE:
  Engine is the only component allowed to change stock. It wraps a TxStore
  and a Gate and exposes the operations used by the HTTP layer:

    CommitSale     cart -> persisted sale, stock decremented
    ReverseSale    one sale -> restocked and deleted (admin, reauth, quorum)
    ReverseSales   many sales, same gate as ReverseSale
    AdjustStock    manual increase/decrease outside the sales ledger

CONCURRENCY:
  Each operation runs in one store transaction. Stock changes are
  conditional updates executed by the store, so two sales racing for the
  last unit resolve as first-writer-wins and the loser skips the row.

OPTIONS:
  WithLogger, WithClock, WithDiscountClamp, WithReferenceGenerator
*/
package shop

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine executes sales, reversals and stock adjustments.
type Engine struct {
	store  TxStore
	gate   Gate
	logger *zap.Logger

	now           func() time.Time
	newReference  func() string
	clampDiscount bool
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDiscountClamp caps the discount at the sale total, so FinalAmount
// never goes negative. Off by default.
func WithDiscountClamp(on bool) Option {
	return func(e *Engine) { e.clampDiscount = on }
}

func WithReferenceGenerator(fn func() string) Option {
	return func(e *Engine) { e.newReference = fn }
}

// NewEngine creates an Engine over store, consulting gate for identity.
func NewEngine(store TxStore, gate Gate, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		gate:         gate,
		logger:       zap.NewNop(),
		now:          time.Now,
		newReference: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the underlying store for read-only collaborators.
func (e *Engine) Store() Store { return e.store }
