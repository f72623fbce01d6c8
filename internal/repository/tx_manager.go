package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

type contextKey string

const (
	txKey    contextKey = "gorm_tx"
	hooksKey contextKey = "tx_hooks"
)

// txHooks collects callbacks to run once the surrounding transaction commits.
type txHooks struct {
	mu  sync.Mutex
	fns []func()
}

func (h *txHooks) add(fn func()) {
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func (h *txHooks) run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// TransactionManager wraps multi-statement mutations in a database
// transaction injected through the context. Every repository method resolves
// its handle via GetDB, so a lockout transition, a token rotation or an audit
// append issued inside RunInTx commits or rolls back as one unit.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type transactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &transactionManager{db: db}
}

func (t *transactionManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(*gorm.DB); ok {
		// Already inside a transaction; join it. Hooks registered here fire
		// when the outermost transaction commits.
		return fn(ctx)
	}

	hooks := &txHooks{}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey, tx)
		txCtx = context.WithValue(txCtx, hooksKey, hooks)
		return fn(txCtx)
	})
	if err != nil {
		return err
	}
	hooks.run()
	return nil
}

// AfterCommit defers fn until the transaction in ctx commits; a rolled-back
// transaction discards it. Outside a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if hooks, ok := ctx.Value(hooksKey).(*txHooks); ok {
		hooks.add(fn)
		return
	}
	fn()
}

// GetDB extracts the transaction DB from context if present, otherwise
// returns the root DB.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}
