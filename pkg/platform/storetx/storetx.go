// Package storetx provides the explicit unit of work every multi-entity
// mutation runs inside. A failure at any point rolls back the whole unit; the
// postgres runner carries the transaction through context so stores compose.
package storetx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/tx"
)

// StoreTx runs fn inside one atomic unit. All writes made through stores that
// honor the context transaction commit together or not at all.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type afterCommitKey struct{}

type afterCommit struct {
	mu  sync.Mutex
	fns []func()
}

func (a *afterCommit) add(fn func()) {
	a.mu.Lock()
	a.fns = append(a.fns, fn)
	a.mu.Unlock()
}

func (a *afterCommit) run() {
	a.mu.Lock()
	fns := a.fns
	a.fns = nil
	a.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// AfterCommit defers fn until the enclosing unit of work commits; fn is
// dropped if the unit rolls back. Outside any unit of work fn runs
// immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if hooks, ok := ctx.Value(afterCommitKey{}).(*afterCommit); ok {
		hooks.add(fn)
		return
	}
	fn()
}

const defaultTxTimeout = 5 * time.Second

// Postgres is the SQL-backed unit of work.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := p.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	hooks := &afterCommit{}
	txCtx := context.WithValue(tx.WithTx(ctx, sqlTx), afterCommitKey{}, hooks)
	if err := fn(txCtx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	hooks.run()
	return nil
}

// InMemory serializes units of work behind one mutex. Memory stores have no
// rollback, so serialization is what makes read-then-write decisions (pending
// step counts, step completion) atomic relative to each other.
type InMemory struct {
	mu sync.Mutex
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (m *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	hooks := &afterCommit{}
	if err := fn(context.WithValue(ctx, afterCommitKey{}, hooks)); err != nil {
		return err
	}
	hooks.run()
	return nil
}
