// Package tx carries a unit of work through context so stores can join it
// without every method growing a transaction parameter.
//
// SQL stores pick up the *sql.Tx via From. In-memory stores register undo
// closures on the Journal so a failed unit of work leaves no trace.
package tx

import (
	"context"
	"database/sql"
	"sync"
)

type ctxKey struct{}

type journalKey struct{}

var (
	txKey      = ctxKey{}
	journalCtx = journalKey{}
)

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Journal records compensations for in-memory mutations made inside a unit
// of work. Undo runs them in reverse order.
type Journal struct {
	mu    sync.Mutex
	undos []func()
}

// OnRollback registers fn to run if the unit of work fails.
func (j *Journal) OnRollback(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.undos = append(j.undos, fn)
}

// Undo runs registered compensations newest first and clears the journal.
func (j *Journal) Undo() {
	j.mu.Lock()
	undos := j.undos
	j.undos = nil
	j.mu.Unlock()
	for i := len(undos) - 1; i >= 0; i-- {
		undos[i]()
	}
}

// WithJournal attaches a journal to ctx.
func WithJournal(ctx context.Context, j *Journal) context.Context {
	return context.WithValue(ctx, journalCtx, j)
}

// JournalFrom returns the journal attached to ctx, if any.
func JournalFrom(ctx context.Context) (*Journal, bool) {
	j, ok := ctx.Value(journalCtx).(*Journal)
	return j, ok
}

// RecordUndo registers fn on the journal in ctx. Outside a unit of work it
// does nothing.
func RecordUndo(ctx context.Context, fn func()) {
	if j, ok := JournalFrom(ctx); ok {
		j.OnRollback(fn)
	}
}
