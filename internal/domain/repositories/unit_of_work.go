package repositories

import "context"

// UnitOfWork runs fn atomically: every repository call made with the ctx
// passed to fn executes inside one database transaction, committed when fn
// returns nil and rolled back otherwise. All ledger mutations must go
// through a unit of work.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
