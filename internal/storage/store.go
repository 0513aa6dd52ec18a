// Package storage defines the ledger store contract. Implementations live in
// the sqlite and memory subpackages and are selected by configuration, never
// by duplicating call sites.
package storage

import (
	"context"

	"dispensa/internal/core"
)

// Store is the durable keyed storage for people, cycles, transactions,
// consumption entries and personal payments.
//
// Uniqueness enforced by every implementation: person name, cycle month key,
// one consumption entry per (cycle, person), and the transaction fingerprint
// where present. Deleting a cycle cascades to all of its child rows.
// Violations surface as core.ErrConflict; missing ids as core.ErrNotFound.
type Store interface {
	// People. Members are soft-deleted via the Active flag; UpdatePerson
	// covers both rename and deactivation.
	CreatePerson(ctx context.Context, p *core.Person) error
	GetPerson(ctx context.Context, id string) (*core.Person, error)
	ListPeople(ctx context.Context, activeOnly bool) ([]core.Person, error)
	UpdatePerson(ctx context.Context, p *core.Person) error

	// Cycles. Month-key date bounds are immutable after creation; the only
	// mutable cycle field is the finalized flag.
	CreateCycle(ctx context.Context, c *core.Cycle) error
	GetCycle(ctx context.Context, id string) (*core.Cycle, error)
	GetCycleByMonth(ctx context.Context, monthKey string) (*core.Cycle, error)
	ListCycles(ctx context.Context) ([]core.Cycle, error)
	SetCycleFinalized(ctx context.Context, id string, finalized bool) error
	DeleteCycle(ctx context.Context, id string) error

	// Transactions. FindTransactionByFingerprint searches globally, not
	// scoped to a cycle, and returns (nil, nil) when absent.
	CreateTransaction(ctx context.Context, t *core.Transaction) error
	GetTransaction(ctx context.Context, id string) (*core.Transaction, error)
	ListTransactions(ctx context.Context, cycleID string) ([]core.Transaction, error)
	SetTransactionVerified(ctx context.Context, id string, verified bool) error
	DeleteTransaction(ctx context.Context, id string) error
	FindTransactionByFingerprint(ctx context.Context, fingerprint string) (*core.Transaction, error)

	// Consumption entries, upserted on the (cycle, person) natural key so
	// racing saves resolve last-write-wins.
	UpsertConsumptionEntry(ctx context.Context, e *core.ConsumptionEntry) error
	ListConsumptionEntries(ctx context.Context, cycleID string) ([]core.ConsumptionEntry, error)

	// Personal payments are create/delete only.
	CreatePayment(ctx context.Context, p *core.PersonalPayment) error
	GetPayment(ctx context.Context, id string) (*core.PersonalPayment, error)
	ListPayments(ctx context.Context, cycleID string) ([]core.PersonalPayment, error)
	DeletePayment(ctx context.Context, id string) error

	// RunInTransaction runs fn against a transactional view of the store.
	// Any error from fn rolls the whole scope back; a nil return commits.
	RunInTransaction(ctx context.Context, fn func(Store) error) error

	// Close releases any resources held by the store.
	Close() error
}
