package attendance

import (
	"context"
	"time"
)

// Ledger is the persistence boundary for attendance marking. Implementations
// must make Append conditional on the deterministic record id (a duplicate
// write reports created == false and returns the record already in the
// ledger, never a second row) and IncrementCounter
// a single atomic add with no read-then-write from the caller.
//
// Append does not re-check the cooldown window; that is the coordinator's
// job via the Guard. Callers bypassing the guard can violate the
// one-per-window rule.
type Ledger interface {
	Append(ctx context.Context, identity string, ts time.Time) (Record, bool, error)
	IncrementCounter(ctx context.Context, identity string) (int, error)
	LastPresent(ctx context.Context, identity string) (*Record, error)
}

// Roster resolves enrolled identities. A nil Person with nil error means
// the identity is not enrolled.
type Roster interface {
	Person(ctx context.Context, identity string) (*Person, error)
}
