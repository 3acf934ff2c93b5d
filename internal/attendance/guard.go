package attendance

import (
	"context"
	"fmt"
	"time"
)

// DefaultWindow is the cooldown during which a second Present marking for
// the same identity is rejected.
const DefaultWindow = time.Hour

// Guard answers whether an identity was already marked Present within the
// trailing cooldown window. It reads only the single most recent Present
// record through the ledger's index-backed lookup; it never scans.
type Guard struct {
	ledger Ledger
	window time.Duration
}

// NewGuard creates a guard over the given ledger.
func NewGuard(ledger Ledger, window time.Duration) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{ledger: ledger, window: window}
}

// Window returns the configured cooldown duration.
func (g *Guard) Window() time.Duration { return g.window }

// RecentlyMarked reports whether identity has a Present record with a
// timestamp strictly greater than asOf minus the window. A record at
// exactly asOf-window is not blocking.
func (g *Guard) RecentlyMarked(ctx context.Context, identity string, asOf time.Time) (bool, error) {
	last, err := g.ledger.LastPresent(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("%w: last present lookup: %v", ErrPersistence, err)
	}
	if last == nil {
		return false, nil
	}
	return last.OccurredAt.After(asOf.Add(-g.window)), nil
}
