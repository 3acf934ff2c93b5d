package attendance

import (
	"context"
	"fmt"
	"log"
	"time"

	"facemark/internal/faceclient"
	"facemark/internal/facematch"
	"facemark/internal/geofence"
)

// FaceSearcher is the slice of the face service the coordinator needs.
type FaceSearcher interface {
	Search(ctx context.Context, image []byte, collection string, threshold float64, maxFaces int) (*faceclient.SearchResult, error)
}

// Notifier delivers a best-effort notice to an identity. Implementations
// must never block the caller or return delivery failures into the marking
// flow.
type Notifier interface {
	Notify(identity, message string)
}

// Per-identity outcomes reported in MarkResult.Details.
const (
	OutcomeRecorded   = "recorded"   // record + counter both written
	OutcomeDegraded   = "degraded"   // record written, counter increment failed
	OutcomeDuplicate  = "duplicate"  // skipped: already marked inside the window
	OutcomeUnenrolled = "unenrolled" // skipped: matched face not in the roster
	OutcomeFailed     = "failed"     // persistence failure before the record was written
)

// MarkDetail is the per-identity result of one marking request.
type MarkDetail struct {
	Identity string `json:"identity"`
	Outcome  string `json:"outcome"`
	Count    int    `json:"count,omitempty"`
}

// MarkResult aggregates a marking request. Recorded lists the identities
// whose ledger entry was written in this call, including degraded ones.
type MarkResult struct {
	Recorded []string     `json:"recorded"`
	Details  []MarkDetail `json:"details"`
}

// Coordinator runs one attendance marking cycle: geofence check, face
// search, identity resolution, then per identity the cooldown guard, the
// ledger append and counter increment, and a detached notification.
type Coordinator struct {
	boundary   geofence.Boundary
	face       FaceSearcher
	collection string
	threshold  float64
	maxFaces   int
	ledger     Ledger
	roster     Roster
	guard      *Guard
	notifier   Notifier
	now        func() time.Time
}

// NewCoordinator wires the marking flow. window <= 0 falls back to
// DefaultWindow.
func NewCoordinator(boundary geofence.Boundary, face FaceSearcher, collection string, threshold float64, maxFaces int, ledger Ledger, roster Roster, window time.Duration, notifier Notifier) *Coordinator {
	if maxFaces <= 0 {
		maxFaces = 10
	}
	return &Coordinator{
		boundary:   boundary,
		face:       face,
		collection: collection,
		threshold:  threshold,
		maxFaces:   maxFaces,
		ledger:     ledger,
		roster:     roster,
		guard:      NewGuard(ledger, window),
		notifier:   notifier,
		now:        time.Now,
	}
}

// Mark processes one captured image submitted from the given point.
//
// Failure kinds: ErrValidation for empty input, ErrGeofence before any
// external call, ErrMatchingService when the search fails, ErrNoFaceMatch
// when nothing resolves (or every candidate was skipped in a multi-match
// request), ErrDuplicateWindow only when the sole candidate is inside the
// cooldown window, and ErrPersistence when the store fails for the sole
// candidate. With several candidates the outcomes are independent: one
// blocked or failed identity does not fail a request that recorded others.
func (c *Coordinator) Mark(ctx context.Context, image []byte, point geofence.Point) (MarkResult, error) {
	var result MarkResult

	if len(image) == 0 {
		return result, fmt.Errorf("%w: face image required", ErrValidation)
	}
	if !geofence.WithinCampus(point, c.boundary) {
		return result, ErrGeofence
	}

	search, err := c.face.Search(ctx, image, c.collection, c.threshold, c.maxFaces)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrMatchingService, err)
	}
	identities := facematch.Resolve(search.Matches)
	if len(identities) == 0 {
		return result, ErrNoFaceMatch
	}

	asOf := c.now().UTC()
	duplicates := 0
	var persistErr error

	for _, identity := range identities {
		detail, err := c.markOne(ctx, identity, asOf)
		if err != nil && persistErr == nil {
			persistErr = err
		}
		if detail.Outcome == OutcomeDuplicate {
			duplicates++
		}
		if detail.Outcome == OutcomeRecorded || detail.Outcome == OutcomeDegraded {
			result.Recorded = append(result.Recorded, identity)
		}
		result.Details = append(result.Details, detail)
	}

	if len(result.Recorded) == 0 {
		switch {
		case len(identities) == 1 && duplicates == 1:
			return result, ErrDuplicateWindow
		case persistErr != nil:
			return result, persistErr
		default:
			// Every candidate was skipped; the caller learns nothing was
			// recognized rather than a silent success.
			return result, ErrNoFaceMatch
		}
	}
	return result, nil
}

// markOne applies the guard-then-append sequence for a single identity.
// The returned error is non-nil only for persistence failures; skips are
// expressed through the detail outcome.
func (c *Coordinator) markOne(ctx context.Context, identity string, asOf time.Time) (MarkDetail, error) {
	detail := MarkDetail{Identity: identity}

	person, err := c.roster.Person(ctx, identity)
	if err != nil {
		detail.Outcome = OutcomeFailed
		return detail, fmt.Errorf("%w: roster lookup for %s: %v", ErrPersistence, identity, err)
	}
	if person == nil {
		log.Printf("matched identity %s is not enrolled, skipping", identity)
		detail.Outcome = OutcomeUnenrolled
		return detail, nil
	}

	blocked, err := c.guard.RecentlyMarked(ctx, identity, asOf)
	if err != nil {
		detail.Outcome = OutcomeFailed
		return detail, err
	}
	if blocked {
		detail.Outcome = OutcomeDuplicate
		return detail, nil
	}

	// The guard check and this append race with concurrent submissions for
	// the same identity; the deterministic record id plus the conditional
	// insert collapse both writes onto one ledger row.
	rec, created, err := c.ledger.Append(ctx, identity, asOf)
	if err != nil {
		detail.Outcome = OutcomeFailed
		return detail, fmt.Errorf("%w: append for %s: %v", ErrPersistence, identity, err)
	}
	if !created {
		detail.Outcome = OutcomeDuplicate
		return detail, nil
	}

	count, err := c.ledger.IncrementCounter(ctx, identity)
	if err != nil {
		// The record exists but the counter is behind. Degraded success:
		// reported, never rolled back or hidden.
		log.Printf("counter increment failed for %s: %v", identity, err)
		detail.Outcome = OutcomeDegraded
	} else {
		detail.Outcome = OutcomeRecorded
		detail.Count = count
	}

	if c.notifier != nil {
		name := identity
		if person.Name != nil {
			name = *person.Name
		}
		msg := fmt.Sprintf("Hi %s, your attendance has been marked on %s at %s.",
			name, rec.Date, rec.OccurredAt.Format("15:04:05"))
		c.notifier.Notify(identity, msg)
	}
	return detail, nil
}
