package attendance

import (
	"context"
	"sync"
	"time"

	"facemark/internal/faceclient"
)

// fakeLedger is an in-memory Ledger with error injection. Append keeps the
// conditional-insert semantics of the Postgres repository: one row per
// deterministic record id.
type fakeLedger struct {
	mu      sync.Mutex
	records map[string]Record
	counts  map[string]int

	AppendError    error
	LastError      error
	IncrementError error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		records: make(map[string]Record),
		counts:  make(map[string]int),
	}
}

func (f *fakeLedger) Append(ctx context.Context, identity string, ts time.Time) (Record, bool, error) {
	if f.AppendError != nil {
		return Record{}, false, f.AppendError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := NewPresentRecord(identity, ts)
	if existing, ok := f.records[rec.ID]; ok {
		return existing, false, nil
	}
	rec.CreatedAt = time.Now().UTC()
	f.records[rec.ID] = rec
	return rec, true, nil
}

func (f *fakeLedger) LastPresent(ctx context.Context, identity string) (*Record, error) {
	if f.LastError != nil {
		return nil, f.LastError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *Record
	for _, rec := range f.records {
		if rec.Identity != identity || rec.Status != StatusPresent {
			continue
		}
		if last == nil || rec.OccurredAt.After(last.OccurredAt) {
			r := rec
			last = &r
		}
	}
	return last, nil
}

func (f *fakeLedger) IncrementCounter(ctx context.Context, identity string) (int, error) {
	if f.IncrementError != nil {
		return 0, f.IncrementError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[identity]++
	return f.counts[identity], nil
}

func (f *fakeLedger) presentCount(identity string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rec := range f.records {
		if rec.Identity == identity && rec.Status == StatusPresent {
			n++
		}
	}
	return n
}

// seed inserts a Present record directly, bypassing the marking flow.
func (f *fakeLedger) seed(identity string, ts time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := NewPresentRecord(identity, ts)
	f.records[rec.ID] = rec
}

type fakeRoster struct {
	people map[string]*Person
	Err    error
}

func (f *fakeRoster) Person(ctx context.Context, identity string) (*Person, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.people[identity], nil
}

func rosterWith(identities ...string) *fakeRoster {
	people := make(map[string]*Person, len(identities))
	for _, id := range identities {
		people[id] = &Person{Identity: id}
	}
	return &fakeRoster{people: people}
}

type fakeFace struct {
	result *faceclient.SearchResult
	err    error
}

func (f *fakeFace) Search(ctx context.Context, image []byte, collection string, threshold float64, maxFaces int) (*faceclient.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) Notify(identity, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, identity)
}

func (f *fakeNotifier) notified() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type nopNotifier struct{}

func (nopNotifier) Notify(identity, message string) {}
