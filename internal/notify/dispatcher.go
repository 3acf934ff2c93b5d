package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"facemark/internal/attendance"
	"facemark/internal/metrics"
	"facemark/internal/queue"
)

// Notice is one queued notification.
type Notice struct {
	ID       string `json:"id"`
	Identity string `json:"identity"`
	Message  string `json:"message"`
}

// Dispatcher publishes notices to the queue, detached from the marking
// request. Publish failures are logged and dropped; nothing here ever
// reaches the caller of Notify.
type Dispatcher struct {
	q queue.Queue
}

// NewDispatcher creates a dispatcher over the given queue backend.
func NewDispatcher(q queue.Queue) *Dispatcher {
	return &Dispatcher{q: q}
}

// Notify enqueues a notice for identity. Fire and forget: the publish runs
// in its own goroutine with its own deadline, holds no caller state, and
// swallows every failure.
func (d *Dispatcher) Notify(identity, message string) {
	if d == nil || d.q == nil {
		return
	}
	notice := Notice{
		ID:       uuid.NewString(),
		Identity: identity,
		Message:  message,
	}
	body, err := json.Marshal(notice)
	if err != nil {
		log.Printf("notice marshal failed for %s: %v", identity, err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.q.Publish(ctx, queue.Message{Type: "notice", Body: body}); err != nil {
			log.Printf("notice publish failed for %s: %v", identity, err)
		}
	}()
}

// Deliverer is the worker-side half: it resolves the roster entry, checks
// the contact data, and calls the SMS gateway.
type Deliverer struct {
	roster attendance.Roster
	sms    *SMSClient
	prefix string
}

// NewDeliverer wires delivery. prefix is the country prefix applied to
// canonical 10-digit numbers.
func NewDeliverer(roster attendance.Roster, sms *SMSClient, prefix string) *Deliverer {
	return &Deliverer{roster: roster, sms: sms, prefix: prefix}
}

// Deliver sends one notice. Missing or malformed contact data is a no-op,
// not an error; gateway failures are returned so the worker can log them,
// but nothing retries into the marking flow.
func (d *Deliverer) Deliver(ctx context.Context, notice Notice) error {
	person, err := d.roster.Person(ctx, notice.Identity)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("roster_error").Inc()
		return err
	}
	if person == nil || person.Phone == nil {
		metrics.NotificationsSent.WithLabelValues("no_contact").Inc()
		return nil
	}
	phone, ok := NormalizePhone(*person.Phone, d.prefix)
	if !ok {
		metrics.NotificationsSent.WithLabelValues("bad_contact").Inc()
		return nil
	}
	if err := d.sms.Send(ctx, phone, notice.Message); err != nil {
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		return err
	}
	metrics.NotificationsSent.WithLabelValues("sent").Inc()
	return nil
}
