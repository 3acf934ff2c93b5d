package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"facemark/internal/attendance"
	"facemark/internal/queue"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  string
		valid bool
	}{
		{"canonical ten digits", "9876543210", "+919876543210", true},
		{"too short", "98765", "", false},
		{"too long", "98765432100", "", false},
		{"letters", "98765xyz10", "", false},
		{"already prefixed", "+919876543210", "", false},
		{"empty", "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizePhone(tc.raw, "+91")
			if ok != tc.valid || got != tc.want {
				t.Errorf("NormalizePhone(%q) = (%q, %v); want (%q, %v)",
					tc.raw, got, ok, tc.want, tc.valid)
			}
		})
	}
}

func TestNotifyPublishesNotice(t *testing.T) {
	q := queue.NewInMemory(1)
	d := NewDispatcher(q)
	d.Notify("S1", "marked")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	select {
	case msg := <-out:
		var notice Notice
		if err := json.Unmarshal(msg.Body, &notice); err != nil {
			t.Fatalf("unmarshal notice: %v", err)
		}
		if notice.Identity != "S1" || notice.Message != "marked" {
			t.Errorf("notice = %+v", notice)
		}
		if notice.ID == "" {
			t.Error("notice id should be set")
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for notice")
	}
}

// A dispatcher over a broken queue must never surface the failure.
func TestNotifySwallowsPublishFailure(t *testing.T) {
	d := NewDispatcher(failingQueue{})
	d.Notify("S1", "marked") // must not panic or block
	time.Sleep(20 * time.Millisecond)
}

type failingQueue struct{}

func (failingQueue) Publish(ctx context.Context, msg queue.Message) error {
	return errors.New("redis down")
}

func (failingQueue) Consume(ctx context.Context) (<-chan queue.Message, error) {
	return nil, errors.New("redis down")
}

type staticRoster map[string]*attendance.Person

func (r staticRoster) Person(ctx context.Context, identity string) (*attendance.Person, error) {
	return r[identity], nil
}

func TestDeliverSendsSMS(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	phone := "9876543210"
	roster := staticRoster{"S1": {Identity: "S1", Phone: &phone}}
	d := NewDeliverer(roster, NewSMSClient(srv.URL, "facemark", false), "+91")

	err := d.Deliver(context.Background(), Notice{ID: "n1", Identity: "S1", Message: "marked"})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got["to"] != "+919876543210" {
		t.Errorf("to = %q; want +919876543210", got["to"])
	}
	if got["message"] != "marked" {
		t.Errorf("message = %q", got["message"])
	}
}

func TestDeliverNoContactIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("gateway must not be called without contact data")
	}))
	defer srv.Close()

	bad := "not-a-number"
	roster := staticRoster{
		"S1": {Identity: "S1"},             // no phone
		"S2": {Identity: "S2", Phone: &bad}, // malformed phone
	}
	d := NewDeliverer(roster, NewSMSClient(srv.URL, "facemark", false), "+91")

	for _, id := range []string{"S1", "S2", "unknown"} {
		if err := d.Deliver(context.Background(), Notice{Identity: id}); err != nil {
			t.Errorf("Deliver(%s) = %v; want nil", id, err)
		}
	}
}

func TestDeliverReturnsGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "over quota", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	phone := "9876543210"
	roster := staticRoster{"S1": {Identity: "S1", Phone: &phone}}
	d := NewDeliverer(roster, NewSMSClient(srv.URL, "facemark", false), "+91")

	if err := d.Deliver(context.Background(), Notice{Identity: "S1", Message: "m"}); err == nil {
		t.Fatal("expected gateway failure to surface to the worker")
	}
}
