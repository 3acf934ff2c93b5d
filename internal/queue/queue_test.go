package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q := NewInMemory(4)
	if err := q.Publish(ctx, Message{Type: "notice", Body: []byte(`{"identity":"S1"}`)}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	out, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	select {
	case msg := <-out:
		if msg.Type != "notice" {
			t.Errorf("type = %q; want notice", msg.Type)
		}
		if string(msg.Body) != `{"identity":"S1"}` {
			t.Errorf("body = %q", msg.Body)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

// The forwarding goroutine must exit on cancellation even when a message
// is pending and nobody is reading the output channel.
func TestInMemoryConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(1)
	if err := q.Publish(context.Background(), Message{Type: "notice", Body: []byte("x")}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	out, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	cancel()

	// Drain whatever made it through; the channel must close.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("consumer goroutine did not exit after cancel")
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"plain", Message{Type: "notice", Body: []byte("hello")}},
		{"pipe in body", Message{Type: "notice", Body: []byte("a|b|c")}},
		{"empty body", Message{Type: "notice", Body: []byte("")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := deserialize(serialize(tc.msg))
			if err != nil {
				t.Fatalf("deserialize: %v", err)
			}
			if got.Type != tc.msg.Type || string(got.Body) != string(tc.msg.Body) {
				t.Errorf("round trip = %+v; want %+v", got, tc.msg)
			}
		})
	}
}
