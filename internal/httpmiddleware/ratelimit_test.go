package httpmiddleware

import "testing"

func TestTokenBucketExhausts(t *testing.T) {
	l := NewSimpleTokenBucket(3, 3)
	for i := 0; i < 3; i++ {
		if !l.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.allow("1.2.3.4") {
		t.Error("request over capacity should be rejected")
	}
	// Other clients keep their own bucket.
	if !l.allow("5.6.7.8") {
		t.Error("separate client should be allowed")
	}
}

func TestTokenBucketDefaultsCapacity(t *testing.T) {
	l := NewSimpleTokenBucket(0, 2)
	if l.capacity != 2 {
		t.Errorf("capacity = %d; want 2", l.capacity)
	}
}
