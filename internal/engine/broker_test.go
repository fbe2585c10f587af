package engine

import "testing"

func TestAcquireRevokesPreviousHolder(t *testing.T) {
	b := NewBroker("speaker")
	revoked := 0
	first := b.Acquire("msg-1", func() { revoked++ })
	if !first.Held() || b.Holder() != "msg-1" {
		t.Fatalf("first lease should be held")
	}

	second := b.Acquire("msg-2", nil)
	if revoked != 1 {
		t.Fatalf("expected first holder revoked once, got %d", revoked)
	}
	if first.Held() {
		t.Fatalf("first lease still held after preemption")
	}
	if !second.Held() || b.Holder() != "msg-2" {
		t.Fatalf("second lease should be held")
	}
}

func TestReleaseIsIdempotentAndScoped(t *testing.T) {
	b := NewBroker("microphone")
	first := b.Acquire("a", nil)
	second := b.Acquire("b", nil)

	// A stale lease must not free the resource from its new owner.
	first.Release()
	if b.Holder() != "b" {
		t.Fatalf("stale release cleared holder: %q", b.Holder())
	}
	second.Release()
	second.Release()
	if b.Holder() != "" {
		t.Fatalf("expected free broker, got %q", b.Holder())
	}

	var nilLease *Lease
	nilLease.Release()
	if nilLease.Held() {
		t.Fatalf("nil lease cannot be held")
	}
}

func TestRevokeMayReacquire(t *testing.T) {
	b := NewBroker("speaker")
	var inner *Lease
	b.Acquire("a", func() {
		// revoke runs outside the lock; touching the broker must not deadlock.
		_ = b.Holder()
	})
	inner = b.Acquire("b", nil)
	if !inner.Held() {
		t.Fatalf("expected b to hold")
	}
}
