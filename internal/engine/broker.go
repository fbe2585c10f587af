// Package engine brokers exclusive access to process-wide voice devices
// (microphone, speaker/synthesizer). The underlying engines do not queue
// concurrent requests safely, so each user must hold the lease.
package engine

import "sync"

// Broker grants a single-owner lease on one shared resource.
type Broker struct {
	name string

	mu     sync.Mutex
	seq    uint64
	holder *Lease
}

// Lease is exclusive ownership of a Broker's resource until released or revoked.
type Lease struct {
	broker *Broker
	id     uint64
	owner  string
	revoke func()
}

// NewBroker returns a broker for the named resource.
func NewBroker(name string) *Broker {
	return &Broker{name: name}
}

// Name returns the resource name.
func (b *Broker) Name() string { return b.name }

// Acquire takes the resource for owner. If another lease holds it, that
// lease's revoke func runs (outside the broker lock) before Acquire returns,
// and the old lease is no longer held. revoke may be nil.
func (b *Broker) Acquire(owner string, revoke func()) *Lease {
	b.mu.Lock()
	prev := b.holder
	b.seq++
	l := &Lease{broker: b, id: b.seq, owner: owner, revoke: revoke}
	b.holder = l
	b.mu.Unlock()

	if prev != nil && prev.revoke != nil {
		prev.revoke()
	}
	return l
}

// Holder returns the current owner, or "" when free.
func (b *Broker) Holder() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.holder == nil {
		return ""
	}
	return b.holder.owner
}

// Release frees the resource if l still holds it. Safe to call repeatedly
// and on nil.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	b := l.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.holder == l {
		b.holder = nil
	}
}

// Held reports whether l is still the active lease.
func (l *Lease) Held() bool {
	if l == nil {
		return false
	}
	l.broker.mu.Lock()
	defer l.broker.mu.Unlock()
	return l.broker.holder == l
}
