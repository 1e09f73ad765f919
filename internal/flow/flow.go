// package flow correlates the two halves of an authorization flow
//
// The first request names a champion; the OAuth callback only carries a code (and a state when the
// provider round-trips one). A [Coordinator] holds the pending champion name between the two.
package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/champbox/internal/shared"
)

const (
	ModeKeyed = "keyed"
	ModeSlot  = "slot"

	defaultPendingTTL = 15 * time.Minute
)

// Coordinator stores the pending subject of a flow between the initial request and the OAuth callback.
type Coordinator interface {
	// Begin records subject as pending and returns the state token to round-trip through the provider.
	// An empty state means the coordinator does not use one.
	Begin(ctx context.Context, subject string) (state string, err error)

	// Resume returns and forgets the subject pending under state.
	// Fails with [shared.ErrNoPendingFlow] when nothing is pending.
	Resume(ctx context.Context, state string) (subject string, err error)
}

// New returns the coordinator for mode. An empty mode selects [ModeKeyed].
func New(mode string, ttl time.Duration) (Coordinator, error) {
	switch mode {
	case "", ModeKeyed:
		return NewKeyed(ttl), nil
	case ModeSlot:
		return NewSlot(), nil
	default:
		return nil, fmt.Errorf("%w: unknown flow mode %q", shared.ErrInvalidConfig, mode)
	}
}

// Slot is a single process-wide pending subject.
//
// A second Begin before the first flow resumes overwrites it, so the first callback resumes with the
// second subject. The mutex only keeps the slot free of data races; it does not isolate flows.
type Slot struct {
	mu      sync.Mutex
	pending *string
}

// NewSlot creates an empty [Slot].
func NewSlot() *Slot {
	return &Slot{}
}

// Begin overwrites the slot with subject. The returned state is always empty.
func (s *Slot) Begin(_ context.Context, subject string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = &subject
	return "", nil
}

// Resume ignores state, returns the slot's subject and clears it.
func (s *Slot) Resume(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return "", shared.ErrNoPendingFlow
	}

	subject := *s.pending
	s.pending = nil
	return subject, nil
}

type pendingEntry struct {
	subject   string
	expiresAt time.Time
}

// Keyed stores one pending subject per generated state token, so overlapping flows do not clobber each other.
//
// Entries expire after the configured TTL. Expired entries are swept on every Begin.
type Keyed struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]pendingEntry
	clock   func() time.Time
	newID   func() string
}

// NewKeyed creates a [Keyed] coordinator. A non-positive ttl uses 15 minutes.
func NewKeyed(ttl time.Duration) *Keyed {
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &Keyed{
		ttl:     ttl,
		pending: make(map[string]pendingEntry),
		clock:   time.Now,
		newID:   shared.GenerateID,
	}
}

// Begin stores subject under a fresh state token.
func (k *Keyed) Begin(_ context.Context, subject string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.clock()
	for state, entry := range k.pending {
		if !now.Before(entry.expiresAt) {
			delete(k.pending, state)
		}
	}

	state := k.newID()
	k.pending[state] = pendingEntry{subject: subject, expiresAt: now.Add(k.ttl)}
	return state, nil
}

// Resume removes and returns the subject stored under state.
//
// Unknown, empty and expired states are all [shared.ErrNoPendingFlow].
func (k *Keyed) Resume(_ context.Context, state string) (string, error) {
	if state == "" {
		return "", fmt.Errorf("%w: missing state", shared.ErrNoPendingFlow)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.pending[state]
	if !ok {
		return "", shared.ErrNoPendingFlow
	}
	delete(k.pending, state)

	if !k.clock().Before(entry.expiresAt) {
		return "", fmt.Errorf("%w: state expired", shared.ErrNoPendingFlow)
	}

	return entry.subject, nil
}

// Len reports how many flows are pending, expired or not.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.pending)
}
