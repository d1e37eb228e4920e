package app

import (
	"context"
	"sync"
)

// Feed fans out "progress changed" signals to subscribers of one participant.
// Signals coalesce: a subscriber that has not drained its channel keeps a single
// pending signal, which is all it needs to re-read the current view.
type Feed struct {
	mu          sync.Mutex
	subscribers map[string]map[chan struct{}]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe returns a channel that receives a signal after each change for participantID.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *Feed) Subscribe(participantID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	f.mu.Lock()
	subs, ok := f.subscribers[participantID]
	if !ok {
		subs = make(map[chan struct{}]struct{})
		f.subscribers[participantID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs, ok := f.subscribers[participantID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(f.subscribers, participantID)
		}
	}
	return ch, cancel
}

// Notify implements ProgressNotifier for single-instance deployments.
func (f *Feed) Notify(_ context.Context, participantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[participantID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Subscribers reports how many listeners participantID has.
func (f *Feed) Subscribers(participantID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[participantID])
}
