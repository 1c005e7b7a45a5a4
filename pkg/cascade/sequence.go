package cascade

import (
	"context"
	"sync"
)

// Sequencer hands out monotonically increasing sequence numbers per
// dependent field and cancels the previous in-flight resolution when a new
// one begins. A resolution's result must only be applied when its sequence
// is still the latest issued for that field; anything else is a stale
// response from an overlapping trigger.
type Sequencer struct {
	mu      sync.Mutex
	seqs    map[string]uint64
	cancels map[string]context.CancelFunc
}

// NewSequencer constructs an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{
		seqs:    make(map[string]uint64),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Begin registers a new resolution for field: the prior in-flight context is
// cancelled and a fresh derived context plus its sequence number returned.
func (s *Sequencer) Begin(ctx context.Context, field string) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.cancels[field]; ok {
		cancel()
	}

	s.seqs[field]++
	seq := s.seqs[field]

	derived, cancel := context.WithCancel(ctx)
	s.cancels[field] = cancel
	return derived, seq
}

// Latest reports whether seq is still the newest sequence issued for field.
func (s *Sequencer) Latest(field string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqs[field] == seq
}

// Finish releases the cancel handle for a completed resolution when it is
// still the latest one.
func (s *Sequencer) Finish(field string, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seqs[field] != seq {
		return
	}
	if cancel, ok := s.cancels[field]; ok {
		cancel()
		delete(s.cancels, field)
	}
}

// CancelAll aborts every in-flight resolution. Called on session destroy.
func (s *Sequencer) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for field, cancel := range s.cancels {
		cancel()
		delete(s.cancels, field)
	}
}
