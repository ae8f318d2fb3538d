package capture

import "sync"

// StagingSlot holds at most one pending upload request while the user
// is in manual mode. Storing a new request replaces the old one; the
// most recent capture is the only one worth sending.
type StagingSlot struct {
	mu  sync.Mutex
	req *Request
}

// NewStagingSlot returns an empty slot.
func NewStagingSlot() *StagingSlot {
	return &StagingSlot{}
}

// Store parks a request, replacing any previous one. Returns true if a
// previous request was discarded.
func (s *StagingSlot) Store(req *Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := s.req != nil
	s.req = req

	return replaced
}

// TryTake removes and returns the pending request, or nil when the
// slot is empty.
func (s *StagingSlot) TryTake() *Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := s.req
	s.req = nil

	return req
}

// Peek reports whether a request is pending without consuming it.
func (s *StagingSlot) Peek() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.req != nil
}
