package config

import "sync"

// Holder provides thread-safe access to a mutable *Config and an
// immutable config file path. Every loop reads through a shared
// Holder, so a reload updates the config in exactly one place.
type Holder struct {
	mu   sync.RWMutex
	cfg  *Config
	path string // immutable after construction

	subs []chan struct{}
}

// NewHolder creates a Holder with the initial config and file path.
func NewHolder(cfg *Config, path string) *Holder {
	return &Holder{
		cfg:  cfg,
		path: path,
	}
}

// Config returns the current config snapshot.
func (h *Holder) Config() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.cfg
}

// Path returns the config file path. No locking: immutable.
func (h *Holder) Path() string {
	return h.path
}

// Update replaces the config and notifies subscribers. Called on
// reload; one call updates the config for all consumers.
func (h *Holder) Update(cfg *Config) {
	h.mu.Lock()
	h.cfg = cfg
	subs := h.subs
	h.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Changed returns a channel that signals config replacements. The
// channel has a one-slot buffer; a slow reader coalesces signals.
func (h *Holder) Changed() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan struct{}, 1)
	h.subs = append(h.subs, ch)

	return ch
}
