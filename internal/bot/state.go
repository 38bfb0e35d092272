package bot

import "sync"

// State holds the process-wide enable flag and the admin identity. The
// flag always starts enabled on boot; it is not persisted.
type State struct {
	mu       sync.RWMutex
	enabled  bool
	adminJID string
}

func NewState(adminJID string) *State {
	return &State{
		enabled:  true,
		adminJID: adminJID,
	}
}

func (s *State) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
}

func (s *State) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
}

func (s *State) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *State) IsAdmin(sender string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adminJID != "" && sender == s.adminJID
}
