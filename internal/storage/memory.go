package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tumelo/waflow/internal/models"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	contacts map[string]*models.Contact
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		contacts: make(map[string]*models.Contact),
	}
}

// ensureLocked returns the contact for jid, creating a default record when
// none exists yet. Caller must hold the write lock.
func (s *MemoryStorage) ensureLocked(jid string) *models.Contact {
	c, exists := s.contacts[jid]
	if !exists {
		c = &models.Contact{
			JID:        jid,
			BotEnabled: true,
			State:      models.StateActive,
		}
		s.contacts[jid] = c
	}
	return c
}

func (s *MemoryStorage) UpsertContact(ctx context.Context, upd models.ContactUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.ensureLocked(upd.JID)
	if upd.Name != nil {
		c.Name = upd.Name
	}
	if upd.Location != nil {
		c.Location = upd.Location
	}
	c.LastMessage = upd.LastMessage
	if upd.State != nil {
		c.State = *upd.State
	}
	c.NextFollowup = upd.NextFollowup
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) GetContact(ctx context.Context, jid string) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, exists := s.contacts[jid]; exists {
		clone := *c
		return &clone, nil
	}
	return nil, nil
}

func (s *MemoryStorage) SetBotEnabled(ctx context.Context, jid string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.ensureLocked(jid)
	c.BotEnabled = enabled
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) SetConversationState(ctx context.Context, jid string, state models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.ensureLocked(jid)
	c.State = state
	if state != models.StateWaiting {
		// next_followup only means something while waiting
		c.NextFollowup = nil
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) SetNextFollowup(ctx context.Context, jid string, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.ensureLocked(jid)
	c.NextFollowup = at
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) DueFollowups(ctx context.Context, cutoff time.Time) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*models.Contact
	for _, c := range s.contacts {
		if !c.BotEnabled || c.State != models.StateWaiting || c.NextFollowup == nil {
			continue
		}
		if c.NextFollowup.After(cutoff) {
			continue
		}
		clone := *c
		due = append(due, &clone)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].JID < due[j].JID })
	return due, nil
}

func (s *MemoryStorage) ListContacts(ctx context.Context) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contacts := make([]*models.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		clone := *c
		contacts = append(contacts, &clone)
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].UpdatedAt.After(contacts[j].UpdatedAt)
	})
	return contacts, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
