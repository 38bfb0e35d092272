package storage

import (
	"context"
	"time"

	"github.com/tumelo/waflow/internal/models"
)

// Storage is the durable contact/conversation store. Every write creates the
// row when it is missing, keyed by JID.
type Storage interface {
	// UpsertContact merges upd into the stored record. Absent Name/Location
	// keep the stored value; State and NextFollowup are applied as given,
	// with a nil State meaning "leave unchanged".
	UpsertContact(ctx context.Context, upd models.ContactUpdate) error
	GetContact(ctx context.Context, jid string) (*models.Contact, error)
	SetBotEnabled(ctx context.Context, jid string, enabled bool) error
	SetConversationState(ctx context.Context, jid string, state models.ConversationState) error
	SetNextFollowup(ctx context.Context, jid string, at *time.Time) error
	// DueFollowups returns contacts with bot_enabled, state waiting and
	// next_followup at or before cutoff.
	DueFollowups(ctx context.Context, cutoff time.Time) ([]*models.Contact, error)
	// ListContacts returns every contact, most recently updated first.
	ListContacts(ctx context.Context) ([]*models.Contact, error)
	Close() error
}
