package models

import "time"

// ConversationState tracks where a contact is in the engagement flow.
type ConversationState string

const (
	// StateActive is the initial state for a freshly created contact.
	StateActive ConversationState = "active"
	// StateWaiting means the bot replied and is waiting for the contact
	// to come back; a follow-up is scheduled.
	StateWaiting ConversationState = "waiting"
	// StateFollowedUp means the scheduler already nudged the contact once;
	// no further automatic outreach happens.
	StateFollowedUp ConversationState = "followed_up"
	// StateComplete means the conversation resolved. Only a fresh inbound
	// message moves the contact out of this state.
	StateComplete ConversationState = "complete"
)

// Valid reports whether s is one of the known conversation states.
func (s ConversationState) Valid() bool {
	switch s {
	case StateActive, StateWaiting, StateFollowedUp, StateComplete:
		return true
	}
	return false
}

// Contact is one row per unique WhatsApp JID.
type Contact struct {
	JID          string            `json:"jid"`
	Name         *string           `json:"name,omitempty"`
	Location     *string           `json:"location,omitempty"`
	LastMessage  string            `json:"last_message"`
	UpdatedAt    time.Time         `json:"updated_at"`
	BotEnabled   bool              `json:"bot_enabled"`
	State        ConversationState `json:"conversation_state"`
	NextFollowup *time.Time        `json:"next_followup,omitempty"`
}

// ContactUpdate carries an upsert for a contact. Nil optional fields mean
// "leave whatever is stored" rather than "erase".
type ContactUpdate struct {
	JID         string
	Name        *string
	Location    *string
	LastMessage string
	State       *ConversationState
	// NextFollowup is applied verbatim, including nil to clear it.
	NextFollowup *time.Time
}
