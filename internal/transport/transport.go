// Package transport abstracts the messaging session so the router and
// scheduler never depend on a concrete protocol library.
package transport

import "context"

// Event is a typed message-session event. Exactly one of the concrete
// types below is delivered per event.
type Event interface {
	isEvent()
}

// Message is an inbound (or echoed self-sent) text message.
type Message struct {
	// Chat is the conversation identifier, used as the contact key.
	Chat string
	// Sender is the authoring identity; differs from Chat in groups.
	Sender string
	// PushName is the sender's self-reported display name, if any.
	PushName string
	Text     string
	FromSelf bool
}

// Connected fires once the session is fully established.
type Connected struct{}

// Disconnected fires when the session drops. LoggedOut means the remote
// side invalidated the pairing and reconnecting is pointless.
type Disconnected struct {
	LoggedOut bool
}

// Pairing carries QR/pairing-code material for external display.
type Pairing struct {
	Code string
}

// Credentials carries an updated credential blob to be persisted before
// the next reconnect.
type Credentials struct {
	Blob []byte
}

func (Message) isEvent()      {}
func (Connected) isEvent()    {}
func (Disconnected) isEvent() {}
func (Pairing) isEvent()      {}
func (Credentials) isEvent()  {}

// Session is a single live connection to the messaging network.
type Session interface {
	SendMessage(ctx context.Context, jid, text string) error
	// Events delivers session events in arrival order. The channel is
	// closed when the session ends.
	Events() <-chan Event
	Close()
}

// Dialer opens sessions. Dial may be called again after a disconnect to
// establish a replacement session.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// CredentialStore persists session credentials across restarts.
type CredentialStore interface {
	Save(ctx context.Context, blob []byte) error
	// Clear discards stored credentials; the next Dial starts a fresh
	// pairing.
	Clear(ctx context.Context) error
}
