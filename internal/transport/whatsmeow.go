package transport

import (
	"context"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// WhatsmeowDialer opens WhatsApp sessions backed by a sqlite credential
// container. One dialer holds one device identity.
type WhatsmeowDialer struct {
	container *sqlstore.Container
	logger    *zap.Logger
}

func NewWhatsmeowDialer(ctx context.Context, authDBPath string, logger *zap.Logger) (*WhatsmeowDialer, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", authDBPath)
	container, err := sqlstore.New(ctx, "sqlite3", dsn, waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	return &WhatsmeowDialer{container: container, logger: logger}, nil
}

func (d *WhatsmeowDialer) Dial(ctx context.Context) (Session, error) {
	device, err := d.container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading device: %w", err)
	}

	client := whatsmeow.NewClient(device, waLog.Noop)
	// The session manager owns the retry loop.
	client.EnableAutoReconnect = false

	s := &whatsmeowSession{
		client: client,
		events: make(chan Event, 64),
		logger: d.logger,
	}
	s.handlerID = client.AddEventHandler(s.handleEvent)

	if client.Store.ID == nil {
		// Never paired: surface QR codes until the operator scans one.
		qrChan, err := client.GetQRChannel(ctx)
		if err != nil {
			return nil, fmt.Errorf("requesting QR channel: %w", err)
		}
		go s.pumpQR(qrChan)
	}

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connecting session: %w", err)
	}
	return s, nil
}

// CredentialStore exposes the dialer's device container in store form.
// Save is a no-op because whatsmeow writes credential changes straight to
// the sqlite container; Clear drops the device so the next Dial re-pairs.
func (d *WhatsmeowDialer) CredentialStore() CredentialStore {
	return &containerCredentials{container: d.container}
}

type containerCredentials struct {
	container *sqlstore.Container
}

func (c *containerCredentials) Save(ctx context.Context, blob []byte) error {
	return nil
}

func (c *containerCredentials) Clear(ctx context.Context) error {
	device, err := c.container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("loading device: %w", err)
	}
	if device.ID == nil {
		return nil
	}
	if err := c.container.DeleteDevice(ctx, device); err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return nil
}

type whatsmeowSession struct {
	client    *whatsmeow.Client
	events    chan Event
	handlerID uint32
	logger    *zap.Logger

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func (s *whatsmeowSession) SendMessage(ctx context.Context, jid, text string) error {
	to, err := types.ParseJID(jid)
	if err != nil {
		return fmt.Errorf("parsing recipient %q: %w", jid, err)
	}
	_, err = s.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

func (s *whatsmeowSession) Events() <-chan Event {
	return s.events
}

func (s *whatsmeowSession) Close() {
	s.closeOnce.Do(func() {
		s.client.RemoveEventHandler(s.handlerID)
		s.client.Disconnect()
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
}

// emit never blocks the whatsmeow event loop: if the consumer has fallen
// this far behind, dropping is safer than deadlocking the socket reader.
func (s *whatsmeowSession) emit(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- evt:
	default:
		s.logger.Warn("dropping session event, consumer too slow")
	}
}

func (s *whatsmeowSession) handleEvent(raw interface{}) {
	switch evt := raw.(type) {
	case *events.Message:
		text := evt.Message.GetConversation()
		if text == "" {
			text = evt.Message.GetExtendedTextMessage().GetText()
		}
		if text == "" {
			return
		}
		s.emit(Message{
			Chat:     evt.Info.Chat.String(),
			Sender:   evt.Info.Sender.ToNonAD().String(),
			PushName: evt.Info.PushName,
			Text:     text,
			FromSelf: evt.Info.IsFromMe,
		})
	case *events.Connected:
		s.emit(Connected{})
	case *events.Disconnected:
		s.emit(Disconnected{})
	case *events.LoggedOut:
		s.emit(Disconnected{LoggedOut: true})
	case *events.PairSuccess:
		s.logger.Info("paired with WhatsApp", zap.String("jid", evt.ID.String()))
	}
}

func (s *whatsmeowSession) pumpQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		if item.Event == whatsmeow.QRChannelEventCode {
			s.emit(Pairing{Code: item.Code})
		}
	}
}
