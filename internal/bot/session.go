package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tumelo/waflow/internal/storage"
	"github.com/tumelo/waflow/internal/transport"
)

// ErrLoggedOut is returned by Manager.Run when the remote side invalidated
// the pairing; the operator must re-pair before the bot can run again.
var ErrLoggedOut = errors.New("session logged out, re-pairing required")

const defaultReconnectDelay = 5 * time.Second

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Dialer           transport.Dialer
	Credentials      transport.CredentialStore
	Router           *Router
	Store            storage.Storage
	Logger           *zap.Logger
	FollowupInterval time.Duration
	FollowupMessage  string
	ReconnectDelay   time.Duration
}

// Manager owns the session lifecycle: it dials, runs exactly one follow-up
// scheduler per live session, feeds events to the router, and redials after
// transient disconnects.
type Manager struct {
	dialer           transport.Dialer
	creds            transport.CredentialStore
	router           *Router
	store            storage.Storage
	logger           *zap.Logger
	followupInterval time.Duration
	followupMessage  string
	reconnectDelay   time.Duration

	mu          sync.RWMutex
	pairingCode string
}

func NewManager(cfg ManagerConfig) *Manager {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	return &Manager{
		dialer:           cfg.Dialer,
		creds:            cfg.Credentials,
		router:           cfg.Router,
		store:            cfg.Store,
		logger:           cfg.Logger,
		followupInterval: cfg.FollowupInterval,
		followupMessage:  cfg.FollowupMessage,
		reconnectDelay:   delay,
	}
}

// Run connects and keeps the session alive until ctx is canceled or the
// session is logged out. Transient disconnects are retried indefinitely
// with a bounded delay.
func (m *Manager) Run(ctx context.Context) error {
	for {
		sess, err := m.dialer.Dial(ctx)
		if err != nil {
			m.logger.Error("failed to open session", zap.Error(err))
			if !m.wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		loggedOut := m.pump(ctx, sess)
		sess.Close()

		if loggedOut {
			m.logger.Warn("session logged out, discarding credentials")
			if err := m.creds.Clear(ctx); err != nil {
				m.logger.Error("failed to clear credentials", zap.Error(err))
			}
			return ErrLoggedOut
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Info("session closed, reconnecting",
			zap.Duration("delay", m.reconnectDelay))
		if !m.wait(ctx) {
			return ctx.Err()
		}
	}
}

// pump consumes session events serially until the session ends. The
// scheduler started here is stopped before pump returns, so a reconnect
// can never leave two sweep timers running.
func (m *Manager) pump(ctx context.Context, sess transport.Session) (loggedOut bool) {
	sched := NewScheduler(m.store, sess, m.followupMessage, m.logger)
	if err := sched.Start(m.followupInterval); err != nil {
		m.logger.Error("failed to start follow-up scheduler", zap.Error(err))
	}
	defer sched.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case evt, ok := <-sess.Events():
			if !ok {
				return false
			}
			switch e := evt.(type) {
			case transport.Message:
				m.router.Handle(ctx, sess, e)
			case transport.Connected:
				m.setPairingCode("")
				m.logger.Info("session established")
			case transport.Disconnected:
				return e.LoggedOut
			case transport.Pairing:
				m.setPairingCode(e.Code)
				m.logger.Info("pairing code available, scan to link",
					zap.String("code", e.Code))
			case transport.Credentials:
				if err := m.creds.Save(ctx, e.Blob); err != nil {
					// Non-fatal: the session keeps running, but a restart
					// may need a fresh pairing.
					m.logger.Error("failed to persist credentials", zap.Error(err))
				}
			}
		}
	}
}

// PairingCode returns the latest unscanned pairing code, or "" once the
// session is linked.
func (m *Manager) PairingCode() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pairingCode
}

func (m *Manager) setPairingCode(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairingCode = code
}

// wait sleeps for the reconnect delay; false means ctx was canceled.
func (m *Manager) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(m.reconnectDelay):
		return true
	}
}
