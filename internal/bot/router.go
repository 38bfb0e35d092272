package bot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tumelo/waflow/internal/ai"
	"github.com/tumelo/waflow/internal/models"
	"github.com/tumelo/waflow/internal/storage"
	"github.com/tumelo/waflow/internal/transport"
)

const (
	// Sent when the reply service is unreachable or errors out.
	apologyText = "Oops! There was an error on the server."

	pausedConfirmation  = "Bot paused for this chat."
	resumedConfirmation = "Bot resumed for this chat."
	stoppedConfirmation = "Bot stopped for all chats. Send /start to resume."
	startedConfirmation = "Bot started for all chats."
)

// DefaultFollowupInterval is how long the bot waits for a contact to come
// back before the scheduler nudges them.
const DefaultFollowupInterval = 24 * time.Hour

// Router decides, per inbound message, between command handling, dropping,
// and forwarding to the reply service.
type Router struct {
	store            storage.Storage
	replier          ai.Replier
	state            *State
	followupInterval time.Duration
	logger           *zap.Logger

	now func() time.Time
}

func NewRouter(store storage.Storage, replier ai.Replier, state *State, followupInterval time.Duration, logger *zap.Logger) *Router {
	if followupInterval <= 0 {
		followupInterval = DefaultFollowupInterval
	}
	return &Router{
		store:            store,
		replier:          replier,
		state:            state,
		followupInterval: followupInterval,
		logger:           logger,
		now:              time.Now,
	}
}

// Handle runs the decision ladder for one inbound message: owner command,
// admin command, global gate, per-contact gate, then AI forwarding.
func (r *Router) Handle(ctx context.Context, sess transport.Session, msg transport.Message) {
	log := r.logger.With(
		zap.String("request_id", uuid.New().String()),
		zap.String("chat", msg.Chat),
	)

	if msg.FromSelf {
		r.handleOwnerCommand(ctx, sess, msg, log)
		return
	}

	if r.state.IsAdmin(msg.Sender) {
		if cmd := ParseAdminCommand(msg.Text); cmd != AdminNone {
			r.handleAdminCommand(ctx, sess, msg, cmd, log)
			return
		}
	}

	if !r.state.Enabled() {
		log.Debug("bot globally disabled, dropping message")
		return
	}

	contact, err := r.store.GetContact(ctx, msg.Chat)
	if err != nil {
		log.Error("failed to load contact", zap.Error(err))
		return
	}
	if contact != nil && !contact.BotEnabled {
		log.Debug("bot disabled for contact, dropping message")
		return
	}

	r.forwardToAI(ctx, sess, msg, log)
}

// handleOwnerCommand interprets self-sent text as owner control commands.
// Self-sent text never reaches the reply service.
func (r *Router) handleOwnerCommand(ctx context.Context, sess transport.Session, msg transport.Message, log *zap.Logger) {
	var (
		enabled      bool
		confirmation string
	)
	switch ParseOwnerCommand(msg.Text) {
	case OwnerBotOff:
		enabled, confirmation = false, pausedConfirmation
	case OwnerBotOn:
		enabled, confirmation = true, resumedConfirmation
	default:
		return
	}

	if err := r.store.SetBotEnabled(ctx, msg.Chat, enabled); err != nil {
		log.Error("failed to toggle contact bot flag", zap.Error(err), zap.Bool("enabled", enabled))
		return
	}
	log.Info("contact bot flag toggled", zap.Bool("enabled", enabled))
	r.send(ctx, sess, msg.Chat, confirmation, log)
}

func (r *Router) handleAdminCommand(ctx context.Context, sess transport.Session, msg transport.Message, cmd AdminCommand, log *zap.Logger) {
	var confirmation string
	switch cmd {
	case AdminStop:
		r.state.Disable()
		confirmation = stoppedConfirmation
	case AdminStart:
		r.state.Enable()
		confirmation = startedConfirmation
	default:
		return
	}
	log.Info("global bot flag toggled", zap.Bool("enabled", r.state.Enabled()))
	r.send(ctx, sess, msg.Chat, confirmation, log)
}

// forwardToAI asks the reply service for an answer, sends it, and records
// the outcome: waiting with a scheduled follow-up, or complete.
func (r *Router) forwardToAI(ctx context.Context, sess transport.Session, msg transport.Message, log *zap.Logger) {
	reply, err := r.replier.GenerateReply(ctx, msg.Text, msg.Chat)
	if err != nil {
		// Conversation state stays untouched so the next message retries
		// from the same place.
		log.Warn("reply service failed", zap.Error(err))
		r.send(ctx, sess, msg.Chat, apologyText, log)
		return
	}

	r.send(ctx, sess, msg.Chat, reply.Reply, log)

	state := models.StateWaiting
	var next *time.Time
	if reply.Complete {
		state = models.StateComplete
	} else {
		due := r.now().Add(r.followupInterval)
		next = &due
	}

	var name *string
	if msg.PushName != "" {
		name = &msg.PushName
	}

	upd := models.ContactUpdate{
		JID:          msg.Chat,
		Name:         name,
		Location:     reply.Location,
		LastMessage:  msg.Text,
		State:        &state,
		NextFollowup: next,
	}
	if err := r.store.UpsertContact(ctx, upd); err != nil {
		log.Error("failed to upsert contact", zap.Error(err))
		return
	}
	log.Info("conversation updated", zap.String("state", string(state)))
}

func (r *Router) send(ctx context.Context, sess transport.Session, jid, text string, log *zap.Logger) {
	if err := sess.SendMessage(ctx, jid, text); err != nil {
		log.Error("failed to send message", zap.Error(err))
	}
}
