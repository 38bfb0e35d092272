package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tumelo/waflow/internal/models"
	"github.com/tumelo/waflow/internal/storage"
	"github.com/tumelo/waflow/internal/transport"
)

// DefaultFollowupMessage is the fixed re-engagement text.
const DefaultFollowupMessage = "Hey 👋 just checking in! Would you still like to continue our chat?"

// Scheduler periodically re-engages contacts who went quiet. One instance
// runs per connected session; Stop is independent of the session itself.
type Scheduler struct {
	store   storage.Storage
	sess    transport.Session
	message string
	logger  *zap.Logger

	cron *cron.Cron
	now  func() time.Time
}

func NewScheduler(store storage.Storage, sess transport.Session, message string, logger *zap.Logger) *Scheduler {
	if message == "" {
		message = DefaultFollowupMessage
	}
	return &Scheduler{
		store:   store,
		sess:    sess,
		message: message,
		logger:  logger,
		now:     time.Now,
	}
}

// Start begins the periodic sweep. It must be called at most once per
// Scheduler.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultFollowupInterval
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.Sweep(context.Background())
	}); err != nil {
		return fmt.Errorf("scheduling follow-up sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop cancels the sweep timer. Safe to call when Start never ran.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Sweep sends the re-engagement message to every due contact and moves
// them to followed_up. A failure for one contact never aborts the rest;
// a failed send leaves that contact's record unchanged for the next sweep
// operator to inspect.
func (s *Scheduler) Sweep(ctx context.Context) {
	due, err := s.store.DueFollowups(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to query due follow-ups", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Info("running follow-up sweep", zap.Int("due", len(due)))

	for _, contact := range due {
		log := s.logger.With(zap.String("chat", contact.JID))
		if err := s.sess.SendMessage(ctx, contact.JID, s.message); err != nil {
			log.Warn("failed to send follow-up", zap.Error(err))
			continue
		}
		if err := s.store.SetConversationState(ctx, contact.JID, models.StateFollowedUp); err != nil {
			log.Error("failed to mark contact followed up", zap.Error(err))
			continue
		}
		log.Info("follow-up sent")
	}
}
