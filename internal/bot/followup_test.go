package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tumelo/waflow/internal/ai"
	"github.com/tumelo/waflow/internal/models"
	"github.com/tumelo/waflow/internal/storage"
)

func seedWaiting(t *testing.T, store *storage.MemoryStorage, jid string, due time.Time) {
	t.Helper()
	state := models.StateWaiting
	require.NoError(t, store.UpsertContact(context.Background(), models.ContactUpdate{
		JID:          jid,
		LastMessage:  "hello",
		State:        &state,
		NextFollowup: &due,
	}))
}

func TestSweepSendsAndMarksFollowedUp(t *testing.T) {
	store := storage.NewMemoryStorage()
	sess := newFakeSession()
	sched := NewScheduler(store, sess, "", zap.NewNop())

	seedWaiting(t, store, "A1@s.whatsapp.net", time.Now().Add(-time.Hour))

	sched.Sweep(context.Background())

	sent := sess.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "A1@s.whatsapp.net", sent[0].JID)
	assert.Equal(t, DefaultFollowupMessage, sent[0].Text)

	contact, err := store.GetContact(context.Background(), "A1@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, models.StateFollowedUp, contact.State)
	assert.Nil(t, contact.NextFollowup)
}

func TestSweepSkipsContactsNotDue(t *testing.T) {
	store := storage.NewMemoryStorage()
	sess := newFakeSession()
	sched := NewScheduler(store, sess, "", zap.NewNop())

	// Follow-up in the future.
	seedWaiting(t, store, "future@s.whatsapp.net", time.Now().Add(time.Hour))

	// Due, but the contact paused the bot.
	seedWaiting(t, store, "paused@s.whatsapp.net", time.Now().Add(-time.Hour))
	require.NoError(t, store.SetBotEnabled(context.Background(), "paused@s.whatsapp.net", false))

	// Due timestamp left behind on a completed conversation.
	seedWaiting(t, store, "done@s.whatsapp.net", time.Now().Add(-time.Hour))
	require.NoError(t, store.SetConversationState(context.Background(), "done@s.whatsapp.net", models.StateComplete))

	sched.Sweep(context.Background())

	assert.Empty(t, sess.sentMessages())
}

func TestSweepIsolatesPerContactFailures(t *testing.T) {
	store := storage.NewMemoryStorage()
	sess := newFakeSession()
	sess.failFor["broken@s.whatsapp.net"] = errors.New("unreachable")
	sched := NewScheduler(store, sess, "ping", zap.NewNop())

	seedWaiting(t, store, "broken@s.whatsapp.net", time.Now().Add(-time.Hour))
	seedWaiting(t, store, "fine@s.whatsapp.net", time.Now().Add(-time.Hour))

	sched.Sweep(context.Background())

	sent := sess.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "fine@s.whatsapp.net", sent[0].JID)

	// The failed contact is left as-is and picked up by the next sweep.
	broken, err := store.GetContact(context.Background(), "broken@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, models.StateWaiting, broken.State)
	assert.NotNil(t, broken.NextFollowup)

	fine, err := store.GetContact(context.Background(), "fine@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, models.StateFollowedUp, fine.State)
	assert.Nil(t, fine.NextFollowup)
}

func TestFollowedUpContactReentersNormalFlow(t *testing.T) {
	replier := &fakeReplier{}
	router, store, _ := newTestRouter(t, replier)
	sess := newFakeSession()
	sched := NewScheduler(store, sess, "", zap.NewNop())

	seedWaiting(t, store, "A1@s.whatsapp.net", time.Now().Add(-time.Hour))
	sched.Sweep(context.Background())

	contact, err := store.GetContact(context.Background(), "A1@s.whatsapp.net")
	require.NoError(t, err)
	require.Equal(t, models.StateFollowedUp, contact.State)

	// The contact comes back: the reply cycle runs again and reschedules.
	replier.reply = &ai.Reply{Reply: "Welcome back"}
	router.Handle(context.Background(), sess, inbound("A1@s.whatsapp.net", "sorry, got busy"))

	contact, err = store.GetContact(context.Background(), "A1@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, models.StateWaiting, contact.State)
	assert.NotNil(t, contact.NextFollowup)
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	sched := NewScheduler(storage.NewMemoryStorage(), newFakeSession(), "", zap.NewNop())
	assert.NotPanics(t, sched.Stop)
}
