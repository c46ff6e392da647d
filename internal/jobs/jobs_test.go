package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equiptrack-backend/internal/config"
	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/notification"
	"equiptrack-backend/internal/repository/memory"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []notification.Email
}

func (s *recordingSender) Send(_ context.Context, msg notification.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func newTestRunner(t *testing.T) (*JobRunner, *memory.Store, *recordingSender, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{}
	cfg.Redis.Stream = "transitions"
	cfg.Redis.Group = "notifier"
	cfg.Redis.Consumer = "test"
	cfg.Notification.RelayBatchSize = 2
	cfg.Notification.MaxAttempts = 3
	cfg.Notification.RetentionHours = 1
	cfg.Notification.Audiences = map[string][]string{notification.AudienceTeamLeads: {"leads@example.com"}}

	store := memory.NewStore()
	sender := &recordingSender{}
	relay := notification.NewRelay(store.Outbox(), notification.NewStreamPublisher(client, cfg.Redis.Stream), cfg.Notification.RelayBatchSize, cfg.Notification.MaxAttempts)
	dispatcher := notification.NewDispatcher(sender, store.Requests(), cfg.Notification.Audiences, nil)
	consumer := notification.NewStreamConsumer(client, cfg.Redis.Stream, cfg.Redis.Group, cfg.Redis.Consumer)
	return NewJobRunner(relay, dispatcher, consumer, cfg), store, sender, client
}

func TestJobRunner_RunAll(t *testing.T) {
	jr, store, sender, client := newTestRunner(t)
	ctx := context.Background()

	for i, id := range []string{"e1", "e2", "e3"} {
		ev := domain.TransitionEvent{
			ID:          id,
			TxID:        id,
			SubjectKind: domain.SubjectRequest,
			SubjectID:   int64(i + 1),
			Action:      domain.ActionCreated,
			NewStatus:   string(domain.RequestStatusPending),
			ActorID:     100,
			Timestamp:   time.Now().UTC(),
		}
		require.NoError(t, store.Outbox().Enqueue(ctx, &ev))
	}

	jr.RunAll()

	length, err := client.XLen(ctx, "transitions").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), length)

	pending, err := store.Outbox().ListPending(ctx, 0, 3)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Len(t, sender.sent, 3)
	for _, msg := range sender.sent {
		assert.Equal(t, []string{"leads@example.com"}, msg.To)
	}
}

func TestJobRunner_RunWithRecovery(t *testing.T) {
	jr, _, _, _ := newTestRunner(t)
	assert.NotPanics(t, func() {
		jr.runWithRecovery("Exploding", func() { panic("boom") })
	})
}
