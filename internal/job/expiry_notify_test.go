package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyhub-dev/keyhub/internal/notifier"
	"github.com/keyhub-dev/keyhub/internal/repository"
)

type stubKeyRepo struct {
	keys []*repository.Key
	err  error

	gotFrom, gotTo int64
}

func (r *stubKeyRepo) FindByEmail(context.Context, string) (*repository.Key, error) {
	return nil, repository.ErrNotFound
}
func (r *stubKeyRepo) Insert(context.Context, *repository.Key) error { return nil }
func (r *stubKeyRepo) Reassign(context.Context, int64, string, string, string) error {
	return nil
}
func (r *stubKeyRepo) CountByEmail(context.Context, string) (int, error) { return 0, nil }

func (r *stubKeyRepo) ListExpiringBetween(_ context.Context, fromMs, toMs int64) ([]*repository.Key, error) {
	r.gotFrom, r.gotTo = fromMs, toMs
	return r.keys, r.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notifier.Message
	failFor  int64
}

func (n *recordingNotifier) Send(_ context.Context, msg notifier.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor != 0 && msg.ChatID == n.failFor {
		return errors.New("delivery failed")
	}
	n.messages = append(n.messages, msg)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExpiryNotifyMessagesEachOwner(t *testing.T) {
	repo := &stubKeyRepo{keys: []*repository.Key{
		{TgID: 1, Email: "alpha", ExpiryTime: time.Now().Add(24 * time.Hour).UnixMilli()},
		{TgID: 2, Email: "beta", ExpiryTime: time.Now().Add(48 * time.Hour).UnixMilli()},
	}}
	sink := &recordingNotifier{}

	job := NewExpiryNotifyJob(repo, sink, 72*time.Hour, testLogger())
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, sink.messages, 2)
	assert.Equal(t, int64(1), sink.messages[0].ChatID)
	assert.Contains(t, sink.messages[0].Text, "alpha")
}

func TestExpiryNotifyWindowBounds(t *testing.T) {
	repo := &stubKeyRepo{}
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	job := NewExpiryNotifyJob(repo, &recordingNotifier{}, 72*time.Hour, testLogger())
	job.now = func() time.Time { return now }
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, now.UnixMilli(), repo.gotFrom)
	assert.Equal(t, now.Add(72*time.Hour).UnixMilli(), repo.gotTo)
}

func TestExpiryNotifyContinuesPastFailures(t *testing.T) {
	repo := &stubKeyRepo{keys: []*repository.Key{
		{TgID: 1, Email: "alpha", ExpiryTime: 100},
		{TgID: 2, Email: "beta", ExpiryTime: 200},
		{TgID: 0, Email: "orphan", ExpiryTime: 300},
	}}
	sink := &recordingNotifier{failFor: 1}

	job := NewExpiryNotifyJob(repo, sink, time.Hour, testLogger())
	require.NoError(t, job.Run(context.Background()), "delivery failures must not fail the job")

	require.Len(t, sink.messages, 1)
	assert.Equal(t, int64(2), sink.messages[0].ChatID)
}

func TestExpiryNotifyPropagatesRepoError(t *testing.T) {
	repo := &stubKeyRepo{err: errors.New("db down")}
	job := NewExpiryNotifyJob(repo, &recordingNotifier{}, time.Hour, testLogger())
	assert.Error(t, job.Run(context.Background()))
}
