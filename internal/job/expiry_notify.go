package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keyhub-dev/keyhub/internal/notifier"
	"github.com/keyhub-dev/keyhub/internal/repository"
)

// ExpiryNotifyJob warns key owners whose keys expire within the window.
type ExpiryNotifyJob struct {
	keys   repository.KeyRepository
	notify notifier.Service
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewExpiryNotifyJob builds the expiry warning job.
func NewExpiryNotifyJob(keys repository.KeyRepository, notify notifier.Service, window time.Duration, logger *slog.Logger) *ExpiryNotifyJob {
	if window <= 0 {
		window = 72 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpiryNotifyJob{
		keys:   keys,
		notify: notify,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// Name implements Runnable.
func (j *ExpiryNotifyJob) Name() string { return "expiry_notify" }

// Run finds keys expiring inside the window and messages each owner.
// Delivery failures are logged and do not abort the run.
func (j *ExpiryNotifyJob) Run(ctx context.Context) error {
	now := j.now()
	from := now.UnixMilli()
	to := now.Add(j.window).UnixMilli()

	keys, err := j.keys.ListExpiringBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list expiring keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	notified := 0
	for _, key := range keys {
		if key.TgID == 0 {
			continue
		}
		expires := time.UnixMilli(key.ExpiryTime)
		msg := notifier.Message{
			ChatID: key.TgID,
			Text: fmt.Sprintf("Your key %s expires on %s. Renew it to keep your access.",
				key.Email, expires.Format("2006-01-02 15:04")),
		}
		if err := j.notify.Send(ctx, msg); err != nil {
			j.logger.Warn("expiry notification failed",
				slog.Int64("tg_id", key.TgID),
				slog.String("email", key.Email),
				slog.Any("error", err))
			continue
		}
		notified++
	}

	j.logger.Info("expiry notifications sent",
		slog.Int("expiring", len(keys)),
		slog.Int("notified", notified))
	return nil
}
