package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
)

// ActivityUsecase appends to the user-facing activity log, mirrors each
// entry to the process log, and notifies observers
type ActivityUsecase struct {
	logs     repo.LogRepo
	notifier repo.Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewActivityUsecase creates a new activity usecase
func NewActivityUsecase(logs repo.LogRepo, notifier repo.Notifier, logger zerolog.Logger) *ActivityUsecase {
	if notifier == nil {
		notifier = repo.NopNotifier{}
	}
	return &ActivityUsecase{
		logs:     logs,
		notifier: notifier,
		logger:   logger.With().Str("component", "activity").Logger(),
		now:      time.Now,
	}
}

// Record appends an entry. Storage failures are logged, never returned.
func (uc *ActivityUsecase) Record(ctx context.Context, typ domain.LogType, message, details string) *domain.ActivityLog {
	entry := &domain.ActivityLog{
		ID:        uuid.NewString(),
		Type:      typ,
		Message:   message,
		Details:   details,
		Timestamp: uc.now(),
	}

	ev := uc.logger.Info()
	switch typ {
	case domain.LogWarn:
		ev = uc.logger.Warn()
	case domain.LogError:
		ev = uc.logger.Error()
	case domain.LogMessage:
		ev = uc.logger.Debug()
	}
	ev.Str("details", details).Msg(message)

	if err := uc.logs.Add(ctx, entry); err != nil {
		uc.logger.Error().Err(err).Msg("append activity log")
		return entry
	}
	uc.notifier.Notify(repo.NotifyLog, entry)
	return entry
}

// Info records an info entry
func (uc *ActivityUsecase) Info(ctx context.Context, message, details string) {
	uc.Record(ctx, domain.LogInfo, message, details)
}

// Warn records a warn entry
func (uc *ActivityUsecase) Warn(ctx context.Context, message, details string) {
	uc.Record(ctx, domain.LogWarn, message, details)
}

// Error records an error entry
func (uc *ActivityUsecase) Error(ctx context.Context, message, details string) {
	uc.Record(ctx, domain.LogError, message, details)
}

// Message records an outbound message entry
func (uc *ActivityUsecase) Message(ctx context.Context, message, details string) {
	uc.Record(ctx, domain.LogMessage, message, details)
}
