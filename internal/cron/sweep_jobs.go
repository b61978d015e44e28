package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/northcraft/cabinetry-backend/pkg/logger"
)

const (
	JobQuoteExpiry     = "quote-expiry"
	JobPaymentOverdue  = "payment-overdue"
	JobCartAbandonment = "cart-abandonment"
	JobFileCleanup     = "file-cleanup"
	JobOutboxRetention = "outbox-retention"

	defaultCartIdleDays = 30
)

type quoteExpirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

type overdueMarker interface {
	MarkOverdue(ctx context.Context) (int, error)
}

type cartAbandoner interface {
	AbandonIdle(ctx context.Context, idleFor time.Duration) (int, error)
}

type pendingFileCleaner interface {
	CleanupPending(ctx context.Context) (int, error)
}

// sweepJob runs one bulk state transition and logs how many rows it touched.
type sweepJob struct {
	name  string
	noun  string
	logg  *logger.Logger
	sweep func(ctx context.Context) (int, error)
}

func (j *sweepJob) Name() string { return j.name }

func (j *sweepJob) Run(ctx context.Context) error {
	count, err := j.sweep(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithField(ctx, j.noun, count), j.name+" sweep complete")
	return nil
}

// NewQuoteExpiryJob expires sent and viewed quotes past their validity date.
func NewQuoteExpiryJob(quotes quoteExpirer, logg *logger.Logger) (Job, error) {
	if quotes == nil {
		return nil, fmt.Errorf("quotes service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &sweepJob{name: JobQuoteExpiry, noun: "quotes_expired", logg: logg, sweep: quotes.ExpireDue}, nil
}

// NewPaymentOverdueJob flags unpaid milestones past their due date.
func NewPaymentOverdueJob(payments overdueMarker, logg *logger.Logger) (Job, error) {
	if payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &sweepJob{name: JobPaymentOverdue, noun: "milestones_overdue", logg: logg, sweep: payments.MarkOverdue}, nil
}

// NewCartAbandonmentJob closes active carts idle for more than idleDays.
func NewCartAbandonmentJob(carts cartAbandoner, idleDays int, logg *logger.Logger) (Job, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if idleDays <= 0 {
		idleDays = defaultCartIdleDays
	}
	idleFor := time.Duration(idleDays) * 24 * time.Hour
	return &sweepJob{
		name: JobCartAbandonment,
		noun: "carts_abandoned",
		logg: logg,
		sweep: func(ctx context.Context) (int, error) {
			return carts.AbandonIdle(ctx, idleFor)
		},
	}, nil
}

// NewFileCleanupJob deletes uploads that were never attached.
func NewFileCleanupJob(files pendingFileCleaner, logg *logger.Logger) (Job, error) {
	if files == nil {
		return nil, fmt.Errorf("files service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &sweepJob{name: JobFileCleanup, noun: "files_deleted", logg: logg, sweep: files.CleanupPending}, nil
}
