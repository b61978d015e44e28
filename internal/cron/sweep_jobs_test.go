package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSweeps struct {
	count   int
	err     error
	idleFor time.Duration
	calls   int
}

func (f *fakeSweeps) ExpireDue(context.Context) (int, error) {
	f.calls++
	return f.count, f.err
}

func (f *fakeSweeps) MarkOverdue(context.Context) (int, error) {
	f.calls++
	return f.count, f.err
}

func (f *fakeSweeps) AbandonIdle(_ context.Context, idleFor time.Duration) (int, error) {
	f.calls++
	f.idleFor = idleFor
	return f.count, f.err
}

func (f *fakeSweeps) CleanupPending(context.Context) (int, error) {
	f.calls++
	return f.count, f.err
}

func TestSweepJobsRunTheirService(t *testing.T) {
	sweeps := &fakeSweeps{count: 3}
	logg := testLogger()

	quoteJob, err := NewQuoteExpiryJob(sweeps, logg)
	if err != nil {
		t.Fatalf("quote job: %v", err)
	}
	overdueJob, err := NewPaymentOverdueJob(sweeps, logg)
	if err != nil {
		t.Fatalf("overdue job: %v", err)
	}
	cartJob, err := NewCartAbandonmentJob(sweeps, 14, logg)
	if err != nil {
		t.Fatalf("cart job: %v", err)
	}
	fileJob, err := NewFileCleanupJob(sweeps, logg)
	if err != nil {
		t.Fatalf("file job: %v", err)
	}

	names := map[string]Job{
		JobQuoteExpiry:     quoteJob,
		JobPaymentOverdue:  overdueJob,
		JobCartAbandonment: cartJob,
		JobFileCleanup:     fileJob,
	}
	for name, job := range names {
		if job.Name() != name {
			t.Fatalf("expected name %s, got %s", name, job.Name())
		}
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	if sweeps.calls != 4 {
		t.Fatalf("expected 4 sweeps, got %d", sweeps.calls)
	}
	if sweeps.idleFor != 14*24*time.Hour {
		t.Fatalf("expected 14 day idle window, got %v", sweeps.idleFor)
	}
}

func TestCartAbandonmentJobDefaultsIdleWindow(t *testing.T) {
	sweeps := &fakeSweeps{}
	job, err := NewCartAbandonmentJob(sweeps, 0, testLogger())
	if err != nil {
		t.Fatalf("cart job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeps.idleFor != defaultCartIdleDays*24*time.Hour {
		t.Fatalf("expected default idle window, got %v", sweeps.idleFor)
	}
}

func TestSweepJobWrapsErrors(t *testing.T) {
	sweeps := &fakeSweeps{err: errors.New("db down")}
	job, err := NewQuoteExpiryJob(sweeps, testLogger())
	if err != nil {
		t.Fatalf("quote job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewQuoteExpiryJob(nil, testLogger()); err == nil {
		t.Fatal("expected nil service error")
	}
}
