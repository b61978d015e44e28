package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/metrics"
)

type fakeLock struct {
	held     map[string]bool
	err      error
	released []string
}

func newFakeLock() *fakeLock { return &fakeLock{held: map[string]bool{}} }

func (f *fakeLock) Acquire(_ context.Context, job string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	if f.held[job] {
		return "", false, nil
	}
	f.held[job] = true
	return "token-" + job, true, nil
}

func (f *fakeLock) Release(_ context.Context, job, token string) error {
	if token != "token-"+job {
		return errors.New("foreign token")
	}
	delete(f.held, job)
	f.released = append(f.released, job)
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func newTestService(t *testing.T, lock Lock, cronMetrics *metrics.CronJobMetrics, jobs ...Job) *Service {
	t.Helper()
	registry := NewRegistry()
	for _, job := range jobs {
		if err := registry.Register("0 * * * *", job); err != nil {
			t.Fatalf("register %s: %v", job.Name(), err)
		}
	}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestRunJobRecordsSuccessAndFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	cronMetrics := metrics.NewCronJobMetrics(reg)
	lock := newFakeLock()
	ok := &testJob{name: "success"}
	bad := &testJob{name: "fail", err: errors.New("boom")}
	service := newTestService(t, lock, cronMetrics, ok, bad)

	if err := service.RunJob(context.Background(), ok); err != nil {
		t.Fatalf("success job: %v", err)
	}
	if err := service.RunJob(context.Background(), bad); err == nil {
		t.Fatal("expected failure to propagate")
	}
	if ok.runs != 1 || bad.runs != 1 {
		t.Fatalf("expected each job to run once, got %d and %d", ok.runs, bad.runs)
	}
	if len(lock.held) != 0 {
		t.Fatalf("expected all locks released, still held: %v", lock.held)
	}
	if got := counterValue(t, reg, "cabinetry_cron_job_success_total", "success"); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
	if got := counterValue(t, reg, "cabinetry_cron_job_failure_total", "fail"); got != 1 {
		t.Fatalf("expected one failure, got %v", got)
	}
}

func TestRunJobSkipsWhenLockHeld(t *testing.T) {
	lock := newFakeLock()
	lock.held["quote-expiry"] = true
	job := &testJob{name: "quote-expiry"}
	service := newTestService(t, lock, nil, job)

	if err := service.RunJob(context.Background(), job); err != nil {
		t.Fatalf("skipped run should not error: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job to be skipped, ran %d", job.runs)
	}
	if len(lock.released) != 0 {
		t.Fatalf("must not release a lock it does not own")
	}
}

func TestRunJobFailsWhenLockUnavailable(t *testing.T) {
	lock := newFakeLock()
	lock.err = errors.New("redis down")
	job := &testJob{name: "file-cleanup"}
	service := newTestService(t, lock, nil, job)

	if err := service.RunJob(context.Background(), job); err == nil {
		t.Fatal("expected lock error")
	}
	if job.runs != 0 {
		t.Fatalf("job must not run without the lock")
	}
}

func TestRunNamed(t *testing.T) {
	job := &testJob{name: "payment-overdue"}
	service := newTestService(t, newFakeLock(), nil, job)

	if err := service.RunNamed(context.Background(), "payment-overdue"); err != nil {
		t.Fatalf("run named: %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected one run, got %d", job.runs)
	}
	if err := service.RunNamed(context.Background(), "nope"); err == nil {
		t.Fatal("expected unknown job error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	service := newTestService(t, newFakeLock(), nil, &testJob{name: "idle"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, job string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{job=%s} not found", name, job)
	return 0
}
