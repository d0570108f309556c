package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type deferredTickerStub struct {
	ticks atomic.Int64
	err   error
}

func (s *deferredTickerStub) Tick(context.Context) error {
	s.ticks.Add(1)
	return s.err
}

func TestDeferredScheduler_TicksUntilStopped(t *testing.T) {
	ticker := &deferredTickerStub{}
	job := NewDeferredSchedulerJob(ticker, time.Millisecond)

	done := make(chan struct{})
	go func() {
		job.Start(context.Background())
		close(done)
	}()

	deadline := time.After(500 * time.Millisecond)
	for ticker.ticks.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never ticked")
		case <-time.After(time.Millisecond):
		}
	}
	job.Stop()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("job did not stop on Stop()")
	}
}

func TestDeferredScheduler_TickErrorsDoNotStopTheLoop(t *testing.T) {
	ticker := &deferredTickerStub{err: errors.New("tick boom")}
	job := NewDeferredSchedulerJob(ticker, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	deadline := time.After(500 * time.Millisecond)
	for ticker.ticks.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("scheduler stopped after a tick error")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("job did not stop on context cancel")
	}
}
