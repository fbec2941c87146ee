package batch_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"EventGate/internal/model"
	"EventGate/internal/station/batch"
	errs "EventGate/pkg/errors"
)

// fakeClock 手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func acceptAll(ctx context.Context, attempt model.CheckInAttempt) (model.Outcome, bool, error) {
	return model.Outcome{Status: model.OutcomeAccepted}, false, nil
}

func TestScansPerMinuteCountsOnlyAccepted(t *testing.T) {
	clock := newFakeClock()

	responses := map[string]func() (model.Outcome, bool, error){}
	submit := func(ctx context.Context, attempt model.CheckInAttempt) (model.Outcome, bool, error) {
		if fn, ok := responses[attempt.AttendeeRef]; ok {
			return fn()
		}
		return model.Outcome{Status: model.OutcomeAccepted}, false, nil
	}

	session := batch.NewSession(1, "gate-a", submit, clock.Now)
	session.Start()

	responses["REG-DUP1"] = func() (model.Outcome, bool, error) {
		return model.Outcome{Status: model.OutcomeAlreadyCheckedIn}, false, nil
	}
	responses["REG-BAD1"] = func() (model.Outcome, bool, error) {
		return model.Outcome{}, false, errs.AttendeeNotFound
	}

	ctx := context.Background()

	// 两分钟内 10 个 accepted，外加一个重复和一个拒绝
	for i := 0; i < 10; i++ {
		clock.Advance(12 * time.Second)
		if _, ok := session.OnDetect(ctx, fmt.Sprintf("REG-OK%02d", i)); !ok {
			t.Fatalf("detection %d ignored unexpectedly", i)
		}
	}
	session.OnDetect(ctx, "REG-DUP1")
	session.OnDetect(ctx, "REG-BAD1")

	stats := session.Stats()
	if stats.Accepted != 10 {
		t.Fatalf("expected 10 accepted, got %d", stats.Accepted)
	}
	if stats.Duplicate != 1 || stats.Rejected != 1 {
		t.Fatalf("expected 1 duplicate and 1 rejected, got %d/%d", stats.Duplicate, stats.Rejected)
	}

	// 10 accepted / 2 分钟 = 5/min；重复和拒绝不进分子
	if stats.ScansPerMinute != 5 {
		t.Fatalf("expected 5 scans per minute, got %f", stats.ScansPerMinute)
	}
}

func TestPausedSessionIgnoresDetections(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	submit := func(ctx context.Context, attempt model.CheckInAttempt) (model.Outcome, bool, error) {
		calls++
		return model.Outcome{Status: model.OutcomeAccepted}, false, nil
	}

	session := batch.NewSession(1, "gate-a", submit, clock.Now)
	session.Start()
	session.Pause()

	if _, ok := session.OnDetect(context.Background(), "REG-5001"); ok {
		t.Fatal("paused session must ignore detections")
	}
	if calls != 0 {
		t.Fatalf("paused session must not submit, submitted %d times", calls)
	}

	session.Resume()
	if _, ok := session.OnDetect(context.Background(), "REG-5001"); !ok {
		t.Fatal("resumed session must process detections")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one submit after resume, got %d", calls)
	}
}

func TestStoppedSessionIsTerminal(t *testing.T) {
	clock := newFakeClock()
	session := batch.NewSession(1, "gate-a", acceptAll, clock.Now)
	session.Start()
	session.Stop()

	if _, ok := session.OnDetect(context.Background(), "REG-6001"); ok {
		t.Fatal("stopped session must ignore detections")
	}

	session.Resume()
	if session.Stats().State != batch.StateStopped {
		t.Fatal("stopped session must not resume")
	}
}

func TestQueuedDetectionsDoNotEnterCounters(t *testing.T) {
	clock := newFakeClock()
	submit := func(ctx context.Context, attempt model.CheckInAttempt) (model.Outcome, bool, error) {
		return model.Outcome{}, true, nil // 离线入队，还没有判定
	}

	session := batch.NewSession(1, "gate-a", submit, clock.Now)
	session.Start()

	clock.Advance(time.Minute)
	if _, ok := session.OnDetect(context.Background(), "REG-7001"); !ok {
		t.Fatal("queued detection still counts as processed")
	}

	stats := session.Stats()
	if stats.Accepted != 0 || stats.Duplicate != 0 || stats.Rejected != 0 {
		t.Fatalf("queued detection must not enter counters, got %+v", stats)
	}
}

func TestOutOfOrderCompletionKeepsCountsConsistent(t *testing.T) {
	clock := newFakeClock()

	release := make(chan struct{})
	submit := func(ctx context.Context, attempt model.CheckInAttempt) (model.Outcome, bool, error) {
		<-release
		return model.Outcome{Status: model.OutcomeAccepted}, false, nil
	}

	session := batch.NewSession(1, "gate-a", submit, clock.Now)
	session.Start()
	clock.Advance(time.Minute)

	const detections = 4
	var wg sync.WaitGroup
	for i := 0; i < detections; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session.OnDetect(context.Background(), fmt.Sprintf("REG-8%03d", i))
		}(i)
	}
	close(release) // 所有提交同时完成，结果乱序落账
	wg.Wait()

	stats := session.Stats()
	if stats.Accepted != detections {
		t.Fatalf("expected %d accepted regardless of completion order, got %d", detections, stats.Accepted)
	}
}
