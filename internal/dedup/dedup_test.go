package dedup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"EventGate/internal/dedup"
	"EventGate/internal/model"
	errs "EventGate/pkg/errors"
)

func validAttempt(id string) model.CheckInAttempt {
	return model.CheckInAttempt{
		AttemptID:       id,
		EventID:         1,
		AttendeeRef:     "REG-2001",
		Method:          model.CheckInMethodQR,
		DeviceID:        "gate-a",
		ClientTimestamp: time.Now(),
	}
}

func TestSubmitProcessesOnceAndReplays(t *testing.T) {
	calls := 0
	d := dedup.NewDeduplicator(
		dedup.NewMemoryAttemptLog(0),
		func(ctx context.Context, attempt model.CheckInAttempt) (model.Outcome, error) {
			calls++
			return model.Outcome{Status: model.OutcomeAccepted, AttendeeID: 42}, nil
		},
	)

	ctx := context.Background()
	attempt := validAttempt("attempt-1")

	first, replayed, err := d.Submit(ctx, attempt)
	if err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	if replayed {
		t.Fatal("first submission must not be a replay")
	}
	if first.Status != model.OutcomeAccepted {
		t.Fatalf("expected accepted, got %s", first.Status)
	}

	second, replayed, err := d.Submit(ctx, attempt)
	if err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}
	if !replayed {
		t.Fatal("second submission must be a replay")
	}
	if second.Status != model.OutcomeAccepted || second.AttendeeID != 42 {
		t.Fatalf("replay must return the stored outcome, got %#v", second)
	}

	if calls != 1 {
		t.Fatalf("process must run exactly once, ran %d times", calls)
	}
}

func TestSubmitReplaysNonAcceptedOutcomes(t *testing.T) {
	d := dedup.NewDeduplicator(
		dedup.NewMemoryAttemptLog(0),
		func(ctx context.Context, attempt model.CheckInAttempt) (model.Outcome, error) {
			return model.Outcome{Status: model.OutcomeAlreadyCheckedIn, AttendeeID: 7}, nil
		},
	)

	ctx := context.Background()
	attempt := validAttempt("attempt-dup")

	if _, _, err := d.Submit(ctx, attempt); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}

	outcome, replayed, err := d.Submit(ctx, attempt)
	if err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}
	if !replayed || outcome.Status != model.OutcomeAlreadyCheckedIn {
		t.Fatalf("expected replayed already_checked_in, got replayed=%v status=%s", replayed, outcome.Status)
	}
}

func TestSubmitClearsMarkerOnProcessError(t *testing.T) {
	fail := true
	d := dedup.NewDeduplicator(
		dedup.NewMemoryAttemptLog(0),
		func(ctx context.Context, attempt model.CheckInAttempt) (model.Outcome, error) {
			if fail {
				return model.Outcome{}, errors.New("db unavailable")
			}
			return model.Outcome{Status: model.OutcomeAccepted}, nil
		},
	)

	ctx := context.Background()
	attempt := validAttempt("attempt-retry")

	if _, _, err := d.Submit(ctx, attempt); err == nil {
		t.Fatal("expected first Submit to fail")
	}

	// 失败不能留下占位，重试必须能走通
	fail = false
	outcome, replayed, err := d.Submit(ctx, attempt)
	if err != nil {
		t.Fatalf("retry Submit failed: %v", err)
	}
	if replayed {
		t.Fatal("retry after failure must not be a replay")
	}
	if outcome.Status != model.OutcomeAccepted {
		t.Fatalf("expected accepted on retry, got %s", outcome.Status)
	}
}

func TestValidateAttemptRejectsMalformedShapes(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.CheckInAttempt)
	}{
		{"empty attempt id", func(a *model.CheckInAttempt) { a.AttemptID = "" }},
		{"zero event id", func(a *model.CheckInAttempt) { a.EventID = 0 }},
		{"empty attendee ref", func(a *model.CheckInAttempt) { a.AttendeeRef = "" }},
		{"ref with spaces", func(a *model.CheckInAttempt) { a.AttendeeRef = "REG 1" }},
		{"unknown method", func(a *model.CheckInAttempt) { a.Method = "telepathy" }},
		{"empty device id", func(a *model.CheckInAttempt) { a.DeviceID = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			attempt := validAttempt("attempt-shape")
			tc.mutate(&attempt)

			if err := dedup.ValidateAttempt(attempt); err != errs.InvalidAttempt {
				t.Fatalf("expected InvalidAttempt, got %v", err)
			}
		})
	}
}

func TestSubmitRejectsInvalidWithoutProcessing(t *testing.T) {
	calls := 0
	d := dedup.NewDeduplicator(
		dedup.NewMemoryAttemptLog(0),
		func(ctx context.Context, attempt model.CheckInAttempt) (model.Outcome, error) {
			calls++
			return model.Outcome{Status: model.OutcomeAccepted}, nil
		},
	)

	attempt := validAttempt("attempt-bad")
	attempt.Method = "carrier-pigeon"

	if _, _, err := d.Submit(context.Background(), attempt); err != errs.InvalidAttempt {
		t.Fatalf("expected InvalidAttempt, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("invalid attempt must not reach processing, ran %d times", calls)
	}
}
