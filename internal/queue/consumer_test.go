package queue

import (
	"context"
	"testing"

	"EventGate/internal/model"
	"EventGate/internal/model/dto"
)

type outcomeRecorder struct {
	counted int
	feed    []dto.ActivityItem
}

func installRecorder(t *testing.T) *outcomeRecorder {
	t.Helper()
	rec := &outcomeRecorder{}
	origIncr, origPush := incrCheckedIn, pushActivity
	incrCheckedIn = func(ctx context.Context, eventID int64) error {
		rec.counted++
		return nil
	}
	pushActivity = func(ctx context.Context, eventID int64, item dto.ActivityItem) error {
		rec.feed = append(rec.feed, item)
		return nil
	}
	t.Cleanup(func() {
		incrCheckedIn, pushActivity = origIncr, origPush
	})
	return rec
}

func outcomeMessage(outcome model.OutcomeStatus) model.CheckInEventMessage {
	return model.CheckInEventMessage{
		MessageID:    "ci_evt_1",
		EventID:      7,
		AttendeeID:   42,
		AttendeeName: "Ada Wong",
		Outcome:      string(outcome),
		Method:       "qr",
		DeviceID:     "gate-a",
		OccurredAt:   "2026-03-14T10:00:00Z",
	}
}

func TestApplyOutcomeAcceptedCountsAndFeeds(t *testing.T) {
	rec := installRecorder(t)

	if err := applyOutcome(context.Background(), outcomeMessage(model.OutcomeAccepted)); err != nil {
		t.Fatalf("applyOutcome: %v", err)
	}
	if rec.counted != 1 {
		t.Fatalf("counted = %d, want 1", rec.counted)
	}
	if len(rec.feed) != 1 || rec.feed[0].Outcome != string(model.OutcomeAccepted) {
		t.Fatalf("feed = %+v, want one accepted item", rec.feed)
	}
}

func TestApplyOutcomeDuplicateFeedsWithoutCounting(t *testing.T) {
	rec := installRecorder(t)

	if err := applyOutcome(context.Background(), outcomeMessage(model.OutcomeAlreadyCheckedIn)); err != nil {
		t.Fatalf("applyOutcome: %v", err)
	}
	if rec.counted != 0 {
		t.Fatalf("counted = %d, want 0: duplicate scans must not increment the counter", rec.counted)
	}
	if len(rec.feed) != 1 {
		t.Fatalf("feed size = %d, want 1: duplicate scans must show up in the activity feed", len(rec.feed))
	}
	if rec.feed[0].Outcome != string(model.OutcomeAlreadyCheckedIn) {
		t.Fatalf("feed outcome = %q, want already_checked_in", rec.feed[0].Outcome)
	}
}

func TestApplyOutcomeIgnoresOtherOutcomes(t *testing.T) {
	rec := installRecorder(t)

	if err := applyOutcome(context.Background(), outcomeMessage(model.OutcomeNotFound)); err != nil {
		t.Fatalf("applyOutcome: %v", err)
	}
	if rec.counted != 0 || len(rec.feed) != 0 {
		t.Fatalf("counted = %d, feed = %d, want nothing applied", rec.counted, len(rec.feed))
	}
}
