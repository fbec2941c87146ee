package registry_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"EventGate/internal/events"
	"EventGate/internal/model"
	"EventGate/internal/registry"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "registry.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	// 单连接串行化并发访问，贴近单主库的行为
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.Event{}, &model.Attendee{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}

func seedAttendee(t *testing.T, db *gorm.DB, status model.AttendeeStatus) *model.Attendee {
	t.Helper()

	event := model.Event{Name: "GopherCon"}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}

	attendee := model.Attendee{
		EventID:          event.ID,
		RegistrationCode: "REG-1001",
		Name:             "Ada Wong",
		Email:            "ada@example.com",
		Status:           status,
	}
	if err := db.Create(&attendee).Error; err != nil {
		t.Fatalf("create attendee: %v", err)
	}

	return &attendee
}

func defaultPolicy() registry.Policy {
	return registry.Policy{AllowPending: true, AllowWaitlisted: false}
}

func TestTryCheckInAcceptsRegistered(t *testing.T) {
	db := openTestDB(t)
	sink := events.NewMemorySink()
	reg := registry.NewRegistry(db, sink, defaultPolicy())

	attendee := seedAttendee(t, db, model.AttendeeStatusRegistered)

	at := time.Now().Truncate(time.Second)
	outcome, err := reg.TryCheckIn(context.Background(), attendee.EventID, "REG-1001", model.CheckInMethodQR, "gate-a", at)
	if err != nil {
		t.Fatalf("TryCheckIn failed: %v", err)
	}

	if outcome.Status != model.OutcomeAccepted {
		t.Fatalf("expected accepted, got %s", outcome.Status)
	}
	if outcome.CheckIn == nil || outcome.CheckIn.Method != model.CheckInMethodQR {
		t.Fatalf("expected check-in record with qr method, got %#v", outcome.CheckIn)
	}

	var stored model.Attendee
	if err := db.First(&stored, attendee.ID).Error; err != nil {
		t.Fatalf("reload attendee: %v", err)
	}
	if stored.Status != model.AttendeeStatusCheckedIn {
		t.Fatalf("expected checked_in status, got %s", stored.Status)
	}
	if stored.CheckInDevice != "gate-a" {
		t.Fatalf("expected device gate-a, got %q", stored.CheckInDevice)
	}

	msgs := sink.Events()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(msgs))
	}
	if msgs[0].Outcome != string(model.OutcomeAccepted) {
		t.Fatalf("expected accepted event, got %s", msgs[0].Outcome)
	}
}

func TestTryCheckInSecondScanIsAlreadyCheckedIn(t *testing.T) {
	db := openTestDB(t)
	sink := events.NewMemorySink()
	reg := registry.NewRegistry(db, sink, defaultPolicy())

	attendee := seedAttendee(t, db, model.AttendeeStatusRegistered)
	ctx := context.Background()

	first := time.Now().Truncate(time.Second)
	if _, err := reg.TryCheckIn(ctx, attendee.EventID, "REG-1001", model.CheckInMethodQR, "gate-a", first); err != nil {
		t.Fatalf("first TryCheckIn failed: %v", err)
	}

	outcome, err := reg.TryCheckIn(ctx, attendee.EventID, "REG-1001", model.CheckInMethodQR, "gate-b", first.Add(time.Minute))
	if err != nil {
		t.Fatalf("second TryCheckIn failed: %v", err)
	}

	if outcome.Status != model.OutcomeAlreadyCheckedIn {
		t.Fatalf("expected already_checked_in, got %s", outcome.Status)
	}
	// 携带首次签到的明细，而不是本次扫描的
	if outcome.CheckIn == nil {
		t.Fatal("expected original check-in record")
	}
	if outcome.CheckIn.DeviceID != "gate-a" {
		t.Fatalf("expected original device gate-a, got %q", outcome.CheckIn.DeviceID)
	}
}

func TestTryCheckInConcurrentAtMostOnce(t *testing.T) {
	db := openTestDB(t)
	reg := registry.NewRegistry(db, events.NewMemorySink(), defaultPolicy())

	attendee := seedAttendee(t, db, model.AttendeeStatusRegistered)
	ctx := context.Background()

	const workers = 8
	outcomes := make([]model.Outcome, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = reg.TryCheckIn(ctx, attendee.EventID, "REG-1001", model.CheckInMethodQR, "gate-a", time.Now())
		}(i)
	}
	wg.Wait()

	accepted := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d failed: %v", i, errs[i])
		}
		switch outcomes[i].Status {
		case model.OutcomeAccepted:
			accepted++
		case model.OutcomeAlreadyCheckedIn:
		default:
			t.Fatalf("worker %d got unexpected outcome %s", i, outcomes[i].Status)
		}
	}

	if accepted != 1 {
		t.Fatalf("expected exactly one accepted outcome, got %d", accepted)
	}
}

func TestTryCheckInStatusPolicy(t *testing.T) {
	cases := []struct {
		name   string
		status model.AttendeeStatus
		policy registry.Policy
		want   model.OutcomeStatus
	}{
		{"pending allowed", model.AttendeeStatusPending, registry.Policy{AllowPending: true}, model.OutcomeAccepted},
		{"pending denied", model.AttendeeStatusPending, registry.Policy{}, model.OutcomeIneligible},
		{"waitlisted denied", model.AttendeeStatusWaitlisted, registry.Policy{AllowPending: true}, model.OutcomeIneligible},
		{"waitlisted allowed", model.AttendeeStatusWaitlisted, registry.Policy{AllowWaitlisted: true}, model.OutcomeAccepted},
		{"cancelled denied", model.AttendeeStatusCancelled, registry.Policy{AllowPending: true, AllowWaitlisted: true}, model.OutcomeIneligible},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := openTestDB(t)
			reg := registry.NewRegistry(db, events.NewMemorySink(), tc.policy)
			attendee := seedAttendee(t, db, tc.status)

			outcome, err := reg.TryCheckIn(context.Background(), attendee.EventID, "REG-1001", model.CheckInMethodManual, "desk-1", time.Now())
			if err != nil {
				t.Fatalf("TryCheckIn failed: %v", err)
			}
			if outcome.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, outcome.Status)
			}
		})
	}
}

func TestTryCheckInUnknownRefIsNotFound(t *testing.T) {
	db := openTestDB(t)
	reg := registry.NewRegistry(db, events.NewMemorySink(), defaultPolicy())

	attendee := seedAttendee(t, db, model.AttendeeStatusRegistered)

	outcome, err := reg.TryCheckIn(context.Background(), attendee.EventID, "NO-SUCH-CODE", model.CheckInMethodQR, "gate-a", time.Now())
	if err != nil {
		t.Fatalf("TryCheckIn failed: %v", err)
	}
	if outcome.Status != model.OutcomeNotFound {
		t.Fatalf("expected not_found, got %s", outcome.Status)
	}
}

func TestLookupFallsBackToNumericID(t *testing.T) {
	db := openTestDB(t)
	reg := registry.NewRegistry(db, events.NewMemorySink(), defaultPolicy())

	attendee := seedAttendee(t, db, model.AttendeeStatusRegistered)

	found, err := reg.Lookup(context.Background(), attendee.EventID, "REG-1001")
	if err != nil {
		t.Fatalf("Lookup by code failed: %v", err)
	}
	if found == nil || found.ID != attendee.ID {
		t.Fatalf("expected attendee %d by code, got %#v", attendee.ID, found)
	}
}

func TestStatsCountsCheckedIn(t *testing.T) {
	db := openTestDB(t)
	reg := registry.NewRegistry(db, events.NewMemorySink(), defaultPolicy())

	attendee := seedAttendee(t, db, model.AttendeeStatusRegistered)

	second := model.Attendee{
		EventID:          attendee.EventID,
		RegistrationCode: "REG-1002",
		Name:             "Ben Chang",
		Status:           model.AttendeeStatusRegistered,
	}
	if err := db.Create(&second).Error; err != nil {
		t.Fatalf("create second attendee: %v", err)
	}

	ctx := context.Background()
	if _, err := reg.TryCheckIn(ctx, attendee.EventID, "REG-1001", model.CheckInMethodQR, "gate-a", time.Now()); err != nil {
		t.Fatalf("TryCheckIn failed: %v", err)
	}

	total, checkedIn, err := reg.Stats(ctx, attendee.EventID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected total 2, got %d", total)
	}
	if checkedIn != 1 {
		t.Fatalf("expected checked-in 1, got %d", checkedIn)
	}
}
