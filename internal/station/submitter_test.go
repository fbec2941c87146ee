package station_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"EventGate/internal/model"
	"EventGate/internal/model/dto"
	"EventGate/internal/station"
	stationqueue "EventGate/internal/station/queue"
)

// checkinServer 模拟服务端：记录提交顺序，第一次提交 accepted，
// 重复的 attempt_id 回放 already_checked_in
type checkinServer struct {
	mu       sync.Mutex
	seen     map[string]bool
	received []string
}

func newCheckinServer() *checkinServer {
	return &checkinServer{seen: map[string]bool{}}
}

func (s *checkinServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/check-ins/submit", func(w http.ResponseWriter, r *http.Request) {
		var req dto.SubmitCheckInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		status := string(model.OutcomeAccepted)
		if s.seen[req.AttemptID] {
			status = string(model.OutcomeAlreadyCheckedIn)
		}
		s.seen[req.AttemptID] = true
		s.received = append(s.received, req.AttemptID)
		s.mu.Unlock()

		resp := map[string]interface{}{
			"data": dto.SubmitCheckInResponse{Status: status, AttendeeID: 1},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func (s *checkinServer) order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func newTestSubmitter(t *testing.T, baseURL string) *station.Submitter {
	t.Helper()

	store, err := stationqueue.Open(filepath.Join(t.TempDir(), "q.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	q, err := stationqueue.New(store, "gate-a")
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}

	client := station.NewClient(baseURL, 2*time.Second)
	return station.NewSubmitter(client, q)
}

func attempt(n int) model.CheckInAttempt {
	return model.CheckInAttempt{
		AttemptID:       fmt.Sprintf("sub-%03d", n),
		EventID:         1,
		AttendeeRef:     fmt.Sprintf("REG-%04d", 5000+n),
		Method:          model.CheckInMethodQR,
		DeviceID:        "gate-a",
		ClientTimestamp: time.Now(),
	}
}

func TestSubmitOnlineReturnsOutcome(t *testing.T) {
	backend := newCheckinServer()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	submitter := newTestSubmitter(t, srv.URL)

	outcome, queued, err := submitter.Submit(context.Background(), attempt(1))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if queued {
		t.Fatal("online submit must not queue")
	}
	if outcome.Status != model.OutcomeAccepted {
		t.Fatalf("expected accepted, got %s", outcome.Status)
	}
}

func TestSubmitFallsBackToQueueOnTransportFailure(t *testing.T) {
	backend := newCheckinServer()
	srv := httptest.NewServer(backend.handler())
	submitter := newTestSubmitter(t, srv.URL)

	// 服务端失联
	srv.Close()

	_, queued, err := submitter.Submit(context.Background(), attempt(1))
	if err != nil {
		t.Fatalf("Submit must queue instead of failing: %v", err)
	}
	if !queued {
		t.Fatal("transport failure must queue the attempt")
	}
	if submitter.Online() {
		t.Fatal("transport failure must flip the station offline")
	}

	// 离线状态下的后续提交直接入队
	_, queued, err = submitter.Submit(context.Background(), attempt(2))
	if err != nil {
		t.Fatalf("offline Submit failed: %v", err)
	}
	if !queued {
		t.Fatal("offline submit must queue")
	}

	status, err := submitter.QueueStatus(context.Background())
	if err != nil {
		t.Fatalf("QueueStatus failed: %v", err)
	}
	if status.PendingCount != 2 || status.State != stationqueue.StateQueuing {
		t.Fatalf("expected 2 pending in queuing state, got %+v", status)
	}
}

func TestSetOnlineDrainsBacklogInOrder(t *testing.T) {
	backend := newCheckinServer()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	submitter := newTestSubmitter(t, srv.URL)

	ctx := context.Background()
	if err := submitter.SetOnline(ctx, false); err != nil {
		t.Fatalf("SetOnline(false) failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if _, queued, err := submitter.Submit(ctx, attempt(i)); err != nil || !queued {
			t.Fatalf("offline Submit %d: queued=%v err=%v", i, queued, err)
		}
	}

	if err := submitter.SetOnline(ctx, true); err != nil {
		t.Fatalf("SetOnline(true) failed: %v", err)
	}

	order := backend.order()
	if len(order) != 3 {
		t.Fatalf("expected 3 replayed submissions, got %d", len(order))
	}
	for i, id := range order {
		want := fmt.Sprintf("sub-%03d", i+1)
		if id != want {
			t.Fatalf("replay out of order at %d: got %s, want %s", i, id, want)
		}
	}

	status, err := submitter.QueueStatus(ctx)
	if err != nil {
		t.Fatalf("QueueStatus failed: %v", err)
	}
	if status.State != stationqueue.StateDrained || status.PendingCount != 0 {
		t.Fatalf("expected drained queue, got %+v", status)
	}
}

// refArbiterServer 按 attendee_ref 仲裁：同一个参会人第一次 accepted，
// 之后一律 already_checked_in，模拟服务端按行 CAS 的结果
type refArbiterServer struct {
	mu        sync.Mutex
	checkedIn map[string]bool
	accepted  map[string]int
}

func newRefArbiterServer() *refArbiterServer {
	return &refArbiterServer{checkedIn: map[string]bool{}, accepted: map[string]int{}}
}

func (s *refArbiterServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/check-ins/submit", func(w http.ResponseWriter, r *http.Request) {
		var req dto.SubmitCheckInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		status := string(model.OutcomeAccepted)
		if s.checkedIn[req.AttendeeRef] {
			status = string(model.OutcomeAlreadyCheckedIn)
		} else {
			s.checkedIn[req.AttendeeRef] = true
			s.accepted[req.AttendeeRef]++
		}
		s.mu.Unlock()

		resp := map[string]interface{}{
			"data": dto.SubmitCheckInResponse{Status: status, AttendeeID: 1},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func (s *refArbiterServer) acceptedCount(ref string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted[ref]
}

func newDeviceSubmitter(t *testing.T, baseURL, deviceID string) *station.Submitter {
	t.Helper()

	store, err := stationqueue.Open(filepath.Join(t.TempDir(), deviceID+".db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	q, err := stationqueue.New(store, deviceID)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}

	client := station.NewClient(baseURL, 2*time.Second)
	return station.NewSubmitter(client, q)
}

func deviceAttempt(deviceID, ref string, n int) model.CheckInAttempt {
	return model.CheckInAttempt{
		AttemptID:       fmt.Sprintf("%s-%03d", deviceID, n),
		EventID:         1,
		AttendeeRef:     ref,
		Method:          model.CheckInMethodQR,
		DeviceID:        deviceID,
		ClientTimestamp: time.Now(),
	}
}

// 两台扫码站各自离线排队了同一个参会人，恢复后各自回放，
// 交错回放下该参会人也只能 accepted 一次
func TestTwoStationsDrainSameAttendeeOnceAccepted(t *testing.T) {
	backend := newRefArbiterServer()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	const sharedRef = "REG-9001"
	ctx := context.Background()

	submitters := map[string]*station.Submitter{
		"gate-a": newDeviceSubmitter(t, srv.URL, "gate-a"),
		"gate-b": newDeviceSubmitter(t, srv.URL, "gate-b"),
	}

	for deviceID, sub := range submitters {
		if err := sub.SetOnline(ctx, false); err != nil {
			t.Fatalf("%s SetOnline(false): %v", deviceID, err)
		}
		// 共享参会人夹在各自的普通提交中间，拉长回放窗口
		for n, ref := range []string{"REG-" + deviceID, sharedRef, "REG-9002-" + deviceID} {
			if _, queued, err := sub.Submit(ctx, deviceAttempt(deviceID, ref, n)); err != nil || !queued {
				t.Fatalf("%s offline Submit %s: queued=%v err=%v", deviceID, ref, queued, err)
			}
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(submitters))
	for deviceID, sub := range submitters {
		wg.Add(1)
		go func(deviceID string, sub *station.Submitter) {
			defer wg.Done()
			if err := sub.SetOnline(ctx, true); err != nil {
				errs <- fmt.Errorf("%s drain: %w", deviceID, err)
			}
		}(deviceID, sub)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	if got := backend.acceptedCount(sharedRef); got != 1 {
		t.Fatalf("shared attendee accepted %d times, want exactly 1", got)
	}

	for deviceID, sub := range submitters {
		status, err := sub.QueueStatus(ctx)
		if err != nil {
			t.Fatalf("%s QueueStatus: %v", deviceID, err)
		}
		if status.State != stationqueue.StateDrained || status.PendingCount != 0 {
			t.Fatalf("%s expected drained queue, got %+v", deviceID, status)
		}
	}
}

func TestBusinessRejectionDoesNotQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"ATTENDEE_NOT_FOUND","message":"Attendee not found"}}`))
	}))
	defer srv.Close()

	submitter := newTestSubmitter(t, srv.URL)

	_, queued, err := submitter.Submit(context.Background(), attempt(1))
	if err == nil {
		t.Fatal("expected business rejection error")
	}
	if queued {
		t.Fatal("business rejection must not queue")
	}
	if !submitter.Online() {
		t.Fatal("business rejection must not flip the station offline")
	}

	status, statusErr := submitter.QueueStatus(context.Background())
	if statusErr != nil {
		t.Fatalf("QueueStatus failed: %v", statusErr)
	}
	if status.PendingCount != 0 {
		t.Fatalf("queue must stay empty, got %d pending", status.PendingCount)
	}
}
