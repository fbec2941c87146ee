package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"EventGate/config"
	"EventGate/internal/model"
	"EventGate/internal/station"
	"EventGate/internal/station/batch"
	stationqueue "EventGate/internal/station/queue"
	"EventGate/pkg/logger"
)

// 扫码站代理：标准输入逐行读扫描码，在线直连服务端提交，
// 离线写入本地 SQLite 队列，恢复在线后按序回放。
// 以 / 开头的行是控制命令，其余视为扫描码。
func main() {
	config.Load()

	logger.Init()
	defer logger.Sync()

	if config.Cfg.StationDeviceID == "" || config.Cfg.StationEventID <= 0 {
		logger.Logger.Fatal("STATION_DEVICE_ID and STATION_EVENT_ID are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	store, err := stationqueue.Open(config.Cfg.StationQueuePath)
	if err != nil {
		logger.Logger.Fatal("Failed to open offline queue", zap.Error(err))
	}
	defer store.Close()

	q, err := stationqueue.New(store, config.Cfg.StationDeviceID)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize offline queue", zap.Error(err))
	}

	client := station.NewClient(config.Cfg.StationServerURL, config.Cfg.StationSubmitTimeout)
	submitter := station.NewSubmitter(client, q)

	if err := client.Authenticate(ctx, config.Cfg.StationKey, config.Cfg.StationDeviceID); err != nil {
		logger.Logger.Warn("Authentication failed, starting offline", zap.Error(err))
		if err := submitter.SetOnline(ctx, false); err != nil {
			logger.Logger.Error("Failed to mark station offline", zap.Error(err))
		}
	} else {
		// 启动即尝试回放上次留下的积压
		if err := submitter.SetOnline(ctx, true); err != nil {
			logger.Logger.Warn("Initial drain failed", zap.Error(err))
		}
	}

	logger.Logger.Info("Station agent started",
		zap.String("device_id", config.Cfg.StationDeviceID),
		zap.Int64("event_id", config.Cfg.StationEventID),
		zap.String("server", config.Cfg.StationServerURL),
	)

	runLoop(ctx, submitter, client)

	logger.Logger.Info("Station agent shutting down gracefully")
}

func runLoop(ctx context.Context, submitter *station.Submitter, client *station.Client) {
	var session *batch.Session

	scanner := bufio.NewScanner(os.Stdin)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "" {
				continue
			}

			if strings.HasPrefix(line, "/") {
				session = handleCommand(ctx, line, submitter, client, session)
				continue
			}

			if session != nil {
				outcome, processed := session.OnDetect(ctx, line)
				if !processed {
					fmt.Println("session not active, detection ignored")
					continue
				}
				printSessionResult(session, outcome)
				continue
			}

			submitScan(ctx, submitter, line, model.CheckInMethodQR)
		}
	}
}

func handleCommand(
	ctx context.Context,
	line string,
	submitter *station.Submitter,
	client *station.Client,
	session *batch.Session,
) *batch.Session {
	fields := strings.Fields(line)
	cmd := fields[0]

	switch cmd {
	case "/status":
		status, err := submitter.QueueStatus(ctx)
		if err != nil {
			fmt.Printf("status error: %v\n", err)
			return session
		}
		if status.State == stationqueue.StateQueuing || status.State == stationqueue.StateDisconnected {
			fmt.Printf("offline — %d pending (%s)\n", status.PendingCount, status.State)
		} else {
			fmt.Printf("online — %d pending (%s)\n", status.PendingCount, status.State)
		}

	case "/offline":
		if err := submitter.SetOnline(ctx, false); err != nil {
			fmt.Printf("offline error: %v\n", err)
		} else {
			fmt.Println("station is now offline, scans will be queued")
		}

	case "/online":
		if err := submitter.SetOnline(ctx, true); err != nil {
			fmt.Printf("drain error: %v\n", err)
		} else {
			fmt.Println("station is online, backlog drained")
		}

	case "/manual":
		if len(fields) < 2 {
			fmt.Println("usage: /manual <registration_code>")
			return session
		}
		submitScan(ctx, submitter, fields[1], model.CheckInMethodManual)

	case "/search":
		if len(fields) < 2 {
			fmt.Println("usage: /search <query>")
			return session
		}
		result, err := client.SearchAttendees(ctx, config.Cfg.StationEventID, strings.Join(fields[1:], " "))
		if err != nil {
			fmt.Printf("search error: %v\n", err)
			return session
		}
		if len(result.Attendees) == 0 {
			fmt.Println("no attendees matched")
			return session
		}
		for _, a := range result.Attendees {
			fmt.Printf("  %s  %s  %s  [%s]\n", a.RegistrationCode, a.Name, a.Email, a.Status)
		}

	case "/batch":
		return handleBatchCommand(fields, submitter, session)

	default:
		fmt.Printf("unknown command: %s\n", cmd)
	}

	return session
}

func handleBatchCommand(fields []string, submitter *station.Submitter, session *batch.Session) *batch.Session {
	if len(fields) < 2 {
		fmt.Println("usage: /batch start|pause|resume|stop|stats")
		return session
	}

	switch fields[1] {
	case "start":
		session = batch.NewSession(
			config.Cfg.StationEventID,
			config.Cfg.StationDeviceID,
			submitter.Submit,
			time.Now,
		)
		session.Start()
		fmt.Println("batch session started")

	case "pause":
		if session != nil {
			session.Pause()
			fmt.Println("batch session paused")
		}

	case "resume":
		if session != nil {
			session.Resume()
			fmt.Println("batch session resumed")
		}

	case "stop":
		if session != nil {
			session.Stop()
			printStats(session.Stats())
			session = nil
		}

	case "stats":
		if session != nil {
			printStats(session.Stats())
		}

	default:
		fmt.Println("usage: /batch start|pause|resume|stop|stats")
	}

	return session
}

func submitScan(ctx context.Context, submitter *station.Submitter, code string, method model.CheckInMethod) {
	attempt := model.CheckInAttempt{
		AttemptID:       uuid.NewString(),
		EventID:         config.Cfg.StationEventID,
		AttendeeRef:     code,
		Method:          method,
		DeviceID:        config.Cfg.StationDeviceID,
		ClientTimestamp: time.Now(),
	}

	outcome, queued, err := submitter.Submit(ctx, attempt)
	if err != nil {
		fmt.Printf("rejected: %v\n", err)
		return
	}
	if queued {
		fmt.Println("queued for sync")
		return
	}
	fmt.Printf("%s (attendee %d)\n", outcome.Status, outcome.AttendeeID)
}

func printSessionResult(session *batch.Session, outcome model.Outcome) {
	stats := session.Stats()
	fmt.Printf("%s | accepted=%d duplicate=%d rejected=%d rate=%.1f/min\n",
		outcome.Status, stats.Accepted, stats.Duplicate, stats.Rejected, stats.ScansPerMinute)
}

func printStats(stats batch.Stats) {
	fmt.Printf("state=%s accepted=%d duplicate=%d rejected=%d rate=%.1f/min\n",
		stats.State, stats.Accepted, stats.Duplicate, stats.Rejected, stats.ScansPerMinute)
}
