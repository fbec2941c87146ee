package queue

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"EventGate/internal/model"
)

// Store 扫码站本地的持久化队列存储，单设备独占的 SQLite 文件。
// rowid 单调递增，回放顺序即入队顺序
type Store struct {
	db   *sql.DB
	path string
}

// SyncState 队列条目的同步状态
type SyncState string

const (
	SyncPending  SyncState = "pending"
	SyncSynced   SyncState = "synced"
	SyncRejected SyncState = "rejected"
)

// Entry 队列里的一条待同步签到
type Entry struct {
	ID      int64
	Attempt model.CheckInAttempt
	State   SyncState
}

const schema = `
CREATE TABLE IF NOT EXISTS queue_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	attempt_id TEXT NOT NULL UNIQUE,
	event_id INTEGER NOT NULL,
	attendee_ref TEXT NOT NULL,
	method TEXT NOT NULL,
	device_id TEXT NOT NULL,
	client_timestamp TEXT NOT NULL,
	sync_state TEXT NOT NULL DEFAULT 'pending',
	outcome TEXT,
	reject_reason TEXT,
	enqueued_at TEXT NOT NULL,
	synced_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_queue_entries_state ON queue_entries(sync_state);
`

// Open 打开或创建队列数据库
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create queue directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init queue schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close 关闭底层数据库连接
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append 追加一条待同步签到。attempt_id 冲突说明是重复入队，直接忽略
func (s *Store) Append(ctx context.Context, attempt model.CheckInAttempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_entries
			(attempt_id, event_id, attendee_ref, method, device_id, client_timestamp, sync_state, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(attempt_id) DO NOTHING`,
		attempt.AttemptID,
		attempt.EventID,
		attempt.AttendeeRef,
		string(attempt.Method),
		attempt.DeviceID,
		attempt.ClientTimestamp.Format(time.RFC3339Nano),
		string(SyncPending),
		time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append queue entry: %w", err)
	}
	return nil
}

// Pending 按入队顺序返回所有待同步条目
func (s *Store) Pending(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, attempt_id, event_id, attendee_ref, method, device_id, client_timestamp
		FROM queue_entries
		WHERE sync_state = ?
		ORDER BY id ASC`,
		string(SyncPending),
	)
	if err != nil {
		return nil, fmt.Errorf("query pending entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry Entry
			ts    string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.Attempt.AttemptID,
			&entry.Attempt.EventID,
			&entry.Attempt.AttendeeRef,
			&entry.Attempt.Method,
			&entry.Attempt.DeviceID,
			&ts,
		); err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		entry.State = SyncPending
		entry.Attempt.ClientTimestamp, _ = time.Parse(time.RFC3339Nano, ts)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending entries: %w", err)
	}

	return entries, nil
}

// PendingCount 待同步条目数
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_entries WHERE sync_state = ?`,
		string(SyncPending),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending entries: %w", err)
	}
	return count, nil
}

// MarkSynced 标记条目已同步并记录服务端结果
func (s *Store) MarkSynced(ctx context.Context, id int64, outcome model.OutcomeStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET sync_state = ?, outcome = ?, synced_at = ?
		WHERE id = ?`,
		string(SyncSynced),
		string(outcome),
		time.Now().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}
	return nil
}

// MarkRejected 标记条目为形状非法，保留原因供排查，不再回放
func (s *Store) MarkRejected(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET sync_state = ?, reject_reason = ?, synced_at = ?
		WHERE id = ?`,
		string(SyncRejected),
		reason,
		time.Now().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark entry rejected: %w", err)
	}
	return nil
}
