package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"revenda_bot/internal/entities"
	"revenda_bot/internal/interfaces"
)

// SendLogSpool keeps send-log rows on local disk while Postgres is unavailable.
type SendLogSpool struct {
	db *sql.DB
}

type SpooledEntry struct {
	ID    int64
	Entry entities.SendLogEntry
}

func OpenSendLogSpool(path string) (*SendLogSpool, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create spool dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS send_log_spool (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			payload TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create spool table: %w", err)
	}
	return &SendLogSpool{db: db}, nil
}

func (s *SendLogSpool) Write(ctx context.Context, e entities.SendLogEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO send_log_spool (payload, created_at) VALUES (?, ?)`,
		string(data), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Pending returns up to limit spooled rows, oldest first.
func (s *SendLogSpool) Pending(ctx context.Context, limit int) ([]SpooledEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM send_log_spool ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SpooledEntry
	for rows.Next() {
		var (
			id      int64
			payload string
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var e entities.SendLogEntry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("decode spooled row %d: %w", id, err)
		}
		out = append(out, SpooledEntry{ID: id, Entry: e})
	}
	return out, rows.Err()
}

func (s *SendLogSpool) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM send_log_spool WHERE id = ?`, id)
	return err
}

// Replay moves spooled rows into store, stopping at the first failed insert.
func (s *SendLogSpool) Replay(ctx context.Context, store interfaces.SendLogStore) (int, error) {
	moved := 0
	for {
		batch, err := s.Pending(ctx, 100)
		if err != nil {
			return moved, err
		}
		if len(batch) == 0 {
			return moved, nil
		}
		for _, p := range batch {
			if err := store.Insert(ctx, p.Entry); err != nil {
				return moved, fmt.Errorf("replay row %d: %w", p.ID, err)
			}
			if err := s.Delete(ctx, p.ID); err != nil {
				return moved, err
			}
			moved++
		}
	}
}

func (s *SendLogSpool) Close() error {
	return s.db.Close()
}

// SpooledSendLog writes to primary and falls back to the spool on error.
type SpooledSendLog struct {
	primary interfaces.SendLogStore
	spool   *SendLogSpool
	log     zerolog.Logger
}

func NewSpooledSendLog(primary interfaces.SendLogStore, spool *SendLogSpool, log zerolog.Logger) *SpooledSendLog {
	return &SpooledSendLog{primary: primary, spool: spool, log: log.With().Str("component", "sendlog").Logger()}
}

func (s *SpooledSendLog) Insert(ctx context.Context, e entities.SendLogEntry) error {
	err := s.primary.Insert(ctx, e)
	if err == nil || s.spool == nil {
		return err
	}
	s.log.Warn().Err(err).Str("tenant", e.TenantID).Msg("send log insert failed, spooling locally")
	// the request context may already be done; the spool write must still land
	if serr := s.spool.Write(context.WithoutCancel(ctx), e); serr != nil {
		return fmt.Errorf("spool send log: %w (primary: %v)", serr, err)
	}
	return nil
}
