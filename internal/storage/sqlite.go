package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Srinivas26k/ZoomPollMaster/internal/config"
	"github.com/Srinivas26k/ZoomPollMaster/internal/session"
	"github.com/Srinivas26k/ZoomPollMaster/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg *config.StorageConfig, log logx.Logger) (Store, error) {
	path := cfg.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.BusyTimeout, 5*time.Second); err == nil && busy > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage migrate: %w", err)
	}
	log.Info("history store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) RecordTranscript(ctx context.Context, seg *session.TranscriptSegment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (captured_at, meeting_id, duration_ms, chars, body) VALUES (?, ?, ?, ?, ?)`,
		seg.CapturedAt.UTC().Format(time.RFC3339Nano),
		seg.MeetingID,
		seg.Duration.Milliseconds(),
		len(seg.Text),
		seg.Text,
	)
	return err
}

func (s *sqliteStore) RecordPoll(ctx context.Context, p *session.Poll) error {
	opts, err := json.Marshal(p.Options)
	if err != nil {
		return err
	}
	var source any
	if !p.SourceCapturedAt.IsZero() {
		source = p.SourceCapturedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO polls (generated_at, source_captured_at, question, options_json) VALUES (?, ?, ?, ?)`,
		p.GeneratedAt.UTC().Format(time.RFC3339Nano),
		source,
		p.Question,
		string(opts),
	)
	return err
}

// MarkPollPosted stamps the newest unposted row matching the question. Good
// enough for an append-mostly history table.
func (s *sqliteStore) MarkPollPosted(ctx context.Context, p *session.Poll) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE polls SET posted_at = ?
		 WHERE id = (SELECT id FROM polls WHERE question = ? AND posted_at IS NULL ORDER BY id DESC LIMIT 1)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		p.Question,
	)
	return err
}

func (s *sqliteStore) RecordCycle(ctx context.Context, rec CycleRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (at, kind, outcome, detail) VALUES (?, ?, ?, ?)`,
		rec.At.UTC().Format(time.RFC3339Nano),
		rec.Kind,
		rec.Outcome,
		rec.Detail,
	)
	return err
}

func (s *sqliteStore) RecentPolls(ctx context.Context, limit int) ([]PollRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, generated_at, question, options_json, COALESCE(posted_at, '') FROM polls ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PollRecord
	for rows.Next() {
		var (
			rec       PollRecord
			genAt     string
			optsJSON  string
			postedRaw string
		)
		if err := rows.Scan(&rec.ID, &genAt, &rec.Question, &optsJSON, &postedRaw); err != nil {
			return nil, err
		}
		rec.GeneratedAt, _ = time.Parse(time.RFC3339Nano, genAt)
		if postedRaw != "" {
			rec.PostedAt, _ = time.Parse(time.RFC3339Nano, postedRaw)
		}
		if err := json.Unmarshal([]byte(optsJSON), &rec.Options); err != nil {
			s.log.Warn("bad options row", logx.Int64("id", rec.ID), logx.Err(err))
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
