// Package history keeps a log of generation requests in SQLite. Writes are queued and
// flushed in batches by a background goroutine so request handling never waits on disk.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/nghyane/creative-mux/internal/logging"
	_ "modernc.org/sqlite"
)

// Record is one dispatched generation request, successful or not.
type Record struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId,omitempty"`
	Provider    string    `json:"provider"`
	ModelID     string    `json:"modelId"`
	Modality    string    `json:"modality"`
	Prompt      string    `json:"prompt"`
	Success     bool      `json:"success"`
	ErrorCode   string    `json:"errorCode,omitempty"`
	URL         string    `json:"url,omitempty"`
	LatencyMS   int64     `json:"latencyMs"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Persister handles SQLite persistence for history records with async batched writes.
type Persister struct {
	db            *sql.DB
	recordChan    chan Record
	flushTicker   *time.Ticker
	cleanupTicker *time.Ticker
	wg            sync.WaitGroup
	stopOnce      sync.Once
	stopChan      chan struct{}
	batchSize     int
	retentionDays int
	dbPath        string
}

const (
	defaultBatchSize         = 50
	defaultFlushInterval     = 5 * time.Second
	defaultRetentionDays     = 30
	defaultChannelBufferSize = 1000
	maxRecentLimit           = 200
)

// NewPersister opens (or creates) the database at dbPath and starts the writer and
// retention goroutines.
func NewPersister(dbPath string, batchSize, flushIntervalSecs, retentionDays int) (*Persister, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if strings.HasPrefix(dbPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := time.Duration(flushIntervalSecs) * time.Second
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}

	p := &Persister{
		db:            db,
		recordChan:    make(chan Record, defaultChannelBufferSize),
		flushTicker:   time.NewTicker(flushInterval),
		cleanupTicker: time.NewTicker(24 * time.Hour),
		stopChan:      make(chan struct{}),
		batchSize:     batchSize,
		retentionDays: retentionDays,
		dbPath:        dbPath,
	}

	p.wg.Add(2)
	go p.writeLoop()
	go p.cleanupLoop()

	return p, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS generation_history (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		provider TEXT NOT NULL,
		model_id TEXT NOT NULL,
		modality TEXT NOT NULL,
		prompt TEXT NOT NULL,
		success BOOLEAN NOT NULL DEFAULT 0,
		error_code TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		latency_ms INTEGER NOT NULL DEFAULT 0,
		requested_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_user_requested ON generation_history(user_id, requested_at);
	CREATE INDEX IF NOT EXISTS idx_history_requested_at ON generation_history(requested_at);
	`)
	return err
}

// Record queues rec for writing. It never blocks; when the queue is full the record is dropped.
func (p *Persister) Record(rec Record) {
	if p == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RequestedAt.IsZero() {
		rec.RequestedAt = time.Now()
	}
	select {
	case p.recordChan <- rec:
	default:
		log.Warnf("History queue full, dropping record for %s/%s", rec.Provider, rec.ModelID)
	}
}

func (p *Persister) writeLoop() {
	defer p.wg.Done()

	batch := make([]Record, 0, p.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := p.writeBatch(batch); err != nil {
			log.Errorf("Failed to write history batch: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-p.recordChan:
			batch = append(batch, rec)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-p.flushTicker.C:
			flush()
		case <-p.stopChan:
			for {
				select {
				case rec := <-p.recordChan:
					batch = append(batch, rec)
					if len(batch) >= p.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (p *Persister) writeBatch(records []Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO generation_history (
			id, user_id, provider, model_id, modality, prompt,
			success, error_code, url, latency_ms, requested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.UserID, r.Provider, r.ModelID, r.Modality, r.Prompt,
			r.Success, r.ErrorCode, r.URL, r.LatencyMS, r.RequestedAt.UTC(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Recent returns up to limit records of userID, newest first.
func (p *Persister) Recent(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 || limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, provider, model_id, modality, prompt,
			success, error_code, url, latency_ms, requested_at
		FROM generation_history
		WHERE user_id = ?
		ORDER BY requested_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.Provider, &r.ModelID, &r.Modality, &r.Prompt,
			&r.Success, &r.ErrorCode, &r.URL, &r.LatencyMS, &r.RequestedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Persister) cleanupLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.cleanupTicker.C:
			if err := p.cleanup(); err != nil {
				log.Errorf("Failed to cleanup old history records: %v", err)
			}
		case <-p.stopChan:
			return
		}
	}
}

func (p *Persister) cleanup() error {
	cutoff := time.Now().AddDate(0, 0, -p.retentionDays).UTC()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := p.db.ExecContext(ctx, `DELETE FROM generation_history WHERE requested_at < ?`, cutoff)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n > 0 {
		log.Infof("Cleaned up %d history records older than %d days", n, p.retentionDays)
	}
	return nil
}

// Stop flushes pending writes and closes the database. It is safe to call more than once.
func (p *Persister) Stop() error {
	if p == nil {
		return nil
	}

	var err error
	p.stopOnce.Do(func() {
		close(p.stopChan)
		p.flushTicker.Stop()
		p.cleanupTicker.Stop()
		p.wg.Wait()
		err = p.db.Close()
	})
	return err
}

// DBPath returns the filesystem path to the SQLite database.
func (p *Persister) DBPath() string {
	if p == nil {
		return ""
	}
	return p.dbPath
}
