package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// RunIndex records runs and agent outcomes in a sqlite database. Writes are
// queued to a single writer goroutine and committed in batches; when the
// queue is full records are dropped and counted. A nil index does nothing.
type RunIndex struct {
	db    *sql.DB
	runID string

	ch      chan indexReq
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Int64
}

type indexReqKind int

const (
	reqRun indexReqKind = iota + 1
	reqRunTicks
	reqOutcome
)

type indexReq struct {
	kind    indexReqKind
	run     runRow
	ticks   int
	outcome OutcomeRecord
}

type runRow struct {
	Seed      int64
	Mode      string
	StartedAt string
}

const (
	indexQueueSize     = 65536
	indexCommitEvery   = 1000
	indexCommitMaxWait = time.Second
)

// NewRunID returns a fresh random run id.
func NewRunID() string {
	return uuid.NewString()
}

// OpenRunIndex opens (creating if needed) the database at path and starts
// the writer. runID tags every row; an empty runID gets a fresh uuid.
// An empty path disables the index and returns nil.
func OpenRunIndex(path, runID string) (*RunIndex, error) {
	if path == "" {
		return nil, nil
	}
	if runID == "" {
		runID = NewRunID()
	} else if _, err := uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("run id %q: %w", runID, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := initIndexSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	ix := &RunIndex{
		db:    db,
		runID: runID,
		ch:    make(chan indexReq, indexQueueSize),
	}
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ix.loop()
	}()
	return ix, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func initIndexSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			mode TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ticks INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			run_id TEXT NOT NULL,
			agent INTEGER NOT NULL,
			group_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			tick INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			episode_return REAL NOT NULL,
			distance REAL NOT NULL,
			PRIMARY KEY (run_id, agent, tick)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_run_kind ON outcomes(run_id, kind);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("creating index schema: %w", err)
		}
	}
	return nil
}

// RunID returns the id tagging this index's rows.
func (ix *RunIndex) RunID() string {
	if ix == nil {
		return ""
	}
	return ix.runID
}

// Dropped returns the number of records lost to a full queue.
func (ix *RunIndex) Dropped() int64 {
	if ix == nil {
		return 0
	}
	return ix.dropped.Load()
}

func (ix *RunIndex) send(r indexReq) {
	if ix == nil || ix.closed.Load() {
		return
	}
	select {
	case ix.ch <- r:
	default:
		ix.dropped.Add(1)
	}
}

// StartRun records the run's parameters.
func (ix *RunIndex) StartRun(seed int64, mode string) {
	ix.send(indexReq{kind: reqRun, run: runRow{
		Seed:      seed,
		Mode:      mode,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}})
}

// SetTicks records how far the run has progressed.
func (ix *RunIndex) SetTicks(ticks int) {
	ix.send(indexReq{kind: reqRunTicks, ticks: ticks})
}

// RecordOutcome queues one finished episode.
func (ix *RunIndex) RecordOutcome(rec OutcomeRecord) {
	ix.send(indexReq{kind: reqOutcome, outcome: rec})
}

// Close drains the queue, commits and closes the database.
func (ix *RunIndex) Close() error {
	if ix == nil {
		return nil
	}
	var err error
	ix.once.Do(func() {
		ix.closed.Store(true)
		close(ix.ch)
		ix.wg.Wait()
		err = ix.db.Close()
	})
	return err
}

func (ix *RunIndex) loop() {
	ctx := context.Background()

	var (
		tx         *sql.Tx
		opCount    int
		lastCommit = time.Now()
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := ix.db.BeginTx(ctx, nil)
		if err != nil {
			slog.Warn("run_index_begin_failed", "error", err)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			slog.Warn("run_index_commit_failed", "error", err)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		slog.Warn("run_index_write_failed", "error", err)
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}

	for r := range ix.ch {
		begin()
		if tx == nil {
			continue
		}
		var err error
		switch r.kind {
		case reqRun:
			_, err = tx.Exec(`INSERT OR REPLACE INTO runs(run_id,seed,mode,started_at,ticks) VALUES(?,?,?,?,0)`,
				ix.runID, r.run.Seed, r.run.Mode, r.run.StartedAt)
		case reqRunTicks:
			_, err = tx.Exec(`UPDATE runs SET ticks=? WHERE run_id=?`, r.ticks, ix.runID)
		case reqOutcome:
			o := r.outcome
			_, err = tx.Exec(`INSERT OR REPLACE INTO outcomes(run_id,agent,group_id,kind,tick,steps,episode_return,distance) VALUES(?,?,?,?,?,?,?,?)`,
				ix.runID, int64(o.Agent), o.GroupID, o.Kind, o.Tick, o.Steps, o.Return, o.Distance)
		}
		if err != nil {
			rollback(err)
			continue
		}
		opCount++
		if opCount >= indexCommitEvery || time.Since(lastCommit) >= indexCommitMaxWait {
			commit()
		}
	}
	commit()
}

// RunSummary is a run's row plus its outcome counts by kind.
type RunSummary struct {
	RunID      string
	Seed       int64
	Mode       string
	Ticks      int
	Outcomes   map[string]int
	MeanReturn float64
}

// QueryRun reads the summary of runID from the database at path.
func QueryRun(ctx context.Context, path, runID string) (RunSummary, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return RunSummary{}, err
	}
	defer db.Close()

	s := RunSummary{RunID: runID, Outcomes: make(map[string]int)}
	row := db.QueryRowContext(ctx, `SELECT seed, mode, ticks FROM runs WHERE run_id=?`, runID)
	if err := row.Scan(&s.Seed, &s.Mode, &s.Ticks); err != nil {
		return RunSummary{}, fmt.Errorf("reading run %s: %w", runID, err)
	}

	rows, err := db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM outcomes WHERE run_id=? GROUP BY kind`, runID)
	if err != nil {
		return RunSummary{}, fmt.Errorf("reading outcomes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return RunSummary{}, err
		}
		s.Outcomes[kind] = n
	}
	if err := rows.Err(); err != nil {
		return RunSummary{}, err
	}

	var mean sql.NullFloat64
	if err := db.QueryRowContext(ctx, `SELECT AVG(episode_return) FROM outcomes WHERE run_id=?`, runID).Scan(&mean); err != nil {
		return RunSummary{}, err
	}
	s.MeanReturn = mean.Float64
	return s, nil
}
