package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"terrascape.ai/internal/sim/tuning"
	"terrascape.ai/internal/sim/world"
)

// SQLiteIndex is a queryable read-model of chunk lifecycle events. The JSONL
// event logs remain the source of truth; writes are queued and dropped when
// the indexer falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan world.ChunkEvent
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropped  atomic.Uint64
	written  atomic.Uint64
	txFailed atomic.Uint64
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DroppedTotal  uint64 `json:"dropped_total"`
	WrittenTotal  uint64 `json:"written_total"`
	TxFailTotal   uint64 `json:"tx_fail_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteIndex{
		db: db,
		ch: make(chan world.ChunkEvent, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunk_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_events_pos_tick ON chunk_events(cx, cy, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_events_kind ON chunk_events(kind);`,
		`CREATE TABLE IF NOT EXISTS chunk_stats (
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			builds INTEGER NOT NULL DEFAULT 0,
			build_ms_total REAL NOT NULL DEFAULT 0,
			build_ms_max REAL NOT NULL DEFAULT 0,
			grid_size INTEGER NOT NULL DEFAULT 0,
			anchors INTEGER NOT NULL DEFAULT 0,
			segments INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			path_nodes INTEGER NOT NULL DEFAULT 0,
			path_cost REAL NOT NULL DEFAULT 0,
			evictions INTEGER NOT NULL DEFAULT 0,
			last_tick INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (cx, cy)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteEvent(e world.ChunkEvent) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DroppedTotal:  s.dropped.Load(),
		WrittenTotal:  s.written.Load(),
		TxFailTotal:   s.txFailed.Load(),
	}
}

// UpsertTuning stores the configuration the server actually runs with.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"tuning", hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

const upsertStats = `INSERT INTO chunk_stats(cx,cy,builds,build_ms_total,build_ms_max,grid_size,anchors,segments,skipped,path_nodes,path_cost,evictions,last_tick)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(cx,cy) DO UPDATE SET
	builds = builds + excluded.builds,
	build_ms_total = build_ms_total + excluded.build_ms_total,
	build_ms_max = MAX(build_ms_max, excluded.build_ms_max),
	grid_size = CASE WHEN excluded.grid_size > 0 THEN excluded.grid_size ELSE grid_size END,
	anchors = CASE WHEN excluded.anchors > 0 THEN excluded.anchors ELSE anchors END,
	segments = CASE WHEN excluded.path_nodes > 0 OR excluded.segments > 0 THEN excluded.segments ELSE segments END,
	skipped = CASE WHEN excluded.path_nodes > 0 OR excluded.segments > 0 THEN excluded.skipped ELSE skipped END,
	path_nodes = CASE WHEN excluded.path_nodes > 0 THEN excluded.path_nodes ELSE path_nodes END,
	path_cost = CASE WHEN excluded.path_nodes > 0 THEN excluded.path_cost ELSE path_cost END,
	evictions = evictions + excluded.evictions,
	last_tick = MAX(last_tick, excluded.last_tick)`

// statsRow folds one event into the per-chunk aggregate. Events that do not
// touch the aggregate return false.
func statsRow(e world.ChunkEvent) ([]any, bool) {
	var builds, evictions int
	var buildMS float64
	switch e.Kind {
	case world.EventBuilt:
		builds, buildMS = 1, e.BuildMS
	case world.EventAnchors, world.EventPaths:
	case world.EventEvicted:
		evictions = 1
	default:
		return nil, false
	}
	return []any{
		e.CX, e.CY, builds, buildMS, buildMS,
		e.GridSize, e.Anchors, e.Segments, e.Skipped, e.PathNodes, e.PathCost,
		evictions, int64(e.Tick),
	}, true
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertEvent, _ := s.db.Prepare(`INSERT INTO chunk_events(tick,kind,cx,cy,raw_json) VALUES(?,?,?,?,?)`)
	upsert, _ := s.db.Prepare(upsertStats)
	defer func() {
		if insertEvent != nil {
			_ = insertEvent.Close()
		}
		if upsert != nil {
			_ = upsert.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
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
			s.txFailed.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.txFailed.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for e := range s.ch {
		begin()
		if tx == nil || insertEvent == nil || upsert == nil {
			continue
		}
		raw, _ := json.Marshal(e)
		if _, err := tx.Stmt(insertEvent).Exec(int64(e.Tick), string(e.Kind), e.CX, e.CY, string(raw)); err != nil {
			rollback()
			continue
		}
		opCount++
		if args, ok := statsRow(e); ok {
			if _, err := tx.Stmt(upsert).Exec(args...); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		s.written.Add(1)
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
