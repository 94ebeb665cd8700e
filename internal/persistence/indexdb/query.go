package indexdb

import (
	"context"
	"database/sql"
	"fmt"
)

// Reader runs read-only queries against an index written by SQLiteIndex.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

type ChunkStats struct {
	CX           int     `json:"cx"`
	CY           int     `json:"cy"`
	Builds       int     `json:"builds"`
	BuildMSTotal float64 `json:"build_ms_total"`
	BuildMSMax   float64 `json:"build_ms_max"`
	GridSize     int     `json:"grid_size"`
	Anchors      int     `json:"anchors"`
	Segments     int     `json:"segments"`
	Skipped      int     `json:"skipped"`
	PathNodes    int     `json:"path_nodes"`
	PathCost     float64 `json:"path_cost"`
	Evictions    int     `json:"evictions"`
	LastTick     uint64  `json:"last_tick"`
}

// Order values accepted by Chunks.
const (
	OrderSlowest  = "slowest"
	OrderRecent   = "recent"
	OrderSkipped  = "skipped"
	OrderPosition = "position"
)

var orderClauses = map[string]string{
	OrderSlowest:  "build_ms_max DESC, cx, cy",
	OrderRecent:   "last_tick DESC, cx, cy",
	OrderSkipped:  "skipped DESC, cx, cy",
	OrderPosition: "cx, cy",
}

func (r *Reader) Chunks(ctx context.Context, order string, limit int) ([]ChunkStats, error) {
	clause, ok := orderClauses[order]
	if !ok {
		return nil, fmt.Errorf("unknown order %q", order)
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT cx,cy,builds,build_ms_total,build_ms_max,grid_size,anchors,segments,skipped,path_nodes,path_cost,evictions,last_tick
FROM chunk_stats ORDER BY `+clause+` LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChunkStats
	for rows.Next() {
		var c ChunkStats
		var last int64
		if err := rows.Scan(&c.CX, &c.CY, &c.Builds, &c.BuildMSTotal, &c.BuildMSMax, &c.GridSize, &c.Anchors,
			&c.Segments, &c.Skipped, &c.PathNodes, &c.PathCost, &c.Evictions, &last); err != nil {
			return nil, err
		}
		c.LastTick = uint64(last)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Reader) Chunk(ctx context.Context, cx, cy int) (ChunkStats, bool, error) {
	c := ChunkStats{CX: cx, CY: cy}
	var last int64
	err := r.db.QueryRowContext(ctx, `SELECT builds,build_ms_total,build_ms_max,grid_size,anchors,segments,skipped,path_nodes,path_cost,evictions,last_tick
FROM chunk_stats WHERE cx=? AND cy=?`, cx, cy).Scan(&c.Builds, &c.BuildMSTotal, &c.BuildMSMax, &c.GridSize, &c.Anchors,
		&c.Segments, &c.Skipped, &c.PathNodes, &c.PathCost, &c.Evictions, &last)
	if err == sql.ErrNoRows {
		return ChunkStats{}, false, nil
	}
	if err != nil {
		return ChunkStats{}, false, err
	}
	c.LastTick = uint64(last)
	return c, true, nil
}

// EventCounts returns the number of indexed events per kind.
func (r *Reader) EventCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM chunk_events GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// Config returns the stored JSON of a named config (e.g. "tuning").
func (r *Reader) Config(ctx context.Context, name string) (digest, raw string, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT digest,json FROM configs WHERE name=?`, name).Scan(&digest, &raw)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("config %q not indexed", name)
	}
	return digest, raw, err
}
