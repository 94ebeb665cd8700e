package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"terrascape.ai/internal/persistence/indexdb"
	"terrascape.ai/internal/sim/tuning"
	"terrascape.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.EventLogger
	Close() error
	UpsertTuning(tune tuning.Tuning) error
}

// metricSource is implemented by backends that report queue health.
type metricSource interface {
	metricLines() []metricLine
}

type sqliteIndex struct{ *indexdb.SQLiteIndex }

func (s sqliteIndex) metricLines() []metricLine {
	st := s.Stats()
	return []metricLine{
		{"terrascape_index_queue_depth", "gauge", "Index writer queue depth.", float64(st.QueueDepth)},
		{"terrascape_index_dropped_total", "counter", "Events dropped because the index queue was full.", float64(st.DroppedTotal)},
		{"terrascape_index_written_total", "counter", "Events written to the index.", float64(st.WrittenTotal)},
		{"terrascape_index_tx_fail_total", "counter", "Index transactions that failed.", float64(st.TxFailTotal)},
	}
}

type d1Index struct{ *indexdb.D1Index }

func (d d1Index) metricLines() []metricLine {
	st := d.Stats()
	return []metricLine{
		{"terrascape_index_queue_depth", "gauge", "Index writer queue depth.", float64(st.QueueDepth)},
		{"terrascape_index_dropped_total", "counter", "Events dropped because the index queue was full.", float64(st.QueueDroppedTotal + st.RetainDroppedTotal)},
		{"terrascape_index_flush_ok_total", "counter", "Successful ingest batches.", float64(st.FlushOKTotal)},
		{"terrascape_index_flush_fail_total", "counter", "Failed ingest batches.", float64(st.FlushFailTotal)},
	}
}

func openRuntimeIndex(worldDir, worldID string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("TS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "chunks.sqlite")
		idx, err := indexdb.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		return sqliteIndex{idx}, nil
	case "d1":
		endpoint := strings.TrimSpace(os.Getenv("TS_INDEX_D1_INGEST_URL"))
		token := strings.TrimSpace(os.Getenv("TS_INDEX_D1_TOKEN"))
		if endpoint == "" {
			return nil, fmt.Errorf("TS_INDEX_BACKEND=d1 but TS_INDEX_D1_INGEST_URL is empty")
		}
		flushMS := envInt("TS_INDEX_D1_FLUSH_MS", 500)
		batchSize := envInt("TS_INDEX_D1_BATCH_SIZE", 128)
		idx, err := indexdb.OpenD1(indexdb.D1Config{
			Endpoint:      endpoint,
			Token:         token,
			WorldID:       worldID,
			BatchSize:     batchSize,
			FlushInterval: time.Duration(flushMS) * time.Millisecond,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return d1Index{idx}, nil
	default:
		return nil, fmt.Errorf("unsupported TS_INDEX_BACKEND: %s", backend)
	}
}
