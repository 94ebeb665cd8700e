package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"terrascape.ai/internal/persistence/indexdb"
	"terrascape.ai/internal/sim/world"
)

func TestWriteMetrics(t *testing.T) {
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "chunks.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	var sb strings.Builder
	writeMetrics(&sb, "w1", world.WorldMetrics{
		Tick:         42,
		LoadedChunks: 9,
		ActiveChunks: 4,
		StepMS:       1.25,
		QueueDepths:  world.QueueDepths{Planning: 3},
		Totals:       world.Totals{Built: 9, Segments: 50},
	}, 2, sqliteIndex{idx})
	out := sb.String()
	for _, want := range []string{
		`terrascape_world_tick{world="w1"} 42`,
		`terrascape_world_loaded_chunks{world="w1"} 9`,
		`terrascape_observer_sessions{world="w1"} 2`,
		`terrascape_world_step_ms{world="w1"} 1.250`,
		`terrascape_world_queue_depth{world="w1",queue="planning"} 3`,
		`terrascape_chunks_built_total{world="w1"} 9`,
		`terrascape_path_segments_total{world="w1"} 50`,
		`terrascape_index_queue_depth{world="w1"} 0`,
		"# TYPE terrascape_chunks_built_total counter",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics missing %q:\n%s", want, out)
		}
	}
}

type failingLogger struct{ n int }

func (f *failingLogger) WriteEvent(world.ChunkEvent) error {
	f.n++
	return errors.New("disk full")
}

type countingLogger struct{ n int }

func (c *countingLogger) WriteEvent(world.ChunkEvent) error {
	c.n++
	return nil
}

func TestMultiEventLogger_WritesBothAndKeepsFirstError(t *testing.T) {
	a, b := &failingLogger{}, &countingLogger{}
	err := multiEventLogger{a, b}.WriteEvent(world.ChunkEvent{Kind: world.EventBuilt})
	if err == nil || a.n != 1 || b.n != 1 {
		t.Fatalf("got err=%v a=%d b=%d", err, a.n, b.n)
	}
	if err := (multiEventLogger{a: b}).WriteEvent(world.ChunkEvent{}); err != nil {
		t.Fatalf("nil second logger: %v", err)
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	t.Setenv("TS_INDEX_BACKEND", "")
	idx, err := openRuntimeIndex(t.TempDir(), "w1", false, nil)
	if err != nil || idx == nil {
		t.Fatalf("sqlite backend: idx=%v err=%v", idx, err)
	}
	_ = idx.Close()

	if idx, err := openRuntimeIndex(t.TempDir(), "w1", true, nil); idx != nil || err != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}

	t.Setenv("TS_INDEX_BACKEND", "d1")
	t.Setenv("TS_INDEX_D1_INGEST_URL", "")
	if _, err := openRuntimeIndex(t.TempDir(), "w1", false, nil); err == nil {
		t.Fatalf("d1 without endpoint: expected error")
	}

	t.Setenv("TS_INDEX_BACKEND", "redis")
	if _, err := openRuntimeIndex(t.TempDir(), "w1", false, nil); err == nil {
		t.Fatalf("unknown backend: expected error")
	}
}
