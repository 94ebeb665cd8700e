package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"terrascape.ai/internal/sim/world"
)

func TestEventLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLogger(dir)
	in := []world.ChunkEvent{
		{Tick: 1, Kind: world.EventRequested, CX: 0, CY: -1},
		{Tick: 2, Kind: world.EventBuilt, CX: 0, CY: -1, BuildMS: 3.5},
		{Tick: 9, Kind: world.EventPaths, CX: 0, CY: -1, Segments: 6, PathNodes: 80, PathCost: 71.2},
	}
	for _, e := range in {
		if err := l.WriteEvent(e); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := EventFiles(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("EventFiles: got %v err=%v", files, err)
	}
	var got []world.ChunkEvent
	if err := ReadEventFile(files[0], func(e world.ChunkEvent) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("ReadEventFile: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("events: got %d want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("event %d: got %+v want %+v", i, got[i], in[i])
		}
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "chunks")
	now := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	var closed []string
	w.OnClosed = func(path string) { closed = append(closed, filepath.Base(path)) }

	if err := w.Write(world.ChunkEvent{Tick: 1, Kind: world.EventBuilt}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(world.ChunkEvent{Tick: 2, Kind: world.EventBuilt}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(closed) != 1 || closed[0] != "chunks-2024-05-01-10.jsonl.zst" {
		t.Fatalf("closed after rotation: got %v", closed)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(closed) != 2 || closed[1] != "chunks-2024-05-01-11.jsonl.zst" {
		t.Fatalf("closed after Close: got %v", closed)
	}

	for _, name := range []string{"chunks-2024-05-01-10.jsonl.zst", "chunks-2024-05-01-11.jsonl.zst"} {
		n := 0
		if err := ReadEventFile(filepath.Join(dir, name), func(world.ChunkEvent) error { n++; return nil }); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if n != 1 {
			t.Fatalf("%s: got %d events want 1", name, n)
		}
	}
}

func TestReadEvents_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks-x.jsonl.zst")
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ReadEventFile(path, func(world.ChunkEvent) error { return nil }); err == nil {
		t.Fatalf("expected error for corrupt file")
	}
}
