package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	persistlog "terrascape.ai/internal/persistence/log"
	"terrascape.ai/internal/sim/world"
)

func main() {
	var (
		dataDir = flag.String("data", "", "world data dir containing events/chunks-*.jsonl.zst")
		file    = flag.String("file", "", "single event log file (overrides -data)")
		from    = flag.Uint64("from_tick", 0, "ignore events before this tick")
		to      = flag.Uint64("to_tick", 0, "stop after this tick (0 = end of log)")
		top     = flag.Int("top", 5, "slowest builds to print")
	)
	flag.Parse()

	var files []string
	switch {
	case *file != "":
		files = []string{*file}
	case *dataDir != "":
		fs, err := persistlog.EventFiles(*dataDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list events:", err)
			os.Exit(1)
		}
		files = fs
	default:
		fmt.Fprintln(os.Stderr, "missing -data or -file")
		os.Exit(2)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no event files found")
		os.Exit(1)
	}

	s := newSummary()
	for _, path := range files {
		err := persistlog.ReadEventFile(path, func(e world.ChunkEvent) error {
			if e.Tick < *from {
				return nil
			}
			if *to != 0 && e.Tick > *to {
				return io.EOF
			}
			s.add(e)
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
			os.Exit(1)
		}
	}
	s.print(os.Stdout, *top)
	if len(s.violations) > 0 {
		os.Exit(1)
	}
}

type chunkState struct {
	requested bool
	built     bool
	anchors   bool
	buildMS   float64
}

// summary folds a chunk event stream and checks it against the lifecycle
// order: requested, built, anchors, paths. Evicted chunks start over.
type summary struct {
	events     int
	firstTick  uint64
	lastTick   uint64
	kinds      map[world.EventKind]int
	chunks     map[world.ChunkKey]*chunkState
	segments   int
	skipped    int
	pathCost   float64
	slowest    []world.ChunkEvent
	violations []string
}

func newSummary() *summary {
	return &summary{
		kinds:  map[world.EventKind]int{},
		chunks: map[world.ChunkKey]*chunkState{},
	}
}

func (s *summary) violate(e world.ChunkEvent, format string, args ...any) {
	msg := fmt.Sprintf("tick %d chunk (%d,%d): ", e.Tick, e.CX, e.CY) + fmt.Sprintf(format, args...)
	s.violations = append(s.violations, msg)
}

func (s *summary) add(e world.ChunkEvent) {
	if s.events == 0 {
		s.firstTick = e.Tick
	}
	if e.Tick < s.lastTick {
		s.violate(e, "tick went backwards from %d", s.lastTick)
	}
	s.lastTick = e.Tick
	s.events++
	s.kinds[e.Kind]++

	k := world.ChunkKey{CX: e.CX, CY: e.CY}
	st := s.chunks[k]
	if st == nil {
		st = &chunkState{}
		s.chunks[k] = st
	}

	switch e.Kind {
	case world.EventRequested:
		if st.requested {
			s.violate(e, "requested twice")
		}
		st.requested = true
	case world.EventBuilt:
		if !st.requested {
			s.violate(e, "built without a request")
		}
		st.built = true
		st.buildMS = e.BuildMS
		s.slowest = append(s.slowest, e)
	case world.EventActivated, world.EventDeactivated:
		if !st.built {
			s.violate(e, "%s before built", e.Kind)
		}
	case world.EventAnchors:
		if !st.built {
			s.violate(e, "anchors before built")
		}
		st.anchors = true
	case world.EventPaths:
		if !st.anchors {
			s.violate(e, "paths before anchors")
		}
		if want := e.Anchors * (e.Anchors - 1) / 2; e.Anchors > 0 && e.Segments+e.Skipped != want {
			s.violate(e, "segments=%d skipped=%d for %d anchors", e.Segments, e.Skipped, e.Anchors)
		}
		s.segments += e.Segments
		s.skipped += e.Skipped
		s.pathCost += e.PathCost
	case world.EventEvicted:
		delete(s.chunks, k)
	default:
		s.violate(e, "unknown kind %q", e.Kind)
	}
}

func (s *summary) print(out io.Writer, top int) {
	fmt.Fprintf(out, "events=%d ticks=[%d,%d] chunks_seen=%d\n", s.events, s.firstTick, s.lastTick, len(s.chunks))

	kinds := make([]string, 0, len(s.kinds))
	for k := range s.kinds {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(out, "  %-12s %d\n", k, s.kinds[world.EventKind(k)])
	}
	fmt.Fprintf(out, "segments=%d skipped_pairs=%d path_cost=%.2f\n", s.segments, s.skipped, s.pathCost)

	sort.SliceStable(s.slowest, func(i, j int) bool { return s.slowest[i].BuildMS > s.slowest[j].BuildMS })
	for i, e := range s.slowest {
		if i >= top {
			break
		}
		fmt.Fprintf(out, "slow build (%d,%d) %.2fms at tick %d\n", e.CX, e.CY, e.BuildMS, e.Tick)
	}

	if len(s.violations) == 0 {
		fmt.Fprintln(out, "lifecycle ok")
		return
	}
	fmt.Fprintf(out, "lifecycle violations: %d\n", len(s.violations))
	for _, v := range s.violations {
		fmt.Fprintln(out, "  "+v)
	}
}
