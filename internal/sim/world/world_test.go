package world

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"terrascape.ai/internal/sim/world/nav/grid"
	"terrascape.ai/internal/sim/world/nav/plan"
	"terrascape.ai/internal/sim/world/terrain/gen"
	"terrascape.ai/internal/sim/world/terrain/noise"
)

var quiet = log.New(io.Discard, "", 0)

// testConfig builds 33-unit chunks with a 16x16 node grid (two alpha cells
// per node) and inline terrain/grid builds.
func testConfig() Config {
	return Config{
		TickRateHz:          20,
		Seed:                3,
		Workers:             -1,
		WorldWidth:          33,
		WorldHeight:         10,
		HeightmapResolution: 17,
		AlphamapResolution:  32,
		Noise:               noise.Params{Scale: 8, Persistence: 0.5, Lacunarity: 2, Octaves: 2, Seed: 3},
		Regions: []gen.Region{
			{Name: "water", Height: 0.3},
			{Name: "grass", Height: 0.7},
			{Name: "rock", Height: 1},
		},
		VisibleRadius: 1,
		NodeSize:      2.0625,
		PathWidth:     2.0625,
	}
}

func newTestWorld(t *testing.T, cfg Config) *World {
	t.Helper()
	w, err := New(cfg, quiet)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(w.Close)
	return w
}

func stepUntil(t *testing.T, w *World, maxTicks int, done func() bool) {
	t.Helper()
	for i := 0; i < maxTicks; i++ {
		if done() {
			return
		}
		w.StepOnce(nil)
	}
	if !done() {
		t.Fatalf("condition not reached after %d ticks (metrics %+v)", maxTicks, w.Metrics())
	}
}

type recordingEvents struct{ kinds map[EventKind]int }

func (r *recordingEvents) WriteEvent(e ChunkEvent) error {
	if r.kinds == nil {
		r.kinds = map[EventKind]int{}
	}
	r.kinds[e.Kind]++
	return nil
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Regions = nil
	if _, err := New(cfg, quiet); err == nil {
		t.Fatalf("expected error for empty regions")
	}
	cfg = testConfig()
	cfg.NodeSize = 0.5
	if _, err := New(cfg, quiet); err == nil {
		t.Fatalf("expected error for node size below alpha cell")
	}
}

func TestChunkAt_FloorDivides(t *testing.T) {
	w := newTestWorld(t, testConfig())
	cases := []struct {
		pos  Vec2
		want ChunkKey
	}{
		{Vec2{0, 0}, ChunkKey{CX: 0, CY: 0}},
		{Vec2{31.9, 31.9}, ChunkKey{CX: 0, CY: 0}},
		{Vec2{32, 0}, ChunkKey{CX: 1, CY: 0}},
		{Vec2{-0.1, -32.5}, ChunkKey{CX: -1, CY: -2}},
	}
	for _, c := range cases {
		if got := w.ChunkAt(c.pos); got != c.want {
			t.Fatalf("ChunkAt(%v): got %v want %v", c.pos, got, c.want)
		}
	}
}

func TestOnViewpointMoved_Idempotent(t *testing.T) {
	w := newTestWorld(t, testConfig())
	w.OnViewpointMoved(Vec2{1, 1})
	if len(w.pending) != 9 || w.totals.requested != 9 {
		t.Fatalf("first move: pending=%d requested=%d want 9", len(w.pending), w.totals.requested)
	}
	w.OnViewpointMoved(Vec2{20, 30})
	if w.totals.requested != 9 {
		t.Fatalf("same chunk re-requested: got %d", w.totals.requested)
	}
	if w.chunks.Count() != 0 {
		t.Fatalf("chunks registered before drain: %d", w.chunks.Count())
	}
	w.builder.Drain()
	if w.chunks.Count() != 9 || len(w.chunks.ActiveKeys()) != 9 || len(w.pending) != 0 {
		t.Fatalf("after drain: count=%d active=%d pending=%d", w.chunks.Count(), len(w.chunks.ActiveKeys()), len(w.pending))
	}
}

func TestOnViewpointMoved_NoRerequestWhileInFlight(t *testing.T) {
	w := newTestWorld(t, testConfig())
	w.OnViewpointMoved(Vec2{0, 0})
	w.OnViewpointMoved(Vec2{40, 0}) // chunk (1,0): three new columns at cx=2
	if w.totals.requested != 12 {
		t.Fatalf("requested: got %d want 12", w.totals.requested)
	}
	w.OnViewpointMoved(Vec2{0, 0})
	if w.totals.requested != 12 {
		t.Fatalf("in-flight chunks requested again: got %d want 12", w.totals.requested)
	}
}

func TestResultsOutsideRadiusRegisteredInactive(t *testing.T) {
	w := newTestWorld(t, testConfig())
	w.OnViewpointMoved(Vec2{0, 0})
	w.OnViewpointMoved(Vec2{1000, 0})
	w.builder.Drain()
	if w.chunks.Count() != 18 {
		t.Fatalf("count: got %d want 18", w.chunks.Count())
	}
	if got := len(w.chunks.ActiveKeys()); got != 9 {
		t.Fatalf("active: got %d want 9", got)
	}
	if w.chunks.IsActive(ChunkKey{CX: 0, CY: 0}) {
		t.Fatalf("chunk (0,0) active although out of view")
	}
}

func TestStepOnce_PlansAndPaintsEveryChunk(t *testing.T) {
	w := newTestWorld(t, testConfig())
	events := &recordingEvents{}
	w.SetEventLogger(events)

	w.StepOnce(&Vec2{0, 0})
	stepUntil(t, w, 100, func() bool { return w.Metrics().Totals.Painted == 9 })

	m := w.Metrics()
	if m.LoadedChunks != 9 || m.ActiveChunks != 9 {
		t.Fatalf("metrics: %+v", m)
	}
	if m.QueueDepths.Planning != 0 || m.QueueDepths.PathQueue != 0 || m.QueueDepths.AwaitingGrid != 0 {
		t.Fatalf("queues not empty: %+v", m.QueueDepths)
	}
	if m.Totals.Segments != 9*6 || m.Totals.SkippedPairs != 0 {
		t.Fatalf("segments: got %d skipped %d want 54/0", m.Totals.Segments, m.Totals.SkippedPairs)
	}
	for _, k := range w.chunks.Keys() {
		c, _ := w.chunks.Get(k)
		if c.Painted == nil || c.Painted.Layers != len(testConfig().Regions)+1 {
			t.Fatalf("chunk %v not painted", k)
		}
		v, _ := w.ChunkView(k)
		if len(v.Anchors) != 4 || v.GridSize != 16 {
			t.Fatalf("chunk %v view: %+v", k, v)
		}
		for _, s := range v.Segments {
			from, _ := c.planner.Anchor(s.From)
			to, _ := c.planner.Anchor(s.To)
			if s.Nodes[0] != from || s.Nodes[len(s.Nodes)-1] != to {
				t.Fatalf("chunk %v segment %s->%s endpoints %v..%v", k, s.From, s.To, s.Nodes[0], s.Nodes[len(s.Nodes)-1])
			}
		}
		mask := PathMask(c.Painted)
		painted := 0
		for _, b := range mask {
			painted += int(b)
		}
		if painted == 0 {
			t.Fatalf("chunk %v has an empty path mask", k)
		}
	}
	for _, kind := range []EventKind{EventRequested, EventBuilt, EventAnchors, EventPaths} {
		if events.kinds[kind] != 9 {
			t.Fatalf("events %s: got %d want 9", kind, events.kinds[kind])
		}
	}
}

func TestAnchorsMatchAcrossChunkBorders(t *testing.T) {
	w := newTestWorld(t, testConfig())
	w.StepOnce(&Vec2{0, 0})
	stepUntil(t, w, 10, func() bool { return w.Metrics().QueueDepths.AwaitingGrid == 0 && w.chunks.Count() == 9 })

	n := 16
	for _, k := range w.chunks.Keys() {
		a, _ := w.chunks.Get(k)
		if b, ok := w.chunks.Get(ChunkKey{CX: k.CX + 1, CY: k.CY}); ok {
			ar, _ := a.planner.Anchor(plan.Right)
			bl, _ := b.planner.Anchor(plan.Left)
			if ar != (grid.Point{X: n - 1, Y: bl.Y}) || bl.X != 0 {
				t.Fatalf("%v right %v vs %v left %v", k, ar, b.Key, bl)
			}
		}
		if b, ok := w.chunks.Get(ChunkKey{CX: k.CX, CY: k.CY + 1}); ok {
			at, _ := a.planner.Anchor(plan.Top)
			bb, _ := b.planner.Anchor(plan.Bottom)
			if at != (grid.Point{X: bb.X, Y: n - 1}) || bb.Y != 0 {
				t.Fatalf("%v top %v vs %v bottom %v", k, at, b.Key, bb)
			}
		}
	}
}

func TestAnchorsReusedForLaterNeighbour(t *testing.T) {
	cfg := testConfig()
	cfg.VisibleRadius = 0
	w := newTestWorld(t, cfg)
	w.StepOnce(&Vec2{0, 0})
	w.StepOnce(&Vec2{40, 0})

	a, _ := w.chunks.Get(ChunkKey{CX: 0, CY: 0})
	b, ok := w.chunks.Get(ChunkKey{CX: 1, CY: 0})
	if !ok {
		t.Fatalf("chunk (1,0) not loaded")
	}
	ar, _ := a.planner.Anchor(plan.Right)
	bl, _ := b.planner.Anchor(plan.Left)
	if ar.Y != bl.Y || bl.X != 0 {
		t.Fatalf("left anchor not reused: right=%v left=%v", ar, bl)
	}
}

func TestLRUEvictsInactiveChunks(t *testing.T) {
	cfg := testConfig()
	cfg.MaxChunks = 9
	w := newTestWorld(t, cfg)
	w.StepOnce(&Vec2{0, 0})
	w.StepOnce(&Vec2{10 * 32, 0})

	m := w.Metrics()
	if m.LoadedChunks != 9 || m.ActiveChunks != 9 || m.Totals.Evicted != 9 {
		t.Fatalf("after move: %+v", m)
	}
	if w.chunks.Exists(ChunkKey{CX: 0, CY: 0}) {
		t.Fatalf("out-of-view chunk survived eviction")
	}
	stepUntil(t, w, 100, func() bool { return w.Metrics().Totals.Painted == 9 })
}

func TestNeverPolicyKeepsChunks(t *testing.T) {
	w := newTestWorld(t, testConfig())
	w.StepOnce(&Vec2{0, 0})
	w.StepOnce(&Vec2{10 * 32, 0})
	w.StepOnce(&Vec2{0, 0})
	m := w.Metrics()
	if m.LoadedChunks != 18 || m.ActiveChunks != 9 || m.Totals.Requested != 18 {
		t.Fatalf("metrics: %+v", m)
	}
}

func TestChunkGridBeforeReadyWarns(t *testing.T) {
	var buf bytes.Buffer
	w, err := New(testConfig(), log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	c := &Chunk{Key: ChunkKey{CX: 2, CY: 3}, grid: grid.NewFuture()}
	if g := w.chunkGrid(c); g != nil {
		t.Fatalf("grid before ready: got %v", g)
	}
	if !strings.Contains(buf.String(), "node grid read while pending") {
		t.Fatalf("missing warning, log: %q", buf.String())
	}
}

type copyingConsumer struct {
	heights map[ChunkKey]*noise.Field
	paths   int
}

func (c *copyingConsumer) OnTerrain(k ChunkKey, h *noise.Field, _ *gen.BlendMap) {
	if c.heights == nil {
		c.heights = map[ChunkKey]*noise.Field{}
	}
	c.heights[k] = h
}
func (c *copyingConsumer) OnAnchors(ChunkView) {}
func (c *copyingConsumer) OnPaths(_ ChunkView, painted *gen.BlendMap) {
	c.paths++
	for i := range painted.Weights {
		painted.Weights[i] = -1
	}
}

func TestConsumerGetsCopies(t *testing.T) {
	cfg := testConfig()
	cfg.VisibleRadius = 0
	w := newTestWorld(t, cfg)
	cons := &copyingConsumer{}
	w.AddConsumer(cons)
	w.StepOnce(&Vec2{0, 0})
	stepUntil(t, w, 20, func() bool { return cons.paths == 1 })

	h := cons.heights[ChunkKey{CX: 0, CY: 0}]
	if h == nil {
		t.Fatalf("OnTerrain not called")
	}
	h.Values[0] = 99
	c, _ := w.chunks.Get(ChunkKey{CX: 0, CY: 0})
	if c.Heights.Values[0] == 99 {
		t.Fatalf("consumer mutated chunk heights")
	}
	if c.Painted.Weights[0] < 0 {
		t.Fatalf("consumer mutated painted blend map")
	}
}

func readTypes(ch chan []byte) []string {
	var out []string
	for {
		select {
		case b, ok := <-ch:
			if !ok {
				return out
			}
			var m struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal(b, &m)
			out = append(out, m.Type)
		default:
			return out
		}
	}
}

func count(types []string, typ string) int {
	n := 0
	for _, t := range types {
		if t == typ {
			n++
		}
	}
	return n
}

func TestObserverJoinCatchesUp(t *testing.T) {
	cfg := testConfig()
	cfg.VisibleRadius = 0
	w := newTestWorld(t, cfg)
	w.StepOnce(&Vec2{0, 0})
	stepUntil(t, w, 20, func() bool { return w.Metrics().Totals.Painted == 1 })

	out := make(chan []byte, 16)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "S1", Out: out, Terrain: true})
	types := readTypes(out)
	want := []string{"HELLO", "CHUNK_TERRAIN", "CHUNK_STATE", "CHUNK_ANCHORS", "CHUNK_PATHS"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("catch-up: got %v want %v", types, want)
	}
}

func TestObserverStreamsAndResendsDroppedChunks(t *testing.T) {
	cfg := testConfig()
	cfg.VisibleRadius = 0
	w := newTestWorld(t, cfg)

	out := make(chan []byte, 2)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "S1", Out: out})
	if got := readTypes(out); len(got) != 1 || got[0] != "HELLO" {
		t.Fatalf("hello: got %v", got)
	}

	// One tick builds, assigns anchors and starts planning; the state and
	// anchors messages fill the queue.
	w.StepOnce(&Vec2{0, 0})
	stepUntil(t, w, 20, func() bool { return w.Metrics().Totals.Painted == 1 })
	if w.Metrics().Totals.ObserverDropped == 0 {
		t.Fatalf("expected a dropped message with a 2-slot queue")
	}
	first := readTypes(out)
	if count(first, "CHUNK_STATE") != 1 || count(first, "CHUNK_ANCHORS") != 1 {
		t.Fatalf("first batch: %v", first)
	}

	w.StepOnce(nil)
	resent := readTypes(out)
	if count(resent, "CHUNK_STATE") != 1 || count(resent, "CHUNK_ANCHORS") != 1 {
		t.Fatalf("resend: %v", resent)
	}
	w.StepOnce(nil)
	if got := readTypes(out); count(got, "CHUNK_PATHS") != 1 {
		t.Fatalf("paths after resend: %v", got)
	}
	if count(resent, "CHUNK_TERRAIN") != 0 {
		t.Fatalf("terrain sent to a session without terrain")
	}
}

func TestObserverLeaveClosesOut(t *testing.T) {
	w := newTestWorld(t, testConfig())
	out := make(chan []byte, 4)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "S1", Out: out})
	w.handleObserverLeave("S1")
	readTypes(out)
	if _, ok := <-out; ok {
		t.Fatalf("out channel still open")
	}
	if len(w.observers) != 0 {
		t.Fatalf("observer not removed")
	}
}

func TestBootstrapReflectsActiveChunks(t *testing.T) {
	w := newTestWorld(t, testConfig())
	w.StepOnce(&Vec2{5, 5})
	b := w.Bootstrap()
	if len(b.ActiveChunks) != 9 || b.LoadedChunks != 9 || b.Viewpoint != [2]float64{5, 5} {
		t.Fatalf("bootstrap: %+v", b)
	}
	if b.WorldParams.ChunkSize != 32 || len(b.WorldParams.Regions) != 3 {
		t.Fatalf("params: %+v", b.WorldParams)
	}
}

func TestSetViewpointKeepsLatest(t *testing.T) {
	w := newTestWorld(t, testConfig())
	w.SetViewpoint(Vec2{1, 1})
	w.SetViewpoint(Vec2{2, 2})
	if got := <-w.viewpointCh; got != (Vec2{2, 2}) {
		t.Fatalf("viewpoint: got %v want {2 2}", got)
	}
}

func TestRun_StopsOnStopAndContext(t *testing.T) {
	cfg := testConfig()
	cfg.TickRateHz = 200
	w := newTestWorld(t, cfg)
	w.SetViewpoint(Vec2{0, 0})

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(context.Background()) }()
	deadline := time.Now().Add(5 * time.Second)
	for w.Metrics().LoadedChunks < 9 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()
	w.Stop()
	if err := <-errCh; err != nil {
		t.Fatalf("Run after Stop: %v", err)
	}
	if w.Metrics().LoadedChunks != 9 {
		t.Fatalf("loaded: got %d want 9", w.Metrics().LoadedChunks)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := newTestWorld(t, cfg).Run(ctx); err != context.Canceled {
		t.Fatalf("Run with cancelled ctx: got %v", err)
	}
}
