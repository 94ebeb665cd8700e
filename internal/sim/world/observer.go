package world

import (
	"encoding/json"

	"terrascape.ai/internal/observerproto"
	"terrascape.ai/internal/sim/encoding"
	"terrascape.ai/internal/sim/world/terrain/gen"
	"terrascape.ai/internal/sim/world/terrain/noise"
	"terrascape.ai/internal/sim/world/terrain/store"
)

// ObserverJoinRequest registers a read-only observer session. Chunk messages
// are queued on Out without blocking; a chunk whose message does not fit is
// resent in full once the session has room again.
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte

	// Terrain enables CHUNK_TERRAIN payloads.
	Terrain bool
}

// ObserverSubscribeRequest updates an existing observer session.
type ObserverSubscribeRequest struct {
	SessionID string
	Terrain   bool
}

type observerClient struct {
	id      string
	out     chan []byte
	terrain bool

	// resend maps chunks whose last update was dropped to the index of the
	// next chunkMessages entry to send.
	resend map[ChunkKey]int
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	if old := w.observers[req.SessionID]; old != nil {
		close(old.out)
	}
	c := &observerClient{
		id:      req.SessionID,
		out:     req.Out,
		terrain: req.Terrain,
		resend:  map[ChunkKey]int{},
	}
	w.observers[req.SessionID] = c

	hello := observerproto.HelloMsg{
		Type:            observerproto.TypeHello,
		ProtocolVersion: observerproto.Version,
		SessionID:       c.id,
		Tick:            w.tick.Load(),
		WorldParams:     w.worldParams(),
	}
	if b, ok := w.marshal(hello); ok {
		select {
		case c.out <- b:
		default:
		}
	}
	for _, k := range w.chunks.Keys() {
		c.resend[k] = 0
	}
	w.flushObserver(c)
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := w.observers[req.SessionID]
	if c == nil {
		return
	}
	wasTerrain := c.terrain
	c.terrain = req.Terrain
	if c.terrain && !wasTerrain {
		for _, k := range w.chunks.Keys() {
			c.resend[k] = 0
		}
	}
}

func (w *World) handleObserverLeave(sessionID string) {
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.out)
}

func (w *World) flushObservers() {
	for _, c := range w.observers {
		w.flushObserver(c)
	}
}

// flushObserver resends chunks in key order until the session's queue is
// full. A chunk interrupted halfway resumes where it stopped.
func (w *World) flushObserver(c *observerClient) {
	keys := make([]ChunkKey, 0, len(c.resend))
	for k := range c.resend {
		keys = append(keys, k)
	}
	store.SortKeys(keys)
	for _, k := range keys {
		ch, ok := w.chunks.Get(k)
		if !ok {
			delete(c.resend, k)
			continue
		}
		msgs := w.chunkMessages(ch, c.terrain)
		for i := c.resend[k]; i < len(msgs); i++ {
			select {
			case c.out <- msgs[i]:
				c.resend[k] = i + 1
			default:
				return
			}
		}
		delete(c.resend, k)
	}
}

func (w *World) chunkMessages(ch *Chunk, terrain bool) [][]byte {
	var out [][]byte
	add := func(v any) {
		if b, ok := w.marshal(v); ok {
			out = append(out, b)
		}
	}
	if terrain {
		add(w.terrainMsg(ch.Key, ch.Heights, ch.Blend))
	}
	add(w.stateMsg(ch.Key, w.chunks.IsActive(ch.Key), false))
	v := w.view(ch)
	if w.anchorsAssigned(ch) {
		add(w.anchorsMsg(v))
	}
	if ch.Painted != nil {
		add(w.pathsMsg(v, ch.Painted))
	}
	return out
}

func (w *World) sendChunk(c *observerClient, k ChunkKey, b []byte) {
	if next, stale := c.resend[k]; stale {
		// The update may sit before the resume point; start the chunk over.
		if next > 0 {
			c.resend[k] = 0
		}
		return
	}
	select {
	case c.out <- b:
	default:
		c.resend[k] = 0
		w.totals.dropped++
	}
}

func (w *World) broadcast(k ChunkKey, v any, terrainOnly bool) {
	if len(w.observers) == 0 {
		return
	}
	b, ok := w.marshal(v)
	if !ok {
		return
	}
	for _, c := range w.observers {
		if terrainOnly && !c.terrain {
			continue
		}
		w.sendChunk(c, k, b)
	}
}

func (w *World) broadcastState(k ChunkKey, active, evicted bool) {
	if !evicted {
		w.broadcast(k, w.stateMsg(k, active, false), false)
		return
	}
	b, ok := w.marshal(w.stateMsg(k, false, true))
	if !ok {
		return
	}
	for _, c := range w.observers {
		delete(c.resend, k)
		select {
		case c.out <- b:
		default:
			w.totals.dropped++
		}
	}
}

// observerFanout is the built-in consumer that streams chunk updates to
// observer sessions.
type observerFanout struct{ w *World }

func (f observerFanout) OnTerrain(k ChunkKey, heights *noise.Field, blend *gen.BlendMap) {
	w := f.w
	if len(w.observers) == 0 {
		return
	}
	for _, c := range w.observers {
		if c.terrain {
			w.broadcast(k, w.terrainMsg(k, heights, blend), true)
			break
		}
	}
	w.broadcast(k, w.stateMsg(k, w.chunks.IsActive(k), false), false)
}

func (f observerFanout) OnAnchors(v ChunkView) {
	f.w.broadcast(v.Key, f.w.anchorsMsg(v), false)
}

func (f observerFanout) OnPaths(v ChunkView, painted *gen.BlendMap) {
	if len(f.w.observers) == 0 {
		return
	}
	f.w.broadcast(v.Key, f.w.pathsMsg(v, painted), false)
}

func (w *World) marshal(v any) ([]byte, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		w.logger.Printf("world: observer marshal: %v", err)
		return nil, false
	}
	return b, true
}

func (w *World) worldParams() observerproto.WorldParams {
	regions := make([]string, len(w.cfg.Regions))
	for i, r := range w.cfg.Regions {
		regions[i] = r.Name
	}
	return observerproto.WorldParams{
		TickRateHz:          w.cfg.TickRateHz,
		Seed:                w.cfg.Seed,
		ChunkSize:           w.cfg.ChunkSize(),
		HeightmapResolution: w.cfg.HeightmapResolution,
		AlphamapResolution:  w.cfg.AlphamapResolution,
		WorldHeight:         w.cfg.WorldHeight,
		NodeSize:            w.cfg.NodeSize,
		VisibleRadius:       w.cfg.VisibleRadius,
		Regions:             regions,
	}
}

func (w *World) terrainMsg(k ChunkKey, heights *noise.Field, blend *gen.BlendMap) observerproto.ChunkTerrainMsg {
	return observerproto.ChunkTerrainMsg{
		Type:            observerproto.TypeChunkTerrain,
		ProtocolVersion: observerproto.Version,
		Tick:            w.tick.Load(),
		CX:              k.CX,
		CY:              k.CY,
		Encoding:        encoding.FieldEncoding,
		HeightRes:       heights.Width,
		Heights:         encoding.EncodeFloat32(heights.Values),
		AlphaRes:        blend.Resolution,
		Layers:          blend.Layers,
		Blend:           encoding.EncodeFloat32(blend.Weights),
	}
}

func (w *World) stateMsg(k ChunkKey, active, evicted bool) observerproto.ChunkStateMsg {
	return observerproto.ChunkStateMsg{
		Type:            observerproto.TypeChunkState,
		ProtocolVersion: observerproto.Version,
		Tick:            w.tick.Load(),
		CX:              k.CX,
		CY:              k.CY,
		Active:          active,
		Evicted:         evicted,
	}
}

func (w *World) anchorsMsg(v ChunkView) observerproto.ChunkAnchorsMsg {
	m := observerproto.ChunkAnchorsMsg{
		Type:            observerproto.TypeChunkAnchors,
		ProtocolVersion: observerproto.Version,
		Tick:            w.tick.Load(),
		CX:              v.Key.CX,
		CY:              v.Key.CY,
		GridSize:        v.GridSize,
		Anchors:         make([]observerproto.Anchor, 0, len(v.Anchors)),
	}
	for _, a := range v.Anchors {
		m.Anchors = append(m.Anchors, observerproto.Anchor{Edge: a.Edge.String(), X: a.X, Y: a.Y})
	}
	return m
}

func (w *World) pathsMsg(v ChunkView, painted *gen.BlendMap) observerproto.ChunkPathsMsg {
	m := observerproto.ChunkPathsMsg{
		Type:            observerproto.TypeChunkPaths,
		ProtocolVersion: observerproto.Version,
		Tick:            w.tick.Load(),
		CX:              v.Key.CX,
		CY:              v.Key.CY,
		Segments:        make([]observerproto.Segment, 0, len(v.Segments)),
		AlphaRes:        painted.Resolution,
		MaskEncoding:    observerproto.MaskEncoding,
		Mask:            encoding.EncodeMaskRLE(PathMask(painted)),
	}
	for _, s := range v.Segments {
		seg := observerproto.Segment{From: s.From.String(), To: s.To.String(), Cost: s.Cost, Nodes: make([][2]int, len(s.Nodes))}
		for i, p := range s.Nodes {
			seg.Nodes[i] = [2]int{p.X, p.Y}
		}
		m.Segments = append(m.Segments, seg)
	}
	return m
}

// PathMask flattens the last (path) layer of a painted blend map into one
// byte per alpha cell.
func PathMask(painted *gen.BlendMap) []uint8 {
	n := painted.Resolution * painted.Resolution
	mask := make([]uint8, n)
	if painted.Layers == 0 {
		return mask
	}
	last := painted.Layers - 1
	for i := 0; i < n; i++ {
		if painted.Weights[i*painted.Layers+last] >= 0.5 {
			mask[i] = 1
		}
	}
	return mask
}
