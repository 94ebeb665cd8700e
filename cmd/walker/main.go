package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"terrascape.ai/internal/observerproto"
	"terrascape.ai/internal/sim/encoding"
	"terrascape.ai/internal/sim/world/terrain/noise"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/observer/ws", "observer ws url")
		terrain  = flag.Bool("terrain", false, "request CHUNK_TERRAIN payloads")
		x0       = flag.Float64("x", 0, "start x")
		z0       = flag.Float64("z", 0, "start z")
		heading  = flag.Float64("heading", 0, "walk direction in degrees (0 = +x, 90 = +z)")
		speed    = flag.Float64("speed", 10, "world units per second")
		interval = flag.Duration("interval", 250*time.Millisecond, "viewpoint update interval")
		duration = flag.Duration("duration", 0, "stop after this long (0 = until interrupted)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[walker] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Terrain:         *terrain,
		Drive:           true,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	msgs := make(chan []byte, 256)
	go func() {
		defer close(msgs)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			msgs <- b
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	rad := *heading * math.Pi / 180
	dx, dz := math.Cos(rad), math.Sin(rad)
	start := time.Now()
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-deadline:
			return
		case <-ticker.C:
			d := time.Since(start).Seconds() * *speed
			vp := observerproto.ViewpointMsg{
				Type:            observerproto.TypeViewpoint,
				ProtocolVersion: observerproto.Version,
				X:               *x0 + dx*d,
				Z:               *z0 + dz*d,
			}
			if err := conn.WriteJSON(vp); err != nil {
				logger.Printf("send VIEWPOINT: %v", err)
				return
			}
		case b, ok := <-msgs:
			if !ok {
				return
			}
			handle(logger, b)
		}
	}
}

func handle(logger *log.Logger, b []byte) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &base); err != nil {
		logger.Printf("bad message: %v", err)
		return
	}
	switch base.Type {
	case observerproto.TypeHello:
		var m observerproto.HelloMsg
		if json.Unmarshal(b, &m) == nil {
			p := m.WorldParams
			logger.Printf("HELLO session=%s tick=%d seed=%d chunk_size=%.0f radius=%d regions=%v",
				m.SessionID, m.Tick, p.Seed, p.ChunkSize, p.VisibleRadius, p.Regions)
		}
	case observerproto.TypeChunkTerrain:
		var m observerproto.ChunkTerrainMsg
		if json.Unmarshal(b, &m) != nil {
			return
		}
		hs, err := encoding.DecodeFloat32(m.Heights, m.HeightRes*m.HeightRes)
		if err != nil {
			logger.Printf("TERRAIN (%d,%d): %v", m.CX, m.CY, err)
			return
		}
		f := &noise.Field{Width: m.HeightRes, Height: m.HeightRes, Values: hs}
		lo, hi := f.MinMax()
		logger.Printf("TERRAIN (%d,%d) heights=[%.3f,%.3f] layers=%d", m.CX, m.CY, lo, hi, m.Layers)
	case observerproto.TypeChunkState:
		var m observerproto.ChunkStateMsg
		if json.Unmarshal(b, &m) == nil {
			logger.Printf("STATE (%d,%d) active=%v evicted=%v tick=%d", m.CX, m.CY, m.Active, m.Evicted, m.Tick)
		}
	case observerproto.TypeChunkAnchors:
		var m observerproto.ChunkAnchorsMsg
		if json.Unmarshal(b, &m) == nil {
			logger.Printf("ANCHORS (%d,%d) grid=%d anchors=%v", m.CX, m.CY, m.GridSize, m.Anchors)
		}
	case observerproto.TypeChunkPaths:
		var m observerproto.ChunkPathsMsg
		if json.Unmarshal(b, &m) != nil {
			return
		}
		painted := 0
		if mask, err := encoding.DecodeMaskRLE(m.Mask, m.AlphaRes*m.AlphaRes); err == nil {
			for _, v := range mask {
				if v != 0 {
					painted++
				}
			}
		}
		var cost float64
		for _, s := range m.Segments {
			cost += s.Cost
		}
		logger.Printf("PATHS (%d,%d) segments=%d cost=%.2f painted_cells=%d", m.CX, m.CY, len(m.Segments), cost, painted)
	default:
		logger.Printf("unknown message type %q", base.Type)
	}
}
