package observer

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"terrascape.ai/internal/observerproto"
	"terrascape.ai/internal/sim/world"
	"terrascape.ai/internal/sim/world/terrain/gen"
	"terrascape.ai/internal/sim/world/terrain/noise"
)

func startWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(world.Config{
		TickRateHz:          100,
		Seed:                11,
		Workers:             2,
		WorldWidth:          33,
		WorldHeight:         10,
		HeightmapResolution: 17,
		AlphamapResolution:  32,
		Noise:               noise.Params{Scale: 8, Persistence: 0.5, Lacunarity: 2, Octaves: 1, Seed: 11},
		Regions:             []gen.Region{{Name: "low", Height: 0.5}, {Name: "high", Height: 1}},
		VisibleRadius:       0,
		NodeSize:            2.0625,
		PathWidth:           2.0625,
	}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
	return w
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func newHTTPServer(t *testing.T, s *Server) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observer/ws", s.WSHandler())
	mux.HandleFunc("/v1/observer/bootstrap", s.BootstrapHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// waitFor reads messages until one of type typ arrives.
func waitFor(t *testing.T, conn *websocket.Conn, typ string) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		var base struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(msg, &base)
		if base.Type == typ {
			return msg
		}
	}
}

func TestObserver_SubscribeDriveAndStream(t *testing.T) {
	w := startWorld(t)
	srv := newHTTPServer(t, NewServer(w, log.New(io.Discard, "", 0)))
	conn := dial(t, srv)

	if err := conn.WriteJSON(observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Terrain:         true,
		Drive:           true,
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	var hello observerproto.HelloMsg
	if err := json.Unmarshal(waitFor(t, conn, observerproto.TypeHello), &hello); err != nil {
		t.Fatalf("hello: %v", err)
	}
	if hello.SessionID == "" || hello.WorldParams.ChunkSize != 32 {
		t.Fatalf("hello: %+v", hello)
	}

	if err := conn.WriteJSON(observerproto.ViewpointMsg{
		Type:            observerproto.TypeViewpoint,
		ProtocolVersion: observerproto.Version,
		X:               40,
		Z:               -5,
	}); err != nil {
		t.Fatalf("viewpoint: %v", err)
	}

	var terrain observerproto.ChunkTerrainMsg
	if err := json.Unmarshal(waitFor(t, conn, observerproto.TypeChunkTerrain), &terrain); err != nil {
		t.Fatalf("terrain: %v", err)
	}
	if terrain.CX != 1 || terrain.CY != -1 || terrain.HeightRes != 17 || terrain.Layers != 2 {
		t.Fatalf("terrain header: cx=%d cy=%d res=%d layers=%d", terrain.CX, terrain.CY, terrain.HeightRes, terrain.Layers)
	}

	var paths observerproto.ChunkPathsMsg
	if err := json.Unmarshal(waitFor(t, conn, observerproto.TypeChunkPaths), &paths); err != nil {
		t.Fatalf("paths: %v", err)
	}
	if paths.CX != 1 || paths.CY != -1 || paths.MaskEncoding != observerproto.MaskEncoding || paths.Mask == "" {
		t.Fatalf("paths: %+v", paths)
	}
}

func TestObserver_ViewpointIgnoredWithoutDrive(t *testing.T) {
	w := startWorld(t)
	srv := newHTTPServer(t, NewServer(w, log.New(io.Discard, "", 0)))
	conn := dial(t, srv)

	_ = conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version})
	waitFor(t, conn, observerproto.TypeHello)
	_ = conn.WriteJSON(observerproto.ViewpointMsg{Type: observerproto.TypeViewpoint, ProtocolVersion: observerproto.Version, X: 500})

	time.Sleep(100 * time.Millisecond)
	if m := w.Metrics(); m.Totals.Requested != 0 {
		t.Fatalf("viewpoint applied without drive: %+v", m.Totals)
	}
}

func TestObserver_RejectsBadHandshake(t *testing.T) {
	w := startWorld(t)
	srv := newHTTPServer(t, NewServer(w, log.New(io.Discard, "", 0)))
	conn := dial(t, srv)

	_ = conn.WriteJSON(map[string]string{"type": "HELLO", "protocol_version": observerproto.Version})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestBootstrapHandler(t *testing.T) {
	w := startWorld(t)
	srv := newHTTPServer(t, NewServer(w, log.New(io.Discard, "", 0)))

	resp, err := http.Get(srv.URL + "/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.ProtocolVersion != observerproto.Version || len(b.WorldParams.Regions) != 2 {
		t.Fatalf("bootstrap: %+v", b)
	}

	post, err := http.Post(srv.URL+"/v1/observer/bootstrap", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST status: got %d", post.StatusCode)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.2:5000":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q): got %v want %v", addr, got, want)
		}
	}
}
