package observerproto_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"terrascape.ai/internal/observerproto"
)

func TestSchemas_ValidateMessages(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	// Round-trip through JSON so the validator sees what goes on the wire.
	validate := func(name string, msg any) {
		t.Helper()
		b, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("%s: marshal: %v", name, err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("%s: unmarshal: %v", name, err)
		}
		if err := compile(name).Validate(v); err != nil {
			t.Fatalf("%s: validate: %v", name, err)
		}
	}

	const v = observerproto.Version
	params := observerproto.WorldParams{
		TickRateHz:          20,
		Seed:                7,
		ChunkSize:           99,
		HeightmapResolution: 129,
		AlphamapResolution:  512,
		WorldHeight:         100,
		NodeSize:            0.5,
		VisibleRadius:       2,
		Regions:             []string{"water", "sand", "grass"},
	}

	validate("subscribe.schema.json", observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: v, Terrain: true})
	validate("viewpoint.schema.json", observerproto.ViewpointMsg{Type: observerproto.TypeViewpoint, ProtocolVersion: v, X: -12.5, Z: 300})
	validate("hello.schema.json", observerproto.HelloMsg{Type: observerproto.TypeHello, ProtocolVersion: v, SessionID: "O1", Tick: 3, WorldParams: params})
	validate("chunk_terrain.schema.json", observerproto.ChunkTerrainMsg{
		Type: observerproto.TypeChunkTerrain, ProtocolVersion: v, Tick: 4, CX: -1, CY: 2,
		Encoding: "ZSTD_F32LE", HeightRes: 129, Heights: "AAAA", AlphaRes: 512, Layers: 3, Blend: "AAAA",
	})
	validate("chunk_state.schema.json", observerproto.ChunkStateMsg{Type: observerproto.TypeChunkState, ProtocolVersion: v, Tick: 5, CX: 0, CY: 0, Active: true})
	validate("chunk_state.schema.json", observerproto.ChunkStateMsg{Type: observerproto.TypeChunkState, ProtocolVersion: v, Tick: 5, Evicted: true})
	validate("chunk_anchors.schema.json", observerproto.ChunkAnchorsMsg{
		Type: observerproto.TypeChunkAnchors, ProtocolVersion: v, Tick: 6, CX: 1, CY: 1, GridSize: 198,
		Anchors: []observerproto.Anchor{{Edge: "top", X: 12, Y: 197}, {Edge: "left", X: 0, Y: 40}},
	})
	validate("chunk_paths.schema.json", observerproto.ChunkPathsMsg{
		Type: observerproto.TypeChunkPaths, ProtocolVersion: v, Tick: 9, CX: 1, CY: 1,
		Segments: []observerproto.Segment{{From: "top", To: "left", Cost: 1.41, Nodes: [][2]int{{1, 1}, {0, 0}}}},
		AlphaRes: 512, MaskEncoding: observerproto.MaskEncoding, Mask: "AAE=",
	})
	validate("chunk_paths.schema.json", observerproto.ChunkPathsMsg{
		Type: observerproto.TypeChunkPaths, ProtocolVersion: v, AlphaRes: 1, MaskEncoding: observerproto.MaskEncoding,
	})
}

func TestSchemas_RejectWrongType(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "chunk_state.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var v any
	_ = json.Unmarshal([]byte(`{"type":"CHUNK_PATHS","protocol_version":"1.0","tick":0,"cx":0,"cy":0,"active":true}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("expected CHUNK_PATHS to fail the CHUNK_STATE schema")
	}
}
