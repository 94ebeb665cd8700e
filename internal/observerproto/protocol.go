package observerproto

// Version is the observer protocol version.
const Version = "1.0"

const (
	TypeSubscribe    = "SUBSCRIBE"
	TypeViewpoint    = "VIEWPOINT"
	TypeHello        = "HELLO"
	TypeChunkTerrain = "CHUNK_TERRAIN"
	TypeChunkState   = "CHUNK_STATE"
	TypeChunkAnchors = "CHUNK_ANCHORS"
	TypeChunkPaths   = "CHUNK_PATHS"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change what the session receives.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Terrain asks for CHUNK_TERRAIN payloads (height field + blend map).
	// Sessions that only follow chunk state and paths leave it off.
	Terrain bool `json:"terrain"`
	// Drive lets this session move the viewpoint with VIEWPOINT messages.
	Drive bool `json:"drive"`
}

// Client -> Server. Moves the viewpoint, in world units.
type ViewpointMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	X               float64 `json:"x"`
	Z               float64 `json:"z"`
}

// Server -> Client. Sent once the subscription is accepted.
type HelloMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	Viewpoint       [2]float64  `json:"viewpoint"`
	ActiveChunks    [][2]int    `json:"active_chunks"`
	LoadedChunks    int         `json:"loaded_chunks"`
}

type WorldParams struct {
	TickRateHz          int      `json:"tick_rate_hz"`
	Seed                int64    `json:"seed"`
	ChunkSize           float64  `json:"chunk_size"`
	HeightmapResolution int      `json:"heightmap_resolution"`
	AlphamapResolution  int      `json:"alphamap_resolution"`
	WorldHeight         float64  `json:"world_height"`
	NodeSize            float64  `json:"node_size"`
	VisibleRadius       int      `json:"visible_radius"`
	Regions             []string `json:"regions"`
}

// Server -> Client. Terrain of one chunk.
// Encoding "ZSTD_F32LE" means:
// - Decode base64 to bytes, zstd-decompress, interpret as little-endian float32
// - Heights: heightmap_resolution^2 values, row-major (x fastest)
// - Blend: alphamap_resolution^2 * layers values, (y*res+x)*layers+layer
type ChunkTerrainMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	CX              int    `json:"cx"`
	CY              int    `json:"cy"`
	Encoding        string `json:"encoding"`
	HeightRes       int    `json:"height_res"`
	Heights         string `json:"heights"`
	AlphaRes        int    `json:"alpha_res"`
	Layers          int    `json:"layers"`
	Blend           string `json:"blend"`
}

// Server -> Client. Visibility change of a chunk.
type ChunkStateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	CX              int    `json:"cx"`
	CY              int    `json:"cy"`
	Active          bool   `json:"active"`
	Evicted         bool   `json:"evicted,omitempty"`
}

// Server -> Client. Anchors of a chunk, in node grid coordinates.
type ChunkAnchorsMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Tick            uint64   `json:"tick"`
	CX              int      `json:"cx"`
	CY              int      `json:"cy"`
	GridSize        int      `json:"grid_size"`
	Anchors         []Anchor `json:"anchors"`
}

type Anchor struct {
	Edge string `json:"edge"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// Server -> Client. Planned paths of a chunk. Mask is the painted path layer
// per alpha cell (1 = path), encoding "RLE_U8" (base64 varint value/run pairs).
type ChunkPathsMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Tick            uint64    `json:"tick"`
	CX              int       `json:"cx"`
	CY              int       `json:"cy"`
	Segments        []Segment `json:"segments"`
	AlphaRes        int       `json:"alpha_res"`
	MaskEncoding    string    `json:"mask_encoding"`
	Mask            string    `json:"mask"`
}

type Segment struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Cost  float64  `json:"cost"`
	Nodes [][2]int `json:"nodes"`
}

const MaskEncoding = "RLE_U8"
