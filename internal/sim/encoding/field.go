package encoding

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// FieldEncoding names the wire format produced by EncodeFloat32:
// little-endian float32 values, zstd compressed, base64 (std) encoded.
const FieldEncoding = "ZSTD_F32LE"

// EncodeAll/DecodeAll are safe for concurrent use on shared coders.
var (
	fieldEncoder = mustEncoder()
	fieldDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
)

// mustEncoder panics on failure: the options are fixed, so an error here is
// a build problem, not a runtime condition.
func mustEncoder() *zstd.Encoder {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic(fmt.Sprintf("encoding: zstd encoder: %v", err))
	}
	return enc
}

func EncodeFloat32(values []float32) string {
	raw := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(fieldEncoder.EncodeAll(raw, nil))
}

// DecodeFloat32 reverses EncodeFloat32. want > 0 enforces the value count.
func DecodeFloat32(b64 string, want int) ([]float32, error) {
	comp, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}
	dec, err := fieldDecoder()
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	raw, err := dec.DecodeAll(comp, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("field payload of %d bytes is not float32 aligned", len(raw))
	}
	n := len(raw) / 4
	if want > 0 && n != want {
		return nil, fmt.Errorf("field has %d values, want %d", n, want)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return out, nil
}
