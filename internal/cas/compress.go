package cas

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Encoding records how a blob is stored by a backend.
type Encoding string

const (
	// EncodingIdentity stores the bytes unchanged.
	EncodingIdentity Encoding = "identity"

	// EncodingZstd stores a single zstd frame.
	EncodingZstd Encoding = "zstd"
)

// DefaultCompressThreshold is the smallest blob worth compressing.
const DefaultCompressThreshold = 4096

// zstd.Encoder and zstd.Decoder are safe for concurrent EncodeAll/DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("cas: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("cas: zstd decoder initialization failed: " + err.Error())
	}
}

// encode compresses data when it is at least threshold bytes and the
// result is actually smaller. threshold <= 0 disables compression.
func encode(data []byte, threshold int) ([]byte, Encoding) {
	if threshold <= 0 || len(data) < threshold {
		return data, EncodingIdentity
	}
	compressed := zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	if len(compressed) >= len(data) {
		return data, EncodingIdentity
	}
	return compressed, EncodingZstd
}

// decode reverses encode and verifies the decoded size.
func decode(stored []byte, enc Encoding, size int) ([]byte, error) {
	switch enc {
	case "", EncodingIdentity:
		return stored, nil
	case EncodingZstd:
		data, err := zstdDecoder.DecodeAll(stored, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(data) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(data), size)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", enc)
	}
}
