// Package compression compresses snippet buffers before they are written to
// blob storage. Cached payloads are self-describing through their magic
// bytes, so readers do not need to know which codec produced them.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Type identifies a compression algorithm.
type Type uint8

const (
	// TypeGzip uses gzip (slower, widely compatible)
	TypeGzip Type = 0
	// TypeZstd uses zstd (faster, better ratio)
	TypeZstd Type = 1
	// TypeNone stores payloads uncompressed
	TypeNone Type = 255
)

// Codec compresses and decompresses snippet payloads.
type Codec interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Type() Type
	Name() string
}

// GzipCodec implements Codec using gzip.
type GzipCodec struct {
	level int
}

// NewGzipCodec creates a gzip codec at the default compression level.
func NewGzipCodec() *GzipCodec {
	return &GzipCodec{level: gzip.DefaultCompression}
}

// Compress compresses data using gzip.
func (c *GzipCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write gzip data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress decompresses gzip data.
func (c *GzipCodec) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// Type returns TypeGzip.
func (c *GzipCodec) Type() Type { return TypeGzip }

// Name returns "gzip".
func (c *GzipCodec) Name() string { return "gzip" }

// ZstdCodec implements Codec using zstd. The codec is reusable and safe for
// concurrent use.
type ZstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCodec creates a zstd codec at the default speed level.
func NewZstdCodec() (*ZstdCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &ZstdCodec{encoder: encoder, decoder: decoder}, nil
}

// Compress compresses data using zstd.
func (c *ZstdCodec) Compress(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Decompress decompresses zstd data.
func (c *ZstdCodec) Decompress(data []byte) ([]byte, error) {
	return c.decoder.DecodeAll(data, nil)
}

// Type returns TypeZstd.
func (c *ZstdCodec) Type() Type { return TypeZstd }

// Name returns "zstd".
func (c *ZstdCodec) Name() string { return "zstd" }

// Close releases the encoder and decoder.
func (c *ZstdCodec) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}

// NoOpCodec is a pass-through codec.
type NoOpCodec struct{}

// NewNoOpCodec creates a pass-through codec.
func NewNoOpCodec() *NoOpCodec { return &NoOpCodec{} }

// Compress returns the data unchanged.
func (c *NoOpCodec) Compress(data []byte) ([]byte, error) { return data, nil }

// Decompress returns the data unchanged.
func (c *NoOpCodec) Decompress(data []byte) ([]byte, error) { return data, nil }

// Type returns TypeNone.
func (c *NoOpCodec) Type() Type { return TypeNone }

// Name returns "none".
func (c *NoOpCodec) Name() string { return "none" }

// NewByName creates a codec from a configuration value.
// Supported names are "zstd", "gzip" and "none".
func NewByName(name string) (Codec, error) {
	switch name {
	case "zstd", "":
		return NewZstdCodec()
	case "gzip":
		return NewGzipCodec(), nil
	case "none":
		return NewNoOpCodec(), nil
	default:
		return nil, fmt.Errorf("unknown compression codec: %s", name)
	}
}

// DetectType detects the codec from magic bytes.
// zstd is 0x28 0xb5 0x2f 0xfd, gzip is 0x1f 0x8b; anything else is treated
// as an uncompressed payload.
func DetectType(data []byte) Type {
	if len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd {
		return TypeZstd
	}
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return TypeGzip
	}
	return TypeNone
}

// AutoDecompress detects the codec from the payload and decompresses it.
func AutoDecompress(data []byte) ([]byte, error) {
	switch DetectType(data) {
	case TypeZstd:
		codec, err := NewZstdCodec()
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decompressor: %w", err)
		}
		defer codec.Close()
		return codec.Decompress(data)
	case TypeGzip:
		return NewGzipCodec().Decompress(data)
	default:
		return data, nil
	}
}

// Closeable is an optional interface for codecs that hold resources.
type Closeable interface {
	Close()
}

// Close closes a codec if it implements Closeable.
func Close(c Codec) {
	if closer, ok := c.(Closeable); ok {
		closer.Close()
	}
}
