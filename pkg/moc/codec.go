package moc

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec is the compression applied to the body of the binary encoding.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecZstd
	CodecSnappy
	CodecLZ4
)

// maxBodySize bounds the decompressed body of a decoded MOC.
const maxBodySize = 1 << 30

var codecNames = [...]string{"none", "zstd", "snappy", "lz4"}

func (c Codec) String() string {
	if int(c) < len(codecNames) {
		return codecNames[c]
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

func (c Codec) valid() bool { return int(c) < len(codecNames) }

// ParseCodec maps a codec name, case-insensitive, to its Codec. The empty
// string is CodecNone.
func ParseCodec(s string) (Codec, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CodecNone, nil
	}
	for k, name := range codecNames {
		if s == name {
			return Codec(k), nil
		}
	}
	return CodecNone, fmt.Errorf("unknown moc codec %q", s)
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// zstdCodec returns the shared zstd encoder and decoder, built on first
// use. EncodeAll and DecodeAll are safe for concurrent use.
func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			zstdErr = fmt.Errorf("zstd encoder: %w", err)
			return
		}
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxBodySize))
		if err != nil {
			_ = enc.Close()
			zstdErr = fmt.Errorf("zstd decoder: %w", err)
			return
		}
		zstdEncoder, zstdDecoder = enc, dec
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

func (c Codec) compress(body []byte) ([]byte, error) {
	switch c {
	case CodecNone:
		return body, nil
	case CodecZstd:
		enc, _, err := zstdCodec()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(body, nil), nil
	case CodecSnappy:
		return snappy.Encode(nil, body), nil
	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown moc codec %d", uint8(c))
}

func (c Codec) decompress(payload []byte) ([]byte, error) {
	switch c {
	case CodecNone:
		return payload, nil
	case CodecZstd:
		_, dec, err := zstdCodec()
		if err != nil {
			return nil, err
		}
		body, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrMalformedEncoding, err)
		}
		return body, nil
	case CodecSnappy:
		n, err := snappy.DecodedLen(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: snappy: %v", ErrMalformedEncoding, err)
		}
		if n > maxBodySize {
			return nil, fmt.Errorf("%w: snappy body of %d bytes", ErrMalformedEncoding, n)
		}
		body, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("%w: snappy: %v", ErrMalformedEncoding, err)
		}
		return body, nil
	case CodecLZ4:
		r := io.LimitReader(lz4.NewReader(bytes.NewReader(payload)), maxBodySize+1)
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrMalformedEncoding, err)
		}
		if len(body) > maxBodySize {
			return nil, fmt.Errorf("%w: lz4 body too large", ErrMalformedEncoding)
		}
		return body, nil
	}
	return nil, fmt.Errorf("%w: unknown codec %d", ErrMalformedEncoding, uint8(c))
}
