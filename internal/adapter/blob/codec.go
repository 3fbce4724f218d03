package blob

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"
)

// Stored payloads start with one tag byte naming the compression used.
const (
	tagRaw  byte = 'r'
	tagLZ4  byte = 'l'
	tagZstd byte = 'z'
)

var ErrUnknownCodec = errors.New("unknown blob codec")

type Codec struct {
	tag byte
}

// NewCodec accepts "lz4", "zstd" or "none". Decoding handles every tag regardless of
// which codec writes.
func NewCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "lz4":
		return Codec{tag: tagLZ4}, nil
	case "zstd":
		return Codec{tag: tagZstd}, nil
	case "none", "raw":
		return Codec{tag: tagRaw}, nil
	default:
		return Codec{}, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

func Digest(raw []byte) string {
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func (c Codec) Encode(raw []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	buf.WriteByte(c.tag)
	switch c.tag {
	case tagLZ4:
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, "", fmt.Errorf("lz4 write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, "", fmt.Errorf("lz4 close: %w", err)
		}
	case tagZstd:
		w, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, "", fmt.Errorf("zstd writer: %w", err)
		}
		if _, err := w.Write(raw); err != nil {
			_ = w.Close()
			return nil, "", fmt.Errorf("zstd write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, "", fmt.Errorf("zstd close: %w", err)
		}
	default:
		buf.Write(raw)
	}
	return buf.Bytes(), Digest(raw), nil
}

func (c Codec) Decode(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	body := payload[1:]
	switch payload[0] {
	case tagRaw:
		return append([]byte(nil), body...), nil
	case tagLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("lz4 read: %w", err)
		}
		return out, nil
	case tagZstd:
		r, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("zstd read: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: tag %q", ErrUnknownCodec, payload[0])
	}
}
