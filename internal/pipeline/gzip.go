package pipeline

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"
)

// GzipLevel controls the compressed sibling artifact.
type GzipLevel struct {
	Enabled bool
	Level   int
}

// GzipOff disables the sibling.
var GzipOff = GzipLevel{}

// ParseGzipLevel interprets `pipeline_gzip`: nil or false disable, true uses
// the default level, and an integer 0 through 9 selects the level.
func ParseGzipLevel(v any) (GzipLevel, error) {
	switch t := v.(type) {
	case nil:
		return GzipOff, nil
	case GzipLevel:
		return t, nil
	case bool:
		if !t {
			return GzipOff, nil
		}
		return GzipLevel{Enabled: true, Level: gzip.DefaultCompression}, nil
	case int:
		return gzipLevelFromInt(int64(t))
	case int64:
		return gzipLevelFromInt(t)
	case float64:
		if t != float64(int64(t)) {
			return GzipOff, fmt.Errorf("pipeline_gzip must be an integer, got %v", t)
		}
		return gzipLevelFromInt(int64(t))
	default:
		return GzipOff, fmt.Errorf("unsupported pipeline_gzip value of type %T", v)
	}
}

func gzipLevelFromInt(n int64) (GzipLevel, error) {
	if n < gzip.NoCompression || n > gzip.BestCompression {
		return GzipOff, fmt.Errorf("pipeline_gzip level %d out of range 0-9", n)
	}
	return GzipLevel{Enabled: true, Level: int(n)}, nil
}

func compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
