package jsonl

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/capturelog/pkg/sink"
	"github.com/getmockd/capturelog/pkg/unitlog"
)

func decompress(t *testing.T, path string, c Compression) io.Reader {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	switch c {
	case CompressionGzip:
		r, err := gzip.NewReader(f)
		require.NoError(t, err)
		return r
	case CompressionZstd:
		d, err := zstd.NewReader(f)
		require.NoError(t, err)
		t.Cleanup(d.Close)
		return d
	}
	return f
}

func TestOpen_Compressed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		opts []Option
		want Compression
	}{
		{"gzip by extension", "units.jsonl.gz", nil, CompressionGzip},
		{"zstd by extension", "units.jsonl.zst", nil, CompressionZstd},
		{"explicit gzip", "units.log", []Option{WithCompression(CompressionGzip)}, CompressionGzip},
		{"plain", "units.jsonl", nil, CompressionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), tt.file)

			// Two sessions append; each adds its own stream member.
			for i := 0; i < 2; i++ {
				s, err := Open(path, tt.opts...)
				require.NoError(t, err)
				assert.Equal(t, tt.want, s.compress)
				require.NoError(t, s.OnFlush(&unitlog.FlushRecord{UnitID: "bg", Name: "job"}))
				require.NoError(t, s.Close())
			}

			scanner := bufio.NewScanner(decompress(t, path, tt.want))
			n := 0
			for scanner.Scan() {
				var line Line
				require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
				assert.Equal(t, "job", line.Name)
				n++
			}
			require.NoError(t, scanner.Err())
			assert.Equal(t, 2, n)
		})
	}
}

func TestParseCompression(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Compression{"none": CompressionNone, "GZIP": CompressionGzip, "gz": CompressionGzip, "zst": CompressionZstd} {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
}

func TestFactory_Compression(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.log")
	s, err := sink.New(Kind, map[string]any{"path": path, "compression": "zstd"})
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, s.(*Sink).compress)
	require.NoError(t, s.(*Sink).Close())

	_, err = sink.New(Kind, map[string]any{"compression": "gzip"})
	assert.ErrorContains(t, err, "requires a file path")
}
