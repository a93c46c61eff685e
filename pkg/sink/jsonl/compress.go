package jsonl

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression names the stream encoding of a jsonl file.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseCompression parses a compression name.
func ParseCompression(name string) (Compression, error) {
	switch c := Compression(strings.ToLower(name)); c {
	case CompressionNone, CompressionGzip, CompressionZstd:
		return c, nil
	case "gz":
		return CompressionGzip, nil
	case "zst":
		return CompressionZstd, nil
	}
	return "", fmt.Errorf("jsonl sink: unknown compression %q", name)
}

// CompressionFor infers the encoding from a file extension.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return CompressionGzip
	case ".zst":
		return CompressionZstd
	}
	return CompressionNone
}

type encoder interface {
	io.WriteCloser
	Flush() error
}

func newEncoder(w io.Writer, c Compression) (encoder, error) {
	switch c {
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return enc, nil
	}
	return nil, fmt.Errorf("unsupported compression %q", c)
}

// closers closes in order, joining errors.
type closers []io.Closer

func (cs closers) Close() error {
	var errs []error
	for _, c := range cs {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
