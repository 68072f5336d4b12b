// Package compression implements the coder's Compression Adapter: a named
// compressor applied to a contiguous byte slice, returning a new slice (the
// caller merges its buffer list first and wraps the result). Backends are
// invoked only through this package's interface, treated as external
// collaborators rather than logic the pipeline owns.
package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zlib"
)

// Name identifiers recognized as valid compress_type values.
const (
	Snappy = "snappy"
	Zlib   = "zlib"
)

// ErrUnsupportedCompressor is returned for any compress_type outside {snappy, zlib, ""}.
type ErrUnsupportedCompressor struct{ Name string }

func (e *ErrUnsupportedCompressor) Error() string {
	return fmt.Sprintf("compression: unsupported compressor %q", e.Name)
}

// Compress runs the named compressor over data and returns the compressed
// bytes. Incompressible input is not special-cased:
// whatever the compressor returns is trusted verbatim, even if it is larger
// than the input — that policy decision belongs to the caller, not here.
func Compress(name string, data []byte) ([]byte, error) {
	switch name {
	case Snappy:
		// s2 is the actively-maintained, snappy-wire-compatible codec from
		// the klauspost/compress family.
		return s2.EncodeSnappy(nil, data), nil
	case Zlib:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("compression: zlib write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compression: zlib close: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, &ErrUnsupportedCompressor{Name: name}
	}
}

// Decompress reverses Compress.
func Decompress(name string, data []byte) ([]byte, error) {
	switch name {
	case Snappy:
		out, err := s2.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("compression: snappy decode: %w", err)
		}
		return out, nil
	case Zlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("compression: zlib reader: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("compression: zlib read: %w", err)
		}
		return out, nil
	default:
		return nil, &ErrUnsupportedCompressor{Name: name}
	}
}

// Supported reports whether name is a recognized compressor, or the empty
// string meaning "compression disabled".
func Supported(name string) bool {
	return name == "" || name == Snappy || name == Zlib
}
