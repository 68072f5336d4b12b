package compression

import (
	"bytes"
	"testing"
)

func TestRoundTripSnappy(t *testing.T) {
	data := bytes.Repeat([]byte("hello world "), 500)
	compressed, err := Compress(Snappy, data)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decompress(Snappy, compressed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("snappy round trip mismatch")
	}
}

func TestRoundTripZlib(t *testing.T) {
	data := bytes.Repeat([]byte{0}, 65536)
	compressed, err := Compress(Zlib, data)
	if err != nil {
		t.Fatal(err)
	}
	if len(compressed) >= len(data) {
		t.Fatalf("expected zlib to shrink an all-zero buffer, got %d >= %d", len(compressed), len(data))
	}
	out, err := Decompress(Zlib, compressed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("zlib round trip mismatch")
	}
}

func TestUnsupportedCompressor(t *testing.T) {
	if _, err := Compress("lz4", []byte("x")); err == nil {
		t.Fatal("expected an error for an unrecognized compressor")
	}
	if _, err := Decompress("lz4", []byte("x")); err == nil {
		t.Fatal("expected an error for an unrecognized compressor")
	}
}

func TestSupported(t *testing.T) {
	for _, name := range []string{"", Snappy, Zlib} {
		if !Supported(name) {
			t.Fatalf("Supported(%q) = false, want true", name)
		}
	}
	if Supported("gzip") {
		t.Fatal("Supported(\"gzip\") = true, want false")
	}
}
