// Package gzipper produces the exact gzip wire format SPEC_FULL.md §6
// specifies: the fixed 10-byte header {1F 8B 08 00 00 00 00 00 00 03}, a
// raw deflate stream, then an 8-byte CRC32/length trailer — standard RFC
// 1952 framing, which github.com/klauspost/compress/gzip produces once the
// mtime and OS header fields are pinned to zero/Unix and the XFL byte is
// reset to zero.
package gzipper

import (
	"bytes"
	"time"

	"github.com/klauspost/compress/gzip"
)

// unixOSByte is the gzip header OS field value for "Unix", matching the
// fixed byte sequence's trailing 0x03.
const unixOSByte = 3

// Compress gzips raw at BestCompression, the original's asset-pipeline
// tradeoff (assets are regenerated far less often than they're served, so
// CPU is better spent once per regeneration than on every response).
func Compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	w.Header.ModTime = time.Time{}
	w.Header.OS = unixOSByte
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	// The encoder writes XFL=2 for BestCompression; the fixed header carries
	// 0 there. XFL is informational and not covered by any checksum.
	out[8] = 0
	return out, nil
}
