package gzipper

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressProducesFixedTenByteHeader(t *testing.T) {
	out, err := Compress([]byte("hello, turfwar"))
	require.NoError(t, err)
	require.True(t, len(out) >= 10)
	assert.Equal(t, []byte{0x1F, 0x8B, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03}, out[:10])
}

func TestCompressRoundTrips(t *testing.T) {
	raw := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 100)
	out, err := Compress(raw)
	require.NoError(t, err)

	r, err := gzip.NewReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestCompressEmptyInput(t *testing.T) {
	out, err := Compress(nil)
	require.NoError(t, err)
	assert.True(t, len(out) >= 10)
}
