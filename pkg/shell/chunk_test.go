package shell

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	bytes.Buffer
	flushes int
}

func (f *flushRecorder) Flush() { f.flushes++ }

func TestChunkWriterFraming(t *testing.T) {
	var buf bytes.Buffer
	cw := NewChunkWriter(&buf)
	require.NoError(t, cw.Data([]byte("hi\n")))

	raw := buf.Bytes()
	require.Len(t, raw, headerSize+3)
	assert.Equal(t, byte(ChunkData), raw[0])
	assert.Equal(t, uint32(3), binary.BigEndian.Uint32(raw[1:5]))
	assert.Equal(t, "hi\n", string(raw[5:]))
	assert.Equal(t, int64(8), cw.Written())
}

func TestChunkWriterFlushesEveryChunk(t *testing.T) {
	rec := &flushRecorder{}
	cw := NewChunkWriter(rec)
	require.NoError(t, cw.Data([]byte("a")))
	require.NoError(t, cw.Data([]byte("b")))
	require.NoError(t, cw.Status(Status{Status: 0}))
	assert.Equal(t, 3, rec.flushes)
}

func TestStatusPayload(t *testing.T) {
	var buf bytes.Buffer
	cw := NewChunkWriter(&buf)
	require.NoError(t, cw.Status(Status{Status: 0}))
	require.NoError(t, cw.Status(Status{Status: StatusEngineFailure, Error: "boom"}))

	cr := NewChunkReader(&buf)
	c, err := cr.Next()
	require.NoError(t, err)
	assert.Equal(t, ChunkStatus, c.Type)
	assert.JSONEq(t, `{"status":0}`, string(c.Payload))

	c, err = cr.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":213,"error":"boom"}`, string(c.Payload))

	_, err = cr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestChunkReaderRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"short header", []byte{0, 0, 0}},
		{"unknown type", []byte{7, 0, 0, 0, 0}},
		{"short payload", []byte{0, 0, 0, 0, 5, 'a', 'b'}},
		{"oversized", []byte{0, 0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunkReader(bytes.NewReader(tt.raw)).Next()
			require.Error(t, err)
			assert.NotEqual(t, io.EOF, err)
		})
	}
}

func TestCopy(t *testing.T) {
	var buf bytes.Buffer
	cw := NewChunkWriter(&buf)
	require.NoError(t, cw.Data([]byte("one ")))
	require.NoError(t, cw.Data([]byte("two")))
	require.NoError(t, cw.Status(Status{Status: 3}))

	var out strings.Builder
	st, err := Copy(&out, &buf)
	require.NoError(t, err)
	assert.Equal(t, "one two", out.String())
	assert.Equal(t, 3, st.Status)
}

func TestCopyWithoutStatus(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewChunkWriter(&buf).Data([]byte("x")))
	_, err := Copy(io.Discard, &buf)
	require.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("client gone") }

func TestChunkWriterPropagatesWriteErrors(t *testing.T) {
	cw := NewChunkWriter(failingWriter{})
	assert.Error(t, cw.Data([]byte("x")))
}
