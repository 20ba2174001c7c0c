package shell

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// ChunkType tags a framed unit of command output.
type ChunkType byte

const (
	ChunkData   ChunkType = 0
	ChunkStatus ChunkType = 1
)

func (t ChunkType) String() string {
	switch t {
	case ChunkData:
		return "data"
	case ChunkStatus:
		return "status"
	default:
		return fmt.Sprintf("chunk(%d)", byte(t))
	}
}

// headerSize is one type byte plus a big-endian uint32 length.
const headerSize = 5

// maxChunkPayload bounds what ChunkReader will allocate for one frame.
const maxChunkPayload = 16 << 20

// Chunk is one decoded frame.
type Chunk struct {
	Type    ChunkType
	Payload []byte
}

// Status is the payload of the terminating STATUS chunk.
type Status struct {
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

// flusher matches http.Flusher without importing net/http.
type flusher interface {
	Flush()
}

// ChunkWriter frames output as [type][len][payload] and flushes after
// every chunk when the destination supports it.
type ChunkWriter struct {
	mu      sync.Mutex
	w       io.Writer
	f       flusher
	written int64
}

// NewChunkWriter wraps w. If w implements Flush(), each chunk is flushed.
func NewChunkWriter(w io.Writer) *ChunkWriter {
	cw := &ChunkWriter{w: w}
	if f, ok := w.(flusher); ok {
		cw.f = f
	}
	return cw
}

// WriteChunk writes a single frame.
func (cw *ChunkWriter) WriteChunk(t ChunkType, payload []byte) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	frame := make([]byte, headerSize+len(payload))
	frame[0] = byte(t)
	binary.BigEndian.PutUint32(frame[1:headerSize], uint32(len(payload)))
	copy(frame[headerSize:], payload)

	n, err := cw.w.Write(frame)
	cw.written += int64(n)
	if err != nil {
		return err
	}
	if cw.f != nil {
		cw.f.Flush()
	}
	return nil
}

// Data writes a DATA chunk.
func (cw *ChunkWriter) Data(p []byte) error {
	return cw.WriteChunk(ChunkData, p)
}

// Status writes the terminating STATUS chunk.
func (cw *ChunkWriter) Status(st Status) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return cw.WriteChunk(ChunkStatus, payload)
}

// Written returns the number of bytes written so far, headers included.
func (cw *ChunkWriter) Written() int64 {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.written
}

// ChunkReader decodes frames written by ChunkWriter.
type ChunkReader struct {
	r *bufio.Reader
}

func NewChunkReader(r io.Reader) *ChunkReader {
	return &ChunkReader{r: bufio.NewReader(r)}
}

// Next returns the next chunk, or io.EOF at a clean frame boundary.
func (cr *ChunkReader) Next() (Chunk, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(cr.r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Chunk{}, fmt.Errorf("truncated chunk header: %w", err)
		}
		return Chunk{}, err
	}
	t := ChunkType(hdr[0])
	if t != ChunkData && t != ChunkStatus {
		return Chunk{}, fmt.Errorf("unknown chunk type %d", hdr[0])
	}
	n := binary.BigEndian.Uint32(hdr[1:])
	if n > maxChunkPayload {
		return Chunk{}, fmt.Errorf("chunk payload of %d bytes exceeds limit", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(cr.r, payload); err != nil {
		return Chunk{}, fmt.Errorf("truncated chunk payload: %w", err)
	}
	return Chunk{Type: t, Payload: payload}, nil
}

// DecodeStatus parses a STATUS chunk payload.
func DecodeStatus(c Chunk) (Status, error) {
	if c.Type != ChunkStatus {
		return Status{}, fmt.Errorf("expected status chunk, got %s", c.Type)
	}
	var st Status
	if err := json.Unmarshal(c.Payload, &st); err != nil {
		return Status{}, fmt.Errorf("invalid status payload: %w", err)
	}
	return st, nil
}

// Copy streams DATA payloads to out until the STATUS chunk and returns it.
// A stream that ends without a STATUS chunk is an error.
func Copy(out io.Writer, r io.Reader) (Status, error) {
	cr := NewChunkReader(r)
	for {
		c, err := cr.Next()
		if err == io.EOF {
			return Status{}, fmt.Errorf("stream ended without status chunk")
		}
		if err != nil {
			return Status{}, err
		}
		if c.Type == ChunkStatus {
			return DecodeStatus(c)
		}
		if _, err := out.Write(c.Payload); err != nil {
			return Status{}, err
		}
	}
}
