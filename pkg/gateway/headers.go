package gateway

import (
	"net/http"
)

// FrameOptionsHeader is removed from every response so the application can
// be embedded in a frame.
const FrameOptionsHeader = "X-Frame-Options"

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-Id"

// headerStripWriter deletes FrameOptionsHeader right before headers are
// committed, whichever way they are committed.
type headerStripWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func newHeaderStripWriter(w http.ResponseWriter) *headerStripWriter {
	return &headerStripWriter{ResponseWriter: w}
}

func (w *headerStripWriter) strip() {
	if !w.wroteHeader {
		w.ResponseWriter.Header().Del(FrameOptionsHeader)
		w.wroteHeader = true
	}
}

func (w *headerStripWriter) WriteHeader(code int) {
	// 1xx responses do not commit the final headers.
	if code >= 200 || code == http.StatusSwitchingProtocols {
		w.strip()
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *headerStripWriter) Write(b []byte) (int, error) {
	w.strip()
	return w.ResponseWriter.Write(b)
}

func (w *headerStripWriter) Flush() {
	w.strip()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *headerStripWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// finish covers handlers that return without writing: net/http commits the
// headers after ServeHTTP returns.
func (w *headerStripWriter) finish() {
	w.strip()
}

// statusResponseWriter records the status and byte count for request logs.
type statusResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusResponseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
