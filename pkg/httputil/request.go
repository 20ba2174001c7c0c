package httputil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// BodyTooLargeError is returned by ReadBody when the body exceeds the limit.
type BodyTooLargeError struct {
	Limit int64
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("request body exceeds %d bytes", e.Limit)
}

// IsBodyTooLarge reports whether err came from an oversized body.
func IsBodyTooLarge(err error) bool {
	var tooLarge *BodyTooLargeError
	return errors.As(err, &tooLarge)
}

// ReadBody reads the request body up to maxBytes. A body larger than
// maxBytes is a *BodyTooLargeError rather than being silently cut; any other
// error comes from reading the body itself.
func ReadBody(r *http.Request, maxBytes int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, &BodyTooLargeError{Limit: maxBytes}
	}
	return data, nil
}

// RemoteAddr parses the peer address of the request. Forwarding headers
// are never consulted.
func RemoteAddr(r *http.Request) (netip.Addr, error) {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i]
	}
	return netip.ParseAddr(host)
}

// IsLoopback reports whether addr is a loopback address, including the
// IPv4-mapped IPv6 form of 127.0.0.0/8.
func IsLoopback(addr netip.Addr) bool {
	return addr.IsValid() && addr.Unmap().IsLoopback()
}
