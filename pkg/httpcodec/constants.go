// Package httpcodec translates between HTTP/1.1 wire bytes and typed
// Request/Response values. It performs no I/O: callers feed it bytes as
// they arrive and get back a typed result or an error kind.
package httpcodec

import "time"

// Size limits enforced by the parser. Exceeding any of these yields a
// Malformed result carrying the named ParseErrorKind.
const (
	// MaxRequestLineSize bounds "METHOD SP target SP version CRLF".
	MaxRequestLineSize = 8 * 1024

	// MaxHeadersSize bounds the header section, not counting the request line.
	MaxHeadersSize = 8 * 1024

	// MaxBodySize is the hard ceiling on request body length.
	MaxBodySize = 10 * 1024 * 1024

	// MaxHeaderCount caps the number of distinct header lines accepted.
	MaxHeaderCount = 256
)

// DefaultServerName is used for the auto-supplied Server header when the
// caller does not override it in Config.
const DefaultServerName = "serverarch/1.0"

// dateFormat is the RFC 1123 format used for the auto-supplied Date header.
const dateFormat = time.RFC1123

var (
	crlf       = []byte("\r\n")
	colonSpace = []byte(": ")
)
