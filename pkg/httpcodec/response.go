package httpcodec

import (
	"fmt"
	"strconv"
)

// statusText covers the subset of RFC 7231/7235 reason phrases this codec
// needs; anything else falls back to a generic phrase.
var statusText = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	411: "Length Required",
	413: "Payload Too Large",
	414: "URI Too Long",
	429: "Too Many Requests",
	431: "Request Header Fields Too Large",
	499: "Client Closed Request",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
	505: "HTTP Version Not Supported",
}

// ReasonPhrase returns the standard reason phrase for code, or "Status"
// if none is known.
func ReasonPhrase(code int) string {
	if p, ok := statusText[code]; ok {
		return p
	}
	return "Status"
}

// Response is mutable during construction and sealed by Commit, per spec
// §3. After Commit, Header/Body mutation through the Response methods is
// rejected; the codec's Serialize reads the sealed snapshot.
type Response struct {
	Status int
	Header *Headers
	Body   []byte

	sealed bool
}

// NewResponse returns a Response defaulted to 200 OK with empty headers.
func NewResponse() *Response {
	return &Response{Status: 200, Header: NewHeaders()}
}

// WriteHeader sets the status code. Ignored once the response is sealed.
func (r *Response) WriteHeader(code int) {
	if r.sealed {
		return
	}
	r.Status = code
}

// Write appends data to the response body. Ignored once sealed.
func (r *Response) Write(data []byte) (int, error) {
	if r.sealed {
		return 0, fmt.Errorf("httpcodec: response already committed")
	}
	r.Body = append(r.Body, data...)
	return len(data), nil
}

// WriteString is a convenience wrapper over Write.
func (r *Response) WriteString(s string) (int, error) {
	return r.Write([]byte(s))
}

// Commit seals the response, filling in the Content-Length invariant from
// spec §3: Content-Length equals body length unless explicitly cleared for
// a 204 or 304 response (those never carry a body).
func (r *Response) Commit() {
	if r.sealed {
		return
	}
	if r.Status == 204 || r.Status == 304 {
		r.Body = nil
		r.Header.Del("Content-Length")
	} else if !r.Header.Has("Content-Length") {
		r.Header.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}
	r.sealed = true
}

// Sealed reports whether Commit has run.
func (r *Response) Sealed() bool {
	return r.sealed
}

// reset clears r back to its default 200, empty-body state.
func (r *Response) reset() {
	r.Status = 200
	r.Body = nil
	r.sealed = false
	if r.Header != nil {
		r.Header.reset()
	} else {
		r.Header = NewHeaders()
	}
}

// TextResponse builds a sealed, Content-Type: text/plain response — the
// shape every engine's error path produces. The Connection header is
// left for the engine to stamp, since only it knows the keep-alive
// decision for the connection the response goes out on.
func TextResponse(code int, body string) *Response {
	r := NewResponse()
	r.Status = code
	r.Header.Set("Content-Type", "text/plain; charset=UTF-8")
	_, _ = r.WriteString(body)
	r.Commit()
	return r
}
