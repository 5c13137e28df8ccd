package httpcodec

import "sync"

// Request is immutable after parse, per spec §3, with one exception: the
// attribute bag, which middleware and the router use to pass data (most
// notably path parameters) downstream without mutating anything else on
// the value.
type Request struct {
	Method   Method
	RawTarget string // path + optional "?query", as it appeared on the wire
	Path     string
	Query    *Headers // ordered multi-map of query parameters
	Proto    string   // e.g. "HTTP/1.1"
	Header   *Headers
	Body     []byte

	attrs map[string]any
}

// NewRequest returns a zero Request ready for the parser to populate, or
// for tests to construct by hand.
func NewRequest() *Request {
	return &Request{
		Query:  NewHeaders(),
		Header: NewHeaders(),
		attrs:  make(map[string]any),
	}
}

// SetAttr stores v under key in the request's attribute bag. Used by the
// router to place path parameters (key "path.<name>" and "path.parameters")
// and by middleware to pass arbitrary downstream data.
func (r *Request) SetAttr(key string, v any) {
	if r.attrs == nil {
		r.attrs = make(map[string]any)
	}
	r.attrs[key] = v
}

// Attr retrieves a previously stored attribute. ok is false if key was
// never set.
func (r *Request) Attr(key string) (any, bool) {
	v, ok := r.attrs[key]
	return v, ok
}

// reset clears r for reuse from the request pool.
func (r *Request) reset() {
	r.Method = MethodUnknown
	r.RawTarget = ""
	r.Path = ""
	r.Proto = ""
	r.Body = nil
	if r.Query != nil {
		r.Query.reset()
	} else {
		r.Query = NewHeaders()
	}
	if r.Header != nil {
		r.Header.reset()
	} else {
		r.Header = NewHeaders()
	}
	for k := range r.attrs {
		delete(r.attrs, k)
	}
}

var requestPool = sync.Pool{
	New: func() any { return NewRequest() },
}

// GetRequest draws a Request from the pool. Callers that obtained a
// Request this way must call PutRequest when the request is no longer
// needed (the handler invocation that produced/received it owns it, per
// spec §3's ownership rule).
func GetRequest() *Request {
	return requestPool.Get().(*Request)
}

// PutRequest returns req to the pool after resetting it.
func PutRequest(req *Request) {
	if req == nil {
		return
	}
	req.reset()
	requestPool.Put(req)
}

// KeepAlive reports whether, per spec §4.4, the connection that produced
// this request should be kept open for another request: HTTP/1.1 unless
// Connection: close, or HTTP/1.0 with an explicit Connection: keep-alive.
func (r *Request) KeepAlive() bool {
	conn := r.Header.Get("Connection")
	switch r.Proto {
	case "HTTP/1.1":
		return !equalFoldASCII(conn, "close")
	case "HTTP/1.0":
		return equalFoldASCII(conn, "keep-alive")
	default:
		return false
	}
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
