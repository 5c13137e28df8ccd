package httpcodec

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"
)

// State is the parser's position in the per-connection state machine from
// spec §3/§4.1: ReadingRequestLine → ReadingHeaders → ReadingBody →
// RequestComplete.
type State uint8

const (
	StateReadingRequestLine State = iota
	StateReadingHeaders
	StateReadingBody
	StateRequestComplete
)

// ResultKind tags a single Feed call's outcome.
type ResultKind uint8

const (
	// NeedMoreData means buf does not yet hold enough bytes to make
	// progress; the caller should read more and call Feed again.
	NeedMoreData ResultKind = iota
	// Complete means a full request was parsed.
	Complete
	// Malformed means buf can never produce a valid request; Result.Err
	// names why.
	Malformed
)

// Result is what Parser.Feed returns on each call.
type Result struct {
	Kind ResultKind

	// Request is populated when Kind == Complete. Caller owns it and must
	// PutRequest it back to the pool when done.
	Request *Request

	// Err is populated when Kind == Malformed.
	Err *ParseError

	// Consumed is the number of leading bytes of buf that belong to the
	// completed request, valid only when Kind == Complete. Any bytes
	// beyond Consumed belong to a subsequent request already read ahead
	// by the transport and should be retained by the caller.
	Consumed int
}

// Parser is an incremental HTTP/1.1 request parser: it is fed a
// caller-owned, monotonically growing byte buffer and may be called
// repeatedly as more bytes arrive, preserving its position in the state
// field between calls (spec §4.1).
//
// Grounded on the teacher's http11.Parser (pooled Request objects,
// single-pass scanning, a dedicated error per failure kind) but
// restructured from a blocking "read until boundary" loop into a
// call-with-whatever-you-have state machine, since the event-loop and
// hybrid engines can only ever hand it the bytes a single non-blocking
// read produced.
type Parser struct {
	state State
	req   *Request

	// headerStart is the offset into buf where the header section began
	// (i.e. just after the request line's CRLF).
	headerStart int
	// bodyStart is the offset into buf where the body begins, valid once
	// state >= StateReadingBody.
	bodyStart int
	// contentLength is the expected body length, from the Content-Length
	// header (0 when absent).
	contentLength int
}

// NewParser returns a Parser positioned at the start of a new request.
func NewParser() *Parser {
	return &Parser{}
}

// Reset returns the parser to StateReadingRequestLine, ready to parse the
// next request on the same connection. Called by ConnectionContext after
// a completed request has been dispatched and, if keep-alive, before the
// next Feed cycle.
func (p *Parser) Reset() {
	p.state = StateReadingRequestLine
	p.req = nil
	p.headerStart = 0
	p.bodyStart = 0
	p.contentLength = 0
}

// State returns the parser's current state, primarily for tests and
// diagnostics.
func (p *Parser) State() State {
	return p.state
}

// Feed advances parsing using buf, the full set of bytes read for the
// current request so far (starting at offset 0 of the current request,
// not of the connection's lifetime). It may be called repeatedly; each
// call either returns NeedMoreData (call again once more bytes arrive),
// Complete (with the consumed prefix length), or Malformed (terminal —
// the connection must be closed after a best-effort response).
func (p *Parser) Feed(buf []byte) Result {
	if p.state == StateReadingRequestLine {
		res, ok := p.feedRequestLine(buf)
		if !ok {
			return res
		}
	}
	if p.state == StateReadingHeaders {
		res, ok := p.feedHeaders(buf)
		if !ok {
			return res
		}
	}
	if p.state == StateReadingBody {
		return p.feedBody(buf)
	}
	// Already complete; nothing further to do until Reset.
	return Result{Kind: Complete, Request: p.req, Consumed: p.bodyStart + p.contentLength}
}

// feedRequestLine returns (result, false) when the caller should stop and
// return result, or (zero, true) to fall through to header parsing.
func (p *Parser) feedRequestLine(buf []byte) (Result, bool) {
	idx := bytes.Index(buf, crlf)
	if idx < 0 {
		if len(buf) > MaxRequestLineSize {
			return malformed(KindURITooLong, "request line exceeds limit"), false
		}
		return Result{Kind: NeedMoreData}, false
	}
	if idx > MaxRequestLineSize {
		return malformed(KindURITooLong, "request line exceeds limit"), false
	}

	line := string(buf[:idx])
	tokens := strings.Fields(line)
	if len(tokens) != 3 {
		return malformed(KindMalformed, "request line must have 3 tokens"), false
	}
	method, ok := parseMethod(tokens[0])
	if !ok {
		return malformed(KindMethodNotRecognized, "unrecognized method "+tokens[0]), false
	}
	if !validVersion(tokens[2]) {
		return malformed(KindUnsupportedVersion, "unsupported version "+tokens[2]), false
	}

	req := GetRequest()
	req.Method = method
	req.RawTarget = tokens[1]
	req.Proto = tokens[2]
	if qIdx := strings.IndexByte(tokens[1], '?'); qIdx >= 0 {
		req.Path = tokens[1][:qIdx]
		parseQueryInto(req.Query, tokens[1][qIdx+1:])
	} else {
		req.Path = tokens[1]
	}

	p.req = req
	p.headerStart = idx + 2
	p.state = StateReadingHeaders
	return Result{}, true
}

func validVersion(tok string) bool {
	if len(tok) != 8 {
		return false
	}
	if tok[:5] != "HTTP/" || tok[6] != '.' {
		return false
	}
	return tok[5] == '1' && tok[7] >= '0' && tok[7] <= '9'
}

func (p *Parser) feedHeaders(buf []byte) (Result, bool) {
	section := buf[p.headerStart:]
	// The blank line ending the header section is searched for from the
	// request line's own CRLF, so a request with no header lines
	// ("GET / HTTP/1.1\r\n\r\n") ends its header section right away.
	end := bytes.Index(buf[p.headerStart-2:], []byte("\r\n\r\n"))
	if end < 0 {
		if len(section) > MaxHeadersSize {
			p.abort()
			return malformed(KindHeadersTooLarge, "header section exceeds limit"), false
		}
		return Result{Kind: NeedMoreData}, false
	}
	idx := 0 // length of the header lines, excluding the blank line
	if end > 0 {
		idx = end - 2
	}
	if idx > MaxHeadersSize {
		p.abort()
		return malformed(KindHeadersTooLarge, "header section exceeds limit"), false
	}

	count := 0
	for _, line := range strings.Split(string(section[:idx]), "\r\n") {
		if line == "" {
			continue
		}
		if count++; count > MaxHeaderCount {
			p.abort()
			return malformed(KindHeadersTooLarge, "too many header lines"), false
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			p.abort()
			return malformed(KindMalformed, "header line missing colon"), false
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		if !ValidName(name) {
			p.abort()
			return malformed(KindMalformed, "invalid header name"), false
		}
		p.req.Header.Add(name, value)
	}

	cl := 0
	if v := p.req.Header.Get("Content-Length"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			p.abort()
			return malformed(KindMalformed, "invalid Content-Length"), false
		}
		cl = n
	}
	if cl > MaxBodySize {
		p.abort()
		return malformed(KindPayloadTooLarge, "declared body exceeds limit"), false
	}

	p.bodyStart = p.headerStart + end + 2
	p.contentLength = cl
	p.state = StateReadingBody
	return Result{}, true
}

func (p *Parser) feedBody(buf []byte) Result {
	available := len(buf) - p.bodyStart
	if available < 0 {
		available = 0
	}
	if available < p.contentLength {
		return Result{Kind: NeedMoreData}
	}

	body := make([]byte, p.contentLength)
	copy(body, buf[p.bodyStart:p.bodyStart+p.contentLength])
	p.req.Body = body
	p.state = StateRequestComplete

	return Result{Kind: Complete, Request: p.req, Consumed: p.bodyStart + p.contentLength}
}

// abort returns the in-progress request to the pool and clears the
// parser's reference to it; called on every Malformed path so a pooled
// Request is never left reachable after Feed reports failure.
func (p *Parser) abort() {
	PutRequest(p.req)
	p.req = nil
}

func malformed(kind ParseErrorKind, msg string) Result {
	return Result{Kind: Malformed, Err: newParseError(kind, msg)}
}

// parseQueryInto decodes a query string ("a=1&b=2") into dst, per spec
// §4.1: split on '&', then on the first '=', percent-decode both sides, a
// missing '=' yields an empty-string value.
func parseQueryInto(dst *Headers, raw string) {
	if raw == "" {
		return
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		var k, v string
		if eq := strings.IndexByte(pair, '='); eq >= 0 {
			k, v = pair[:eq], pair[eq+1:]
		} else {
			k = pair
		}
		dk, err := url.QueryUnescape(k)
		if err != nil {
			dk = k
		}
		dv, err := url.QueryUnescape(v)
		if err != nil {
			dv = v
		}
		dst.Add(dk, dv)
	}
}
