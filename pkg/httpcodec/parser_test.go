package httpcodec

import (
	"strings"
	"testing"
)

func TestParseSimpleGET(t *testing.T) {
	p := NewParser()
	res := p.Feed([]byte("GET /hello?name=Alice HTTP/1.1\r\nHost: x\r\n\r\n"))
	if res.Kind != Complete {
		t.Fatalf("Kind = %v, want Complete (err=%v)", res.Kind, res.Err)
	}
	req := res.Request
	defer PutRequest(req)

	if req.Method != MethodGET {
		t.Errorf("Method = %v, want GET", req.Method)
	}
	if req.Path != "/hello" {
		t.Errorf("Path = %q, want /hello", req.Path)
	}
	if got := req.Query.Get("name"); got != "Alice" {
		t.Errorf("Query[name] = %q, want Alice", got)
	}
	if req.Header.Get("Host") != "x" {
		t.Errorf("Host header not captured")
	}
}

func TestParseIncrementalAcrossFeeds(t *testing.T) {
	p := NewParser()

	partial := []byte("POST /echo HTTP/1.1\r\nContent-Length: 2\r\n\r\n")
	res := p.Feed(partial)
	if res.Kind != NeedMoreData {
		t.Fatalf("Kind = %v, want NeedMoreData before body arrives", res.Kind)
	}

	full := append(append([]byte{}, partial...), []byte("hi")...)
	res = p.Feed(full)
	if res.Kind != Complete {
		t.Fatalf("Kind = %v, want Complete (err=%v)", res.Kind, res.Err)
	}
	if string(res.Request.Body) != "hi" {
		t.Errorf("Body = %q, want hi", res.Request.Body)
	}
	if res.Consumed != len(full) {
		t.Errorf("Consumed = %d, want %d", res.Consumed, len(full))
	}
	PutRequest(res.Request)
}

func TestParseRequestLineTooLong(t *testing.T) {
	p := NewParser()
	longPath := "/" + strings.Repeat("a", MaxRequestLineSize+1)
	res := p.Feed([]byte("GET " + longPath + " HTTP/1.1\r\n\r\n"))
	if res.Kind != Malformed || res.Err.Kind != KindURITooLong {
		t.Fatalf("got %v/%v, want Malformed/URITooLong", res.Kind, res.Err)
	}
}

func TestParseRequestLineAtLimitAccepted(t *testing.T) {
	p := NewParser()
	// "GET " (4) + path + " HTTP/1.1" (9) must fit in MaxRequestLineSize.
	pathLen := MaxRequestLineSize - len("GET ") - len(" HTTP/1.1")
	path := "/" + strings.Repeat("a", pathLen-1)
	line := "GET " + path + " HTTP/1.1"
	if len(line) != MaxRequestLineSize {
		t.Fatalf("test setup: line length %d, want %d", len(line), MaxRequestLineSize)
	}
	res := p.Feed([]byte(line + "\r\n\r\n"))
	if res.Kind != Complete {
		t.Fatalf("Kind = %v, want Complete at exact limit (err=%v)", res.Kind, res.Err)
	}
	PutRequest(res.Request)
}

func TestParseUnknownMethod(t *testing.T) {
	p := NewParser()
	res := p.Feed([]byte("FROBNICATE / HTTP/1.1\r\n\r\n"))
	if res.Kind != Malformed || res.Err.Kind != KindMethodNotRecognized {
		t.Fatalf("got %v/%v, want Malformed/MethodNotRecognized", res.Kind, res.Err)
	}
}

func TestParseUnsupportedVersion(t *testing.T) {
	p := NewParser()
	res := p.Feed([]byte("GET / HTTP/2.0\r\n\r\n"))
	if res.Kind != Malformed || res.Err.Kind != KindUnsupportedVersion {
		t.Fatalf("got %v/%v, want Malformed/UnsupportedVersion", res.Kind, res.Err)
	}
}

func TestParseMalformedRequestLine(t *testing.T) {
	p := NewParser()
	res := p.Feed([]byte("GET /\r\n\r\n"))
	if res.Kind != Malformed || res.Err.Kind != KindMalformed {
		t.Fatalf("got %v/%v, want Malformed/Malformed", res.Kind, res.Err)
	}
}

func TestParsePayloadTooLarge(t *testing.T) {
	p := NewParser()
	res := p.Feed([]byte("POST /x HTTP/1.1\r\nContent-Length: 99999999999\r\n\r\n"))
	if res.Kind != Malformed || res.Err.Kind != KindMalformed {
		// A value this large overflows int parsing on 32-bit platforms
		// differently than on 64-bit; either a parse failure or the
		// explicit PayloadTooLarge kind is acceptable here.
		if res.Err == nil || (res.Err.Kind != KindMalformed && res.Err.Kind != KindPayloadTooLarge) {
			t.Fatalf("got %v/%v, want Malformed", res.Kind, res.Err)
		}
	}
}

func TestParseDuplicateHeaderPreservesOrder(t *testing.T) {
	p := NewParser()
	res := p.Feed([]byte("GET / HTTP/1.1\r\nX-Tag: a\r\nX-Tag: b\r\n\r\n"))
	if res.Kind != Complete {
		t.Fatalf("Kind = %v, want Complete (err=%v)", res.Kind, res.Err)
	}
	vals := res.Request.Header.Values("x-tag")
	if len(vals) != 2 || vals[0] != "a" || vals[1] != "b" {
		t.Errorf("Values = %v, want [a b]", vals)
	}
	PutRequest(res.Request)
}

func TestParseMissingEqualsInQuery(t *testing.T) {
	p := NewParser()
	res := p.Feed([]byte("GET /s?flag HTTP/1.1\r\n\r\n"))
	if res.Kind != Complete {
		t.Fatalf("Kind = %v, want Complete", res.Kind)
	}
	if got := res.Request.Query.Get("flag"); got != "" {
		t.Errorf("Query[flag] = %q, want empty string", got)
	}
	if !res.Request.Query.Has("flag") {
		t.Errorf("expected flag to be present with empty value")
	}
	PutRequest(res.Request)
}
