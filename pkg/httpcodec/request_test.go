package httpcodec

import "testing"

func TestRequestKeepAliveHTTP11Default(t *testing.T) {
	r := NewRequest()
	r.Proto = "HTTP/1.1"
	if !r.KeepAlive() {
		t.Errorf("HTTP/1.1 with no Connection header should keep-alive")
	}
}

func TestRequestKeepAliveHTTP11Close(t *testing.T) {
	r := NewRequest()
	r.Proto = "HTTP/1.1"
	r.Header.Set("Connection", "close")
	if r.KeepAlive() {
		t.Errorf("Connection: close should disable keep-alive")
	}
}

func TestRequestKeepAliveHTTP10DefaultClose(t *testing.T) {
	r := NewRequest()
	r.Proto = "HTTP/1.0"
	if r.KeepAlive() {
		t.Errorf("HTTP/1.0 with no Connection header should close")
	}
}

func TestRequestKeepAliveHTTP10Explicit(t *testing.T) {
	r := NewRequest()
	r.Proto = "HTTP/1.0"
	r.Header.Set("Connection", "keep-alive")
	if !r.KeepAlive() {
		t.Errorf("HTTP/1.0 with Connection: keep-alive should keep-alive")
	}
}

func TestRequestAttrRoundTrip(t *testing.T) {
	r := NewRequest()
	r.SetAttr("path.id", "42")
	v, ok := r.Attr("path.id")
	if !ok || v != "42" {
		t.Errorf("Attr(path.id) = (%v, %v), want (42, true)", v, ok)
	}
	if _, ok := r.Attr("missing"); ok {
		t.Errorf("Attr(missing) should report ok=false")
	}
}

func TestRequestPoolResetsState(t *testing.T) {
	r := GetRequest()
	r.Method = MethodPOST
	r.SetAttr("x", 1)
	PutRequest(r)

	r2 := GetRequest()
	defer PutRequest(r2)
	if r2.Method != MethodUnknown {
		t.Errorf("pooled Request did not reset Method")
	}
	if _, ok := r2.Attr("x"); ok {
		t.Errorf("pooled Request did not reset attrs")
	}
}
