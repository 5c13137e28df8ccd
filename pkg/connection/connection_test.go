package connection

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/junhyeong9812/serverarch/pkg/bufpool"
	"github.com/junhyeong9812/serverarch/pkg/httpcodec"
)

func newPipePair(t *testing.T) (cc *ConnectionContext, remote net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	cc = New(server, bufpool.NewBufferPool())
	t.Cleanup(func() { _ = client.Close() })
	return cc, client
}

func TestReadAvailableAccumulatesAcrossCalls(t *testing.T) {
	cc, remote := newPipePair(t)

	go func() {
		_, _ = remote.Write([]byte("GET /x HTTP/1.1\r\n"))
		_, _ = remote.Write([]byte("Host: a\r\n\r\n"))
	}()

	var res httpcodec.Result
	for i := 0; i < 10; i++ {
		if _, err := cc.ReadAvailable(time.Second); err != nil {
			t.Fatalf("ReadAvailable: %v", err)
		}
		res = cc.TryParse()
		if res.Kind == httpcodec.Complete {
			break
		}
	}
	if res.Kind != httpcodec.Complete {
		t.Fatalf("expected Complete, got %v", res.Kind)
	}
	if cc.Request.Path != "/x" {
		t.Errorf("Path = %q, want /x", cc.Request.Path)
	}
	if !cc.KeepAlive {
		t.Errorf("expected HTTP/1.1 request to keep connection alive by default")
	}
}

func TestReadAvailableTimeoutIsNotAnError(t *testing.T) {
	cc, _ := newPipePair(t)

	n, err := cc.ReadAvailable(5 * time.Millisecond)
	if err != nil {
		t.Fatalf("expected a bare timeout to be swallowed, got %v", err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
}

func TestPrepareResponseUsesOneShotWhenOversized(t *testing.T) {
	cc, _ := newPipePair(t)

	small := make([]byte, 10)
	cc.PrepareResponse(small)
	if cc.oneShot != nil {
		t.Errorf("small response should use the pooled write buffer")
	}

	oversized := make([]byte, bufpool.WriteBufferSize+1)
	cc.PrepareResponse(oversized)
	if cc.oneShot == nil {
		t.Fatalf("oversized response should switch to a one-shot buffer")
	}
	if len(cc.oneShot.B) != len(oversized) {
		t.Errorf("oneShot len = %d, want %d", len(cc.oneShot.B), len(oversized))
	}

	cc.PrepareResponse(small)
	if cc.oneShot != nil {
		t.Errorf("one-shot buffer should be released once a response fits the pooled buffer again")
	}
}

func TestWritePendingDrainsAcrossCalls(t *testing.T) {
	cc, remote := newPipePair(t)
	payload := []byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")
	cc.PrepareResponse(payload)

	readDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, len(payload))
		n, _ := io.ReadFull(remote, buf)
		readDone <- buf[:n]
	}()

	for i := 0; i < 10; i++ {
		drained, err := cc.WritePending(time.Second)
		if err != nil {
			t.Fatalf("WritePending: %v", err)
		}
		if drained {
			break
		}
	}

	got := <-readDone
	if string(got) != string(payload) {
		t.Errorf("remote received %q, want %q", got, payload)
	}
}

func TestResetForNextRequestRetainsPipelinedBytes(t *testing.T) {
	cc, remote := newPipePair(t)

	go func() {
		_, _ = remote.Write([]byte("GET /first HTTP/1.1\r\n\r\nGET /second HTTP/1.1\r\n\r\n"))
	}()

	var res httpcodec.Result
	for i := 0; i < 10 && res.Kind != httpcodec.Complete; i++ {
		if _, err := cc.ReadAvailable(time.Second); err != nil {
			t.Fatalf("ReadAvailable: %v", err)
		}
		res = cc.TryParse()
	}
	if res.Kind != httpcodec.Complete || cc.Request.Path != "/first" {
		t.Fatalf("expected first request complete, got %+v", res)
	}

	cc.ResetForNextRequest()
	if cc.Request != nil {
		t.Errorf("Request should be cleared after reset")
	}

	res = cc.TryParse()
	for i := 0; i < 10 && res.Kind != httpcodec.Complete; i++ {
		if _, err := cc.ReadAvailable(time.Second); err != nil {
			t.Fatalf("ReadAvailable: %v", err)
		}
		res = cc.TryParse()
	}
	if res.Kind != httpcodec.Complete || res.Request.Path != "/second" {
		t.Fatalf("expected pipelined second request, got %+v", res)
	}
}

func TestCloseReleasesBuffersAndSocket(t *testing.T) {
	cc, remote := newPipePair(t)
	if err := cc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := remote.Write([]byte("x")); err == nil {
		t.Errorf("expected write to a closed pipe peer to fail")
	}
}

func TestSlotTableAcquireReleaseReuse(t *testing.T) {
	table := NewSlotTable(2)
	cc1 := &ConnectionContext{}
	cc2 := &ConnectionContext{}
	cc3 := &ConnectionContext{}

	i1, ok := table.Acquire(cc1)
	if !ok || i1 != 0 {
		t.Fatalf("first Acquire: index=%d ok=%v", i1, ok)
	}
	i2, ok := table.Acquire(cc2)
	if !ok || i2 != 1 {
		t.Fatalf("second Acquire: index=%d ok=%v", i2, ok)
	}
	if _, ok := table.Acquire(cc3); ok {
		t.Fatalf("Acquire should fail once table is at capacity")
	}

	table.Release(i1)
	i3, ok := table.Acquire(cc3)
	if !ok || i3 != i1 {
		t.Fatalf("Acquire after Release should reuse index %d, got %d ok=%v", i1, i3, ok)
	}
	if table.Get(i2) != cc2 {
		t.Errorf("slot %d should still hold cc2", i2)
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
}
