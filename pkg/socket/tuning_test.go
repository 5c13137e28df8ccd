package socket

import (
	"net"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	o := Defaults()
	if !o.NoDelay {
		t.Errorf("NoDelay should default on; responses must not wait on Nagle")
	}
	if o.ReadBuffer != 256<<10 || o.WriteBuffer != 256<<10 {
		t.Errorf("buffers = %d/%d, want 256 KiB each", o.ReadBuffer, o.WriteBuffer)
	}
	if !o.KeepAlive || o.KeepAliveIdle != 60*time.Second {
		t.Errorf("keepalive = %v idle %v, want enabled with 60s idle", o.KeepAlive, o.KeepAliveIdle)
	}
	if !o.FastOpen || o.FastOpenQueue != 256 {
		t.Errorf("fastopen = %v queue %d, want enabled with queue 256", o.FastOpen, o.FastOpenQueue)
	}
}

// acceptedPair returns both ends of a real TCP connection; the returned
// server side is the one the engines would tune.
func acceptedPair(t *testing.T) (server, client net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("accept never completed")
	}
	t.Cleanup(func() { _ = server.Close() })
	return server, client
}

func TestApplyLeavesConnectionUsable(t *testing.T) {
	server, client := acceptedPair(t)

	if err := Apply(server, Defaults()); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	msg := []byte("ping")
	go func() { _, _ = client.Write(msg) }()
	buf := make([]byte, len(msg))
	_ = server.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("read after Apply: %v", err)
	}
	if string(buf[:n]) != string(msg) {
		t.Errorf("read %q, want %q", buf[:n], msg)
	}
}

func TestApplyNilOptionsUsesDefaults(t *testing.T) {
	server, _ := acceptedPair(t)
	if err := Apply(server, nil); err != nil {
		t.Errorf("Apply(nil): %v", err)
	}
}

func TestApplyListenerLeavesListenerUsable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	// Some kernels reject individual options (e.g. TFO disabled); the
	// listener must keep working either way.
	if err := ApplyListener(ln, Defaults()); err != nil {
		t.Logf("ApplyListener: %v", err)
	}

	dialed := make(chan struct{})
	go func() {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err == nil {
			_ = conn.Close()
		}
		close(dialed)
	}()
	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept after ApplyListener: %v", err)
	}
	_ = conn.Close()
	<-dialed
}

func TestRequickAfterResponse(t *testing.T) {
	server, _ := acceptedPair(t)
	if err := Requick(server); err != nil {
		t.Errorf("Requick: %v", err)
	}
}

func TestNonTCPConnsAreIgnored(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	if err := Apply(a, Defaults()); err != nil {
		t.Errorf("Apply on a pipe should no-op, got %v", err)
	}
	if err := Requick(a); err != nil {
		t.Errorf("Requick on a pipe should no-op, got %v", err)
	}
}
