// Package connection implements ConnectionContext, the per-connection
// state owned exclusively by whichever thread drives it (spec §3/§4.4):
// a dedicated worker for ThreadedEngine, the selector thread for
// HybridEngine, or the loop thread for EventLoopEngine.
package connection

import (
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/bytebufferpool"

	"github.com/junhyeong9812/serverarch/pkg/bufpool"
	"github.com/junhyeong9812/serverarch/pkg/eventloop"
	"github.com/junhyeong9812/serverarch/pkg/httpcodec"
)

// ErrRequestTooLarge is returned by ReadAvailable when a connection's
// accumulated, unparsed bytes would exceed the hard request-size
// ceiling. The caller must respond 413 and close (spec §4.4).
var ErrRequestTooLarge = errors.New("connection: request exceeds size ceiling")

// maxRequestSize bounds a single request's total wire footprint: request
// line, headers, and body, each already capped individually by
// pkg/httpcodec.
const maxRequestSize = httpcodec.MaxRequestLineSize + httpcodec.MaxHeadersSize + httpcodec.MaxBodySize

// ConnectionContext owns one accepted connection end to end. It is never
// accessed from more than one goroutine concurrently; engines enforce
// that by construction (a dedicated worker, the selector thread, or the
// loop thread).
type ConnectionContext struct {
	Conn         net.Conn
	Registration eventloop.RegistrationKey

	// ID correlates log records for one connection across the async
	// handoffs in the hybrid and event-loop engines, where a single
	// request touches several goroutines before its response is written.
	ID uuid.UUID

	// Parser and the in-flight/completed request for the current cycle.
	Parser  *httpcodec.Parser
	Request *httpcodec.Request

	KeepAlive    bool
	LastActivity time.Time

	readBuf      []byte
	readLen      int
	lastConsumed int // leading bytes of readBuf already parsed into Request

	writeBuf []byte
	writeOff int
	writeLen int
	oneShot  *bytebufferpool.ByteBuffer // non-nil while flushing an oversized response

	pool *bufpool.BufferPool
}

// New allocates a ConnectionContext for a freshly accepted conn, drawing
// its read/write buffers from pool (spec §4.4's 8 KiB/16 KiB defaults).
func New(conn net.Conn, pool *bufpool.BufferPool) *ConnectionContext {
	return &ConnectionContext{
		Conn:         conn,
		ID:           uuid.New(),
		Parser:       httpcodec.NewParser(),
		LastActivity: time.Now(),
		readBuf:      pool.GetReadBuffer(),
		writeBuf:     pool.GetWriteBuffer(),
		pool:         pool,
	}
}

// ReadAvailable reads whatever bytes are available into the read
// buffer without blocking beyond deadline. ThreadedEngine passes a long
// deadline (its per-request idle timeout) for a genuinely blocking
// read; HybridEngine and EventLoopEngine pass a near-zero deadline so a
// call made only after the poller reports readability returns promptly
// rather than risking an indefinite block on a conn.Read that Go's
// runtime would otherwise service lazily.
//
// Returns the byte count read, io.EOF on orderly close, or
// ErrRequestTooLarge if accepting more bytes would exceed the request
// size ceiling before a full request has been parsed.
func (c *ConnectionContext) ReadAvailable(deadline time.Duration) (int, error) {
	if c.readLen == len(c.readBuf) {
		if len(c.readBuf) >= maxRequestSize {
			return 0, ErrRequestTooLarge
		}
		grown := make([]byte, len(c.readBuf)*2)
		copy(grown, c.readBuf[:c.readLen])
		c.readBuf = grown
	}

	_ = c.Conn.SetReadDeadline(time.Now().Add(deadline))
	n, err := c.Conn.Read(c.readBuf[c.readLen:])
	if n > 0 {
		c.readLen += n
		c.LastActivity = time.Now()
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, nil
		}
		return n, err
	}
	return n, nil
}

// TryParse advances the parser over the bytes accumulated so far. On
// Complete it records Request and lastConsumed and derives KeepAlive
// from the request's Connection header and protocol version (spec
// §4.4: HTTP/1.1 defaults to keep-alive unless "Connection: close" is
// present; HTTP/1.0 requires an explicit "Connection: keep-alive").
func (c *ConnectionContext) TryParse() httpcodec.Result {
	res := c.Parser.Feed(c.readBuf[:c.readLen])
	if res.Kind == httpcodec.Complete {
		c.Request = res.Request
		c.lastConsumed = res.Consumed
		c.KeepAlive = res.Request.KeepAlive()
	}
	return res
}

// PrepareResponse copies an already-serialized response into the write
// buffer, switching to a one-shot buffer when it does not fit the pooled
// write buffer (spec §4.4).
func (c *ConnectionContext) PrepareResponse(serialized []byte) {
	if len(serialized) <= len(c.writeBuf) {
		copy(c.writeBuf, serialized)
		c.writeLen = len(serialized)
		c.releaseOneShot()
	} else {
		c.oneShot = bufpool.GetOneShot(len(serialized))
		_, _ = c.oneShot.Write(serialized)
		c.writeLen = len(c.oneShot.B)
	}
	c.writeOff = 0
}

// WritePending flushes as much of the prepared response as possible
// without blocking beyond deadline. Returns true once the entire
// response has been written.
func (c *ConnectionContext) WritePending(deadline time.Duration) (drained bool, err error) {
	buf := c.writeBuf
	if c.oneShot != nil {
		buf = c.oneShot.B
	}

	_ = c.Conn.SetWriteDeadline(time.Now().Add(deadline))
	n, werr := c.Conn.Write(buf[c.writeOff:c.writeLen])
	if n > 0 {
		c.writeOff += n
	}
	if werr != nil {
		if ne, ok := werr.(net.Error); ok && ne.Timeout() {
			return c.writeOff >= c.writeLen, nil
		}
		return false, werr
	}
	return c.writeOff >= c.writeLen, nil
}

// ResetForNextRequest clears per-request state and rewinds the read
// buffer for keep-alive reuse (spec §4.4). Only valid when KeepAlive is
// true.
func (c *ConnectionContext) ResetForNextRequest() {
	leftover := c.readLen - c.lastConsumed
	if leftover > 0 {
		copy(c.readBuf, c.readBuf[c.lastConsumed:c.readLen])
	}
	c.readLen = leftover
	c.lastConsumed = 0

	c.Parser.Reset()
	if c.Request != nil {
		httpcodec.PutRequest(c.Request)
		c.Request = nil
	}
	c.writeOff = 0
	c.writeLen = 0
	c.releaseOneShot()
}

func (c *ConnectionContext) releaseOneShot() {
	if c.oneShot != nil {
		bufpool.PutOneShot(c.oneShot)
		c.oneShot = nil
	}
}

// Close releases the connection's buffers back to the pool and closes
// the underlying socket. Safe to call once per ConnectionContext.
func (c *ConnectionContext) Close() error {
	c.pool.Put(c.readBuf)
	c.pool.Put(c.writeBuf)
	c.readBuf, c.writeBuf = nil, nil
	c.releaseOneShot()
	if c.Request != nil {
		httpcodec.PutRequest(c.Request)
		c.Request = nil
	}
	return c.Conn.Close()
}
