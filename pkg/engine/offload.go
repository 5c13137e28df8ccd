package engine

import (
	"github.com/junhyeong9812/serverarch/pkg/future"
	"github.com/junhyeong9812/serverarch/pkg/httpcodec"
)

// AttrAsyncOffload is the request attribute key (pkg/httpcodec's
// attribute bag, the same mechanism the router uses for path
// parameters) under which Hybrid and EventLoop engines publish an
// OffloadFunc bound to their CPU pool, per spec §4.6/§4.7's "cpu pool
// sized to core count for computation" / "dedicated ants.Pool for CPU
// offload". ThreadedEngine does not set this attribute — its handlers
// already run on a dedicated worker, so there is no separate pool to
// hand work to.
const AttrAsyncOffload = "engine.offload"

// OffloadFunc submits fn to the calling engine's CPU-bound worker pool
// and returns a future that resolves with fn's result. Handlers that
// need to do non-trivial computation inside an EventLoopEngine or
// HybridEngine request should run it through the attribute rather than
// blocking the goroutine the engine invoked them on.
type OffloadFunc func(fn func() (*httpcodec.Response, error)) *future.Future[*httpcodec.Response]

// OffloadFrom retrieves the OffloadFunc published on req, if any. ok is
// false for ThreadedEngine requests, or any request constructed outside
// an engine (e.g. directly in a test).
func OffloadFrom(req *httpcodec.Request) (OffloadFunc, bool) {
	v, ok := req.Attr(AttrAsyncOffload)
	if !ok {
		return nil, false
	}
	fn, ok := v.(OffloadFunc)
	return fn, ok
}

func submitOffload(pool interface{ Submit(func()) error }) OffloadFunc {
	return func(fn func() (*httpcodec.Response, error)) *future.Future[*httpcodec.Response] {
		fut := future.New[*httpcodec.Response]()
		err := pool.Submit(func() {
			resp, err := fn()
			if err != nil {
				fut.Fail(err)
				return
			}
			fut.Complete(resp)
		})
		if err != nil {
			fut.Fail(err)
		}
		return fut
	}
}
