package engine

import "errors"

// errHandlerTimedOut is the internal signal used to fail a handler's
// future when its deadline elapses before completion (spec §7's
// HandlerError{TimedOut} maps to a 408 response).
var errHandlerTimedOut = errors.New("engine: handler exceeded its deadline")

// errBackpressureRejected signals that an AsyncContext could not be
// admitted because the outstanding-context ceiling was reached (spec
// §7's BackpressureError{AdmissionRejected} maps to a 503 response).
var errBackpressureRejected = errors.New("engine: backpressure ceiling reached")

// ErrInvalidEngineKind is returned by New for any kind other than
// "threaded", "hybrid", or "eventloop".
var ErrInvalidEngineKind = errors.New("engine: unrecognized engine kind")
