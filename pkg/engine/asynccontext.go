package engine

import (
	"time"

	"github.com/junhyeong9812/serverarch/pkg/eventloop"
	"github.com/junhyeong9812/serverarch/pkg/httpcodec"
)

// AsyncContext is HybridEngine's promoted first-class type (spec §3
// expansion): the state a handler invocation needs to outlive the
// selector-thread call that started it — the request it is answering,
// the connection's registration key so the completion stage knows
// which fd to arm for write-readiness, the deadline past which the
// engine gives up and emits 408, and a cancel function that does so
// (spec §4.6's AsyncContext timeout timer).
type AsyncContext struct {
	Request      *httpcodec.Request
	Registration eventloop.RegistrationKey
	Deadline     time.Time
	Cancel       func()
}
