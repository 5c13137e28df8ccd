package router

import (
	"github.com/junhyeong9812/serverarch/pkg/future"
	"github.com/junhyeong9812/serverarch/pkg/httpcodec"
)

// Handler is the shared asynchronous handler contract from spec §4.8: a
// function from request to a future of response. A synchronous handler
// wraps its result with future.Completed; ThreadedEngine awaits the
// future inline, while HybridEngine and EventLoopEngine attach
// continuations instead of blocking.
type Handler func(req *httpcodec.Request) *future.Future[*httpcodec.Response]

// Middleware wraps a Handler to produce another Handler, per spec §4.2's
// middleware chain: each middleware decides whether to call next at all,
// and may inspect or rewrite the Response it returns.
type Middleware func(next Handler) Handler

// Route is one registered pattern, grounded on spec §3's Route entity.
type Route struct {
	Method   httpcodec.Method
	pat      *pattern
	Handler  Handler
	Priority int

	// seq preserves registration order for the tie-break rule in spec §4.2:
	// equal Priority routes are matched in the order they were added.
	seq int
}

// RouteMatch is what Router.Match returns on success: the matched route
// together with the path parameters extracted from the pattern.
type RouteMatch struct {
	Route  *Route
	Params map[string]string
}

// defaultPriority is used when a route is registered without an explicit
// Priority; spec §9 resolves the corresponding Open Question in favor of
// an explicit field defaulting to 0, with HeuristicPriority available as
// an opt-in ordering strategy (see specificity in router.go).
const defaultPriority = 0
