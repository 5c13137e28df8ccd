package router

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/junhyeong9812/serverarch/pkg/future"
	"github.com/junhyeong9812/serverarch/pkg/httpcodec"
)

// Chain composes middlewares around a terminal handler, per spec §4.2:
// middlewares run in registration order on the way in and reverse order
// on the way out, any middleware may short-circuit by not calling next,
// and a panic escaping the terminal handler is converted to a 500
// response rather than propagating to the engine.
type Chain struct {
	middlewares []Middleware
}

// NewChain returns an empty Chain.
func NewChain(mw ...Middleware) *Chain {
	return &Chain{middlewares: append([]Middleware{}, mw...)}
}

// Use appends a middleware to the chain.
func (c *Chain) Use(mw Middleware) *Chain {
	c.middlewares = append(c.middlewares, mw)
	return c
}

// Then wraps terminal with the chain's middlewares, outermost first, and
// installs a recover guard around the whole composed handler so a panic
// anywhere in the chain or the terminal handler becomes a 500 instead of
// crashing the calling goroutine.
func (c *Chain) Then(terminal Handler) Handler {
	h := terminal
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		h = c.middlewares[i](h)
	}
	return recoverMiddleware(h)
}

// RateLimit returns a middleware that short-circuits with 429 once
// limiter's token budget is exhausted, before the handler or any later
// middleware runs. The limiter is shared across every request routed
// through the chain, so one limiter bounds the whole server, not one
// connection.
func RateLimit(limiter *rate.Limiter) Middleware {
	return func(next Handler) Handler {
		return func(req *httpcodec.Request) *future.Future[*httpcodec.Response] {
			if !limiter.Allow() {
				resp := httpcodec.TextResponse(429, "Too Many Requests")
				resp.Header.Set("Retry-After", "1")
				return future.Completed(resp)
			}
			return next(req)
		}
	}
}

func recoverMiddleware(h Handler) Handler {
	return func(req *httpcodec.Request) (fut *future.Future[*httpcodec.Response]) {
		defer func() {
			if rec := recover(); rec != nil {
				fut = future.Completed(httpcodec.TextResponse(500, fmt.Sprintf("internal server error: %v", rec)))
			}
		}()
		return h(req)
	}
}
