package router

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/junhyeong9812/serverarch/pkg/future"
	"github.com/junhyeong9812/serverarch/pkg/httpcodec"
)

// Router holds the route table and resolves incoming requests to a
// Route plus extracted path parameters, per spec §4.2.
//
// The table is rebuilt rarely (at startup, or during rare hot-reloads)
// and read on every request, so it is guarded the way badu-http's
// mux.ServeMux guards its route map: a sync.RWMutex held for the
// duration of a lookup, never across a handler invocation.
type Router struct {
	mu      sync.RWMutex
	routes  []*Route
	nextSeq int

	// HeuristicPriority, when true, ignores each Route's explicit
	// Priority and instead orders matching by pattern specificity
	// (fewer parameters and longer static prefixes win), per spec §9's
	// optional ordering strategy.
	HeuristicPriority bool
}

// New returns an empty Router.
func New() *Router {
	return &Router{}
}

// Add registers a route for method and pathPattern with the default
// priority. It panics on an invalid pattern, matching the teacher's
// fail-fast style for programmer errors discovered at startup
// (badu-http's mux registration panics on duplicate patterns).
func (r *Router) Add(method httpcodec.Method, pathPattern string, h Handler) *Route {
	return r.AddWithPriority(method, pathPattern, h, defaultPriority)
}

// AddWithPriority registers a route with an explicit Priority; higher
// values are tried first (spec §4.2).
func (r *Router) AddWithPriority(method httpcodec.Method, pathPattern string, h Handler, priority int) *Route {
	pat, err := compilePattern(pathPattern)
	if err != nil {
		panic(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	route := &Route{
		Method:   method,
		pat:      pat,
		Handler:  h,
		Priority: priority,
		seq:      r.nextSeq,
	}
	r.nextSeq++
	r.routes = append(r.routes, route)
	r.sortLocked()
	return route
}

// Resource registers one route per recognized action key in handlers,
// all under the same basePath + "/{id}" sub-pattern for item-level
// verbs (GET/PUT/DELETE) and basePath for collection-level verbs
// (GET/POST), mirroring the common REST-resource sugar seen across the
// example pack's HTTP frameworks.
//
// handlers keys are action names: "list", "create", "get", "update",
// "delete". Unrecognized keys are ignored.
func (r *Router) Resource(basePath string, handlers map[string]Handler) {
	if h, ok := handlers["list"]; ok {
		r.Add(httpcodec.MethodGET, basePath, h)
	}
	if h, ok := handlers["create"]; ok {
		r.Add(httpcodec.MethodPOST, basePath, h)
	}
	itemPath := basePath + "/{id}"
	if h, ok := handlers["get"]; ok {
		r.Add(httpcodec.MethodGET, itemPath, h)
	}
	if h, ok := handlers["update"]; ok {
		r.Add(httpcodec.MethodPUT, itemPath, h)
	}
	if h, ok := handlers["delete"]; ok {
		r.Add(httpcodec.MethodDELETE, itemPath, h)
	}
}

func (r *Router) sortLocked() {
	if r.HeuristicPriority {
		sort.SliceStable(r.routes, func(i, j int) bool {
			return specificity(r.routes[i].pat) > specificity(r.routes[j].pat)
		})
		return
	}
	sort.SliceStable(r.routes, func(i, j int) bool {
		if r.routes[i].Priority != r.routes[j].Priority {
			return r.routes[i].Priority > r.routes[j].Priority
		}
		return r.routes[i].seq < r.routes[j].seq
	})
}

// specificity scores a pattern for HeuristicPriority ordering: more
// static bytes and fewer parameters score higher, so "/users/active"
// is tried before "/users/{id}".
func specificity(p *pattern) int {
	return len(p.raw) - 10*len(p.paramNames)
}

// Match resolves method and path against the route table, per spec
// §4.2's 404/405 rules:
//   - no pattern matches path at all: nil, 404, and an empty allow string
//   - a pattern matches path but not for method: nil, 405, and the
//     Allow header value (comma-joined list of methods that do match)
//   - a match succeeds: the RouteMatch, 200, and an empty allow string
func (r *Router) Match(method httpcodec.Method, path string) (*RouteMatch, int, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var allowed []string
	seenAllowed := map[string]bool{}

	for _, route := range r.routes {
		params, ok := route.pat.match(path)
		if !ok {
			continue
		}
		if route.Method != method {
			name := route.Method.String()
			if !seenAllowed[name] {
				seenAllowed[name] = true
				allowed = append(allowed, name)
			}
			continue
		}
		return &RouteMatch{Route: route, Params: params}, http.StatusOK, ""
	}

	if len(allowed) > 0 {
		return nil, http.StatusMethodNotAllowed, strings.Join(allowed, ", ")
	}
	return nil, http.StatusNotFound, ""
}

// Dispatch resolves req's method and path, applies the spec's
// attribute-bag convention (each captured parameter under
// "path.<name>", the full mapping under "path.parameters"), and invokes
// the matched route's Handler. On 404/405 it returns a plain text
// response carrying the appropriate status (and Allow header on 405)
// instead of invoking a handler.
func (r *Router) Dispatch(req *httpcodec.Request) *future.Future[*httpcodec.Response] {
	match, status, allow := r.Match(req.Method, req.Path)
	if match == nil {
		resp := httpcodec.TextResponse(status, http.StatusText(status))
		if allow != "" {
			resp.Header.Set("Allow", allow)
		}
		return future.Completed(resp)
	}

	for name, value := range match.Params {
		req.SetAttr("path."+name, value)
	}
	req.SetAttr("path.parameters", match.Params)

	return safeInvoke(match.Route.Handler, req)
}

// safeInvoke converts a panic escaping a handler into a 500 response, so
// a handler registered without a middleware Chain still cannot take down
// the engine goroutine that dispatched it (spec §4.2: chain/handler
// exceptions become a 500 with the message in the body).
func safeInvoke(h Handler, req *httpcodec.Request) (fut *future.Future[*httpcodec.Response]) {
	defer func() {
		if rec := recover(); rec != nil {
			fut = future.Completed(httpcodec.TextResponse(500, fmt.Sprintf("internal server error: %v", rec)))
		}
	}()
	return h(req)
}

// ErrNoRoutes is returned by helpers that require at least one
// registered route before serving traffic.
var ErrNoRoutes = fmt.Errorf("router: no routes registered")
