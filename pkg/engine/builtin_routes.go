package engine

import (
	"bytes"
	"encoding/json"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/junhyeong9812/serverarch/pkg/future"
	"github.com/junhyeong9812/serverarch/pkg/httpcodec"
	"github.com/junhyeong9812/serverarch/pkg/metrics"
	"github.com/junhyeong9812/serverarch/pkg/router"
)

// InfoFields is the static, engine-identifying data the built-in
// GET /info route reports (spec §6).
type InfoFields struct {
	ServerName      string `json:"serverName"`
	Version         string `json:"version"`
	Engine          string `json:"engine"`
	Port            int    `json:"port"`
	Backlog         int    `json:"backlog"`
	ReadBufferSize  int    `json:"readBufferSize"`
	WriteBufferSize int    `json:"writeBufferSize"`
}

// RegisterBuiltinRoutes installs GET /health, GET /metrics, and
// GET /info on r, per spec §6: these routes are registered by the
// server shell rather than user code, but go through the same Router
// every user route does. refresh, if non-nil, is called just before
// each /metrics read so an engine can sample its event-loop/pool
// gauges on demand instead of updating them on the request hot path.
// A non-nil gatherer additionally installs GET /metrics/prometheus,
// serving the same registry the engine's collectors were registered
// with in text exposition format.
func RegisterBuiltinRoutes(r *router.Router, m *metrics.Metrics, info InfoFields, refresh func(), gatherer prometheus.Gatherer) {
	r.Add(httpcodec.MethodGET, "/health", func(req *httpcodec.Request) *future.Future[*httpcodec.Response] {
		body, _ := json.Marshal(map[string]any{
			"status":            "UP",
			"activeConnections": m.Snapshot().ActiveConnections,
		})
		return future.Completed(jsonResponse(200, body))
	})

	r.Add(httpcodec.MethodGET, "/metrics", func(req *httpcodec.Request) *future.Future[*httpcodec.Response] {
		if refresh != nil {
			refresh()
		}
		body, _ := json.Marshal(m.Snapshot())
		return future.Completed(jsonResponse(200, body))
	})

	r.Add(httpcodec.MethodGET, "/info", func(req *httpcodec.Request) *future.Future[*httpcodec.Response] {
		body, _ := json.Marshal(info)
		return future.Completed(jsonResponse(200, body))
	})

	if gatherer != nil {
		r.Add(httpcodec.MethodGET, "/metrics/prometheus", func(req *httpcodec.Request) *future.Future[*httpcodec.Response] {
			if refresh != nil {
				refresh()
			}
			mfs, err := gatherer.Gather()
			if err != nil {
				return future.Completed(httpcodec.TextResponse(500, err.Error()))
			}
			textFormat := expfmt.NewFormat(expfmt.TypeTextPlain)
			var buf bytes.Buffer
			enc := expfmt.NewEncoder(&buf, textFormat)
			for _, mf := range mfs {
				if err := enc.Encode(mf); err != nil {
					return future.Completed(httpcodec.TextResponse(500, err.Error()))
				}
			}
			resp := httpcodec.NewResponse()
			resp.Header.Set("Content-Type", string(textFormat))
			_, _ = resp.Write(buf.Bytes())
			resp.Commit()
			return future.Completed(resp)
		})
	}
}

func jsonResponse(status int, body []byte) *httpcodec.Response {
	resp := httpcodec.NewResponse()
	resp.Status = status
	resp.Header.Set("Content-Type", "application/json; charset=UTF-8")
	_, _ = resp.Write(body)
	resp.Commit()
	return resp
}
