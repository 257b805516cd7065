// Package proxy implements the gateway request pipeline: authenticate the
// caller opportunistically, match a route, enrich the request with
// gateway-asserted identity headers, forward to one backend endpoint and
// relay the response verbatim.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"parapet/pkg/middleware"
	"parapet/pkg/problems"
	"parapet/pkg/routes"
	"parapet/pkg/token"
)

// Identity headers asserted by the gateway. The gateway is a trust boundary:
// client-supplied copies are stripped before authentication, not merely
// overwritten after.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUsername = "X-Username"
	HeaderUserRole = "X-User-Role"
)

var identityHeaders = []string{HeaderUserID, HeaderUsername, HeaderUserRole}

// Hop-by-hop headers never relayed to the backend.
var hopByHop = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// Pipeline forwards matched requests to backend clusters. Shared state is
// read-only after construction; each request runs independently.
type Pipeline struct {
	validator *token.Validator
	table     *routes.Table
	client    *http.Client
	timeout   time.Duration
	log       *zap.SugaredLogger
}

func New(validator *token.Validator, table *routes.Table, timeout time.Duration, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		validator: validator,
		table:     table,
		client:    &http.Client{},
		timeout:   timeout,
		log:       log,
	}
}

// exchange is the per-request pipeline state.
type exchange struct {
	w         http.ResponseWriter
	r         *http.Request
	bearer    string
	principal *token.Principal
	route     routes.Route
}

// stage advances the exchange and returns nil to continue or a terminal
// problem to stop.
type stage func(*exchange) *problems.Problem

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ex := &exchange{w: w, r: r}
	for _, st := range []stage{p.received, p.authenticate, p.matchRoute, p.enrich, p.forward} {
		if pr := st(ex); pr != nil {
			problems.Write(w, *pr)
			return
		}
	}
}

// received strips client-supplied identity headers and captures the bearer
// token if present.
func (p *Pipeline) received(ex *exchange) *problems.Problem {
	for _, h := range identityHeaders {
		ex.r.Header.Del(h)
	}
	ex.bearer = bearerToken(ex.r.Header.Get("Authorization"))
	return nil
}

// authenticate attaches a principal when a valid bearer token is present.
// Absence of a token is not an error, and a present-but-invalid token only
// withholds the principal; rejection is the route's decision.
func (p *Pipeline) authenticate(ex *exchange) *problems.Problem {
	if ex.bearer == "" {
		return nil
	}
	pr, err := p.validator.Validate(ex.bearer)
	if err != nil {
		p.log.Debugw("bearer token rejected", "path", ex.r.URL.Path, "err", err)
		return nil
	}
	ex.principal = &pr
	return nil
}

func (p *Pipeline) matchRoute(ex *exchange) *problems.Problem {
	rt, ok := p.table.Match(ex.r.URL.Path)
	if !ok {
		return &problems.NotFound
	}
	if rt.RequiresAuth && ex.principal == nil {
		return &problems.Unauthorized
	}
	if rt.RequireRole != "" {
		if ex.principal == nil {
			return &problems.Unauthorized
		}
		if ex.principal.Role != rt.RequireRole {
			return &problems.Forbidden
		}
	}
	ex.route = rt
	return nil
}

// enrich sets trusted identity headers for the backend. Only non-empty claims
// are asserted; anonymous requests carry none.
func (p *Pipeline) enrich(ex *exchange) *problems.Problem {
	if ex.principal == nil {
		return nil
	}
	ex.r.Header.Set(HeaderUserID, strconv.FormatInt(ex.principal.UserID, 10))
	if ex.principal.Username != "" {
		ex.r.Header.Set(HeaderUsername, ex.principal.Username)
	}
	if ex.principal.Role != "" {
		ex.r.Header.Set(HeaderUserRole, ex.principal.Role)
	}
	return nil
}

// forward sends the request to one endpoint of the matched cluster and relays
// the response unchanged. No retries: connection failures become 502, the
// per-request deadline becomes 504, everything else passes through.
func (p *Pipeline) forward(ex *exchange) *problems.Problem {
	endpoint := ex.route.Cluster.Pick()
	target := endpoint + ex.r.URL.Path
	if q := ex.r.URL.RawQuery; q != "" {
		target += "?" + q
	}

	ctx, cancel := context.WithTimeout(ex.r.Context(), p.timeout)
	defer cancel()

	upReq, err := http.NewRequestWithContext(ctx, ex.r.Method, target, ex.r.Body)
	if err != nil {
		p.log.Errorw("upstream request build failed", "url", target, "err", err)
		return &problems.Internal
	}
	upReq.Header = ex.r.Header.Clone()
	for _, h := range hopByHop {
		upReq.Header.Del(h)
	}

	resp, err := p.client.Do(upReq)
	if err != nil {
		reqID := middleware.RequestIDFrom(ex.r.Context())
		if errors.Is(err, context.DeadlineExceeded) {
			middleware.UpstreamFailures.WithLabelValues("timeout").Inc()
			p.log.Warnw("upstream timeout", "cluster", ex.route.Cluster.Name, "url", target, "request_id", reqID)
			return &problems.BackendTimeout
		}
		middleware.UpstreamFailures.WithLabelValues("unreachable").Inc()
		p.log.Warnw("upstream unreachable", "cluster", ex.route.Cluster.Name, "url", target, "request_id", reqID, "err", err)
		return &problems.BackendUnreachable
	}
	defer resp.Body.Close()

	header := ex.w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	ex.w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(ex.w, resp.Body)
	return nil
}

func bearerToken(authz string) string {
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("Bearer "):])
}
