// Package gateway serves collections over HTTP.
//
// Routes, for every collection declared in the config:
//
//	POST   /q/:key        push the request body (priority queues take ?score=)
//	DELETE /q/:key        pop; ?wait= blocks up to the given duration
//	GET    /q/:key        all elements as JSON
//	GET    /q/:key/len    element count
//	GET    /q/:key/peek   the element the next pop returns
//	DELETE /q/:key/all    clear
//
// An empty pop or peek answers 204 No Content.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/buaazp/fasthttprouter"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/oshokin/xk6-qr/qr/collection"
	"github.com/oshokin/xk6-qr/qr/store"
)

// RequestIDHeader carries the request id; a client-supplied one is kept.
const RequestIDHeader = "X-Request-ID"

// Server routes HTTP requests to collections of one store.
type Server struct {
	router    *fasthttprouter.Router
	endpoints map[string]endpoint
	logger    *slog.Logger
	maxWait   time.Duration
	base      context.Context //nolint:containedctx // handlers derive from the serving context.
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxWait bounds ?wait= on blocking pops.
func WithMaxWait(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.maxWait = d
		}
	}
}

// New builds a server for the declared collections over st.
func New(st store.Store, collections []Collection, opts ...Option) (*Server, error) {
	s := &Server{
		router:    fasthttprouter.New(),
		endpoints: make(map[string]endpoint, len(collections)),
		logger:    slog.Default(),
		maxWait:   30 * time.Second,
		base:      context.Background(),
	}

	for _, opt := range opts {
		opt(s)
	}

	collOpts := []collection.Option{collection.WithLogger(s.logger)}

	for _, c := range collections {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("collection %q: %w", c.Key, err)
		}

		ep, err := newEndpoint(st, c, collOpts)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", c.Key, err)
		}

		s.endpoints[c.Key] = ep
	}

	s.router.POST("/q/:key", s.handlePush)
	s.router.DELETE("/q/:key", s.handlePop)
	s.router.GET("/q/:key", s.handleElements)
	s.router.GET("/q/:key/len", s.handleLen)
	s.router.GET("/q/:key/peek", s.handlePeek)
	s.router.DELETE("/q/:key/all", s.handleClear)

	s.router.NotFound = func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}

	return s, nil
}

// Handler returns the request handler, tagging every response with a request id.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		requestID := string(ctx.Request.Header.Peek(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx.SetUserValue(RequestIDHeader, requestID)
		ctx.Response.Header.Set(RequestIDHeader, requestID)

		s.router.Handler(ctx)
	}
}

// Serve answers requests on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.base = ctx

	srv := &fasthttp.Server{
		Handler:               s.Handler(),
		Name:                  "qrd",
		NoDefaultServerHeader: true,
		NoDefaultDate:         true,
		ReadTimeout:           s.maxWait + 10*time.Second,
		WriteTimeout:          s.maxWait + 10*time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.InfoContext(ctx, "gateway listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := srv.Shutdown(); err != nil {
			return fmt.Errorf("shutdown gateway: %w", err)
		}

		return <-errCh
	}
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	return s.Serve(ctx, ln)
}

func (s *Server) handlePush(ctx *fasthttp.RequestCtx) {
	ep, key, ok := s.lookup(ctx)
	if !ok {
		return
	}

	var score float64

	if ep.scored() {
		raw := ctx.QueryArgs().Peek("score")
		if len(raw) == 0 {
			s.fail(ctx, key, fasthttp.StatusBadRequest, errors.New("score query parameter is required"))

			return
		}

		parsed, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			s.fail(ctx, key, fasthttp.StatusBadRequest, fmt.Errorf("%w: %q", store.ErrInvalidScore, raw))

			return
		}

		score = parsed
	}

	if err := ep.push(s.base, ctx.PostBody(), score); err != nil {
		s.fail(ctx, key, statusFor(err), err)

		return
	}

	ctx.SetStatusCode(fasthttp.StatusCreated)
}

func (s *Server) handlePop(ctx *fasthttp.RequestCtx) {
	ep, key, ok := s.lookup(ctx)
	if !ok {
		return
	}

	wait, err := s.parseWait(ctx.QueryArgs().Peek("wait"))
	if err != nil {
		s.fail(ctx, key, fasthttp.StatusBadRequest, err)

		return
	}

	value, found, err := ep.pop(s.base, wait)
	s.writeValue(ctx, key, value, found, err)
}

func (s *Server) handlePeek(ctx *fasthttp.RequestCtx) {
	ep, key, ok := s.lookup(ctx)
	if !ok {
		return
	}

	value, found, err := ep.peek(s.base)
	s.writeValue(ctx, key, value, found, err)
}

func (s *Server) handleElements(ctx *fasthttp.RequestCtx) {
	ep, key, ok := s.lookup(ctx)
	if !ok {
		return
	}

	items, err := ep.elements(s.base)
	if err != nil {
		s.fail(ctx, key, statusFor(err), err)

		return
	}

	s.writeJSON(ctx, key, items)
}

func (s *Server) handleLen(ctx *fasthttp.RequestCtx) {
	ep, key, ok := s.lookup(ctx)
	if !ok {
		return
	}

	n, err := ep.length(s.base)
	if err != nil {
		s.fail(ctx, key, statusFor(err), err)

		return
	}

	s.writeJSON(ctx, key, map[string]int64{"len": n})
}

func (s *Server) handleClear(ctx *fasthttp.RequestCtx) {
	ep, key, ok := s.lookup(ctx)
	if !ok {
		return
	}

	if err := ep.clear(s.base); err != nil {
		s.fail(ctx, key, statusFor(err), err)

		return
	}

	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) lookup(ctx *fasthttp.RequestCtx) (endpoint, string, bool) {
	key, _ := ctx.UserValue("key").(string)

	ep, ok := s.endpoints[key]
	if !ok {
		s.fail(ctx, key, fasthttp.StatusNotFound, fmt.Errorf("collection %q is not declared", key))

		return nil, key, false
	}

	return ep, key, true
}

// parseWait accepts milliseconds or a duration string, capped at maxWait.
func (s *Server) parseWait(raw []byte) (time.Duration, error) {
	if len(raw) == 0 {
		return 0, nil
	}

	wait, err := time.ParseDuration(string(raw))
	if err != nil {
		ms, convErr := strconv.ParseInt(string(raw), 10, 64)
		if convErr != nil {
			return 0, fmt.Errorf("invalid wait %q: %w", raw, err)
		}

		wait = time.Duration(ms) * time.Millisecond
	}

	if wait < 0 {
		return 0, fmt.Errorf("negative wait %q", raw)
	}

	return min(wait, s.maxWait), nil
}

func (s *Server) writeValue(ctx *fasthttp.RequestCtx, key string, value []byte, found bool, err error) {
	switch {
	case err != nil:
		s.fail(ctx, key, statusFor(err), err)
	case !found:
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	default:
		ctx.SetContentType("application/octet-stream")
		ctx.SetBody(value)
	}
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, key string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.fail(ctx, key, fasthttp.StatusInternalServerError, err)

		return
	}

	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func (s *Server) fail(ctx *fasthttp.RequestCtx, key string, status int, err error) {
	requestID, _ := ctx.UserValue(RequestIDHeader).(string)

	level := slog.LevelDebug
	if status >= fasthttp.StatusInternalServerError {
		level = slog.LevelError
	}

	s.logger.Log(s.base, level, "request failed",
		slog.String("request_id", requestID),
		slog.String("method", string(ctx.Method())),
		slog.String("key", key),
		slog.Int("status", status),
		slog.Any("error", err),
	)

	ctx.Error(err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidScore),
		errors.Is(err, store.ErrInvalidKey),
		errors.Is(err, ErrWaitUnsupported):
		return fasthttp.StatusBadRequest
	case errors.Is(err, store.ErrWrongType):
		return fasthttp.StatusConflict
	case errors.Is(err, store.ErrClosed):
		return fasthttp.StatusServiceUnavailable
	default:
		return fasthttp.StatusInternalServerError
	}
}
