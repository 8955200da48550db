package gateway

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/oshokin/xk6-qr/qr/collection"
	"github.com/oshokin/xk6-qr/qr/store"
)

func newTestServer(t *testing.T, collections ...Collection) *Server {
	t.Helper()

	st := store.NewMemoryStore(&store.MemoryConfig{ShardCount: 2})
	require.NoError(t, st.Open())

	t.Cleanup(func() { _ = st.Close() })

	srv, err := New(st, collections, WithMaxWait(time.Second))
	require.NoError(t, err)

	return srv
}

func do(t *testing.T, srv *Server, method, uri, body string) *fasthttp.RequestCtx {
	t.Helper()

	var req fasthttp.Request

	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	req.SetBodyString(body)

	var ctx fasthttp.RequestCtx

	ctx.Init(&req, nil, nil)
	srv.Handler()(&ctx)

	return &ctx
}

func decodeElements(t *testing.T, ctx *fasthttp.RequestCtx) []element {
	t.Helper()

	var items []element

	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &items))

	return items
}

func TestQueueRoutes(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Collection{Key: "jobs", Kind: collection.KindQueue})

	for _, v := range []string{"a", "b", "c"} {
		ctx := do(t, srv, fasthttp.MethodPost, "/q/jobs", v)
		require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
		require.NotEmpty(t, ctx.Response.Header.Peek(RequestIDHeader))
	}

	ctx := do(t, srv, fasthttp.MethodGet, "/q/jobs/len", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	require.JSONEq(t, `{"len":3}`, string(ctx.Response.Body()))

	ctx = do(t, srv, fasthttp.MethodGet, "/q/jobs/peek", "")
	require.Equal(t, "a", string(ctx.Response.Body()))

	ctx = do(t, srv, fasthttp.MethodGet, "/q/jobs", "")
	require.Equal(t, []element{{Value: "c"}, {Value: "b"}, {Value: "a"}}, decodeElements(t, ctx))

	for _, want := range []string{"a", "b", "c"} {
		ctx = do(t, srv, fasthttp.MethodDelete, "/q/jobs", "")
		require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		require.Equal(t, want, string(ctx.Response.Body()))
	}

	ctx = do(t, srv, fasthttp.MethodDelete, "/q/jobs", "")
	require.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
}

func TestStackAndCappedRoutes(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t,
		Collection{Key: "undo", Kind: collection.KindStack},
		Collection{Key: "recent", Kind: collection.KindCapped, Size: 2},
	)

	for _, v := range []string{"a", "b", "c"} {
		do(t, srv, fasthttp.MethodPost, "/q/undo", v)
		do(t, srv, fasthttp.MethodPost, "/q/recent", v)
	}

	ctx := do(t, srv, fasthttp.MethodGet, "/q/undo/peek", "")
	require.Equal(t, "c", string(ctx.Response.Body()))

	ctx = do(t, srv, fasthttp.MethodDelete, "/q/undo", "")
	require.Equal(t, "c", string(ctx.Response.Body()))

	ctx = do(t, srv, fasthttp.MethodGet, "/q/recent/len", "")
	require.JSONEq(t, `{"len":2}`, string(ctx.Response.Body()))

	ctx = do(t, srv, fasthttp.MethodDelete, "/q/recent", "")
	require.Equal(t, "b", string(ctx.Response.Body()))
}

func TestPriorityRoutes(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Collection{Key: "ranked", Kind: collection.KindPriority})

	ctx := do(t, srv, fasthttp.MethodPost, "/q/ranked?score=1", "foo")
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())

	ctx = do(t, srv, fasthttp.MethodPost, "/q/ranked?score=0", "bar")
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())

	ctx = do(t, srv, fasthttp.MethodPost, "/q/ranked", "baz")
	require.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	ctx = do(t, srv, fasthttp.MethodPost, "/q/ranked?score=NaN", "baz")
	require.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	ctx = do(t, srv, fasthttp.MethodGet, "/q/ranked", "")

	zero, one := 0.0, 1.0
	require.Equal(t, []element{{Value: "bar", Score: &zero}, {Value: "foo", Score: &one}}, decodeElements(t, ctx))

	ctx = do(t, srv, fasthttp.MethodDelete, "/q/ranked?wait=10ms", "")
	require.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	ctx = do(t, srv, fasthttp.MethodDelete, "/q/ranked", "")
	require.Equal(t, "bar", string(ctx.Response.Body()))

	ctx = do(t, srv, fasthttp.MethodDelete, "/q/ranked/all", "")
	require.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())

	ctx = do(t, srv, fasthttp.MethodGet, "/q/ranked/peek", "")
	require.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
}

func TestBlockingPopWaits(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Collection{Key: "jobs", Kind: collection.KindDeque})

	start := time.Now()
	ctx := do(t, srv, fasthttp.MethodDelete, "/q/jobs?wait=50", "")
	require.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	require.Less(t, time.Since(start), 250*time.Millisecond)

	go func() {
		time.Sleep(20 * time.Millisecond)
		do(t, srv, fasthttp.MethodPost, "/q/jobs", "late")
	}()

	ctx = do(t, srv, fasthttp.MethodDelete, "/q/jobs?wait=1s", "")
	require.Equal(t, "late", string(ctx.Response.Body()))

	ctx = do(t, srv, fasthttp.MethodDelete, "/q/jobs?wait=soon", "")
	require.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestUnknownRoutesAndKeys(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Collection{Key: "jobs", Kind: collection.KindQueue})

	ctx := do(t, srv, fasthttp.MethodGet, "/q/missing/len", "")
	require.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	ctx = do(t, srv, fasthttp.MethodGet, "/nowhere", "")
	require.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	var req fasthttp.Request

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI("/q/jobs/len")
	req.Header.Set(RequestIDHeader, "fixed-id")

	var rc fasthttp.RequestCtx

	rc.Init(&req, nil, nil)
	srv.Handler()(&rc)
	require.Equal(t, "fixed-id", string(rc.Response.Header.Peek(RequestIDHeader)))
}

func TestNewRejectsBadDeclarations(t *testing.T) {
	t.Parallel()

	st := store.NewMemoryStore(nil)

	testCases := []struct {
		name   string
		coll   Collection
		expect error
	}{
		{name: "missing key", coll: Collection{Kind: collection.KindQueue}, expect: ErrMissingKey},
		{name: "unknown kind", coll: Collection{Key: "x", Kind: "heap"}, expect: ErrUnknownKind},
		{name: "capped without size", coll: Collection{Key: "x", Kind: collection.KindCapped}, expect: collection.ErrInvalidSize},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(st, []Collection{tc.coll})
			require.ErrorIs(t, err, tc.expect)
		})
	}
}

func TestServeOverListener(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Collection{Key: "jobs", Kind: collection.KindQueue})
	ln := fasthttputil.NewInmemoryListener()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- srv.Serve(ctx, ln) }()

	client := &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI("http://qrd/q/jobs")
	req.SetBodyString("hello")
	req.SetConnectionClose()
	require.NoError(t, client.Do(req, resp))
	require.Equal(t, fasthttp.StatusCreated, resp.StatusCode())

	req.Reset()
	req.Header.SetMethod(fasthttp.MethodDelete)
	req.SetRequestURI("http://qrd/q/jobs")
	req.SetConnectionClose()
	require.NoError(t, client.Do(req, resp))
	require.Equal(t, "hello", string(resp.Body()))

	cancel()
	require.NoError(t, <-done)
}
