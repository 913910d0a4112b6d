package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attr(rec SpanRecord, key string) (Value, bool) {
	for _, kv := range rec.Attributes {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return Value{}, false
}

func TestMiddleware(t *testing.T) {
	p := NewTraceContextPropagator()

	t.Run("creates server span joined to incoming trace", func(t *testing.T) {
		exp := &recordingExporter{}
		tracer := NewTracer(WithExporter(exp))

		var inner SpanContext
		h := Middleware(tracer, p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inner = SpanContextFromContext(r.Context())
			w.WriteHeader(http.StatusTeapot)
		}))

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set(TraceparentHeader, "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.NoError(t, tracer.Flush(context.Background()))

		assert.Equal(t, http.StatusTeapot, rec.Code)
		spans := exp.spans()
		require.Len(t, spans, 1)
		s := spans[0]
		assert.Equal(t, SpanKindServer, s.Kind)
		assert.Equal(t, uint64(0xb7ad6b7169203331), s.ParentSpanID)
		assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", s.SpanContext.TraceID.String())
		assert.Equal(t, s.SpanContext, inner)
		assert.Equal(t, StatusOK, s.Status)

		code, ok := attr(s, "http.status_code")
		require.True(t, ok)
		assert.Equal(t, int64(http.StatusTeapot), code.AsInt64())
		res, _ := attr(s, "resource.name")
		assert.Equal(t, "GET /orders", res.AsString())
	})

	t.Run("server errors mark the span failed", func(t *testing.T) {
		exp := &recordingExporter{}
		tracer := NewTracer(WithExporter(exp))
		h := Middleware(tracer, p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))
		require.NoError(t, tracer.Flush(context.Background()))

		spans := exp.spans()
		require.Len(t, spans, 1)
		assert.Equal(t, StatusError, spans[0].Status)
	})

	t.Run("health paths are skipped", func(t *testing.T) {
		exp := &recordingExporter{}
		tracer := NewTracer(WithExporter(exp))
		h := Middleware(tracer, p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.NoError(t, tracer.Flush(context.Background()))
		assert.Empty(t, exp.spans())
	})

	t.Run("nil tracer returns handler unchanged", func(t *testing.T) {
		called := false
		h := Middleware(nil, p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, called)
	})
}

func TestTransport(t *testing.T) {
	p := NewTraceContextPropagator()
	exp := &recordingExporter{}
	tracer := NewTracer(WithExporter(exp))

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(TraceparentHeader)
	}))
	defer srv.Close()

	ctx, parent := tracer.Start(context.Background(), "parent")
	client := &http.Client{Transport: NewTransport(nil, tracer, p)}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	parent.End()
	require.NoError(t, tracer.Flush(context.Background()))

	assert.Empty(t, req.Header.Get(TraceparentHeader), "caller request must not be modified")
	sc := p.Extract(MapCarrier{TraceparentHeader: got})
	require.True(t, sc.IsValid())
	assert.Equal(t, parent.SpanContext().TraceID, sc.TraceID)

	spans := exp.spans()
	require.Len(t, spans, 2)
	client0 := spans[0]
	assert.Equal(t, SpanKindClient, client0.Kind)
	assert.Equal(t, client0.SpanContext.SpanID, sc.SpanID)
	assert.Equal(t, parent.SpanContext().SpanID, client0.ParentSpanID)
}
