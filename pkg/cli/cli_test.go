package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/getmockd/ddexport/pkg/datadog"
	"github.com/getmockd/ddexport/pkg/receiver"
	"github.com/getmockd/ddexport/pkg/tracing"
)

// runCommand executes the root command with args and returns its stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	configPath, logLevel, jsonOutput = "", "error", false
	injectTraceID, injectSpanID, injectUnsampled, propagateW3C = "", 0, false, false
	extractHeaders = nil
	sendSpans, sendError, sendStdout, sendTimeout = 3, false, false, 5*time.Second

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return out.String(), err
}

func TestInjectCmd(t *testing.T) {
	out, err := runCommand(t, "inject", "--trace-id", "42", "--span-id", "7", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "x-datadog-parent-id: 7\nx-datadog-sampling-priority: 1\nx-datadog-trace-id: 42\n", out)
}

func TestInjectCmdJSONUnsampled(t *testing.T) {
	out, err := runCommand(t, "inject", "--trace-id", "42", "--span-id", "7", "--unsampled", "--json")
	require.NoError(t, err)

	var headers map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &headers))
	assert.Equal(t, map[string]string{
		datadog.HeaderTraceID:          "42",
		datadog.HeaderParentID:         "7",
		datadog.HeaderSamplingPriority: "0",
	}, headers)
}

func TestInjectCmdW3C(t *testing.T) {
	out, err := runCommand(t, "inject", "--trace-id", "0000000000000001000000000000002a", "--span-id", "7", "--w3c", "--json")
	require.NoError(t, err)

	var headers map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &headers))
	assert.Equal(t, "42", headers[datadog.HeaderTraceID])
	assert.Equal(t, "00-0000000000000001000000000000002a-0000000000000007-01", headers[tracing.TraceparentHeader])
}

func TestInjectCmdRandomIDs(t *testing.T) {
	out, err := runCommand(t, "inject", "--json")
	require.NoError(t, err)

	var headers map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &headers))
	assert.NotEqual(t, "0", headers[datadog.HeaderTraceID])
	assert.NotEmpty(t, headers[datadog.HeaderParentID])
}

func TestInjectCmdInvalidTraceID(t *testing.T) {
	_, err := runCommand(t, "inject", "--trace-id", "forty-two")
	assert.ErrorIs(t, err, tracing.ErrInvalidTraceID)
}

func TestExtractCmd(t *testing.T) {
	out, err := runCommand(t, "extract",
		"-H", "x-datadog-trace-id: 42",
		"-H", "X-Datadog-Parent-Id=7",
		"-H", "x-datadog-sampling-priority: 2",
		"--json",
	)
	require.NoError(t, err)

	var got ExtractOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, ExtractOutput{
		TraceID:    "0000000000000000000000000000002a",
		TraceIDLow: "42",
		SpanID:     "7",
		Sampled:    true,
	}, got)
}

func TestExtractCmdRejectsBadPriority(t *testing.T) {
	_, err := runCommand(t, "extract",
		"-H", "x-datadog-trace-id: 42",
		"-H", "x-datadog-parent-id: 7",
		"-H", "x-datadog-sampling-priority: 5",
	)
	assert.ErrorIs(t, err, ErrNoTraceContext)
}

func TestExtractCmdW3CFallback(t *testing.T) {
	out, err := runCommand(t, "extract", "--w3c",
		"-H", "traceparent: 00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "0af7651916cd43dd8448eb211c80319c")
	assert.Contains(t, out, "sampled:   true")
}

func TestExtractCmdInvalidHeader(t *testing.T) {
	_, err := runCommand(t, "extract", "-H", "no-separator")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid header")
}

func TestVersionCmdJSON(t *testing.T) {
	out, err := runCommand(t, "version", "--json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	for _, key := range []string{"version", "commit", "date", "tracerVersion", "go", "os", "arch"} {
		assert.Contains(t, got, key)
	}
	assert.Equal(t, datadog.TracerVersion, got["tracerVersion"])
}

func TestSendCmdStdout(t *testing.T) {
	out, err := runCommand(t, "send", "--stdout", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "web.request"`)
	assert.Contains(t, out, `"name": "db.query"`)
}

func TestSendCmdRejectsZeroSpans(t *testing.T) {
	_, err := runCommand(t, "send", "-n", "0")
	assert.Error(t, err)
}

func TestSendCmdUploadsToAgent(t *testing.T) {
	rec := receiver.NewRecorder()
	srv := httptest.NewServer(receiver.New(rec).Handler())
	defer srv.Close()
	t.Setenv("DDEXPORT_AGENT_ADDR", srv.Listener.Addr().String())
	t.Setenv("DDEXPORT_SERVICE", "cli-test")

	out, err := runCommand(t, "send", "-n", "4", "--error", "--json")
	require.NoError(t, err)

	var result SendResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 4, result.Spans)
	assert.Equal(t, 1, result.Uploaded)
	assert.Zero(t, result.Failed)

	spans := rec.Spans()
	require.Len(t, spans, 4)
	var root *datadog.Span
	for _, s := range spans {
		assert.Equal(t, "cli-test", *s.Service)
		if s.ParentID == 0 {
			root = s
		}
	}
	require.NotNil(t, root)
	assert.Equal(t, int64(1), root.Error)
	assert.Equal(t, "GET /demo", *root.Resource)
}

func TestSendCmdAgentDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	t.Setenv("DDEXPORT_AGENT_ADDR", addr)

	out, err := runCommand(t, "send", "--json")
	require.Error(t, err)

	var result SendResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Failed)
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServeAgent(t *testing.T) {
	jsonOutput = false
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- serveAgent(ctx, ln, out, zap.NewNop()) }()

	exp, err := datadog.NewExporter(datadog.WithAgentAddr(ln.Addr().String()), datadog.WithServiceName("web"))
	require.NoError(t, err)
	tracer := tracing.NewTracer(tracing.WithExporter(exp))
	emitDemoTrace(context.Background(), tracer, 2, false)
	require.NoError(t, tracer.Shutdown(context.Background()))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "name=web.request")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "name=db.query")
	assert.Contains(t, out.String(), "service=web")

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "ddexport_receiver_payloads_accepted_total 1")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not shut down")
	}
}

func TestPrintSinkJSON(t *testing.T) {
	var buf bytes.Buffer
	name := "op"
	newPrintSink(&buf, true).Consume(context.Background(), receiver.Payload{
		Traces: datadog.Traces{{{Name: &name, TraceID: 1, SpanID: 2, Meta: map[string]string{}, Metrics: map[string]float64{}}}},
	})

	var span map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &span))
	assert.Equal(t, "op", span["name"])
	assert.NotContains(t, span, "service")
}

func TestSplitHeader(t *testing.T) {
	k, v, ok := splitHeader("x-datadog-trace-id: 42")
	assert.True(t, ok)
	assert.Equal(t, "x-datadog-trace-id", k)
	assert.Equal(t, "42", v)

	_, _, ok = splitHeader(": 42")
	assert.False(t, ok)
}
