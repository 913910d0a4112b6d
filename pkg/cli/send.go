package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/getmockd/ddexport/pkg/datadog"
	"github.com/getmockd/ddexport/pkg/tracing"
)

var (
	sendSpans   int
	sendError   bool
	sendStdout  bool
	sendTimeout time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a demo trace to the agent",
	Long: `Send builds one trace (a web request with database and cache children),
exports it with the configured exporter and waits for the upload to finish.

With --stdout the spans are printed instead of uploaded.`,
	Args: cobra.NoArgs,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().IntVarP(&sendSpans, "spans", "n", 3, "Number of spans in the trace (at least 1)")
	sendCmd.Flags().BoolVar(&sendError, "error", false, "Mark the root span as failed")
	sendCmd.Flags().BoolVar(&sendStdout, "stdout", false, "Print spans as JSON instead of uploading them")
	sendCmd.Flags().DurationVar(&sendTimeout, "wait", 5*time.Second, "How long to wait for the upload")
	rootCmd.AddCommand(sendCmd)
}

// SendResult is the JSON output of the send command.
type SendResult struct {
	TraceID  string `json:"traceId"`
	Spans    int    `json:"spans"`
	Endpoint string `json:"endpoint,omitempty"`
	Uploaded int    `json:"uploaded"`
	Failed   int    `json:"failed"`
	Dropped  int    `json:"dropped"`
}

func runSend(cmd *cobra.Command, args []string) error {
	if sendSpans < 1 {
		return errors.New("--spans must be at least 1")
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()

	if sendStdout {
		tracer := tracing.NewTracer(tracing.WithExporter(
			tracing.NewStdoutExporter(tracing.WithWriter(cmd.OutOrStdout()), tracing.WithPrettyPrint()),
		))
		emitDemoTrace(ctx, tracer, sendSpans, sendError)
		return tracer.Shutdown(ctx)
	}

	opts, err := cfg.ExporterOptions()
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	sched := &trackingScheduler{}
	opts = append(opts,
		datadog.WithLogger(logger),
		datadog.WithMetricsRegisterer(reg),
		datadog.WithScheduler(sched),
	)
	exp, err := datadog.NewExporter(opts...)
	if err != nil {
		return err
	}

	tracer := tracing.NewTracer(
		tracing.WithExporter(exp),
		tracing.WithErrorHandler(func(err error) {
			logger.Warn("background export failed", zap.Error(err))
		}),
	)
	traceID := emitDemoTrace(ctx, tracer, sendSpans, sendError)
	if err := tracer.Shutdown(ctx); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := sched.Wait(waitCtx); err != nil {
		logger.Warn("upload still in flight", zap.Duration("waited", sendTimeout))
	}

	result := SendResult{
		TraceID:  traceID.String(),
		Spans:    sendSpans,
		Endpoint: exp.Endpoint(),
		Uploaded: int(counterValue(reg, "ddexport_uploads_succeeded_total")),
		Failed:   int(counterValue(reg, "ddexport_uploads_failed_total")),
		Dropped:  int(counterValue(reg, "ddexport_uploads_dropped_total")),
	}

	if jsonOutput {
		if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "trace %s: %d spans to %s (uploaded %d, failed %d, dropped %d)\n",
			result.TraceID, result.Spans, result.Endpoint, result.Uploaded, result.Failed, result.Dropped)
	}

	if result.Uploaded == 0 {
		return errors.New("trace was not accepted by the agent")
	}
	return nil
}

// emitDemoTrace records a server span with n-1 children and returns its
// trace id.
func emitDemoTrace(ctx context.Context, tracer *tracing.Tracer, n int, failed bool) tracing.TraceID {
	ctx, root := tracer.Start(ctx, "web.request",
		tracing.WithSpanKind(tracing.SpanKindServer),
		tracing.WithAttributes(
			tracing.String(datadog.KeyResourceName, "GET /demo"),
			tracing.String(datadog.KeySpanType, "web"),
			tracing.String("http.method", "GET"),
			tracing.String("http.url", "/demo"),
		),
	)

	for i := 1; i < n; i++ {
		var child *tracing.Span
		if i%2 == 1 {
			_, child = tracer.Start(ctx, "db.query",
				tracing.WithSpanKind(tracing.SpanKindClient),
				tracing.WithAttributes(
					tracing.String(datadog.KeyResourceName, "SELECT * FROM orders WHERE id = ?"),
					tracing.String(datadog.KeySpanType, "sql"),
					tracing.String("db.system", "postgresql"),
					tracing.Int("db.rows", i),
				),
			)
		} else {
			_, child = tracer.Start(ctx, "cache.get",
				tracing.WithSpanKind(tracing.SpanKindClient),
				tracing.WithAttributes(
					tracing.String(datadog.KeySpanType, "cache"),
					tracing.Bool("cache.hit", i%4 == 0),
				),
			)
		}
		child.End()
	}

	if failed {
		root.SetAttributes(tracing.Int("http.status_code", 500))
		root.SetStatus(tracing.StatusError, "demo failure")
	} else {
		root.SetAttributes(tracing.Int("http.status_code", 200))
		root.SetStatus(tracing.StatusOK, "")
	}
	root.End()

	return root.SpanContext().TraceID
}

// trackingScheduler runs uploads on goroutines and lets the command wait
// for them before exiting.
type trackingScheduler struct {
	wg sync.WaitGroup
}

func (s *trackingScheduler) Go(task func()) bool {
	s.wg.Go(task)
	return true
}

// Wait blocks until every task finished or ctx is done.
func (s *trackingScheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// counterValue sums every series of the named counter.
func counterValue(g prometheus.Gatherer, name string) float64 {
	families, err := g.Gather()
	if err != nil {
		return 0
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
