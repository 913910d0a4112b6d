package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/getmockd/ddexport/pkg/datadog"
	"github.com/getmockd/ddexport/pkg/receiver"
)

var agentListen string

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run a local trace agent that prints the spans it receives",
	Long: `Agent listens for v0.3 trace uploads (JSON or msgpack), prints every span
and serves prometheus metrics on /metrics. Point an exporter at it to see
exactly what would reach Datadog.`,
	Args: cobra.NoArgs,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().StringVarP(&agentListen, "listen", "l", datadog.DefaultAgentAddr, "Address to listen on")
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	_, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ln, err := net.Listen("tcp", agentListen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", agentListen, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serveAgent(ctx, ln, cmd.OutOrStdout(), logger)
}

// serveAgent serves the receiver on ln until ctx is done.
func serveAgent(ctx context.Context, ln net.Listener, out io.Writer, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	recv := receiver.New(newPrintSink(out, jsonOutput),
		receiver.WithLogger(logger),
		receiver.WithMetrics(receiver.NewMetrics(reg)),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", recv.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("agent listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("agent shutting down")
	return srv.Shutdown(shutdownCtx)
}

// printSink writes every received span to w.
type printSink struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

func newPrintSink(w io.Writer, asJSON bool) *printSink {
	return &printSink{w: w, json: asJSON}
}

func (s *printSink) Consume(_ context.Context, p receiver.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.json {
		enc := json.NewEncoder(s.w)
		for _, trace := range p.Traces {
			for _, span := range trace {
				_ = enc.Encode(span)
			}
		}
		return
	}

	fmt.Fprintf(s.w, "payload %s: %d traces, %d spans (%s)\n", p.ID, len(p.Traces), p.Traces.SpanCount(), p.ContentType)
	for _, trace := range p.Traces {
		for _, span := range trace {
			fmt.Fprintf(s.w, "  trace=%d span=%d parent=%d service=%s name=%s resource=%s duration=%s error=%d\n",
				span.TraceID, span.SpanID, span.ParentID,
				deref(span.Service), deref(span.Name), deref(span.Resource),
				time.Duration(span.Duration), span.Error)
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
