package cli

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/ddexport/internal/id"
	"github.com/getmockd/ddexport/pkg/datadog"
	"github.com/getmockd/ddexport/pkg/tracing"
)

// ErrNoTraceContext is returned by extract when the headers carry no valid context.
var ErrNoTraceContext = errors.New("no valid trace context found")

var (
	injectTraceID   string
	injectSpanID    uint64
	injectUnsampled bool
	propagateW3C    bool
	extractHeaders  []string
)

var injectCmd = &cobra.Command{
	Use:   "inject",
	Short: "Print the propagation headers for a span context",
	Long: `Inject prints the x-datadog-* headers that carry the given span context.
The trace id is decimal or 32 hex digits; random ids are used when omitted.`,
	Example: `  ddexport inject --trace-id 42 --span-id 7
  ddexport inject --w3c --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := injectSpanContext()
		if err != nil {
			return err
		}

		carrier := tracing.MapCarrier{}
		newPropagator(propagateW3C).Inject(sc, carrier)

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), carrier)
		}
		keys := make([]string, 0, len(carrier))
		for k := range carrier {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, carrier[k])
		}
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Decode a span context from propagation headers",
	Example: `  ddexport extract -H "x-datadog-trace-id: 42" -H "x-datadog-parent-id: 7" -H "x-datadog-sampling-priority: 1"`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h := http.Header{}
		for _, raw := range extractHeaders {
			k, v, ok := splitHeader(raw)
			if !ok {
				return fmt.Errorf("invalid header %q, expected \"name: value\"", raw)
			}
			h.Add(k, v)
		}

		sc := newPropagator(propagateW3C).Extract(tracing.HeaderCarrier(h))
		if !sc.IsValid() {
			return ErrNoTraceContext
		}

		out := ExtractOutput{
			TraceID:    sc.TraceID.String(),
			TraceIDLow: strconv.FormatUint(sc.TraceID.Low64(), 10),
			SpanID:     strconv.FormatUint(sc.SpanID, 10),
			Sampled:    sc.Sampled,
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), out)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "trace id:  %s (%s)\nparent id: %s\nsampled:   %t\n",
			out.TraceID, out.TraceIDLow, out.SpanID, out.Sampled)
		return nil
	},
}

// ExtractOutput is the JSON output of the extract command.
type ExtractOutput struct {
	TraceID    string `json:"traceId"`
	TraceIDLow string `json:"traceIdLow64"`
	SpanID     string `json:"spanId"`
	Sampled    bool   `json:"sampled"`
}

func init() {
	injectCmd.Flags().StringVar(&injectTraceID, "trace-id", "", "Trace id, decimal or 32 hex digits")
	injectCmd.Flags().Uint64Var(&injectSpanID, "span-id", 0, "Span id (decimal)")
	injectCmd.Flags().BoolVar(&injectUnsampled, "unsampled", false, "Mark the context as not sampled")
	injectCmd.Flags().BoolVar(&propagateW3C, "w3c", false, "Also write the W3C traceparent header")

	extractCmd.Flags().StringArrayVarP(&extractHeaders, "header", "H", nil, "Header as \"name: value\" (repeatable)")
	extractCmd.Flags().BoolVar(&propagateW3C, "w3c", false, "Fall back to the W3C traceparent header")

	rootCmd.AddCommand(injectCmd)
	rootCmd.AddCommand(extractCmd)
}

func newPropagator(w3c bool) tracing.Propagator {
	if w3c {
		return tracing.NewCompositePropagator(datadog.NewPropagator(), tracing.NewTraceContextPropagator())
	}
	return datadog.NewPropagator()
}

func injectSpanContext() (tracing.SpanContext, error) {
	sc := tracing.SpanContext{
		TraceID: tracing.TraceID(id.TraceID()),
		SpanID:  injectSpanID,
		Sampled: !injectUnsampled,
	}
	if sc.SpanID == 0 {
		sc.SpanID = id.SpanID()
	}

	if injectTraceID != "" {
		traceID, err := parseTraceID(injectTraceID)
		if err != nil {
			return tracing.SpanContext{}, err
		}
		sc.TraceID = traceID
	}
	if !sc.IsValid() {
		return tracing.SpanContext{}, errors.New("trace id and span id must be non-zero")
	}
	return sc, nil
}

func parseTraceID(s string) (tracing.TraceID, error) {
	if len(s) == 32 {
		return tracing.TraceIDFromHex(s)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return tracing.TraceID{}, fmt.Errorf("%w: %q", tracing.ErrInvalidTraceID, s)
	}
	return tracing.TraceIDFromUint64(n), nil
}

// splitHeader accepts "name: value" and "name=value".
func splitHeader(raw string) (string, string, bool) {
	sep := strings.IndexAny(raw, ":=")
	if sep <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(raw[:sep]), strings.TrimSpace(raw[sep+1:]), true
}
