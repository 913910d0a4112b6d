package datadog

// groupTraces partitions spans by trace id. Traces appear in the order their
// first span arrived; spans keep their relative order within a trace.
func groupTraces(spans []*Span) Traces {
	index := make(map[uint64]int)
	traces := make(Traces, 0, 1)

	for _, span := range spans {
		i, ok := index[span.TraceID]
		if !ok {
			i = len(traces)
			index[span.TraceID] = i
			traces = append(traces, nil)
		}
		traces[i] = append(traces[i], span)
	}

	return traces
}
