package datadog

import (
	"math"

	"github.com/getmockd/ddexport/pkg/tracing"
)

// splitAttributes turns span attributes into string tags and numeric tags.
// Every attribute lands in meta as its string form; bool, int64, uint64 and
// finite float64 values also land in metrics. NaN and infinities stay
// meta-only since the JSON encoding cannot carry them. A repeated key keeps
// its last value in both maps.
func splitAttributes(attrs []tracing.KeyValue) (map[string]string, map[string]float64) {
	meta := make(map[string]string, len(attrs)+4)
	metrics := make(map[string]float64)

	for _, kv := range attrs {
		if v, ok := kv.Value.Numeric(); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
			metrics[kv.Key] = v
		} else {
			delete(metrics, kv.Key)
		}
		meta[kv.Key] = kv.Value.Emit()
	}

	return meta, metrics
}
