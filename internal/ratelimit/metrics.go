package ratelimit

// MetricsRecorder receives counters and timings from the limiter. Implement
// it to bridge admission metrics into your backend of choice.
type MetricsRecorder interface {
	Add(name string, value float64, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

// NoOpRecorder discards everything. It is the default recorder so the hot
// path never has to nil-check.
type NoOpRecorder struct{}

func (NoOpRecorder) Add(name string, value float64, tags map[string]string)     {}
func (NoOpRecorder) Observe(name string, value float64, tags map[string]string) {}
