package observability

import (
	"strings"
	"time"
)

// Metrics is the instrumentation surface of the pipeline. Backends are
// optional collaborators; NewNop is the default and makes every call a
// no-op.
type Metrics interface {
	// ObserveEntityCount records how many entities of one type a mail
	// produced.
	ObserveEntityCount(entityType string, count int)
	// ObserveLatency records elapsed time for a named pipeline component.
	ObserveLatency(component string, elapsed time.Duration)
	// IncError counts an error by kind (soft, hard) and component.
	IncError(kind, component string)
	// IncNERSkip counts a NER engine skip by reason.
	IncNERSkip(reason string)
	// IncRun counts a pipeline run by outcome (ok, failed).
	IncRun(outcome string)
}

type nopMetrics struct{}

// NewNop returns a Metrics implementation that discards everything.
func NewNop() Metrics { return nopMetrics{} }

func (nopMetrics) ObserveEntityCount(string, int)       {}
func (nopMetrics) ObserveLatency(string, time.Duration) {}
func (nopMetrics) IncError(string, string)              {}
func (nopMetrics) IncNERSkip(string)                    {}
func (nopMetrics) IncRun(string)                        {}

// SkipLabel reduces a skip reason to a low-cardinality metric label:
// parameterized reasons like "ner_error:<class>" collapse to their prefix.
func SkipLabel(reason string) string {
	if i := strings.IndexByte(reason, ':'); i >= 0 {
		return reason[:i]
	}
	return reason
}

// Timer measures one pipeline component and reports the elapsed time to
// the metrics backend on Stop.
type Timer struct {
	m         Metrics
	component string
	start     time.Time
}

// StartTimer begins timing component.
func StartTimer(m Metrics, component string) *Timer {
	return &Timer{m: m, component: component, start: time.Now()}
}

// Stop records the latency metric and returns elapsed milliseconds.
func (t *Timer) Stop() float64 {
	elapsed := time.Since(t.start)
	t.m.ObserveLatency(t.component, elapsed)
	return float64(elapsed) / float64(time.Millisecond)
}
