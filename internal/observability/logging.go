// Package observability provides the structured logger and the metrics
// surface of the extraction pipeline. Both are optional collaborators:
// the pipeline defaults to a no-op logger and no-op metrics, so the core
// has zero hard dependency on any sink.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mailnerd/internal/entity"
)

// NewLogger builds a production zap logger emitting one JSON object per
// line, debug level when verbose is set.
func NewLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// PipelineLogger binds the conversation and message ids to every record
// emitted during one pipeline run.
type PipelineLogger struct {
	l *zap.Logger
}

// NewPipelineLogger wraps base (nil means no-op) with the per-run ids.
func NewPipelineLogger(base *zap.Logger, idConversazione, idMessaggio string) *PipelineLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &PipelineLogger{
		l: base.With(
			zap.String("id_conversazione", idConversazione),
			zap.String("id_messaggio", idMessaggio),
		),
	}
}

func (p *PipelineLogger) Debug(event string, fields ...zap.Field) { p.l.Debug(event, fields...) }
func (p *PipelineLogger) Info(event string, fields ...zap.Field)  { p.l.Info(event, fields...) }
func (p *PipelineLogger) Warn(event string, fields ...zap.Field)  { p.l.Warn(event, fields...) }
func (p *PipelineLogger) Error(event string, fields ...zap.Field) { p.l.Error(event, fields...) }

// LogFallback records a skipped component with its structured reason.
func (p *PipelineLogger) LogFallback(component, reason string) {
	p.l.Warn("fallback_activated",
		zap.String("component", component),
		zap.String("reason", reason))
}

// LogEntitySummary emits a compact per-type, per-source count of the
// final entity list.
func (p *PipelineLogger) LogEntitySummary(entities []entity.Entity) {
	summary := map[string]map[string]int{}
	for _, e := range entities {
		bySource, ok := summary[e.Type]
		if !ok {
			bySource = map[string]int{}
			summary[e.Type] = bySource
		}
		bySource[string(e.Source)]++
	}
	p.l.Info("entity_extraction_complete",
		zap.Any("entity_summary", summary),
		zap.Int("total_entities", len(entities)))
}
