// Package pipeline orchestrates the full 7-step entity extraction flow:
//
//  1. input validation
//  2. deterministic text normalization
//  3. regex engine
//  4. selective NER engine
//  5. lexicon engine
//  6. deterministic merge
//  7. post-filters + envelope serialization
//
// The pipeline is side-effect free in the critical path (no storage, no
// network) except for structured logging and metrics. A global fault
// barrier guarantees that Run always returns a valid envelope: on any
// escaping failure meta.status is "failed" and entities is empty.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailnerd/internal/config"
	"mailnerd/internal/entity"
	"mailnerd/internal/extract"
	"mailnerd/internal/observability"
	"mailnerd/internal/schema"
)

// Runner executes pipeline runs against one immutable configuration.
// A Runner is safe for concurrent use: per-call state lives on the stack,
// and the only shared mutable resource is the mutex-guarded model cache.
type Runner struct {
	cfg     *config.Pipeline
	rules   []extract.Rule
	lexicon extract.Lexicon
	cache   *extract.ModelCache
	metrics observability.Metrics
	logger  *zap.Logger
}

// New builds a Runner with the default rule set, an empty lexicon, no
// model loader, no-op metrics and a no-op logger. nil cfg means defaults.
func New(cfg *config.Pipeline) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Runner{
		cfg:     cfg,
		metrics: observability.NewNop(),
		logger:  zap.NewNop(),
	}
}

// SetLogger installs the base logger used for per-run pipeline logging.
func (r *Runner) SetLogger(l *zap.Logger) {
	if l != nil {
		r.logger = l
	}
}

// SetMetrics installs a metrics backend.
func (r *Runner) SetMetrics(m observability.Metrics) {
	if m != nil {
		r.metrics = m
	}
}

// SetRules replaces the curated regex rule set.
func (r *Runner) SetRules(rules []extract.Rule) { r.rules = rules }

// SetLexicon installs the gazetteer.
func (r *Runner) SetLexicon(lex extract.Lexicon) { r.lexicon = lex }

// SetModelCache installs the shared NER model cache.
func (r *Runner) SetModelCache(c *extract.ModelCache) { r.cache = c }

// Run executes the full pipeline on a raw input map and always returns a
// JSON-serializable envelope; it never panics and never returns nil.
func (r *Runner) Run(raw map[string]any) (out *schema.ExtractionOutput) {
	idConv, idMsg := "UNKNOWN", "UNKNOWN"
	if s, ok := raw["id_conversazione"].(string); ok && s != "" {
		idConv = s
	}
	if s, ok := raw["id_messaggio"].(string); ok && s != "" {
		idMsg = s
	}

	// Fault barrier: nothing below may escape as a panic.
	defer func() {
		if rec := recover(); rec != nil {
			out = schema.NewOutput(idConv, idMsg, r.featureFlags())
			out.SetFailed("pipeline", fmt.Sprintf("unexpected internal fault: %v", rec), "internal")
			out.Finalize()
			r.metrics.IncError("hard", "pipeline")
			r.metrics.IncRun("failed")
			r.logger.Error("pipeline_internal_fault", zap.Any("panic", rec))
		}
	}()

	// Step 1 — input validation.
	in, warnings, verr := schema.ValidateInput(raw, r.cfg.MaxTextLength)
	if verr != nil {
		out = schema.NewOutput(idConv, idMsg, r.featureFlags())
		out.Meta.Status = "failed"
		out.Errors = append(out.Errors, verr.Records...)
		out.Finalize()
		r.metrics.IncError("hard", "input_validator")
		r.metrics.IncRun("failed")
		r.logger.Warn("input_validation_failed", zap.Int("errors", len(verr.Records)))
		return out
	}

	out = schema.NewOutput(in.IDConversazione, in.IDMessaggio, r.featureFlags())
	log := observability.NewPipelineLogger(r.logger, in.IDConversazione, in.IDMessaggio)

	for _, w := range warnings {
		out.AddError(w)
		r.metrics.IncError("soft", "input_validator")
	}

	// Step 2 — normalization.
	t := observability.StartTimer(r.metrics, "normalize")
	text, normLog := extract.Normalize(in.TestoNormalizzato)
	out.RecordTiming("normalize", t.Stop())
	log.Debug("text_normalized", zap.Int("steps", len(normLog.Steps)), zap.Int("chars", len(text)))

	// Step 3 — regex engine.
	var regexEntities []entity.Entity
	if r.cfg.EngineRegexEnabled {
		t = observability.StartTimer(r.metrics, "regex")
		regexEntities = extract.NewRegexEngine(r.cfg, r.rules).Extract(text)
		out.RecordTiming("regex", t.Stop())
		log.Debug("regex_done", zap.Int("candidates", len(regexEntities)))
	} else {
		out.AddFallback("regex_disabled")
		log.LogFallback("regex", "regex_disabled")
	}

	// Step 4 — selective NER engine. All gating lives in the engine; the
	// orchestrator only surfaces the skip reasons.
	t = observability.StartTimer(r.metrics, "ner")
	nerEntities, skipReasons := extract.NewNEREngine(r.cfg, r.cache).Extract(text, in.Lingua)
	out.RecordTiming("ner", t.Stop())
	for _, reason := range skipReasons {
		out.AddFallback(reason)
		log.LogFallback("ner", reason)
		r.metrics.IncNERSkip(reason)
	}
	log.Debug("ner_done", zap.Int("candidates", len(nerEntities)), zap.Int("skips", len(skipReasons)))

	// Step 5 — lexicon engine.
	var lexiconEntities []entity.Entity
	if r.cfg.EngineLexiconEnabled {
		t = observability.StartTimer(r.metrics, "lexicon")
		lexiconEntities = extract.NewLexiconEngine(r.cfg, r.lexicon).Extract(text)
		out.RecordTiming("lexicon", t.Stop())
		log.Debug("lexicon_done", zap.Int("candidates", len(lexiconEntities)))
	} else {
		out.AddFallback("lexicon_disabled")
		log.LogFallback("lexicon", "lexicon_disabled")
	}

	// Step 6 — deterministic merge.
	candidates := make([]entity.Entity, 0, len(regexEntities)+len(nerEntities)+len(lexiconEntities))
	candidates = append(candidates, regexEntities...)
	candidates = append(candidates, nerEntities...)
	candidates = append(candidates, lexiconEntities...)

	t = observability.StartTimer(r.metrics, "merge")
	merged := extract.Merge(candidates, r.cfg)
	out.RecordTiming("merge", t.Stop())
	log.Debug("merge_done", zap.Int("entities", len(merged)))

	// Step 7 — post-filters + envelope.
	t = observability.StartTimer(r.metrics, "filter")
	filtered := extract.ApplyAll(merged, r.cfg)
	out.RecordTiming("filter", t.Stop())

	out.SetEntities(filtered)
	out.Finalize()

	r.recordEntityCounts(filtered)
	log.LogEntitySummary(filtered)
	r.metrics.IncRun("ok")
	return out
}

// ExtractAll is the backward-compatible document-level helper: it wraps a
// bare string in a minimal input and returns only the entity list.
func (r *Runner) ExtractAll(text string) []entity.Entity {
	raw := map[string]any{
		"id_conversazione":   uuid.NewString(),
		"id_messaggio":       uuid.NewString(),
		"testo_normalizzato": text,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"mittente":           "unknown",
		"destinatario":       "unknown",
	}
	return r.Run(raw).Entities
}

func (r *Runner) featureFlags() map[string]bool {
	return map[string]bool{
		"engine_regex":   r.cfg.EngineRegexEnabled,
		"engine_ner":     r.cfg.EngineNEREnabled,
		"engine_lexicon": r.cfg.EngineLexiconEnabled,
	}
}

func (r *Runner) recordEntityCounts(entities []entity.Entity) {
	counts := map[string]int{}
	for _, e := range entities {
		counts[e.Type]++
	}
	for entityType, n := range counts {
		r.metrics.ObserveEntityCount(entityType, n)
	}
}

// RunPipeline is the package-level convenience entry point: one call with
// an optional config (nil means defaults).
func RunPipeline(raw map[string]any, cfg *config.Pipeline) *schema.ExtractionOutput {
	return New(cfg).Run(raw)
}

// ExtractAllEntities is the legacy document-level entry point.
func ExtractAllEntities(text string, cfg *config.Pipeline) []entity.Entity {
	return New(cfg).ExtractAll(text)
}
