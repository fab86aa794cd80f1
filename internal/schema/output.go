package schema

import (
	"encoding/json"
	"math"
	"time"

	"mailnerd/internal/config"
	"mailnerd/internal/entity"
)

// Meta is the metadata section of the output envelope. Status is "ok" or
// "failed"; ComponentTimingsMS carries per-step milliseconds keyed by
// normalize/regex/ner/lexicon/merge/filter.
type Meta struct {
	IDConversazione    string             `json:"id_conversazione"`
	IDMessaggio        string             `json:"id_messaggio"`
	Status             string             `json:"status"`
	LayerVersion       string             `json:"layer_version"`
	ProcessingTimeMS   float64            `json:"processing_time_ms"`
	ComponentTimingsMS map[string]float64 `json:"component_timings_ms"`
	FeatureFlags       map[string]bool    `json:"feature_flags"`
	Fallbacks          []string           `json:"fallbacks"`
	EntityCount        int                `json:"entity_count"`
}

// ExtractionOutput is the envelope returned by every pipeline run. It is
// built incrementally by the orchestrator and is always serializable to
// valid JSON, including on hard failure.
type ExtractionOutput struct {
	Entities []entity.Entity `json:"entities"`
	Meta     Meta            `json:"meta"`
	Errors   []ErrorRecord   `json:"errors"`

	start time.Time
}

// NewOutput creates an empty ok-status envelope for the given message.
func NewOutput(idConversazione, idMessaggio string, featureFlags map[string]bool) *ExtractionOutput {
	if featureFlags == nil {
		featureFlags = map[string]bool{}
	}
	return &ExtractionOutput{
		Entities: []entity.Entity{},
		Meta: Meta{
			IDConversazione:    idConversazione,
			IDMessaggio:        idMessaggio,
			Status:             "ok",
			LayerVersion:       config.LayerVersion,
			ComponentTimingsMS: map[string]float64{},
			FeatureFlags:       featureFlags,
			Fallbacks:          []string{},
		},
		Errors: []ErrorRecord{},
		start:  time.Now(),
	}
}

// SetEntities installs the final entity list.
func (o *ExtractionOutput) SetEntities(entities []entity.Entity) {
	if entities == nil {
		entities = []entity.Entity{}
	}
	o.Entities = entities
	o.Meta.EntityCount = len(entities)
}

// AddError records a non-blocking error; the pipeline continues and
// returns partial results.
func (o *ExtractionOutput) AddError(rec ErrorRecord) {
	o.Errors = append(o.Errors, rec)
}

// AddFallback registers a skipped component with its structured reason.
func (o *ExtractionOutput) AddFallback(reason string) {
	o.Meta.Fallbacks = append(o.Meta.Fallbacks, reason)
}

// SetFailed marks the extraction as hard-failed: entities are cleared and
// the reason is appended to errors.
func (o *ExtractionOutput) SetFailed(component, message, errType string) {
	o.Meta.Status = "failed"
	o.Entities = []entity.Entity{}
	o.Meta.EntityCount = 0
	o.Errors = append(o.Errors, ErrorRecord{Component: component, Message: message, Type: errType})
}

// RecordTiming records elapsed milliseconds for a named component.
func (o *ExtractionOutput) RecordTiming(component string, elapsedMS float64) {
	o.Meta.ComponentTimingsMS[component] = roundMS(elapsedMS)
}

// Finalize stamps the total processing time. Safe to call once at the end
// of a run; ToJSON calls it implicitly when the total is still unset.
func (o *ExtractionOutput) Finalize() {
	o.Meta.ProcessingTimeMS = roundMS(float64(time.Since(o.start)) / float64(time.Millisecond))
}

// ToJSON serializes the envelope. It never fails: a marshalling error
// degrades to a minimal failed envelope instead of propagating.
func (o *ExtractionOutput) ToJSON() []byte {
	if o.Meta.ProcessingTimeMS == 0 && !o.start.IsZero() {
		o.Finalize()
	}
	raw, err := json.Marshal(o)
	if err == nil {
		return raw
	}
	fallback := NewOutput(o.Meta.IDConversazione, o.Meta.IDMessaggio, nil)
	fallback.SetFailed("serializer", err.Error(), "internal")
	raw, _ = json.Marshal(fallback)
	return raw
}

func roundMS(ms float64) float64 {
	return math.Round(ms*1000) / 1000
}
