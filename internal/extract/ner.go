package extract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"mailnerd/internal/config"
	"mailnerd/internal/entity"
)

// Skip reasons emitted by the NER engine, in gating order. They surface in
// meta.fallbacks and as the ner_skip_total metric label.
const (
	SkipNERDisabled         = "ner_disabled"
	SkipLanguageUnknown     = "language_unknown"
	SkipLanguageUnsupported = "language_unsupported"
	SkipTextTooShort        = "text_too_short"
	SkipModelLoadFailed     = "model_load_failed"
	SkipNERTimeout          = "ner_timeout"
	skipNERErrorPrefix      = "ner_error:"
)

// TaggedSpan is one span returned by an external statistical tagger.
type TaggedSpan struct {
	Text       string
	Label      string
	Start      int
	End        int
	Confidence float64
}

// Tagger is the call contract of the external statistical NER model. The
// model binary itself is out of scope; implementations must honor ctx
// cancellation so a timed-out invocation does not leak its goroutine.
type Tagger interface {
	Tag(ctx context.Context, text string) ([]TaggedSpan, error)
}

// ModelLoader resolves a model name into a ready Tagger.
type ModelLoader func(name string) (Tagger, error)

// ErrNoLoader is returned by a cache built without a model loader.
var ErrNoLoader = errors.New("no NER model loader registered")

type cacheEntry struct {
	tagger Tagger
	err    error
}

// ModelCache is the process-wide keyed model cache. A single mutex guards
// both lookup and miss-insertion, so concurrent misses for the same key
// load exactly once. Failed loads are cached too: a broken model is not
// re-probed on every message.
type ModelCache struct {
	mu     sync.Mutex
	loader ModelLoader
	models map[string]cacheEntry
}

// NewModelCache builds a cache around loader (nil is allowed and makes
// every load fail with ErrNoLoader).
func NewModelCache(loader ModelLoader) *ModelCache {
	return &ModelCache{loader: loader, models: map[string]cacheEntry{}}
}

// Get returns the tagger for name, loading it on first use.
func (c *ModelCache) Get(name string) (Tagger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.models[name]; ok {
		return e.tagger, e.err
	}

	var e cacheEntry
	if c.loader == nil {
		e.err = ErrNoLoader
	} else {
		e.tagger, e.err = c.loader(name)
	}
	c.models[name] = e
	return e.tagger, e.err
}

// Clear drains the cache. Intended for test isolation.
func (c *ModelCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = map[string]cacheEntry{}
}

// NEREngine wraps the external tagger behind the selective-execution
// gates. Extract never returns an error: every failure mode becomes a
// skip reason.
type NEREngine struct {
	cfg   *config.Pipeline
	cache *ModelCache
}

// NewNEREngine builds an engine over cache; nil cache means a cache
// without a loader (every invocation skips with model_load_failed).
func NewNEREngine(cfg *config.Pipeline, cache *ModelCache) *NEREngine {
	if cache == nil {
		cache = NewModelCache(nil)
	}
	return &NEREngine{cfg: cfg, cache: cache}
}

type tagResult struct {
	spans []TaggedSpan
	err   error
}

// Extract runs the gated NER invocation on the normalized text. lang is
// the upstream-detected language, nil when detection failed. The returned
// skip reasons are empty when the model ran normally.
func (e *NEREngine) Extract(text string, lang *string) ([]entity.Entity, []string) {
	switch {
	case !e.cfg.EngineNEREnabled:
		return nil, []string{SkipNERDisabled}
	case lang == nil:
		return nil, []string{SkipLanguageUnknown}
	case !e.cfg.IsNERLanguageSupported(*lang):
		return nil, []string{SkipLanguageUnsupported}
	case len(text) < e.cfg.MinTextLengthForNER:
		return nil, []string{SkipTextTooShort}
	}

	tagger, err := e.cache.Get(e.cfg.NERModelName)
	if err != nil || tagger == nil {
		return nil, []string{SkipModelLoadFailed}
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.NERTimeout())
	defer cancel()

	// Bounded worker: inference runs in its own goroutine; the buffered
	// channel lets a late result be dropped without blocking the worker.
	ch := make(chan tagResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- tagResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		spans, err := tagger.Tag(ctx, text)
		ch <- tagResult{spans: spans, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, []string{skipNERErrorPrefix + errClass(res.err)}
		}
		return e.toEntities(res.spans, len(text)), nil
	case <-ctx.Done():
		return nil, []string{SkipNERTimeout}
	}
}

func (e *NEREngine) toEntities(spans []TaggedSpan, textLen int) []entity.Entity {
	var out []entity.Entity
	for _, s := range spans {
		if s.Start < 0 || s.End <= s.Start || s.End > textLen {
			continue
		}

		// NaN from the model counts as no score and takes the floor.
		conf := s.Confidence
		if math.IsNaN(conf) || conf < e.cfg.NERConfidence {
			conf = e.cfg.NERConfidence
		}
		if conf > 1.0 {
			conf = 1.0
		}

		cand := entity.Entity{
			Type:       s.Label,
			Value:      s.Text,
			Span:       entity.Span{Start: s.Start, End: s.End},
			Confidence: conf,
			Source:     entity.SourceNER,
			Version:    e.cfg.NERModelName,
		}
		if cand.IsValid() {
			out = append(out, cand)
		}
	}
	return out
}

// errClass reduces an error to a short class token for the
// "ner_error:<class>" skip reason, keeping metric labels low-cardinality.
func errClass(err error) string {
	if strings.HasPrefix(err.Error(), "panic:") {
		return "panic"
	}
	class := fmt.Sprintf("%T", err)
	class = strings.TrimPrefix(class, "*")
	if i := strings.LastIndex(class, "."); i >= 0 {
		class = class[i+1:]
	}
	return class
}
