// Package config holds the immutable runtime configuration of the entity
// extraction pipeline. A Pipeline value is built once at pipeline entry
// (defaults, then optional config file, then NER_* environment overrides)
// and is read-only for the duration of a run.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LayerVersion is stamped into every output envelope. Bump on every
// significant rule or model change.
const LayerVersion = "1.0.0"

// Pipeline is the full set of runtime-tunable parameters.
type Pipeline struct {
	// Confidence defaults per engine.
	RegexConfidence   float64 `yaml:"regex_confidence" json:"regex_confidence"`
	NERConfidence     float64 `yaml:"ner_confidence" json:"ner_confidence"`
	LexiconConfidence float64 `yaml:"lexicon_confidence" json:"lexicon_confidence"`

	// NER selective-execution guards.
	MinTextLengthForNER int     `yaml:"min_text_length_for_ner" json:"min_text_length_for_ner"`
	NERTimeoutSeconds   float64 `yaml:"ner_timeout_seconds" json:"ner_timeout_seconds"`

	// Input hard limit (bytes of text).
	MaxTextLength int `yaml:"max_text_length" json:"max_text_length"`

	// Languages for which the NER engine is considered valid.
	SupportedNERLanguages []string `yaml:"supported_ner_languages" json:"supported_ner_languages"`

	// SourcePriority is ordered highest-priority first.
	SourcePriority []string `yaml:"source_priority" json:"source_priority"`

	// Engine master switches.
	EngineRegexEnabled   bool `yaml:"engine_regex_enabled" json:"engine_regex_enabled"`
	EngineNEREnabled     bool `yaml:"engine_ner_enabled" json:"engine_ner_enabled"`
	EngineLexiconEnabled bool `yaml:"engine_lexicon_enabled" json:"engine_lexicon_enabled"`

	// Entity type flags. Types absent from the map default to enabled.
	EntityTypesEnabled map[string]bool `yaml:"entity_types_enabled" json:"entity_types_enabled"`

	// Values (case-insensitive) that must always be discarded.
	BlacklistValues []string `yaml:"blacklist_values" json:"blacklist_values"`

	// Versioning.
	NERModelName     string `yaml:"ner_model_name" json:"ner_model_name"`
	RegexRuleVersion string `yaml:"regex_rule_version" json:"regex_rule_version"`
	LexiconVersion   string `yaml:"lexicon_version" json:"lexicon_version"`
}

// Default returns a fresh Pipeline with all built-in defaults.
func Default() *Pipeline {
	return &Pipeline{
		RegexConfidence:       0.95,
		NERConfidence:         0.70,
		LexiconConfidence:     0.90,
		MinTextLengthForNER:   20,
		NERTimeoutSeconds:     2.0,
		MaxTextLength:         100_000,
		SupportedNERLanguages: []string{"it", "en"},
		SourcePriority:        []string{"regex", "ner", "lexicon"},
		EngineRegexEnabled:    true,
		EngineNEREnabled:      true,
		EngineLexiconEnabled:  true,
		EntityTypesEnabled:    map[string]bool{},
		BlacklistValues:       nil,
		NERModelName:          "",
		RegexRuleVersion:      "regex-v1.0",
		LexiconVersion:        "lexicon-v1.0",
	}
}

// FromEnv builds a Pipeline from defaults, an optional config file pointed
// at by NER_CONFIG_FILE (YAML or JSON), and individual NER_* environment
// overrides, in that order.
func FromEnv() *Pipeline {
	cfg := Default()

	if path := os.Getenv("NER_CONFIG_FILE"); path != "" {
		// A broken config file never aborts startup; the defaults stand.
		if err := cfg.loadFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "mailnerd: config file %s ignored: %v\n", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Load reads a YAML or JSON config file over the defaults, then applies
// environment overrides.
func Load(path string) (*Pipeline, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// knownKeys mirrors the yaml tags above; file keys outside this set are
// ignored with a warning instead of failing the load.
var knownKeys = map[string]struct{}{
	"regex_confidence": {}, "ner_confidence": {}, "lexicon_confidence": {},
	"min_text_length_for_ner": {}, "ner_timeout_seconds": {}, "max_text_length": {},
	"supported_ner_languages": {}, "source_priority": {},
	"engine_regex_enabled": {}, "engine_ner_enabled": {}, "engine_lexicon_enabled": {},
	"entity_types_enabled": {}, "blacklist_values": {},
	"ner_model_name": {}, "regex_rule_version": {}, "lexicon_version": {},
}

func (c *Pipeline) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// YAML is a superset of JSON, so one decoder covers both formats.
	var keys map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &keys); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for k := range keys {
		if _, ok := knownKeys[k]; !ok {
			fmt.Fprintf(os.Stderr, "mailnerd: unknown config key %q in %s (ignored)\n", k, path)
		}
	}

	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies the individual NER_* environment variables.
func (c *Pipeline) applyEnvOverrides() {
	if v, ok := envFloat("NER_REGEX_CONFIDENCE"); ok {
		c.RegexConfidence = v
	}
	if v, ok := envFloat("NER_NER_CONFIDENCE"); ok {
		c.NERConfidence = v
	}
	if v, ok := envFloat("NER_LEXICON_CONFIDENCE"); ok {
		c.LexiconConfidence = v
	}
	if v, ok := envFloat("NER_NER_TIMEOUT_SECONDS"); ok {
		c.NERTimeoutSeconds = v
	}
	if v, ok := envInt("NER_MIN_TEXT_LENGTH_FOR_NER"); ok {
		c.MinTextLengthForNER = v
	}
	if v, ok := envInt("NER_MAX_TEXT_LENGTH"); ok {
		c.MaxTextLength = v
	}
	if v, ok := envCSV("NER_SUPPORTED_LANGUAGES"); ok {
		c.SupportedNERLanguages = v
	}
	if v, ok := envCSV("NER_SOURCE_PRIORITY"); ok {
		c.SourcePriority = v
	}
	if v, ok := envCSV("NER_BLACKLIST"); ok {
		c.BlacklistValues = v
	}
	if v, ok := envBool("NER_ENGINE_REGEX_ENABLED"); ok {
		c.EngineRegexEnabled = v
	}
	if v, ok := envBool("NER_ENGINE_NER_ENABLED"); ok {
		c.EngineNEREnabled = v
	}
	if v, ok := envBool("NER_ENGINE_LEXICON_ENABLED"); ok {
		c.EngineLexiconEnabled = v
	}
	if v := os.Getenv("NER_MODEL_NAME"); v != "" {
		c.NERModelName = v
	}
}

// IsEntityTypeEnabled reports whether a type passes the feature-flag map.
// Unknown types default to enabled.
func (c *Pipeline) IsEntityTypeEnabled(label string) bool {
	enabled, ok := c.EntityTypesEnabled[label]
	if !ok {
		return true
	}
	return enabled
}

// IsNERLanguageSupported reports whether lang is one of the supported NER
// languages (case-insensitive).
func (c *Pipeline) IsNERLanguageSupported(lang string) bool {
	for _, l := range c.SupportedNERLanguages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

// PriorityRank returns the position of source in SourcePriority; lower is
// higher priority. Unknown sources rank below every configured one.
func (c *Pipeline) PriorityRank(source string) int {
	for i, s := range c.SourcePriority {
		if s == source {
			return i
		}
	}
	return len(c.SourcePriority)
}

// NERTimeout returns NERTimeoutSeconds as a duration.
func (c *Pipeline) NERTimeout() time.Duration {
	return time.Duration(c.NERTimeoutSeconds * float64(time.Second))
}

func envFloat(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envBool(key string) (bool, bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}

func envCSV(key string) ([]string, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, false
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}
