package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 0.95, cfg.RegexConfidence)
	assert.Equal(t, 0.70, cfg.NERConfidence)
	assert.Equal(t, 0.90, cfg.LexiconConfidence)
	assert.Equal(t, 20, cfg.MinTextLengthForNER)
	assert.Equal(t, 2.0, cfg.NERTimeoutSeconds)
	assert.Equal(t, 100_000, cfg.MaxTextLength)
	assert.Equal(t, []string{"it", "en"}, cfg.SupportedNERLanguages)
	assert.Equal(t, []string{"regex", "ner", "lexicon"}, cfg.SourcePriority)
	assert.True(t, cfg.EngineRegexEnabled)
	assert.True(t, cfg.EngineNEREnabled)
	assert.True(t, cfg.EngineLexiconEnabled)
	assert.Empty(t, cfg.NERModelName)
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
regex_confidence: 0.8
ner_timeout_seconds: 0.5
supported_ner_languages: [it]
entity_types_enabled:
  IBAN: false
blacklist_values:
  - n/a
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.RegexConfidence)
	assert.Equal(t, 0.5, cfg.NERTimeoutSeconds)
	assert.Equal(t, []string{"it"}, cfg.SupportedNERLanguages)
	assert.False(t, cfg.IsEntityTypeEnabled("IBAN"))
	assert.Equal(t, []string{"n/a"}, cfg.BlacklistValues)

	// Untouched keys keep their defaults.
	assert.Equal(t, 0.70, cfg.NERConfidence)
	assert.True(t, cfg.EngineNEREnabled)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"ner_confidence": 0.6, "max_text_length": 5000}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.NERConfidence)
	assert.Equal(t, 5000, cfg.MaxTextLength)
}

func TestLoadUnknownKeyIsIgnored(t *testing.T) {
	path := writeConfig(t, "config.yaml", "no_such_option: 42\nregex_confidence: 0.85\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.85, cfg.RegexConfidence)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
	t.Run("malformed file", func(t *testing.T) {
		path := writeConfig(t, "bad.yaml", "regex_confidence: [not a float\n")
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("NER_REGEX_CONFIDENCE", "0.5")
	t.Setenv("NER_NER_TIMEOUT_SECONDS", "1.5")
	t.Setenv("NER_MIN_TEXT_LENGTH_FOR_NER", "50")
	t.Setenv("NER_SUPPORTED_LANGUAGES", "it, de ,fr")
	t.Setenv("NER_SOURCE_PRIORITY", "lexicon,regex,ner")
	t.Setenv("NER_ENGINE_NER_ENABLED", "false")
	t.Setenv("NER_BLACKLIST", "n/a,tbd")
	t.Setenv("NER_MODEL_NAME", "it_core_news_lg")

	cfg := FromEnv()

	assert.Equal(t, 0.5, cfg.RegexConfidence)
	assert.Equal(t, 1.5, cfg.NERTimeoutSeconds)
	assert.Equal(t, 50, cfg.MinTextLengthForNER)
	assert.Equal(t, []string{"it", "de", "fr"}, cfg.SupportedNERLanguages)
	assert.Equal(t, []string{"lexicon", "regex", "ner"}, cfg.SourcePriority)
	assert.False(t, cfg.EngineNEREnabled)
	assert.Equal(t, []string{"n/a", "tbd"}, cfg.BlacklistValues)
	assert.Equal(t, "it_core_news_lg", cfg.NERModelName)
}

func TestFromEnvConfigFileThenOverrides(t *testing.T) {
	path := writeConfig(t, "config.yaml", "regex_confidence: 0.8\nner_confidence: 0.6\n")
	t.Setenv("NER_CONFIG_FILE", path)
	t.Setenv("NER_NER_CONFIDENCE", "0.65")

	cfg := FromEnv()

	// File applied over defaults, env applied over file.
	assert.Equal(t, 0.8, cfg.RegexConfidence)
	assert.Equal(t, 0.65, cfg.NERConfidence)
}

func TestFromEnvBrokenConfigFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("NER_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	cfg := FromEnv()
	assert.Equal(t, 0.95, cfg.RegexConfidence)
}

func TestEnvBoolForms(t *testing.T) {
	for _, v := range []string{"true", "1", "yes", "TRUE"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("NER_ENGINE_REGEX_ENABLED", v)
			assert.True(t, FromEnv().EngineRegexEnabled)
		})
	}
	for _, v := range []string{"false", "0", "no"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("NER_ENGINE_REGEX_ENABLED", v)
			assert.False(t, FromEnv().EngineRegexEnabled)
		})
	}
	t.Run("garbage keeps default", func(t *testing.T) {
		t.Setenv("NER_ENGINE_REGEX_ENABLED", "maybe")
		assert.True(t, FromEnv().EngineRegexEnabled)
	})
}

func TestIsNERLanguageSupported(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.IsNERLanguageSupported("it"))
	assert.True(t, cfg.IsNERLanguageSupported("IT"))
	assert.True(t, cfg.IsNERLanguageSupported("en"))
	assert.False(t, cfg.IsNERLanguageSupported("de"))
}

func TestPriorityRank(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 0, cfg.PriorityRank("regex"))
	assert.Equal(t, 1, cfg.PriorityRank("ner"))
	assert.Equal(t, 2, cfg.PriorityRank("lexicon"))
	assert.Equal(t, 3, cfg.PriorityRank("unknown"), "unknown sources rank last")
}

func TestNERTimeout(t *testing.T) {
	cfg := Default()
	cfg.NERTimeoutSeconds = 0.25
	assert.Equal(t, 250*time.Millisecond, cfg.NERTimeout())
}
