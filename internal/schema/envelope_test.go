package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEnvelope() *MessageEnvelope {
	lingua := "it"
	return &MessageEnvelope{
		EmailContext: EmailContext{
			MessageID:         "msg-1",
			IDConversazione:   "conv-1",
			TestoNormalizzato: "Gentile cliente, la sua pratica è pronta.",
			Mittente:          "mario@example.com",
			Destinatario:      "support@acme.it",
			Timestamp:         "2024-03-15T10:30:00Z",
			Lingua:            &lingua,
		},
		Triage: map[string]any{
			"topics": []any{
				map[string]any{"labelid": "fatturazione", "score": 0.9},
				map[string]any{"labelid": "reclami"},
			},
		},
		Postprocessing: map[string]any{
			"entities": []any{
				map[string]any{"type": "EMAIL", "value": "mario@example.com"},
			},
		},
	}
}

func TestToNERInput(t *testing.T) {
	raw := sampleEnvelope().ToNERInput()

	assert.Equal(t, "msg-1", raw["id_messaggio"])
	assert.Equal(t, "conv-1", raw["id_conversazione"])
	assert.Equal(t, "it", raw["lingua"])

	// Upstream entities fold into pre_annotations, triage topics into tags.
	assert.Len(t, raw["pre_annotations"], 1)
	assert.Equal(t, []any{"fatturazione", "reclami"}, raw["upstream_tags"])

	// The derived map must pass input validation as-is.
	_, _, verr := ValidateInput(raw, 100_000)
	assert.Nil(t, verr)
}

func TestToNERInputNilLingua(t *testing.T) {
	env := sampleEnvelope()
	env.EmailContext.Lingua = nil
	raw := env.ToNERInput()
	_, hasLingua := raw["lingua"]
	assert.False(t, hasLingua, "nil lingua stays absent instead of an empty string")
}

func TestFromPostprocessingResult(t *testing.T) {
	lingua := "it"
	env := FromPostprocessingResult(map[string]any{
		"message_id": "msg-9",
		"triage":     map[string]any{"topics": []any{}},
	}, "testo", "a@b.it", "c@d.it", "", &lingua)

	assert.Equal(t, "msg-9", env.EmailContext.MessageID)
	assert.Equal(t, "msg-9", env.EmailContext.IDConversazione)
	assert.Equal(t, "1970-01-01T00:00:00Z", env.EmailContext.Timestamp, "missing timestamp gets the epoch sentinel")
	assert.NotNil(t, env.Triage)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := sampleEnvelope()
	env.NEREntities = map[string]any{"entities": []any{}}

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var back MessageEnvelope
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, env.EmailContext.MessageID, back.EmailContext.MessageID)
	assert.NotNil(t, back.NEREntities)
}
