package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailnerd/internal/config"
	"mailnerd/internal/entity"
)

func TestNewOutputDefaults(t *testing.T) {
	out := NewOutput("conv-1", "msg-1", map[string]bool{"engine_ner": true})

	assert.Equal(t, "ok", out.Meta.Status)
	assert.Equal(t, config.LayerVersion, out.Meta.LayerVersion)
	assert.Equal(t, "conv-1", out.Meta.IDConversazione)
	assert.Equal(t, "msg-1", out.Meta.IDMessaggio)
	assert.NotNil(t, out.Entities)
	assert.NotNil(t, out.Errors)
	assert.NotNil(t, out.Meta.Fallbacks)
}

func TestSetEntitiesUpdatesCount(t *testing.T) {
	out := NewOutput("c", "m", nil)
	out.SetEntities([]entity.Entity{
		{Type: "EMAIL", Value: "a@b.it", Span: entity.Span{Start: 0, End: 6}, Source: entity.SourceRegex},
	})
	assert.Equal(t, 1, out.Meta.EntityCount)

	out.SetEntities(nil)
	assert.Equal(t, 0, out.Meta.EntityCount)
	assert.NotNil(t, out.Entities)
}

func TestSetFailedClearsEntities(t *testing.T) {
	out := NewOutput("c", "m", nil)
	out.SetEntities([]entity.Entity{
		{Type: "EMAIL", Value: "a@b.it", Span: entity.Span{Start: 0, End: 6}, Source: entity.SourceRegex},
	})

	out.SetFailed("pipeline", "boom", "internal")

	assert.Equal(t, "failed", out.Meta.Status)
	assert.Empty(t, out.Entities)
	assert.Equal(t, 0, out.Meta.EntityCount)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "pipeline", out.Errors[0].Component)
	assert.Equal(t, "internal", out.Errors[0].Type)
}

func TestToJSONAlwaysValid(t *testing.T) {
	t.Run("ok envelope", func(t *testing.T) {
		out := NewOutput("c", "m", nil)
		out.AddFallback("ner_disabled")
		out.RecordTiming("regex", 1.234)
		out.Finalize()

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out.ToJSON(), &decoded))

		meta := decoded["meta"].(map[string]any)
		assert.Equal(t, "ok", meta["status"])
		assert.Equal(t, []any{"ner_disabled"}, meta["fallbacks"])
		assert.Equal(t, []any{}, decoded["entities"], "entities serializes as [], never null")
		assert.Equal(t, []any{}, decoded["errors"])
	})

	t.Run("failed envelope", func(t *testing.T) {
		out := NewOutput("c", "m", nil)
		out.SetFailed("input_validator", "text too long", "text_too_long")

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out.ToJSON(), &decoded))
		meta := decoded["meta"].(map[string]any)
		assert.Equal(t, "failed", meta["status"])
	})
}

func TestRecordTimingRounds(t *testing.T) {
	out := NewOutput("c", "m", nil)
	out.RecordTiming("merge", 1.23456789)
	assert.Equal(t, 1.235, out.Meta.ComponentTimingsMS["merge"])
}
