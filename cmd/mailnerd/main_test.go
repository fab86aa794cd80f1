package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailnerd/internal/config"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(bytes.NewBufferString(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, config.LayerVersion)
}

func TestConfigCommand(t *testing.T) {
	out, err := runCLI(t, "", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "regex_confidence: 0.95")
	assert.Contains(t, out, "source_priority:")
}

func TestExtractFromStdin(t *testing.T) {
	input := `{
		"id_conversazione": "conv-1",
		"id_messaggio": "msg-1",
		"testo_normalizzato": "scrivere a mario@example.it entro il 15/03/2024",
		"timestamp": "2024-03-15T10:30:00Z",
		"mittente": "a@b.it",
		"destinatario": "c@d.it",
		"lingua": "it"
	}`

	out, err := runCLI(t, input, "extract")
	require.NoError(t, err)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &envelope))
	meta := envelope["meta"].(map[string]any)
	assert.Equal(t, "ok", meta["status"])
	assert.NotEmpty(t, envelope["entities"])
}

func TestExtractMessageEnvelope(t *testing.T) {
	input := `{
		"email_context": {
			"message_id": "msg-2",
			"id_conversazione": "conv-2",
			"testo_normalizzato": "pagare € 150,00 entro il 01/04/2024",
			"mittente": "a@b.it",
			"destinatario": "c@d.it",
			"timestamp": "2024-03-15T10:30:00Z",
			"lingua": "it"
		}
	}`

	out, err := runCLI(t, input, "extract")
	require.NoError(t, err)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &envelope))
	require.Contains(t, envelope, "ner_entities", "result is written back into the carrier")
	section := envelope["ner_entities"].(map[string]any)
	assert.NotEmpty(t, section["entities"])
}

func TestExtractInvalidJSON(t *testing.T) {
	_, err := runCLI(t, "non è json", "extract")
	assert.Error(t, err)
}

func TestLoadLexiconFormats(t *testing.T) {
	dir := t.TempDir()

	t.Run("entry list", func(t *testing.T) {
		path := filepath.Join(dir, "lex.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"- lemma: ACME S.p.A.\n  label: AZIENDA\n  surface_forms: [ACME]\n"), 0o644))
		lex, err := loadLexicon(path)
		require.NoError(t, err)
		require.Len(t, lex, 1)
		assert.Equal(t, "AZIENDA", lex[0].Label)
	})

	t.Run("compact map", func(t *testing.T) {
		path := filepath.Join(dir, "compact.yaml")
		require.NoError(t, os.WriteFile(path, []byte("acme: AZIENDA\nmutuo casa: PRODOTTO\n"), 0o644))
		lex, err := loadLexicon(path)
		require.NoError(t, err)
		assert.Len(t, lex, 2)
	})
}
