package schema

// MessageEnvelope is the carrier object shared by the whole triage chain.
// The email parser creates it, every downstream layer adds its own section
// without touching the others, and this layer fills NEREntities.
//
// The extraction layer reads from EmailContext via ToNERInput and writes
// the serialized envelope back into NEREntities.

// EmailContext holds the fields produced by the email parser. Every
// downstream layer depends on this section.
type EmailContext struct {
	MessageID         string   `json:"message_id"`
	IDConversazione   string   `json:"id_conversazione"`
	TestoNormalizzato string   `json:"testo_normalizzato"`
	Mittente          string   `json:"mittente"`
	Destinatario      string   `json:"destinatario"`
	Timestamp         string   `json:"timestamp"`
	Lingua            *string  `json:"lingua"`
	Oggetto           string   `json:"oggetto,omitempty"`
	Allegati          []string `json:"allegati,omitempty"`
}

// MessageEnvelope is the full pipeline carrier.
type MessageEnvelope struct {
	EmailContext   EmailContext   `json:"email_context"`
	Triage         map[string]any `json:"triage,omitempty"`
	Postprocessing map[string]any `json:"postprocessing,omitempty"`
	NEREntities    map[string]any `json:"ner_entities,omitempty"`
}

// FromPostprocessingResult builds a MessageEnvelope from the upstream
// postprocessing result plus the email fields only the parser has. This is
// the transition-period constructor for chains where the email parser does
// not yet emit a complete envelope.
func FromPostprocessingResult(postprocessing map[string]any, testoNormalizzato, mittente, destinatario, timestamp string, lingua *string) *MessageEnvelope {
	messageID, _ := postprocessing["message_id"].(string)
	if timestamp == "" {
		if created, ok := postprocessing["created_at"].(string); ok {
			timestamp = created
		} else {
			timestamp = "1970-01-01T00:00:00Z"
		}
	}

	env := &MessageEnvelope{
		EmailContext: EmailContext{
			MessageID:         messageID,
			IDConversazione:   messageID,
			TestoNormalizzato: testoNormalizzato,
			Mittente:          mittente,
			Destinatario:      destinatario,
			Timestamp:         timestamp,
			Lingua:            lingua,
		},
		Postprocessing: postprocessing,
	}
	if triage, ok := postprocessing["triage"].(map[string]any); ok {
		env.Triage = triage
	}
	return env
}

// ToNERInput produces the raw map ready for the pipeline, folding upstream
// entities into pre_annotations and triage topic labels into upstream_tags.
func (e *MessageEnvelope) ToNERInput() map[string]any {
	ctx := e.EmailContext

	var preAnnotations []any
	if e.Postprocessing != nil {
		if ents, ok := e.Postprocessing["entities"].([]any); ok {
			preAnnotations = ents
		}
	}

	var upstreamTags []any
	if e.Triage != nil {
		if topics, ok := e.Triage["topics"].([]any); ok {
			for _, t := range topics {
				if topic, ok := t.(map[string]any); ok {
					if label, ok := topic["labelid"].(string); ok {
						upstreamTags = append(upstreamTags, label)
					}
				}
			}
		}
	}

	raw := map[string]any{
		"id_messaggio":       ctx.MessageID,
		"id_conversazione":   ctx.IDConversazione,
		"testo_normalizzato": ctx.TestoNormalizzato,
		"timestamp":          ctx.Timestamp,
		"mittente":           ctx.Mittente,
		"destinatario":       ctx.Destinatario,
		"pre_annotations":    preAnnotations,
		"upstream_tags":      upstreamTags,
	}
	if ctx.Lingua != nil {
		raw["lingua"] = *ctx.Lingua
	}
	return raw
}
