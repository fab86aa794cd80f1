package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"mailnerd/internal/extract"
	"mailnerd/internal/observability"
	"mailnerd/internal/pipeline"
	"mailnerd/internal/schema"
)

var (
	pretty        bool
	lexiconFile   string
	metricsListen string
)

// extractCmd runs the extraction pipeline on one or more JSON messages
var extractCmd = &cobra.Command{
	Use:   "extract [file...]",
	Short: "Extract entities from JSON messages (files or stdin)",
	Long: `Runs the full extraction pipeline on each input and prints one JSON
envelope per input, in input order.

Each input is either a raw extraction request:

  {"id_conversazione": "...", "id_messaggio": "...",
   "testo_normalizzato": "...", "timestamp": "...",
   "mittente": "...", "destinatario": "...", "lingua": "it"}

or a full message envelope (detected by the email_context key), in which
case the request is derived from the envelope and the result is written
back into its ner_entities section.

With no file arguments, one message is read from stdin.

Example:
  mailnerd extract message.json
  cat message.json | mailnerd extract --pretty`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the output JSON")
	extractCmd.Flags().StringVar(&lexiconFile, "lexicon", "", "Lexicon file (YAML list of lemma/label/surface_forms)")
	extractCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address while extracting")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	runner := pipeline.New(cfg)
	runner.SetLogger(logger.With(zap.String("trace_id", uuid.NewString())))

	if lexiconFile != "" {
		lex, err := loadLexicon(lexiconFile)
		if err != nil {
			return fmt.Errorf("failed to load lexicon: %w", err)
		}
		runner.SetLexicon(lex)
		logger.Debug("lexicon loaded", zap.String("path", lexiconFile), zap.Int("entries", len(lex)))
	}

	if metricsListen != "" {
		reg := prometheus.NewRegistry()
		metrics, err := observability.NewPrometheus(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		runner.SetMetrics(metrics)
		go serveMetrics(metricsListen, reg)
	}

	if len(args) == 0 {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		out, err := extractOne(runner, raw)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	// Process files concurrently but print results in input order.
	results := make([][]byte, len(args))
	var g errgroup.Group
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			out, err := extractOne(runner, raw)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, out := range results {
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	return nil
}

// extractOne decodes one JSON input, runs the pipeline and renders the
// result. Envelope inputs come back as the updated envelope; raw inputs
// come back as the bare extraction output.
func extractOne(runner *pipeline.Runner, raw []byte) ([]byte, error) {
	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON input: %w", err)
	}

	if _, isEnvelope := probe["email_context"]; isEnvelope {
		var env schema.MessageEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("invalid message envelope: %w", err)
		}
		out := runner.Run(env.ToNERInput())
		var section map[string]any
		if err := json.Unmarshal(out.ToJSON(), &section); err != nil {
			return nil, fmt.Errorf("failed to decode extraction result: %w", err)
		}
		env.NEREntities = section
		return render(env)
	}

	out := runner.Run(probe)
	if !pretty {
		return out.ToJSON(), nil
	}
	return render(out)
}

func render(v any) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// loadLexicon reads a YAML lexicon file. Both the entry-list form and the
// compact lemma->label map form are accepted.
func loadLexicon(path string) (extract.Lexicon, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []extract.LexiconEntry
	if err := yaml.Unmarshal(raw, &entries); err == nil && len(entries) > 0 {
		return extract.Lexicon(entries), nil
	}

	var compact map[string]string
	if err := yaml.Unmarshal(raw, &compact); err != nil {
		return nil, fmt.Errorf("unrecognized lexicon format in %s: %w", path, err)
	}
	return extract.LexiconFromMap(compact), nil
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics listener stopped", zap.Error(err))
	}
}
