package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tierd/internal/classifier"
	"tierd/internal/confidence"
	"tierd/internal/config"
)

func loadConfig(g *globalFlags) (config.Config, error) {
	cfg, err := config.LoadWithDefaults(g.configPath)
	if err != nil {
		return cfg, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	return cfg, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newClassifyCmd(g *globalFlags) *cobra.Command {
	var hint string
	cmd := &cobra.Command{
		Use:     "classify QUERY...",
		Short:   "Classify a query and print the decision",
		Example: "  tierd classify \"Welcher Befehl zeigt die Festplattenbelegung an?\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			res := classifier.New(cfg.Router.Classifier).Classify(strings.Join(args, " "), hint)
			return printJSON(cmd, map[string]any{
				"tier":            res.Tier.String(),
				"score":           res.Score,
				"rule":            res.Rule,
				"matched_signals": res.MatchedSignals,
				"subscores":       res.Subscores,
				"reasoning":       res.Reasoning,
			})
		},
	}
	cmd.Flags().StringVar(&hint, "hint", "", "Tier hint: light|specialized|heavy")
	return cmd
}

func newScoreCmd(g *globalFlags) *cobra.Command {
	var (
		latency time.Duration
		tokens  int
	)
	cmd := &cobra.Command{
		Use:   "score ANSWER...",
		Short: "Score an answer's confidence",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			if latency < 0 {
				return fmt.Errorf("latency must not be negative")
			}
			r := confidence.New(cfg.Confidence).Score(strings.Join(args, " "), latency, confidence.Metadata{ResponseTokens: tokens})
			return printJSON(cmd, map[string]any{
				"score":     r.Score,
				"escalate":  r.Escalate,
				"status":    r.Status,
				"subscores": r.Subscores,
			})
		},
	}
	cmd.Flags().DurationVar(&latency, "latency", 0, "Generation latency, e.g. 2.5s (0 = unknown)")
	cmd.Flags().IntVar(&tokens, "tokens", 0, "Response token count (0 = unknown)")
	return cmd
}
