package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-habit-mail/internal/intent"
	"github.com/tbourn/go-habit-mail/internal/parser"
	"github.com/tbourn/go-habit-mail/internal/preparse"
	"github.com/tbourn/go-habit-mail/internal/validation"
)

var (
	parseModel string
	parseNoLLM bool
	parseHabit []string
)

// parseOutput is what `habitmail parse` prints.
type parseOutput struct {
	Source    string             `json:"source"`
	Intents   intent.List        `json:"intents"`
	Invalid   []validation.Error `json:"invalid,omitempty"`
	Dropped   []string           `json:"dropped,omitempty"`
	LatencyMS int64              `json:"latency_ms"`
}

var parseCmd = &cobra.Command{
	Use:   "parse <text...>",
	Short: "Extract and validate intents from a message without touching the database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		out := parseOutput{Source: "preparse"}

		list := preparse.Parse(text)
		if list == nil {
			if parseNoLLM {
				return errors.New("no formulaic match and --no-llm is set")
			}
			c, err := newCompleter(cfg.LLM)
			if err != nil {
				return err
			}
			p := parser.New(c, cfg.LLM.ParseModel)
			if cfg.LLM.ParseTimeout > 0 {
				p.Timeout = cfg.LLM.ParseTimeout
			}
			res, err := p.Parse(cmd.Context(), text, parser.Options{Model: parseModel, HabitNames: parseHabit})
			if err != nil {
				return err
			}
			out.Source = "llm"
			out.LatencyMS = res.Latency.Milliseconds()
			for _, d := range res.Dropped {
				out.Dropped = append(out.Dropped, d.Error())
			}
			list = res.Intents
		}

		out.Intents, out.Invalid = validation.Validate(list)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseModel, "model", "", "override LLM_PARSE_MODEL")
	parseCmd.Flags().BoolVar(&parseNoLLM, "no-llm", false, "fail instead of calling the model when the pre-parser has no match")
	parseCmd.Flags().StringSliceVar(&parseHabit, "habit", nil, "active habit names, for expanding \"everything\"")
}
