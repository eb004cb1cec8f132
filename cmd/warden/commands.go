package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/galaxyguard/warden/automod/config"
	"github.com/galaxyguard/warden/automod/engine"
	"github.com/galaxyguard/warden/automod/scoring"

	cli "github.com/urfave/cli/v2"
)

var evaluateScoresCmd = &cli.Command{
	Name:      "evaluate-scores",
	Usage:     "evaluate a JSON map of category scores against the cumulative thresholds",
	ArgsUsage: `[<scores-json-file>]`,
	Description: "Reads a JSON object of category scores (from the file argument, or stdin when absent) and prints the " +
		"cumulative decision. No oracle or store is contacted.",
	Action: func(cctx *cli.Context) error {
		logger, err := configLogger(cctx, os.Stderr)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cctx, logger)
		if err != nil {
			return err
		}

		var r io.Reader = os.Stdin
		if p := cctx.Args().First(); p != "" && p != "-" {
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		res, err := evaluateScoresFrom(r, cfg)
		if err != nil {
			return err
		}
		return printJSON(cctx.App.Writer, res)
	},
}

func evaluateScoresFrom(r io.Reader, cfg config.Config) (engine.CumulativeResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return engine.CumulativeResult{}, err
	}
	var scores scoring.ScoreMap
	if err := json.Unmarshal(raw, &scores); err != nil {
		return engine.CumulativeResult{}, fmt.Errorf("parsing scores: %w", err)
	}
	eng := engine.Engine{Config: cfg}
	return eng.EvaluateScores(scores), nil
}

var checkConfigCmd = &cli.Command{
	Name:  "check-config",
	Usage: "validate the thresholds config and print the effective config as YAML",
	Action: func(cctx *cli.Context) error {
		logger, err := configLogger(cctx, os.Stderr)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cctx, logger)
		if err != nil {
			return err
		}
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		fmt.Fprint(cctx.App.Writer, string(out))
		return nil
	},
}

var historyCmd = &cli.Command{
	Name:      "history",
	Usage:     "print a user's moderation history and current strike standing",
	ArgsUsage: `<user-id>`,
	Flags:     storeFlags(),
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		userID := cctx.Args().First()
		if userID == "" {
			return fmt.Errorf("need to provide user id as an argument")
		}
		logger, err := configLogger(cctx, os.Stderr)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cctx, logger)
		if err != nil {
			return err
		}
		ss, err := buildStores(cctx, logger)
		if err != nil {
			return err
		}
		defer ss.cleanup()

		eng := engine.Engine{
			Logger:   logger,
			Config:   cfg,
			History:  ss.history,
			Settings: ss.settings,
		}
		st, err := eng.Standing(ctx, userID)
		if err != nil {
			return err
		}
		if st == nil {
			return fmt.Errorf("no moderation history for user: %s", userID)
		}
		return printJSON(cctx.App.Writer, st)
	},
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(b))
	return nil
}
