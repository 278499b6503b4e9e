package main

import (
	"github.com/urfave/cli/v2"

	"cruft/internal/analyzer"
	"cruft/internal/output"
	"cruft/internal/progress"
	"cruft/internal/unitproc"
)

func patternsCommand() *cli.Command {
	return &cli.Command{
		Name:      "patterns",
		Aliases:   []string{"dup"},
		Usage:     "Detect duplicated lines, call chains, magic strings, and similar blocks",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "Block similarity threshold (0.0-1.0), overrides config",
			},
			&cli.BoolFlag{
				Name:  "bucketing",
				Usage: "Enable shingle/LSH bucketing before block comparison",
			},
		},
		Action: runPatterns,
	}
}

func runPatterns(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("threshold") {
		cfg.Patterns.SimilarityThreshold = c.Float64("threshold")
	}
	if c.Bool("bucketing") {
		cfg.Patterns.Bucketing.Enabled = true
	}

	corpus, err := buildCorpus(c, cfg)
	if err != nil {
		return err
	}

	var onProgress unitproc.ProgressFunc
	var tracker *progress.Tracker
	if !c.Bool("no-progress") && corpus.Len() > 0 {
		tracker = progress.NewTracker("Detecting duplication...", corpus.Len())
		onProgress = tracker.Tick
	}

	report := analyzer.NewPatterns(cfg).Analyze(corpus, onProgress)
	if tracker != nil {
		tracker.Finish()
	}

	formatter, err := newFormatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if err := formatter.Output(&output.PatternView{Report: report}); err != nil {
		return err
	}

	if report.HasFindings() {
		return cli.Exit("", 1)
	}
	return nil
}
