package main

import (
	"github.com/urfave/cli/v2"

	"cruft/internal/analyzer"
	"cruft/internal/output"
	"cruft/internal/progress"
	"cruft/internal/unitproc"
	"cruft/pkg/models"
)

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Run both analyses and emit a combined report",
		ArgsUsage: "[path]",
		Action:    runReport,
	}
}

func runReport(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	corpus, err := buildCorpus(c, cfg)
	if err != nil {
		return err
	}

	var onProgress unitproc.ProgressFunc
	var tracker *progress.Tracker
	if !c.Bool("no-progress") && corpus.Len() > 0 {
		// Each unit passes through both engines.
		tracker = progress.NewTracker("Analyzing...", corpus.Len()*2)
		onProgress = tracker.Tick
	}

	combined := &models.CombinedReport{
		Root:     corpus.Root,
		DeadCode: analyzer.NewDeadCode(cfg).Analyze(corpus, onProgress),
		Patterns: analyzer.NewPatterns(cfg).Analyze(corpus, onProgress),
	}
	if tracker != nil {
		tracker.Finish()
	}

	formatter, err := newFormatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if err := formatter.Output(&output.CombinedView{Report: combined}); err != nil {
		return err
	}

	if combined.DeadCode.TotalItems > 0 || combined.Patterns.HasFindings() {
		return cli.Exit("", 1)
	}
	return nil
}
