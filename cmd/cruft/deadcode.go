package main

import (
	"github.com/urfave/cli/v2"

	"cruft/internal/analyzer"
	"cruft/internal/output"
	"cruft/internal/progress"
	"cruft/internal/unitproc"
	"cruft/pkg/models"
)

func deadcodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "deadcode",
		Aliases:   []string{"dc"},
		Usage:     "Detect unused definitions, imports, and unreachable code",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "min-confidence",
				Value: "low",
				Usage: "Lowest confidence tier to report: high, medium, low",
			},
		},
		Action: runDeadCode,
	}
}

func runDeadCode(c *cli.Context) error {
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
		tracker = progress.NewTracker("Detecting dead code...", corpus.Len())
		onProgress = tracker.Tick
	}

	report := analyzer.NewDeadCode(cfg).Analyze(corpus, onProgress)
	if tracker != nil {
		tracker.Finish()
	}

	report = filterConfidence(report, c.String("min-confidence"))

	formatter, err := newFormatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if err := formatter.Output(&output.DeadCodeView{Report: report}); err != nil {
		return err
	}

	if report.TotalItems > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

// filterConfidence drops findings below the requested tier.
func filterConfidence(report *models.DeadCodeReport, min string) *models.DeadCodeReport {
	rank := map[models.Confidence]int{
		models.ConfidenceLow:    0,
		models.ConfidenceMedium: 1,
		models.ConfidenceHigh:   2,
	}
	floor, ok := rank[models.Confidence(min)]
	if !ok || floor == 0 {
		return report
	}

	filtered := models.NewDeadCodeReport(report.Root)
	filtered.FilesAnalyzed = report.FilesAnalyzed
	filtered.Error = report.Error
	for _, item := range report.Items {
		if rank[item.Confidence] >= floor {
			filtered.Add(item)
		}
	}
	return filtered
}
