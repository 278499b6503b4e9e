package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"cruft/internal/output"
	"cruft/pkg/config"
	"cruft/pkg/source"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func main() {
	app := &cli.App{
		Name:    "cruft",
		Usage:   "Find dead code and duplication in a codebase",
		Version: version,
		Description: `Cruft statically analyzes a source tree for two classes of
refactoring signal: dead code (unused definitions, imports, unreachable
statements) and duplication (similar lines, repeated method chains,
magic strings, near-duplicate blocks).

Supports: Go, Python, TypeScript, JavaScript`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"CRUFT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "Output format: text, json, markdown",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Disable the progress bar",
			},
		},
		Commands: []*cli.Command{
			deadcodeCommand(),
			patternsCommand(),
			reportCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			if msg := exitErr.Error(); msg != "" {
				color.Red("%s", msg)
			}
			os.Exit(exitErr.ExitCode())
		}
		color.Red("%v", err)
		os.Exit(1)
	}
}

// rootPath returns the positional path argument, defaulting to ".".
func rootPath(c *cli.Context) string {
	if c.Args().Len() > 0 {
		return c.Args().First()
	}
	return "."
}

// loadConfig resolves configuration from --config or standard locations.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.LoadOrDefault(), nil
}

// buildCorpus scans the root into the analysis corpus.
func buildCorpus(c *cli.Context, cfg *config.Config) (*source.Corpus, error) {
	scanner := source.NewScanner(cfg)
	corpus, err := scanner.Scan(rootPath(c))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", rootPath(c), err)
	}
	if corpus.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "skipped %d unreadable files\n", corpus.Skipped)
	}
	return corpus, nil
}

// newFormatter builds the output formatter from global flags.
func newFormatter(c *cli.Context) (*output.Formatter, error) {
	colored := !c.Bool("no-color")
	return output.NewFormatter(output.ParseFormat(c.String("format")), c.String("output"), colored)
}
