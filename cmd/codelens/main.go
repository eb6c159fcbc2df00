// Command codelens is the thin CLI over the index engine: scan a
// repository, search it, inspect its dependency graph, and apply edits.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/editor"
	"github.com/codelens-dev/codelens/internal/engine"
	"github.com/codelens-dev/codelens/internal/logging"
	"github.com/codelens-dev/codelens/internal/search"
	"github.com/codelens-dev/codelens/internal/types"
)

func main() {
	app := &cli.App{
		Name:  "codelens",
		Usage: "local code intelligence: index, search, relate, edit",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Usage: "repository root", Value: "."},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging"},
		},
		Commands: []*cli.Command{
			indexCommand(),
			searchCommand(),
			depsCommand(),
			statusCommand(),
			editCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "codelens:", err)
		os.Exit(1)
	}
}

func openEngine(c *cli.Context) (*engine.Engine, error) {
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return nil, err
	}
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	log := logging.New(level)

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	return engine.New(root, cfg, engine.Options{DisableWatcher: true}, log)
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "run a baseline scan of the repository",
		Action: func(c *cli.Context) error {
			eng, err := openEngine(c)
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.BaselineScan(context.Background()); err != nil {
				return err
			}
			eng.Flush()
			status, err := eng.Status()
			if err != nil {
				return err
			}
			fmt.Printf("indexed %d files, %d edges, %d unresolved (confidence %s)\n",
				status.TotalFiles, status.TotalEdges, status.TotalUnresolved, status.Confidence)
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "hybrid ranked search",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "intent", Usage: "symbol|content|filename|mixed (auto when empty)"},
			&cli.BoolFlag{Name: "word", Usage: "word-boundary matching"},
			&cli.IntFlag{Name: "limit", Usage: "maximum results", Value: 20},
			&cli.BoolFlag{Name: "group", Usage: "group matches by file"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("search: a query is required", 2)
			}
			eng, err := openEngine(c)
			if err != nil {
				return err
			}
			defer eng.Close()

			resp, err := eng.Search(context.Background(), c.Args().First(), search.Options{
				Intent:       search.Intent(c.String("intent")),
				WordBoundary: c.Bool("word"),
				MaxResults:   c.Int("limit"),
				GroupByFile:  c.Bool("group"),
			})
			if err != nil {
				return err
			}
			for _, r := range resp.Results {
				fmt.Printf("%8.2f  %s:%d  %s\n", r.Score, r.FilePath, r.LineNumber, r.Preview)
				for _, s := range r.Secondary {
					fmt.Printf("          %s:%d  %s\n", s.FilePath, s.LineNumber, s.Preview)
				}
			}
			if resp.Degraded {
				fmt.Printf("(degraded: %s)\n", resp.DegradedReason)
			}
			return nil
		},
	}
}

func depsCommand() *cli.Command {
	return &cli.Command{
		Name:      "deps",
		Usage:     "show dependency edges for a file",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "direction", Aliases: []string{"d"}, Value: "downstream", Usage: "upstream|downstream|both"},
			&cli.BoolFlag{Name: "transitive", Aliases: []string{"t"}, Usage: "BFS transitive closure"},
			&cli.IntFlag{Name: "depth", Value: 20, Usage: "maximum BFS depth"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("deps: a path is required", 2)
			}
			eng, err := openEngine(c)
			if err != nil {
				return err
			}
			defer eng.Close()

			dir := types.Direction(c.String("direction"))
			path := c.Args().First()
			if c.Bool("transitive") {
				reached, err := eng.TransitiveDependencies(path, dir, c.Int("depth"))
				if err != nil {
					return err
				}
				for _, p := range reached {
					fmt.Println(p)
				}
				return nil
			}
			edges, err := eng.Dependencies(path, dir)
			if err != nil {
				return err
			}
			for _, e := range edges {
				fmt.Printf("%s -> %s (%s, line %d)\n", e.Source, e.Target, e.Kind, e.Meta.Line)
			}
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "report index health",
		Action: func(c *cli.Context) error {
			eng, err := openEngine(c)
			if err != nil {
				return err
			}
			defer eng.Close()

			s, err := eng.Status()
			if err != nil {
				return err
			}
			fmt.Printf("files:      %d\n", s.TotalFiles)
			fmt.Printf("edges:      %d\n", s.TotalEdges)
			fmt.Printf("unresolved: %d (%.1f%%)\n", s.TotalUnresolved, s.UnresolvedRatio*100)
			fmt.Printf("confidence: %s\n", s.Confidence)
			fmt.Printf("monorepo:   %v\n", s.IsMonorepo)
			return nil
		},
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "apply one anchor-based edit to a file",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Required: true, Usage: "text to replace"},
			&cli.StringFlag{Name: "replacement", Required: true, Usage: "replacement text"},
			&cli.StringFlag{Name: "normalization", Usage: "exact|line-endings|trailing|indentation|whitespace|structural"},
			&cli.StringFlag{Name: "fuzzy", Usage: "whitespace|levenshtein"},
			&cli.BoolFlag{Name: "dry-run", Usage: "show the diff without writing"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("edit: a path is required", 2)
			}
			eng, err := openEngine(c)
			if err != nil {
				return err
			}
			defer eng.Close()

			edit := types.Edit{
				TargetString:      c.String("target"),
				ReplacementString: c.String("replacement"),
				Normalization:     types.NormalizationLevel(c.String("normalization")),
				FuzzyMode:         types.FuzzyMode(c.String("fuzzy")),
			}
			result := eng.ApplyEdits(c.Args().First(), []types.Edit{edit}, editor.ApplyOptions{
				DryRun: c.Bool("dry-run"),
			})
			if !result.Success {
				fmt.Printf("error (%s): %s\n", result.ErrorCode, result.Message)
				if result.Suggestion != nil {
					fmt.Printf("suggestion: %s — %s\n", result.Suggestion.Action, result.Suggestion.Reason)
				}
				return cli.Exit("", 1)
			}
			if result.Diff != "" {
				fmt.Print(result.Diff)
			}
			fmt.Println(result.Message)
			return nil
		},
	}
}
