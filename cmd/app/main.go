package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/engram/internal"
	"github.com/starford/engram/internal/ingest"
	"github.com/starford/engram/internal/store"
	pkgconfig "github.com/starford/engram/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func runImportMarkdown(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	stats, err := ingest.ImportMarkdownDir(db,
		cmd.String("dir"),
		cmd.String("pattern"),
		cmd.StringSlice("tag"),
		cmd.Bool("link-by-date"),
		cmd.Bool("dry-run"))
	if err != nil {
		return fmt.Errorf("import markdown: %w", err)
	}

	fmt.Printf("files: %d, created: %d, skipped: %d, edges: %d\n",
		stats.FilesProcessed, stats.NodesCreated, stats.NodesSkipped, stats.EdgesCreated)
	return nil
}

func runImportGit(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	filter := ingest.DefaultCommitFilter()
	if v := cmd.String("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		filter.Since = &t
	}
	if v := cmd.String("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}
		filter.Until = &t
	}
	if v := int(cmd.Int("max")); v > 0 {
		filter.MaxCommits = v
	}

	stats, err := ingest.ImportGitRepo(ctx, db, cmd.String("repo"), filter,
		cmd.Bool("link-related"), cmd.Bool("dry-run"))
	if err != nil {
		return fmt.Errorf("import git: %w", err)
	}

	fmt.Printf("commits: %d, significant: %d, created: %d, skipped: %d, edges: %d\n",
		stats.TotalCommits, stats.SignificantCommits, stats.NodesCreated,
		stats.NodesSkipped, stats.EdgesCreated)
	return nil
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "engram",
		Usage:  "Personal memory store for agents: 5W+H-indexed memories with a typed graph over SQLite",
		Action: runServe,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API server",
				Action: runServe,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "mcp",
				Usage:  "Start the MCP server on stdio",
				Action: runMCP,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:  "import",
				Usage: "Import memories from external sources",
				Commands: []*cli.Command{
					{
						Name:   "md",
						Usage:  "Import a directory of Markdown journal files",
						Action: runImportMarkdown,
						Flags: []cli.Flag{
							configFlag,
							&cli.StringFlag{Name: "dir", Usage: "Journal directory", Required: true},
							&cli.StringFlag{Name: "pattern", Usage: "Filename glob", Value: "*.md"},
							&cli.StringSliceFlag{Name: "tag", Usage: "Extra tag for every imported node"},
							&cli.BoolFlag{Name: "link-by-date", Usage: "Link consecutive daily files with preceded_by edges", Value: true},
							&cli.BoolFlag{Name: "dry-run", Usage: "Scan without writing"},
						},
					},
					{
						Name:   "git",
						Usage:  "Import significant commits from a git repository",
						Action: runImportGit,
						Flags: []cli.Flag{
							configFlag,
							&cli.StringFlag{Name: "repo", Usage: "Path to the git repository", Required: true},
							&cli.StringFlag{Name: "since", Usage: "Only commits after this date"},
							&cli.StringFlag{Name: "until", Usage: "Only commits before this date"},
							&cli.IntFlag{Name: "max", Usage: "Maximum commits to import"},
							&cli.BoolFlag{Name: "link-related", Usage: "Link commits touching the same files", Value: true},
							&cli.BoolFlag{Name: "dry-run", Usage: "Scan without writing"},
						},
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
