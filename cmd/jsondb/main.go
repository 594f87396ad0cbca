package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/mattn/go-isatty"
	"github.com/tidwall/pretty"
	"github.com/urfave/cli/v3"

	"github.com/starford/jsondb/internal"
	"github.com/starford/jsondb/internal/seed"
	pkgconfig "github.com/starford/jsondb/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(configPath, "", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

// withStack opens the store for a one-shot command.
func withStack(cmd *cli.Command, fn func(*internal.Stack) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stack, err := internal.Open(internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer stack.Close()
	return fn(stack)
}

func printJSON(v any) error {
	out, err := json.Marshal(v)
	if err != nil {
		return err
	}
	out = pretty.Pretty(out)
	if isatty.IsTerminal(os.Stdout.Fd()) {
		out = pretty.Color(out, nil)
	}
	_, err = os.Stdout.Write(out)
	return err
}

func argKind(cmd *cli.Command) (string, error) {
	kind := cmd.Args().First()
	if kind == "" {
		return "", fmt.Errorf("%s: kind is required", cmd.Name)
	}
	return kind, nil
}

func listKinds(ctx context.Context, cmd *cli.Command) error {
	return withStack(cmd, func(s *internal.Stack) error {
		kinds, err := s.Service.List(ctx)
		if err != nil {
			return err
		}
		store := s.Service.Store()
		for _, k := range kinds {
			file, ok := store.FileFor(k)
			if !ok {
				file = k + ".json"
			}
			fmt.Printf("%s\t%s\n", k, file)
		}
		return nil
	})
}

func getRecords(ctx context.Context, cmd *cli.Command) error {
	kind, err := argKind(cmd)
	if err != nil {
		return err
	}
	return withStack(cmd, func(s *internal.Stack) error {
		if cmd.Args().Len() < 2 {
			records, err := s.Service.Records(ctx, kind)
			if err != nil {
				return err
			}
			return printJSON(records)
		}
		id, err := strconv.Atoi(cmd.Args().Get(1))
		if err != nil {
			return fmt.Errorf("get: invalid id %q", cmd.Args().Get(1))
		}
		record, err := s.Service.Record(ctx, kind, id)
		if err != nil {
			return err
		}
		return printJSON(record)
	})
}

func putRecords(ctx context.Context, cmd *cli.Command) error {
	kind, err := argKind(cmd)
	if err != nil {
		return err
	}
	path := cmd.Args().Get(1)
	if path == "" {
		return fmt.Errorf("put: fixture file is required")
	}
	format, err := seed.FormatFor(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}
	docs, err := seed.Parse(data, format)
	if err != nil {
		return err
	}
	return withStack(cmd, func(s *internal.Stack) error {
		if err := s.Service.SaveRange(ctx, kind, docs); err != nil {
			return err
		}
		fmt.Printf("saved %d %s records\n", len(docs), kind)
		return nil
	})
}

func deleteRecords(ctx context.Context, cmd *cli.Command) error {
	kind, err := argKind(cmd)
	if err != nil {
		return err
	}
	raw := cmd.Args().Slice()[1:]
	if len(raw) == 0 {
		return fmt.Errorf("delete: at least one id is required")
	}
	ids := make([]int, 0, len(raw))
	for _, r := range raw {
		id, err := strconv.Atoi(r)
		if err != nil {
			return fmt.Errorf("delete: invalid id %q", r)
		}
		ids = append(ids, id)
	}
	return withStack(cmd, func(s *internal.Stack) error {
		if err := s.Service.DeleteRange(ctx, kind, ids); err != nil {
			return err
		}
		fmt.Printf("deleted %d %s ids\n", len(ids), kind)
		return nil
	})
}

func lastModified(ctx context.Context, cmd *cli.Command) error {
	kind, err := argKind(cmd)
	if err != nil {
		return err
	}
	return withStack(cmd, func(s *internal.Stack) error {
		ts, err := s.Service.LastModified(ctx, kind)
		if err != nil {
			return err
		}
		if ts.IsZero() {
			fmt.Println("never")
			return nil
		}
		fmt.Println(ts.Format(time.RFC3339Nano))
		return nil
	})
}

func main() {
	cmd := &cli.Command{
		Name:   "jsondb",
		Usage:  "File-backed JSON record store with a REST API, change stream and MCP tools",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server and the catalog watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:   "kinds",
				Usage:  "List the record kinds in the data directory",
				Action: listKinds,
			},
			{
				Name:      "get",
				Usage:     "Print every record of a kind, or one record by id",
				ArgsUsage: "<kind> [id]",
				Action:    getRecords,
			},
			{
				Name:      "put",
				Usage:     "Upsert the records of a JSON or YAML fixture file",
				ArgsUsage: "<kind> <fixture>",
				Action:    putRecords,
			},
			{
				Name:      "delete",
				Usage:     "Delete records by id",
				ArgsUsage: "<kind> <id>...",
				Action:    deleteRecords,
			},
			{
				Name:      "modified",
				Usage:     "Print the last write time of a kind in UTC",
				ArgsUsage: "<kind>",
				Action:    lastModified,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
