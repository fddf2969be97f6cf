package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/tiwaz/internal"
	pkgconfig "github.com/starford/tiwaz/pkg/config"
)

// configFlag is constructed per command so each command parses its own
// copy.
func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("TIWAZ_CONFIG_FILE"),
	}
}

// loadConfig reads the config file named by the flag. When the file is
// absent and the flag was not set explicitly, the built-in defaults run.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !cmd.IsSet("config") {
		return cfg, nil
	}
	if err := pkgconfig.Load(path, cfg); err != nil {
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

func runCheck(ctx context.Context, cmd *cli.Command) error {
	payloadPath := cmd.Args().First()
	if payloadPath == "" {
		return cli.Exit("usage: tiwaz check --action <action> payload.json", 2)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	verdict, err := internal.Check(cfg, cmd.String("action"), payloadPath, cmd.String("jurisdiction"))
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if verdict.Blocked() {
		return cli.Exit(fmt.Sprintf("blocked by %s", verdict.RuleID), 1)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "tiwaz",
		Usage:  "Practice-record assistant with compliance gating, audit trail, and counsel query brokering",
		Action: runServe,
		Flags: []cli.Flag{
			configFlag(),
		},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tool surface over stdio",
				Action: runMCP,
				Flags: []cli.Flag{
					configFlag(),
				},
			},
			{
				Name:      "check",
				Usage:     "Evaluate a JSON payload against the compliance rules without executing anything",
				ArgsUsage: "payload.json",
				Action:    runCheck,
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "action",
						Usage:    "Action the payload belongs to, e.g. create_note or run_query",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "jurisdiction",
						Usage: "Jurisdiction the action concerns",
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
