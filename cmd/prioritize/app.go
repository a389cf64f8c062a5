package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/JohnPlummer/priority-scorer/scorer"
	"github.com/JohnPlummer/priority-scorer/triage"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"

	debugFlagName     = "debug"
	formatFlagName    = "format"
	inputFlagName     = "input"
	idFlagName        = "id"
	nowFlagName       = "now"
	configFlagName    = "config"
	directoryFlagName = "directory"
	llmFlagName       = "llm"
	modelFlagName     = "model"
	apiKeyFlagName    = "openai-api-key"
	redisFlagName     = "cache-redis"
	cacheTTLFlagName  = "cache-ttl"
	addrFlagName      = "addr"
	storeSizeFlagName = "store-size"
)

var (
	commit = ""
	date   = ""
)

// newApp builds the command tree. Flags are created per call since urfave
// keeps parsed values on the flag itself.
func newApp(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:            "prioritize",
		Version:         fmt.Sprintf("%s (%s - %s)", scorer.Version, commit, date),
		Usage:           "Rank messages by deadline, sender and urgency",
		HideHelpCommand: true,
		Writer:          w,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  debugFlagName,
				Usage: "Prints verbose logs (optional, default: false)",
			},
			&cli.StringFlag{
				Name:  formatFlagName,
				Usage: "Output format [json, yaml]",
				Value: formatJSON,
			},
		},
		Commands: []*cli.Command{
			rankCmd(),
			explainCmd(),
			serveCmd(),
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool(debugFlagName) {
				initLogging(true)
			}

			// .env is optional; real environment variables win
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				slog.Debug("could not load .env file", "error", err)
			}

			switch f := strings.ToLower(cmd.String(formatFlagName)); f {
			case formatJSON, formatYAML, "yml":
			default:
				return ctx, fmt.Errorf("unsupported output format %q", f)
			}
			return ctx, nil
		},
	}
}

// scoringFlags configure how messages are scored
func scoringFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  nowFlagName,
			Usage: "Reference time in RFC 3339 (default: current time)",
		},
		&cli.StringFlag{
			Name:  configFlagName,
			Usage: "Path to a YAML scoring model (signal weights, deadline buckets)",
		},
		&cli.StringFlag{
			Name:  directoryFlagName,
			Usage: "Path to a YAML sender directory",
		},
		&cli.BoolFlag{
			Name:  llmFlagName,
			Usage: "Detect urgency signals with an OpenAI model, falling back to keywords",
		},
		&cli.StringFlag{
			Name:  modelFlagName,
			Usage: "OpenAI model used with --llm",
			Value: "gpt-4o-mini",
		},
		&cli.StringFlag{
			Name:    apiKeyFlagName,
			Usage:   "OpenAI API key used with --llm",
			Sources: cli.EnvVars("OPENAI_API_KEY"),
		},
		&cli.StringFlag{
			Name:    redisFlagName,
			Usage:   "Redis address for caching model-detected signals (host:port)",
			Sources: cli.EnvVars("REDIS_ADDR"),
		},
		&cli.DurationFlag{
			Name:  cacheTTLFlagName,
			Usage: "How long cached signals are reused",
			Value: 24 * time.Hour,
		},
	}
}

func initLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}

func encode(cmd *cli.Command, v any) error {
	w := cmd.Root().Writer
	switch strings.ToLower(cmd.String(formatFlagName)) {
	case formatYAML, "yml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(v)
	}
}

// loadMessages reads a JSON or YAML array of messages
func loadMessages(path string) ([]triage.Message, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading messages %s: %w", path, err)
	}

	var msgs []triage.Message
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &msgs)
	default:
		err = json.Unmarshal(b, &msgs)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing messages %s: %w", path, err)
	}
	return msgs, nil
}
