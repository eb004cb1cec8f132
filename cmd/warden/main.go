package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/galaxyguard/warden/automod/config"
	"github.com/galaxyguard/warden/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "content moderation decision service",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to thresholds config file (YAML or JSON); built-in defaults when empty",
			EnvVars: []string{"WARDEN_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"WARDEN_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format: json or text",
			Value:   "json",
			EnvVars: []string{"WARDEN_LOG_FORMAT"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		evaluateScoresCmd,
		checkConfigCmd,
		historyCmd,
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context, writer io.Writer) (*slog.Logger, error) {
	return cliutil.SetupLogger(writer, cctx.String("log-level"), cctx.String("log-format"))
}

// Loads and validates the thresholds config. An invalid config is fatal.
func loadConfig(cctx *cli.Context, logger *slog.Logger) (config.Config, error) {
	p := cctx.String("config")
	cfg, err := config.LoadFile(p)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	if p != "" {
		logger.Info("loaded thresholds config", "path", p)
	}
	return cfg, nil
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the moderation API service",
	Flags: append(storeFlags(),
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":4100",
			EnvVars: []string{"WARDEN_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":4101",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
	),
	Action: func(cctx *cli.Context) error {
		logger, err := configLogger(cctx, os.Stdout)
		if err != nil {
			return err
		}
		shutdownOTEL, err := configOTEL("warden")
		if err != nil {
			return err
		}
		defer shutdownOTEL()

		cfg, err := loadConfig(cctx, logger)
		if err != nil {
			return err
		}
		eng, cleanup, err := buildEngine(cctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		srv := NewServer(eng, Config{
			Logger: logger,
			Bind:   cctx.String("bind"),
		})

		// prometheus HTTP endpoint: /metrics
		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		return srv.RunAPI()
	},
}
