package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

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
		Name:    "vigil",
		Usage:   "marketplace trust-and-safety scan daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string (sqlite:// or postgres://)",
			Value:   "sqlite://data/vigil/vigil.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "rules-database-url",
			Usage:   "postgres connection string for the pgvector rule corpus",
			EnvVars: []string{"RULES_DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection for queue and counters (eg: redis://localhost:6379/0)",
			EnvVars: []string{"VIGIL_REDIS_URL", "REDIS_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		scanCmd,
	}

	return app.Run(args)
}

func configureLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

var modelFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "model-host",
		Usage:   "base URL of OpenAI-compatible inference API",
		Value:   "https://api.openai.com",
		EnvVars: []string{"VIGIL_MODEL_HOST"},
	},
	&cli.StringFlag{
		Name:    "model-api-key",
		EnvVars: []string{"VIGIL_MODEL_API_KEY", "OPENAI_API_KEY"},
	},
	&cli.StringFlag{
		Name:    "embed-model",
		Value:   "text-embedding-3-small",
		EnvVars: []string{"VIGIL_EMBED_MODEL"},
	},
	&cli.StringFlag{
		Name:    "chat-model",
		Value:   "gpt-4o-mini",
		EnvVars: []string{"VIGIL_CHAT_MODEL"},
	},
	&cli.Float64Flag{
		Name:    "model-rate-limit",
		Usage:   "max inference API requests per second",
		Value:   5,
		EnvVars: []string{"VIGIL_MODEL_RATE_LIMIT"},
	},
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the scan daemon (scheduler, worker, metrics)",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"VIGIL_METRICS_LISTEN"},
		},
		&cli.DurationFlag{
			Name:    "sweep-interval",
			Usage:   "how often the scheduler sweeps for stale listings",
			Value:   time.Hour,
			EnvVars: []string{"VIGIL_SWEEP_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "recheck-max-age",
			Usage:   "listings scanned longer ago than this are re-queued",
			Value:   24 * time.Hour,
			EnvVars: []string{"VIGIL_RECHECK_MAX_AGE"},
		},
		&cli.IntFlag{
			Name:    "sweep-batch-size",
			Usage:   "max listings enqueued per sweep",
			Value:   100,
			EnvVars: []string{"VIGIL_SWEEP_BATCH_SIZE"},
		},
		&cli.StringFlag{
			Name:    "twilio-account-sid",
			EnvVars: []string{"TWILIO_ACCOUNT_SID"},
		},
		&cli.StringFlag{
			Name:    "twilio-auth-token",
			EnvVars: []string{"TWILIO_AUTH_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "twilio-from-number",
			EnvVars: []string{"TWILIO_FROM_NUMBER"},
		},
		&cli.StringFlag{
			Name:    "alert-sms-to",
			Usage:   "phone number receiving SMS alerts",
			EnvVars: []string{"VIGIL_ALERT_SMS_TO"},
		},
		&cli.StringFlag{
			Name:    "alert-voice-to",
			Usage:   "phone number receiving voice call alerts",
			EnvVars: []string{"VIGIL_ALERT_VOICE_TO"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "webhook for mirroring alerts to a slack channel",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
	}, modelFlags...),
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		logger := configureLogger()

		shutdownOTEL, err := configOTEL(ctx, "vigil")
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		defer shutdownOTEL()

		srv, err := NewServer(ctx, configFromFlags(cctx))
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		logger.Info("starting vigil daemon", "version", versioninfo.Short())
		return srv.Run(ctx)
	},
}

var scanCmd = &cli.Command{
	Name:      "scan",
	Usage:     "scan a single listing and exit",
	ArgsUsage: "<listing-id>",
	Flags:     modelFlags,
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return fmt.Errorf("expected exactly one listing ID argument")
		}
		ctx := context.Background()
		configureLogger()

		srv, err := NewServer(ctx, configFromFlags(cctx))
		if err != nil {
			return err
		}
		return srv.engine.ProcessListing(ctx, cctx.Args().First())
	},
}

func configFromFlags(cctx *cli.Context) Config {
	return Config{
		DatabaseURL:      cctx.String("database-url"),
		RulesDatabaseURL: cctx.String("rules-database-url"),
		RedisURL:         cctx.String("redis-url"),
		MaxDBConnections: cctx.Int("max-db-connections"),
		ModelHost:        cctx.String("model-host"),
		ModelAPIKey:      cctx.String("model-api-key"),
		EmbedModel:       cctx.String("embed-model"),
		ChatModel:        cctx.String("chat-model"),
		ModelRateLimit:   cctx.Float64("model-rate-limit"),
		SweepInterval:    cctx.Duration("sweep-interval"),
		RecheckMaxAge:    cctx.Duration("recheck-max-age"),
		SweepBatchSize:   cctx.Int("sweep-batch-size"),
		TwilioAccountSID: cctx.String("twilio-account-sid"),
		TwilioAuthToken:  cctx.String("twilio-auth-token"),
		TwilioFromNumber: cctx.String("twilio-from-number"),
		AlertSMSTo:       cctx.String("alert-sms-to"),
		AlertVoiceTo:     cctx.String("alert-voice-to"),
		SlackWebhookURL:  cctx.String("slack-webhook-url"),
	}
}
