package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/oakmarket/vigil/aiclient"
	"github.com/oakmarket/vigil/countstore"
	"github.com/oakmarket/vigil/engine"
	"github.com/oakmarket/vigil/recheckq"
	"github.com/oakmarket/vigil/rulestore"
	"github.com/oakmarket/vigil/store"
	"github.com/oakmarket/vigil/sweep"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	logger    *slog.Logger
	store     *store.Store
	queue     recheckq.Queue
	engine    *engine.Engine
	scheduler *sweep.Scheduler
	worker    *sweep.Worker
}

type Config struct {
	DatabaseURL      string
	RulesDatabaseURL string
	RedisURL         string
	MaxDBConnections int

	ModelHost      string
	ModelAPIKey    string
	EmbedModel     string
	ChatModel      string
	ModelRateLimit float64

	SweepInterval  time.Duration
	RecheckMaxAge  time.Duration
	SweepBatchSize int

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	AlertSMSTo       string
	AlertVoiceTo     string
	SlackWebhookURL  string

	Logger *slog.Logger
}

func NewServer(ctx context.Context, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	db, err := store.SetupDatabase(config.DatabaseURL, config.MaxDBConnections)
	if err != nil {
		return nil, err
	}
	st, err := store.NewStore(db)
	if err != nil {
		return nil, err
	}

	var rules rulestore.RuleStore
	if config.RulesDatabaseURL != "" {
		pg, err := rulestore.NewPostgresRuleStore(ctx, config.RulesDatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("initializing pgvector rule store: %w", err)
		}
		rules = pg
	} else {
		logger.Warn("no rules database configured, using empty in-memory rule corpus; all findings will be ungrounded")
		rules = rulestore.NewMemRuleStore()
	}

	var counters countstore.CountStore
	var queue recheckq.Queue
	if config.RedisURL != "" {
		// check redis connection
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		if _, err := redis.NewClient(opt).Ping(ctx).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}

		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt

		q, err := recheckq.NewRedisQueue(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis recheck queue: %v", err)
		}
		queue = q
	} else {
		counters = countstore.NewMemCountStore()
		queue = recheckq.NewMemQueue()
	}

	ai := aiclient.NewClient(aiclient.Config{
		Host:       config.ModelHost,
		APIKey:     config.ModelAPIKey,
		EmbedModel: config.EmbedModel,
		ChatModel:  config.ChatModel,
		RateLimit:  config.ModelRateLimit,
		Logger:     logger,
	})

	var notifiers []engine.Notifier
	if config.TwilioAccountSID != "" && config.TwilioAuthToken != "" {
		logger.Info("configuring twilio alerting", "sms", config.AlertSMSTo != "", "voice", config.AlertVoiceTo != "")
		notifiers = append(notifiers, &engine.TwilioNotifier{
			AccountSID: config.TwilioAccountSID,
			AuthToken:  config.TwilioAuthToken,
			FromNumber: config.TwilioFromNumber,
			SMSTo:      config.AlertSMSTo,
			VoiceTo:    config.AlertVoiceTo,
		})
	}
	if config.SlackWebhookURL != "" {
		logger.Info("configuring slack alert mirroring")
		notifiers = append(notifiers, &engine.SlackNotifier{
			SlackWebhookURL: config.SlackWebhookURL,
		})
	}

	eng := &engine.Engine{
		Logger:    logger,
		Store:     st,
		Judge:     ai,
		Router:    engine.DefaultKeywordRouter(),
		Tags:      engine.NoopTagExtractor{},
		Agents:    engine.DefaultAgents(ai, rules, ai, logger),
		Counters:  counters,
		Notifiers: notifiers,
	}

	s := &Server{
		logger: logger,
		store:  st,
		queue:  queue,
		engine: eng,
		scheduler: &sweep.Scheduler{
			Logger:    logger.With("subsystem", "scheduler"),
			Store:     st,
			Queue:     queue,
			Interval:  config.SweepInterval,
			MaxAge:    config.RecheckMaxAge,
			BatchSize: config.SweepBatchSize,
		},
		worker: &sweep.Worker{
			Logger: logger.With("subsystem", "worker"),
			Queue:  queue,
			Engine: eng,
		},
	}

	return s, nil
}

// EnqueueRecheck queues a listing for a scan ahead of the next scheduler
// sweep. Duplicate entries are harmless.
func (s *Server) EnqueueRecheck(ctx context.Context, listingID string) error {
	return s.queue.Enqueue(ctx, listingID)
}

// CreateListing persists a new listing and immediately queues its first scan,
// so new inventory never waits for a staleness sweep.
func (s *Server) CreateListing(ctx context.Context, l *store.Listing) error {
	if err := s.store.CreateListing(ctx, l); err != nil {
		return err
	}
	return s.EnqueueRecheck(ctx, l.ID)
}

// UpdateListing saves listing edits and queues a rescan of the new content.
func (s *Server) UpdateListing(ctx context.Context, l *store.Listing) error {
	if err := s.store.SaveListing(ctx, l); err != nil {
		return err
	}
	return s.EnqueueRecheck(ctx, l.ID)
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// Run starts the scheduler and worker loops and blocks until ctx is done and
// both have drained.
func (s *Server) Run(ctx context.Context) error {
	errs := make(chan error, 2)
	go func() {
		errs <- s.scheduler.Run(ctx)
	}()
	go func() {
		errs <- s.worker.Run(ctx)
	}()

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			return err
		}
	}
	s.logger.Info("vigil daemon stopped")
	return nil
}
