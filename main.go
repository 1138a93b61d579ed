package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"github.com/dutchsloot84/AgentOps-Mock/features/chat"
	"github.com/dutchsloot84/AgentOps-Mock/features/job"
	"github.com/dutchsloot84/AgentOps-Mock/internal/app"
	"github.com/dutchsloot84/AgentOps-Mock/internal/config"
	applog "github.com/dutchsloot84/AgentOps-Mock/internal/logger"
)

func main() {
	// Logs go to stderr so command output on stdout stays machine readable.
	logger := applog.New(os.Stderr, slog.LevelInfo)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, logger)
	stop()
	os.Exit(code)
}

// run serves the agent API until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var searcher chat.Searcher
	stack, err := app.BuildStack(ctx, cfg)
	if err != nil {
		logger.Error("retrieval unavailable, search requests will fail", "error", err)
	} else {
		defer stack.Close()
		searcher = stack.Search
	}

	var jobs *job.Service
	if cfg.EnableReindex {
		deps, err := app.Bootstrap(ctx, cfg)
		if err != nil {
			return fmt.Errorf("bootstrap reindex: %w", err)
		}
		defer deps.Close()
		jobs = job.NewService(job.NewPostgresRepo(deps.DB), deps.NSQProducer, logger)
	}

	return app.New(cfg, searcher, jobs).Run(ctx)
}

// runWorker consumes reindex requests until ctx is cancelled.
func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	stack, err := app.BuildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	jobs := job.NewService(job.NewPostgresRepo(deps.DB), deps.NSQProducer, logger)
	handler := newReindexHandler(stack, jobs, cfg)

	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = 1
	consumer, err := nsq.NewConsumer(config.TopicReindex, config.ChannelReindexWorker, nsqCfg)
	if err != nil {
		return fmt.Errorf("nsq consumer: %w", err)
	}
	consumer.AddHandler(handler)
	if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		return fmt.Errorf("connect to nsqlookupd: %w", err)
	}
	logger.Info("reindex worker started", "topic", config.TopicReindex, "channel", config.ChannelReindexWorker)

	<-ctx.Done()
	consumer.Stop()
	<-consumer.StopChan
	return nil
}
