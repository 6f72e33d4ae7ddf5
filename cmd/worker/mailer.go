package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caleslawncare/quote-gateway/internal/config"
	"github.com/caleslawncare/quote-gateway/internal/kafka"
	"github.com/caleslawncare/quote-gateway/internal/logger"
	"github.com/caleslawncare/quote-gateway/internal/mailer"
	"github.com/caleslawncare/quote-gateway/internal/metrics"
	"github.com/caleslawncare/quote-gateway/internal/worker"
)

var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Deliver emails queued by the kafka transport",
	RunE:  runMailer,
}

func runMailer(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) direct transport; queueing onto the topic we consume would loop
	if cfg.Worker.Transport == "kafka" {
		return fmt.Errorf("worker.transport cannot be kafka")
	}
	dispatcher, closeMail, err := mailer.Build(cfg.Worker.Transport, cfg, log)
	if err != nil {
		return fmt.Errorf("mail transport: %w", err)
	}
	defer func() { _ = closeMail() }()

	// 3) kafka consumer
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" {
		return fmt.Errorf("kafka.brokers and kafka.topic are required")
	}
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "quotegw-mailer"
	}

	consumer := kafka.NewConsumer(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.Topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewMailer(consumer, dispatcher, log)
	if cfg.Worker.Workers > 0 {
		w.Workers = cfg.Worker.Workers
	}
	if cfg.Kafka.DeadLetterTopic != "" {
		dlq := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic)
		defer dlq.Close()
		w.DeadLetter = dlq
	}

	// 4) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("mailer worker started",
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", groupID),
		zap.String("dead_letter_topic", cfg.Kafka.DeadLetterTopic),
		zap.Strings("transports", dispatcher.Names()),
		zap.Int("workers", w.Workers))

	return w.Run(ctx)
}
