package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rd-agent/backend/internal/cache"
	"github.com/rd-agent/backend/internal/email"
	"github.com/rd-agent/backend/internal/flags"
	"github.com/rd-agent/backend/internal/queue"
	"github.com/rd-agent/backend/internal/storage"
	"github.com/rd-agent/backend/internal/unpaywall"
	"github.com/rd-agent/backend/internal/util"
	"github.com/rd-agent/backend/pkg/ai/provider"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/leaselock"
	"github.com/rd-agent/backend/pkg/logger"
	"github.com/rd-agent/backend/pkg/logger/console"
	"github.com/rd-agent/backend/pkg/triage"
	"github.com/rd-agent/backend/pkg/loader/pdf"
	"github.com/rd-agent/backend/pkg/loader/web"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Format: util.GetEnvString("LOG_FORMAT", "text"),
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	store, err := storage.NewStoreFromEnv(ctx)
	if err != nil {
		logger.Fatal("Failed to create S3 store", "err", err)
	}

	aiClient, err := provider.FromEnv()
	if err != nil {
		logger.Fatal("Failed to create AI client", "err", err)
	}

	pgConn, err := pgdb.NewPool(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	projectCache, err := cache.NewFromEnv(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to cache", "err", err)
	}
	defer projectCache.Close()

	featureFlags := flags.FromEnv()
	logger.Info("Feature flags", "flags", featureFlags)

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}
	publisher := queue.NewChannelPublisher(ch)

	triageService := triage.NewService(triage.NewServiceParams{
		Store:          triage.NewPgStore(pgConn),
		AI:             aiClient,
		Web:            web.NewTextLoader(nil),
		PDF:            pdf.NewTextLoader(store),
		Cache:          projectCache,
		Notifier:       queue.StatusNotifier{Publisher: publisher},
		Flags:          featureFlags,
		Model:          util.GetEnv("AI_TRIAGE_MODEL"),
		MaxPaperTokens: util.GetEnvInt("TRIAGE_MAX_PAPER_TOKENS", triage.DefaultMaxPaperTokens),
	})

	worker := &queue.Worker{
		Store:        pgdb.New(pgConn),
		Triage:       triageService,
		Locks:        leaselock.New(pgConn),
		AI:           aiClient,
		Publisher:    publisher,
		Cache:        projectCache,
		Flags:        featureFlags,
		AppBaseURL:   util.GetEnvString("APP_BASE_URL", "http://localhost:3000"),
		PDFSource:    unpaywall.NewClientFromEnv(),
		Objects:      store,
		SummaryModel: util.GetEnv("AI_SUMMARY_MODEL"),
	}

	if featureFlags.EmailNotifications {
		mailer, err := email.NewSendGridClient(email.ConfigFromEnv())
		if err != nil {
			logger.Warn("Email notifications enabled but mailer is not configured", "err", err)
		} else {
			worker.Mailer = mailer
		}
	}

	logger.Info("Listening for messages")

	// A single consumer channel with prefetch=1 delivers one message at a
	// time across all queues.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				if err := worker.Process(ctx, qm.queueName, qm.msg.Body); err != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", err)
					queue.RetryOrDeadLetter(consumerCh, qm.msg, qm.queueName)
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				metrics := aiClient.GetMetrics()
				logger.Info(
					"AI Metrics",
					"requests", metrics.Requests,
					"failures", metrics.Failures,
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration", clock(time.Duration(metrics.DurationMs)*time.Millisecond),
				)
				logger.Info("Processing time", "duration", clock(time.Since(startTime)))
				logger.Info("Waiting for next message")
				aiClient.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
