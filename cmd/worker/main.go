package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bridgewise/backend/internal/bootstrap"
	"github.com/bridgewise/backend/internal/config"
	"github.com/bridgewise/backend/internal/queue"
	"github.com/bridgewise/backend/internal/timing"
	"github.com/bridgewise/backend/internal/util"
	"github.com/bridgewise/backend/pkg/logger"
	"github.com/bridgewise/backend/pkg/logger/console"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{}))
		logger.Fatal("Invalid configuration", "err", err)
	}

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		Format: cfg.LogFormat,
	})
	logger.Init(consoleLogger)

	url := cfg.Queue.URL()
	if url == "" {
		logger.Fatal("RABBITMQ_HOST is required for the worker")
	}

	res, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialise resources", "err", err)
	}
	defer res.Close(context.Background())

	if port := util.GetEnv("METRICS_PORT"); port != "" {
		go func() {
			logger.Info("Serving metrics", "port", port)
			if err := http.ListenAndServe(":"+port, promhttp.Handler()); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics listener stopped", "err", err)
			}
		}()
	}

	// Init rabbitmq
	conn := queue.Init(url)
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	queues := []string{queue.RecomputeQueue}
	if err := queue.SetupQueues(ch, queues); err != nil {
		logger.Fatal("Failed to setup queues", "err", err)
	}

	job, err := res.NewJob(queue.NewArtifactPublisher(ch), func(p util.RunProgress) {
		logger.Info("Precompute progress", "step", p.Step, "detail", p.Detail, "percentage", p.Percentage)
	})
	if err != nil {
		logger.Fatal("Failed to create precompute job", "err", err)
	}

	// A run rebuilds the whole graph, so only one message is in flight.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.RecomputeQueue,
		queue.RecomputeQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.RecomputeQueue, "err", err)
	}

	logger.Info("Listening for messages")

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed", "queue", queue.RecomputeQueue)
					stop()
					return
				}

				startTime := time.Now()
				logger.Info("Received message", "queue", queue.RecomputeQueue)

				processingErr := queue.ProcessRecomputeMessage(ctx, job, cfg, msg.Body)
				if processingErr != nil {
					logger.Error("Error processing message", "queue", queue.RecomputeQueue, "err", processingErr)
					queue.HandleProcessingError(ctx, consumerCh, msg, queue.RecomputeQueue)
				} else {
					if err := msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", queue.RecomputeQueue)
				}

				if res.AIMetrics != nil {
					metrics := res.AIMetrics.GetMetrics()
					logger.Info(
						"AI Metrics",
						"input_tokens", metrics.InputTokens,
						"total_tokens", metrics.TotalTokens,
						"requests", metrics.Requests,
						"duration", timing.Format(time.Duration(metrics.DurationMs)*time.Millisecond),
					)
					res.AIMetrics.ResetMetrics()
				}

				logger.Info("Processing time", "duration", timing.Format(time.Since(startTime)))
				logger.Info("Waiting for next message")
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}
