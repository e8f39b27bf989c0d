// Command auditlog consumes auth audit events from RabbitMQ and appends them
// to a log file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iliyamo/chat-auth/internal/config"
	"github.com/iliyamo/chat-auth/internal/logging"
	"github.com/iliyamo/chat-auth/internal/queue"
)

func main() {
	_ = godotenv.Load()

	log, err := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	qc := config.LoadQueueConfig()
	if err := os.MkdirAll(qc.LogDir, 0o755); err != nil {
		log.Error("create log dir", "dir", qc.LogDir, "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &queue.Consumer{URL: qc.URL, Queue: qc.Queue, Dir: qc.LogDir, Log: log}
	log.Info("audit consumer started", "queue", qc.Queue, "dir", qc.LogDir)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("audit consumer stopped", "err", err)
		os.Exit(1)
	}
	log.Info("audit consumer stopped")
}
