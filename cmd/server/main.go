package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Leegeev/topicbroker/pkg/config"
	"github.com/Leegeev/topicbroker/pkg/logging"
)

func main() {
	// 1) конфиг
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error occurred while loading config: %v\n", err)
		os.Exit(1)
	}

	// 2) логгер
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	// 3) контекст, отменяется по сигналу
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4) брокер и эндпоинт метрик
	srv, err := newServer(cfg, logger)
	if err != nil {
		logger.Error("server failed to start", "error", err)
		os.Exit(1)
	}

	// 5) работаем до сигнала, затем дренируем соединения
	if err := srv.run(ctx); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("all done, exiting")
}
