package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Leegeev/topicbroker/pkg/logging"
)

var (
	addr = flag.String("addr", "localhost:8080", "broker address")
	mode = flag.String("mode", "sub", "pub or sub")
	key  = flag.String("key", "default", "topic, or a comma separated list of topics for sub")
	msg  = flag.String("msg", "", "message for pub")
)

func main() {
	flag.Parse()
	logger := logging.New(os.Stderr, "info", "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	topics := splitTopics(*key)
	if len(topics) == 0 {
		logger.Error("no topic given")
		os.Exit(2)
	}

	// решаем, что делаем
	var err error
	switch *mode {
	case "pub":
		err = runPublish(ctx, *addr, topics[0], *msg, os.Stdout)
	case "sub":
		err = runSubscribe(ctx, *addr, topics, os.Stdout)
	default:
		err = fmt.Errorf("unknown mode %q: use pub or sub", *mode)
	}
	if err != nil {
		logger.Error("client failed", "error", err)
		os.Exit(1)
	}
}
