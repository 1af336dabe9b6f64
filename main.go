package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/yumyai/habconn/logger"
	"github.com/yumyai/habconn/pkg/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {

	if err := logger.InitLogger(zapcore.InfoLevel); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		logger.Error("Run failed:", zap.String("error message", err.Error()))
		logger.Sync()
		stop()
		os.Exit(1)
	}
}
