package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"evenup_web/internal/cli"
	"evenup_web/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, config.Load()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
