// Package main starts the penguinboard dashboard process.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"penguinboard/internal/cmd/dashboard"
	"penguinboard/internal/platform/config"
)

func main() {
	cfg, err := dashboard.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dashboard.Run(ctx, cfg); err != nil {
		config.Exitf("penguinboard: %v", err)
	}
}
