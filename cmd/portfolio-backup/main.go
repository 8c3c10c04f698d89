package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maynagashev/portfolio-backup/internal/cli"
)

// Переменные для версии и даты сборки, устанавливаются через ldflags.
//
//nolint:gochecknoglobals // Устанавливаются через ldflags при сборке
var (
	version    = "dev"
	buildDate  = "unknown"
	commitHash = "N/A"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.New(fmt.Sprintf("%s (build %s, commit %s)", version, buildDate, commitHash), os.Stdout, os.Stdin)
	if err := app.Run(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, cli.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}
