package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/tensorgrid/internal/app"
	"github.com/specialistvlad/tensorgrid/internal/cli"
	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/watch"
)

// main is the entrypoint for the tensorgrid application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()

	// The real main function handles errors and exit codes.
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) (err error) {
	cmd, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	if cmd.Name == cli.CommandWatch {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		return watch.Watch(ctxlog.WithLogger(ctx, logger), outW, cmd.Watch)
	}

	// The app panics on critical startup errors, so we recover here to
	// return a clean error to the caller.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	tensorgrid := app.NewApp(outW, cmd.Config)
	defer tensorgrid.Close()

	switch cmd.Name {
	case cli.CommandCompile:
		_, err = tensorgrid.CompileFile(cmd.GraphPath)
		return err
	default:
		return tensorgrid.Serve(ctx, nil)
	}
}
