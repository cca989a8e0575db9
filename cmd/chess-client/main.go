// Command chess-client plays against the remote chess service from a terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-client/internal/adapter/termpresenter"
	"github.com/park285/cheese-chess-client/internal/clientbuilder"
	"github.com/park285/cheese-chess-client/internal/config"
	"github.com/park285/cheese-chess-client/internal/obslog"
	"github.com/park285/cheese-chess-client/internal/render"
)

var openTerminal = readline.NewEx

func main() {
	if err := obslog.InitFromEnv(obslog.Defaults{Console: false}); err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	deps, err := clientbuilder.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("client_init_failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "init error: %v\n", err)
		os.Exit(1)
	}
	if err := run(ctx, cfg, deps, logger); err != nil {
		fmt.Fprintf(os.Stderr, "%s%s%s\n", render.Red, err.Error(), render.Reset)
		os.Exit(1)
	}
	logger.Info("client_exit")
}

// run owns deps and closes them before returning.
func run(ctx context.Context, cfg *config.AppConfig, deps *clientbuilder.Deps, logger *zap.Logger) error {
	defer deps.Close()

	color := os.Getenv("NO_COLOR") == ""
	rl, err := openTerminal(&readline.Config{
		Prompt:          render.Prompt("chess"),
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		logger.Error("terminal_init_failed", zap.Error(err))
		return fmt.Errorf("terminal: %w", err)
	}
	defer rl.Close()

	view := termpresenter.New(rl.Stdout(), deps.Messages, color)
	deps.Controller.Subscribe(view.Observe)
	sh := &shell{
		ctrl:      deps.Controller,
		view:      view,
		exportDir: cfg.ExportDir,
		color:     color,
		logger:    logger,
	}
	if deps.Archive != nil {
		sh.archive = deps.Archive
	}

	view.Say("term.welcome", map[string]any{"BaseURL": deps.API.BaseURL()}, "Chess client for "+deps.API.BaseURL()+". Type 'help' for commands.")
	sh.Execute(ctx, "new")

	for ctx.Err() == nil {
		rl.SetPrompt(buildPrompt(deps.Controller.State(), color))

		line, err := rl.Readline()
		if err == io.EOF {
			break
		}
		if err == readline.ErrInterrupt {
			if strings.TrimSpace(line) == "" {
				break
			}
			continue
		}
		if err != nil {
			continue
		}
		if !sh.Execute(ctx, line) {
			break
		}
	}
	return nil
}
