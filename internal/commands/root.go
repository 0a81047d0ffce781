// Package commands provides the chat CLI.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"chat-exchange/internal/config"
	"chat-exchange/internal/domain"
	"chat-exchange/internal/tui"
)

type app struct {
	deps    *Dependencies
	backend string
	timeout time.Duration
	logFile string
}

// NewRootCmd builds the command tree around deps.
func NewRootCmd(deps *Dependencies) *cobra.Command {
	a := &app{deps: deps}

	var project projectFlags
	root := &cobra.Command{
		Use:   "chat",
		Short: "Chat with an echo, completion or prediction backend",
		Long: `chat keeps a conversation with one of three backends and shows it in the
terminal. The backend is chosen with BACKEND (echo, completion, prediction)
or --backend.

Examples:
  chat                              Start the interactive chat
  chat send "hello"                 Send one message and print the reply
  chat serve-echo --addr :3000      Serve the echo endpoint locally
  chat audit 3f2a...                Show the audited turns of a session`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context(), project.context())
		},
	}
	root.PersistentFlags().StringVarP(&a.backend, "backend", "b", "", "Backend to use: echo, completion or prediction (overrides BACKEND)")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "Per-request timeout (overrides TIMEOUT)")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Write logs to this file while the terminal UI runs")
	project.register(root)

	root.AddCommand(newTUICmd(a))
	root.AddCommand(newSendCmd(a))
	root.AddCommand(newServeEchoCmd(a))
	root.AddCommand(newAuditCmd(a))
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := NewRootCmd(NewDependencies()).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newTUICmd(a *app) *cobra.Command {
	var project projectFlags
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive chat",
		Long: `Start the interactive chat.

Type /new (or press ctrl+n) to start over; type exit or press ctrl+c to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context(), project.context())
		},
	}
	project.register(cmd)
	return cmd
}

type projectFlags struct {
	dbConfig    string
	description string
}

func (p *projectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.dbConfig, "db-config", "", "Database configuration of the project")
	cmd.Flags().StringVar(&p.description, "project", "", "Short project description")
}

func (p *projectFlags) context() domain.ProjectContext {
	return domain.ProjectContext{DatabaseConfig: p.dbConfig, ProjectDescription: p.description}
}

// config reads the environment and applies flag overrides.
func (a *app) config() (config.Config, error) {
	return config.Load(func(key string) string {
		switch {
		case key == "BACKEND" && a.backend != "":
			return a.backend
		case key == "TIMEOUT" && a.timeout != 0:
			return a.timeout.String()
		}
		return a.deps.Getenv(key)
	})
}

func (a *app) runTUI(ctx context.Context, project domain.ProjectContext) error {
	restore, err := redirectLogs(a.logFile)
	if err != nil {
		return err
	}
	defer restore()

	sess, cfg, err := a.session(ctx)
	if err != nil {
		return err
	}
	sess.SetProject(project)
	slog.Info("chat started", "session", sess.ID(), "backend", cfg.Backend)
	return a.deps.RunTUI(ctx, tui.New(ctx, sess, cfg.Timeout))
}

// redirectLogs sends slog output to path, or discards it, while the terminal
// UI owns the screen. The returned func restores the previous logger.
func redirectLogs(path string) (func(), error) {
	prev := slog.Default()
	var (
		w io.Writer = io.Discard
		f *os.File
	)
	if path != "" {
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, nil)))
	return func() {
		slog.SetDefault(prev)
		if f != nil {
			_ = f.Close()
		}
	}, nil
}
