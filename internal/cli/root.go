package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/GregMSThompson/agent-bridge/internal/bootstrap"
	"github.com/GregMSThompson/agent-bridge/internal/config"
	"github.com/GregMSThompson/agent-bridge/internal/dto"
	"github.com/GregMSThompson/agent-bridge/internal/middleware"
	"github.com/GregMSThompson/agent-bridge/internal/services"
	"github.com/GregMSThompson/agent-bridge/pkg/logger"
)

type agentService interface {
	Ask(ctx context.Context, owner string, req dto.AgentRequest) (dto.AgentAnswer, error)
	History(ctx context.Context, owner, sessionID string, limit *int) (dto.AgentHistoryResponse, error)
}

// runtime is what a command needs to talk to the agent.
type runtime struct {
	svc   agentService
	log   *slog.Logger
	close func() error
}

type buildFunc func(cmd *cobra.Command, cfg *config.Config) (*runtime, error)

type options struct {
	configPath string
	logLevel   string
	owner      string
	build      buildFunc
}

// NewRootCommand returns the agentctl command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{build: buildService})
}

func newRootCommand(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "agentctl",
		Short:         "Ask the configured agent and inspect its responses",
		Long: `Ask the configured agent and inspect its responses.

History is kept in a local Badger store under HISTORYPATH unless
HISTORYBACKEND (or historyBackend in --config) selects another backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.configPath, "config", "", "path to a YAML file overlaying environment configuration")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&o.owner, "owner", middleware.AnonymousOwner, "history owner")

	root.AddCommand(newAskCommand(o), newDecodeCommand(), newHistoryCommand(o))
	return root
}

// Execute runs agentctl and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	// each command is its own process, so history must outlive it
	if os.Getenv("HISTORYBACKEND") == "" {
		cfg.HistoryBackend = config.HistoryBadger
	}
	if o.configPath != "" {
		if err := cfg.LoadFile(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

func (o *options) runtime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return o.build(cmd, cfg)
}

func buildService(cmd *cobra.Command, cfg *config.Config) (*runtime, error) {
	log := logger.New(cfg.LogLevel, func(level slog.Level) slog.Handler {
		return slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	})
	bs, err := bootstrap.RunWithLogger(cfg, log)
	if err != nil {
		bs.Close()
		return nil, err
	}
	return &runtime{
		svc:   services.NewAgentService(bs.AgentAdapter, bs.Decoder, bs.History, bs.Metrics, cfg.HistoryTTL, cfg.HistoryLimit),
		log:   log,
		close: bs.Close,
	}, nil
}
