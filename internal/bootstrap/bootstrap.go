package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"cloud.google.com/go/firestore"
	"firebase.google.com/go/v4/auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/GregMSThompson/agent-bridge/internal/agentstream"
	bedrockclient "github.com/GregMSThompson/agent-bridge/internal/client/bedrock"
	"github.com/GregMSThompson/agent-bridge/internal/config"
	"github.com/GregMSThompson/agent-bridge/internal/observability"
	"github.com/GregMSThompson/agent-bridge/pkg/logger"
)

type Bootstrap struct {
	Log          *slog.Logger
	Firestore    *firestore.Client
	Firebase     *auth.Client
	AgentAdapter *bedrockclient.Adapter
	Decoder      *agentstream.Decoder
	History      History
	Registry     *prometheus.Registry
	Metrics      *observability.Metrics

	closers []func() error
}

func Run(cfg *config.Config) (*Bootstrap, error) {
	return RunWithLogger(cfg, logger.New(cfg.LogLevel, logger.NewCloudRunHandler))
}

// RunWithLogger is Run for callers that own stdout, such as the CLI.
func RunWithLogger(cfg *config.Config, log *slog.Logger) (*Bootstrap, error) {
	applicationCtx := context.Background()
	bs := new(Bootstrap)

	bs.Log = log
	if err := cfg.Validate(); err != nil {
		return bs, err
	}

	bs.Registry = prometheus.NewRegistry()
	bs.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bs.Metrics = observability.NewMetrics(bs.Registry)

	var opts []agentstream.Option
	if cfg.ConcatChunks {
		opts = append(opts, agentstream.WithConcatenatedChunks())
	}
	bs.Decoder = agentstream.New(opts...)

	creds, err := bs.InitAWSCredentials(applicationCtx, cfg)
	if err != nil {
		return bs, err
	}
	bs.AgentAdapter, err = bedrockclient.NewAdapter(bs.Log, creds, bedrockclient.Options{
		Region:       cfg.AWSRegion,
		AgentID:      cfg.AgentID,
		AgentAliasID: cfg.AgentAliasID,
		BaseURL:      cfg.AgentEndpoint,
		Timeout:      cfg.AgentTimeout,
	})
	if err != nil {
		return bs, err
	}

	bs.History, err = bs.InitHistory(applicationCtx, cfg)
	if err != nil {
		return bs, err
	}

	if cfg.FirebaseAuth {
		bs.Firebase, err = InitFirebase(applicationCtx, cfg.ProjectID)
		if err != nil {
			return bs, err
		}
	}

	return bs, nil
}

// Close releases clients in reverse order of creation.
func (bs *Bootstrap) Close() error {
	var errs []error
	for i := len(bs.closers) - 1; i >= 0; i-- {
		if err := bs.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	bs.closers = nil
	return errors.Join(errs...)
}
