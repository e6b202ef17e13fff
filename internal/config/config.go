package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	HistoryFirestore = "firestore"
	HistoryBadger    = "badger"
	HistoryMemory    = "memory"
	HistoryNone      = "none"
)

type Config struct {
	ProjectID string `env:"PROJECTID" yaml:"projectId"`
	Region    string `env:"REGION" yaml:"region"`
	LogLevel  string `env:"LOGLEVEL" envDefault:"info" yaml:"logLevel"`
	Port      string `env:"PORT" envDefault:"8080" yaml:"port"`

	AWSRegion    string        `env:"AWSREGION" yaml:"awsRegion"`
	AgentID      string        `env:"AGENTID" yaml:"agentId"`
	AgentAliasID string        `env:"AGENTALIASID" yaml:"agentAliasId"`
	AgentTimeout time.Duration `env:"AGENTTIMEOUT" envDefault:"60s" yaml:"agentTimeout"`
	ConcatChunks bool          `env:"CONCATCHUNKS" yaml:"concatChunks"`

	// AgentEndpoint overrides the regional runtime URL, mostly for tests.
	AgentEndpoint string `env:"AGENTENDPOINT" yaml:"agentEndpoint"`

	// AWSCredentialsSecret names a Secret Manager secret holding the AWS key
	// pair. When empty the default AWS credential chain is used.
	AWSCredentialsSecret string `env:"AWSCREDENTIALSSECRET" yaml:"awsCredentialsSecret"`

	HistoryBackend string        `env:"HISTORYBACKEND" envDefault:"memory" yaml:"historyBackend"`
	HistoryPath    string        `env:"HISTORYPATH" envDefault:".agent-history" yaml:"historyPath"`
	HistoryLimit   int           `env:"HISTORYLIMIT" envDefault:"50" yaml:"historyLimit"`
	HistoryTTL     time.Duration `env:"HISTORYTTL" envDefault:"720h" yaml:"historyTTL"`
	KMSKeyName     string        `env:"KMSKEYNAME" yaml:"kmsKeyName"`

	FirebaseAuth bool `env:"FIREBASEAUTH" yaml:"firebaseAuth"`
}

// New reads the environment, applying defaults for unset variables.
func New() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// LoadFile overlays the values present in a YAML file onto cfg.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.AWSRegion == "" {
		return fmt.Errorf("AWSREGION is required")
	}
	if c.AgentID == "" || c.AgentAliasID == "" {
		return fmt.Errorf("AGENTID and AGENTALIASID are required")
	}
	if c.AgentTimeout <= 0 {
		return fmt.Errorf("AGENTTIMEOUT must be positive")
	}

	switch c.HistoryBackend {
	case HistoryFirestore:
		if c.ProjectID == "" {
			return fmt.Errorf("PROJECTID is required for the firestore history backend")
		}
	case HistoryBadger:
		if c.HistoryPath == "" {
			return fmt.Errorf("HISTORYPATH is required for the badger history backend")
		}
	case HistoryMemory, HistoryNone:
	default:
		return fmt.Errorf("unknown HISTORYBACKEND %q", c.HistoryBackend)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("HISTORYLIMIT must not be negative")
	}

	if c.KMSKeyName != "" && c.HistoryBackend == HistoryNone {
		return fmt.Errorf("KMSKEYNAME is set but history is disabled")
	}
	if (c.AWSCredentialsSecret != "" || c.FirebaseAuth) && c.ProjectID == "" {
		return fmt.Errorf("PROJECTID is required for Secret Manager credentials and Firebase auth")
	}
	return nil
}
