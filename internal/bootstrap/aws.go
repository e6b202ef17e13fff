package bootstrap

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/GregMSThompson/agent-bridge/internal/config"
	"github.com/GregMSThompson/agent-bridge/internal/store"
)

// InitAWSCredentials prefers the Secret Manager key pair when one is
// configured and falls back to the default AWS chain (env, shared config,
// role).
func (bs *Bootstrap) InitAWSCredentials(ctx context.Context, cfg *config.Config) (aws.CredentialsProvider, error) {
	if cfg.AWSCredentialsSecret != "" {
		client, err := InitSecretManager(ctx)
		if err != nil {
			return nil, err
		}
		bs.closers = append(bs.closers, client.Close)
		return aws.NewCredentialsCache(store.NewSecretCredentials(client, cfg.ProjectID, cfg.AWSCredentialsSecret)), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}
	return awsCfg.Credentials, nil
}
