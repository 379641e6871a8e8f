// Package bootstrap builds the AWS-backed collaborators shared by the relay
// server and the Lambda entrypoint.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"translation-relay/internal/audit"
	"translation-relay/internal/config"
	"translation-relay/internal/integrations/completion"
	"translation-relay/internal/integrations/paramstore"
	"translation-relay/internal/repository"
)

// loadAWSConfig is swapped in tests.
var loadAWSConfig = func(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

// CompletionClient uses the static key when configured; otherwise the key is
// read from SSM Parameter Store on first use.
func CompletionClient(ctx context.Context, cfg config.CompletionConfig) (*completion.Client, error) {
	opts := []completion.Option{
		completion.WithBaseURL(cfg.BaseURL),
		completion.WithTimeout(cfg.Timeout),
	}
	if cfg.APIKey != "" {
		opts = append(opts, completion.WithAPIKey(cfg.APIKey))
		return completion.NewClient(opts...)
	}

	awsCfg, err := loadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load AWS config: %w", err)
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create SSM client: %w", err)
	}
	opts = append(opts, completion.WithTokenParameter(ps, cfg.KeyParam))
	return completion.NewClient(opts...)
}

// AuditStoreOpener returns nil when no audit table is configured, which keeps
// the audit sink local-only.
func AuditStoreOpener(cfg config.AuditConfig) audit.Opener {
	if cfg.Table == "" {
		return nil
	}
	return func(ctx context.Context) (audit.Store, error) {
		awsCfg, err := loadAWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load AWS config: %w", err)
		}
		client := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
			if cfg.StoreURL != "" {
				o.BaseEndpoint = aws.String(cfg.StoreURL)
			}
		})
		store, err := repository.NewAuditStore(client, cfg.Table, repository.WithRetention(cfg.Retention))
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}
