// Package awssm backs the secret store contract with AWS Secrets Manager,
// which gives each secret name a versioned value history for free.
package awssm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sm "github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// Client is the slice of the Secrets Manager API this adapter uses. Narrowed
// to an interface so tests can exercise the adapter without AWS.
type Client interface {
	GetSecretValue(ctx context.Context, params *sm.GetSecretValueInput, optFns ...func(*sm.Options)) (*sm.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *sm.PutSecretValueInput, optFns ...func(*sm.Options)) (*sm.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *sm.CreateSecretInput, optFns ...func(*sm.Options)) (*sm.CreateSecretOutput, error)
}

// Config carries the AWS connection settings. Credentials are optional; when
// absent the default provider chain (environment, IAM role) applies.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Option configures a Store.
type Option func(*options)

type options struct {
	client Client
}

// WithClient sets a pre-configured Secrets Manager client. Primarily used for
// testing with fakes.
func WithClient(client Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// Store adapts AWS Secrets Manager to the acme.SecretStore contract.
type Store struct {
	client Client
	logger *slog.Logger
}

// New creates a Secrets Manager backed store.
func New(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		panic("awssm.New: received nil logger")
	}

	o := new(options)
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		if cfg.Region == "" {
			return nil, errors.New("awssm: region cannot be empty")
		}
		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			loadOpts = append(loadOpts,
				awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretAccessKey,
					"",
				)),
			)
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("awssm: failed to load AWS config: %w", err)
		}
		client = sm.NewFromConfig(awsCfg)
	}

	return &Store{
		client: client,
		logger: logger.With("secret_store", "awssm"),
	}, nil
}

// Get returns the current value of the named secret. A missing secret is
// reported as absence, not an error.
func (s *Store) Get(ctx context.Context, name string) (string, bool, error) {
	out, err := s.client.GetSecretValue(ctx, &sm.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("awssm: failed to get secret %q: %w", name, err)
	}
	if out.SecretString == nil {
		return "", true, nil
	}
	return *out.SecretString, true, nil
}

// Put writes a new version of the named secret, creating the secret on first
// use.
func (s *Store) Put(ctx context.Context, name, value string) error {
	_, err := s.client.PutSecretValue(ctx, &sm.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	})
	if err == nil {
		s.logger.Info("saved secret version", "secret", name)
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("awssm: failed to put secret %q: %w", name, err)
	}

	_, err = s.client.CreateSecret(ctx, &sm.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	})
	if err != nil {
		return fmt.Errorf("awssm: failed to create secret %q: %w", name, err)
	}
	s.logger.Info("created secret", "secret", name)
	return nil
}

func isNotFound(err error) bool {
	var nf *smtypes.ResourceNotFoundException
	return errors.As(err, &nf)
}
