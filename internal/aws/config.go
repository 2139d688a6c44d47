package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Default credentials presented to a simulator endpoint when the environment
// does not supply any. The simulator parses the access key id but never
// checks the signature.
const (
	DefaultAccessKeyID     = "efsim"
	DefaultSecretAccessKey = "efsim"
)

// NewConfig loads an aws.Config for region. When endpoint is non-empty every
// client built from the config is pointed at it, and static credentials are
// used so no credential chain (IMDS, SSO) is consulted.
//
// AWS_ACCESS_KEY_ID, when set, is passed through so the simulator attributes
// calls to that key.
func NewConfig(ctx context.Context, endpoint, region string, optFns ...func(*awscfg.LoadOptions) error) (sdkaws.Config, error) {
	var opts []func(*awscfg.LoadOptions) error
	if region != "" {
		opts = append(opts, awscfg.WithRegion(region))
	}
	if endpoint != "" {
		akid := os.Getenv("AWS_ACCESS_KEY_ID")
		if akid == "" {
			akid = DefaultAccessKeyID
		}
		opts = append(opts,
			awscfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(akid, DefaultSecretAccessKey, "")),
			awscfg.WithRetryMaxAttempts(1),
		)
	}
	opts = append(opts, optFns...)

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return sdkaws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	if endpoint != "" {
		cfg.BaseEndpoint = sdkaws.String(endpoint)
	}
	return cfg, nil
}
