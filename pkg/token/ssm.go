package token

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/epd-ingest/pkg/epd"
	"github.com/Sternrassler/epd-ingest/pkg/logging"
)

// Defaults for the SSM Parameter Store provider.
const (
	DefaultSSMParameter = "/etl/ECOPLATFORM_TOKEN"
	DefaultSSMRegion    = "eu-west-3"
)

// ParameterGetter is the subset of the SSM client used by SSM.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSM reads the token from AWS Systems Manager Parameter Store.
type SSM struct {
	client  ParameterGetter
	name    string
	decrypt bool
	logger  zerolog.Logger
}

// NewSSM creates an SSM provider for the given parameter name.
func NewSSM(client ParameterGetter, name string, decrypt bool) *SSM {
	if name == "" {
		name = DefaultSSMParameter
	}
	return &SSM{
		client:  client,
		name:    name,
		decrypt: decrypt,
		logger:  logging.NewLogger("token-ssm"),
	}
}

// NewSSMFromConfig builds the SSM client from an AWS config.
func NewSSMFromConfig(cfg aws.Config, name string, decrypt bool) *SSM {
	return NewSSM(ssm.NewFromConfig(cfg), name, decrypt)
}

// GetToken implements Provider.
func (s *SSM) GetToken(ctx context.Context) (string, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.name),
		WithDecryption: aws.Bool(s.decrypt),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("parameter", s.name).Msg("Failed to retrieve API token")
		return "", fmt.Errorf("%w: get parameter %s: %v", epd.ErrAuth, s.name, err)
	}

	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("%w: parameter %s has no value", epd.ErrAuth, s.name)
	}

	return aws.ToString(out.Parameter.Value), nil
}
