// Package token provides bearer tokens for the catalog API.
//
// A token is fetched once per pipeline phase invocation; providers do not
// cache or refresh.
package token

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Sternrassler/epd-ingest/pkg/epd"
)

// DefaultEnvVar is the environment variable read by Env when none is given.
const DefaultEnvVar = "ECOPLATFORM_TOKEN"

// Provider returns a bearer token for the catalog API.
// Failures wrap epd.ErrAuth.
type Provider interface {
	GetToken(ctx context.Context) (string, error)
}

// Static is a fixed token.
type Static string

// GetToken implements Provider.
func (s Static) GetToken(_ context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", fmt.Errorf("%w: static token is empty", epd.ErrAuth)
	}
	return string(s), nil
}

// Env reads the token from an environment variable.
type Env struct {
	Var string
}

// GetToken implements Provider.
func (e Env) GetToken(_ context.Context) (string, error) {
	name := e.Var
	if name == "" {
		name = DefaultEnvVar
	}
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("%w: environment variable %s is not set", epd.ErrAuth, name)
	}
	return value, nil
}

// Func adapts a function to Provider.
type Func func(ctx context.Context) (string, error)

// GetToken implements Provider.
func (f Func) GetToken(ctx context.Context) (string, error) {
	tok, err := f(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", epd.ErrAuth, err)
	}
	return tok, nil
}
