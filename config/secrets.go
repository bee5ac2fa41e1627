package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SecretPrefix marks a value that names an SSM Parameter Store parameter.
const SecretPrefix = "ssm:"

// SecretResolver turns a parameter name into its value.
type SecretResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// ssmAPI is the part of *ssm.Client the resolver uses.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMResolver reads decrypted parameters from AWS SSM Parameter Store.
// Values are cached for the resolver's lifetime.
type SSMResolver struct {
	api   ssmAPI
	mu    sync.Mutex
	cache map[string]string
}

// NewSSMResolver creates a resolver using the default AWS credential chain.
func NewSSMResolver(ctx context.Context) (*SSMResolver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSSMResolver(ssm.NewFromConfig(cfg)), nil
}

func newSSMResolver(api ssmAPI) *SSMResolver {
	return &SSMResolver{api: api, cache: make(map[string]string)}
}

// Resolve returns the decrypted value of the named parameter.
func (r *SSMResolver) Resolve(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("ssm: parameter name is required")
	}

	r.mu.Lock()
	if v, ok := r.cache[name]; ok {
		r.mu.Unlock()
		return v, nil
	}
	r.mu.Unlock()

	withDecryption := true
	out, err := r.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("ssm: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("ssm: parameter %q has no value", name)
	}

	r.mu.Lock()
	r.cache[name] = *out.Parameter.Value
	r.mu.Unlock()
	return *out.Parameter.Value, nil
}

// secretName reports whether v references a secret and returns its name.
func secretName(v string) (string, bool) {
	if !strings.HasPrefix(v, SecretPrefix) {
		return "", false
	}
	return strings.TrimPrefix(v, SecretPrefix), true
}
