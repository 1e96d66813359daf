package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type cachedSecret struct {
	value   string
	fetched time.Time
}

// AWSProvider reads secrets from AWS Secrets Manager through a read-through cache.
// Entries older than ttl are refetched, so rotated webhook secrets are picked up.
type AWSProvider struct {
	client secretsAPI
	ttl    time.Duration
	cache  map[string]cachedSecret
	mu     sync.RWMutex
	now    func() time.Time
}

func NewAWSProvider(cfg aws.Config, ttl time.Duration) *AWSProvider {
	return newAWSProvider(secretsmanager.NewFromConfig(cfg), ttl)
}

func newAWSProvider(client secretsAPI, ttl time.Duration) *AWSProvider {
	return &AWSProvider{
		client: client,
		ttl:    ttl,
		cache:  make(map[string]cachedSecret),
		now:    time.Now,
	}
}

func (p *AWSProvider) GetSecret(ctx context.Context, name string) (string, error) {
	p.mu.RLock()
	c, ok := p.cache[name]
	p.mu.RUnlock()
	if ok && (p.ttl <= 0 || p.now().Sub(c.fetched) < p.ttl) {
		return c.value, nil
	}

	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", name)
	}

	p.mu.Lock()
	p.cache[name] = cachedSecret{value: *out.SecretString, fetched: p.now()}
	p.mu.Unlock()

	return *out.SecretString, nil
}

// EnvProvider resolves a secret name to the environment variable of the same name.
// Meant for local development.
type EnvProvider struct{}

func (EnvProvider) GetSecret(ctx context.Context, name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", fmt.Errorf("secret %s is not set in the environment", name)
	}
	return v, nil
}
