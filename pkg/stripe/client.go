package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/goldvault-backend/pkg/config"
	"github.com/angelmondragon/goldvault-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	maxNetworkRetriesCeiling = 5
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's API client plus env-specific metadata.
type Client struct {
	api         *stripe.Client
	environment string
	retries     int64
}

// NewClient validates the key against the environment and builds an API client
// with its own backends. Writes carry idempotency keys, so network retries are safe.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	retries := int64(min(max(cfg.MaxNetworkRetries, 0), maxNetworkRetriesCeiling))
	backendCfg := &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(retries)}
	if cfg.HTTPTimeout > 0 {
		backendCfg.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	api := stripe.NewClient(apiKey, stripe.WithBackends(stripe.NewBackendsWithConfig(backendCfg)))

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env":     env,
			"stripe_retries": retries,
		}), "stripe client initialized")
	}
	return &Client{api: api, environment: env, retries: retries}, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// MaxNetworkRetries reports the retry budget installed on the backend.
func (c *Client) MaxNetworkRetries() int64 {
	if c == nil {
		return 0
	}
	return c.retries
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	var prefixes []string
	switch env {
	case testEnv:
		prefixes = []string{"sk_test_", "rk_test_"}
	case liveEnv:
		prefixes = []string{"sk_live_", "rk_live_"}
	default:
		return errInvalidStripeEnv
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("stripe environment %q requires a %s secret key", env, strings.Join(prefixes, " or "))
}
