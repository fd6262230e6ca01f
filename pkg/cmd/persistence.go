package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/taskflow/pkg/config"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/persistence/kv"
)

var supportedPersistenceProviders = []string{"bolt"}

// NewPersistence opens the store named by cfg.DatabaseURL.
func NewPersistence(cfg config.Config, logger *slog.Logger) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(cfg.DatabaseURL)

	switch provider {
	case "bolt":
		return kv.NewPersistence(cfg.DatabasePath(),
			kv.WithLogger(logger),
			kv.WithOpenTimeout(cfg.Store.OpenTimeout),
			kv.WithRetryPolicy(kv.RetryPolicy{
				MaxAttempts: cfg.Store.RetryAttempts,
				Backoff:     kv.ExponentialBackoff(cfg.Store.RetryBaseDelay),
			}),
		)
	default:
		return nil, fmt.Errorf("unsupported persistence provider %q, expected one of %v", provider, supportedPersistenceProviders)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	return provider
}
