package backend

import (
	"context"
	"fmt"
	"log/slog"

	"studydash/internal/sources/api"
	"studydash/internal/sources/memory"
	"studydash/internal/storage"
)

// DefaultFactory implements Factory
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case APIBackend:
		return f.createAPIBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createAPIBackend(config Config) (*BackendResult, error) {
	client := api.New(config.APIBaseURL,
		api.WithToken(config.APIToken),
		api.WithPageSize(config.APIPageSize),
		api.WithTimeout(config.APITimeout),
	)

	f.logger.Info("Initialized REST backend",
		"base_url", config.APIBaseURL,
		"page_size", config.APIPageSize,
		"authenticated", config.APIToken != "")

	return &BackendResult{
		Backend: Backend{
			Payments: client,
			Students: client,
			Periods:  client,
		},
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Backend: Backend{
			Payments:      repo,
			Students:      repo,
			PaymentWriter: repo,
			StudentWriter: repo,
			Snapshots:     repo,
		},
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Backend: Backend{
			Payments:      store,
			Students:      store,
			PaymentWriter: store,
			StudentWriter: store,
		},
	}, nil
}
