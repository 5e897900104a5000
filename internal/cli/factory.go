package cli

import (
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aretw0/furrow"
	"github.com/aretw0/furrow/internal/config"
	"github.com/aretw0/furrow/pkg/adapters/completion"
	"github.com/aretw0/furrow/pkg/adapters/file"
	"github.com/aretw0/furrow/pkg/adapters/memory"
	redisstore "github.com/aretw0/furrow/pkg/adapters/redis"
	"github.com/aretw0/furrow/pkg/adapters/tavily"
	"github.com/aretw0/furrow/pkg/persistence/middleware"
	"github.com/aretw0/furrow/pkg/ports"
)

// NewAgent assembles an Agent from configuration following standard CLI
// conventions: completion and search clients from the model/search sections,
// the snapshot store from the storage section, debug hooks when asked.
func NewAgent(cfg config.Config, opts RunOptions, logger *slog.Logger) (*furrow.Agent, error) {
	store, locker, err := openBackend(cfg.Storage)
	if err != nil {
		return nil, err
	}

	agentOpts := baseOptions(cfg, logger)
	agentOpts = append(agentOpts, furrow.WithStore(store))
	if locker != nil {
		agentOpts = append(agentOpts, furrow.WithLocker(locker))
	}
	if opts.DryRun {
		agentOpts = append(agentOpts, furrow.WithDryRun())
	}
	if opts.Debug {
		agentOpts = append(agentOpts, furrow.WithLifecycleHooks(createDebugHooks(logger)))
	}

	return furrow.New(agentOpts...)
}

// baseOptions returns the provider options implied by the configuration:
// completion and search clients, command timeout and work directory.
func baseOptions(cfg config.Config, logger *slog.Logger) []furrow.Option {
	opts := []furrow.Option{
		furrow.WithLogger(logger),
		furrow.WithCompleter(completion.NewClient(
			completion.WithBaseURL(cfg.Model.BaseURL),
			completion.WithAPIKey(cfg.Model.APIKey),
			completion.WithModel(cfg.Model.Name),
			completion.WithTemperature(cfg.Model.Temperature),
			completion.WithMaxTokens(cfg.Model.MaxTokens),
			completion.WithLogger(logger),
		)),
		furrow.WithSearcher(tavily.NewClient(
			tavily.WithAPIKey(cfg.Search.APIKey),
			tavily.WithMaxResults(cfg.Search.MaxResults),
			tavily.WithLogger(logger),
		)),
		furrow.WithCommandTimeout(cfg.Runner.Timeout),
	}

	if cfg.Runner.WorkDir != "" {
		opts = append(opts, furrow.WithWorkDir(cfg.Runner.WorkDir))
	}

	return opts
}

// OpenStore opens the configured snapshot store for read-side commands
// such as thread listing and inspection. It carries the same middleware
// stack the agent writes through, so encrypted snapshots decrypt.
func OpenStore(cfg config.StorageConfig) (ports.SnapshotStore, error) {
	store, _, err := openBackend(cfg)
	return store, err
}

// openBackend opens the snapshot store wrapped in its middleware stack
// and, for redis, a cross-process locker sharing the client. The locker
// is nil for single-process backends.
func openBackend(cfg config.StorageConfig) (ports.SnapshotStore, ports.DistributedLocker, error) {
	var (
		store  ports.SnapshotStore
		locker ports.DistributedLocker
	)

	switch cfg.Backend {
	case config.BackendMemory:
		store = memory.NewStore()

	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store = redisstore.NewFromClient(client, redisstore.WithTTL(cfg.Redis.TTL))
		locker = redisstore.NewLocker(client, "furrow:lock:")

	case config.BackendFile, "":
		store = file.New(cfg.Path)

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	mws, err := storeMiddlewares(cfg)
	if err != nil {
		return nil, nil, err
	}
	if len(mws) > 0 {
		store = middleware.Chain(store, mws...)
	}

	return store, locker, nil
}

// storeMiddlewares builds the persistence chain in outermost-first order.
// Redaction precedes encryption: its patterns must see plaintext, never the
// envelope ciphertext.
func storeMiddlewares(cfg config.StorageConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware

	if len(cfg.RedactPatterns) > 0 {
		red, err := middleware.NewRedactionMiddleware(cfg.RedactPatterns)
		if err != nil {
			return nil, fmt.Errorf("redaction middleware: %w", err)
		}
		mws = append(mws, red)
	}

	key, ok, err := cfg.DecodeEncryptionKey()
	if err != nil {
		return nil, err
	}
	if ok {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, fmt.Errorf("encryption middleware: %w", err)
		}
		mws = append(mws, enc)
	}

	return mws, nil
}
