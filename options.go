package furrow

import (
	"log/slog"
	"time"

	"github.com/aretw0/furrow/pkg/adapters/sandbox"
	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/persistence/middleware"
	"github.com/aretw0/furrow/pkg/ports"
)

type config struct {
	completer      ports.Completer
	classifier     ports.Classifier
	searcher       ports.Searcher
	runner         ports.CommandRunner
	store          ports.SnapshotStore
	locker         ports.DistributedLocker
	hooks          domain.LifecycleHooks
	logger         *slog.Logger
	observer       sandbox.Observer
	middlewares    []middleware.Middleware
	commandTimeout time.Duration
	statePath      string
	workDir        string
	dryRun         bool
}

// Option configures an Agent.
type Option func(*config)

// WithCompleter sets the language model backing chat, planning and
// research.
func WithCompleter(c ports.Completer) Option {
	return func(cfg *config) { cfg.completer = c }
}

// WithClassifier overrides the intent classifier. The default asks the
// completer.
func WithClassifier(c ports.Classifier) Option {
	return func(cfg *config) { cfg.classifier = c }
}

// WithSearcher sets the web search capability used by research turns.
func WithSearcher(s ports.Searcher) Option {
	return func(cfg *config) { cfg.searcher = s }
}

// WithRunner replaces the default shell sandbox.
func WithRunner(r ports.CommandRunner) Option {
	return func(cfg *config) { cfg.runner = r }
}

// WithStore replaces the default file snapshot store.
func WithStore(s ports.SnapshotStore) Option {
	return func(cfg *config) { cfg.store = s }
}

// WithStatePath moves the default file store's directory.
func WithStatePath(path string) Option {
	return func(cfg *config) { cfg.statePath = path }
}

// WithStoreMiddleware wraps the snapshot store, first middleware
// outermost. Encryption and redaction live here.
func WithStoreMiddleware(mws ...middleware.Middleware) Option {
	return func(cfg *config) { cfg.middlewares = append(cfg.middlewares, mws...) }
}

// WithLocker serializes turns per thread across processes.
func WithLocker(l ports.DistributedLocker) Option {
	return func(cfg *config) { cfg.locker = l }
}

// WithLifecycleHooks registers observability hooks. Later calls replace
// earlier ones; combine hook sets with domain.MergeHooks. OnCommand fires
// from the built-in sandbox, so custom runners and dry runs report no
// command events.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(cfg *config) { cfg.hooks = hooks }
}

// WithCommandObserver records every sandbox command attempt. Ignored when
// WithRunner supplies a custom runner. The OnCommand lifecycle hook sees
// the same attempts; registering both reports each command twice.
func WithCommandObserver(obs sandbox.Observer) Option {
	return func(cfg *config) { cfg.observer = obs }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}

// WithCommandTimeout caps each plan step's wall-clock time. Zero keeps the
// sandbox default of one minute.
func WithCommandTimeout(d time.Duration) Option {
	return func(cfg *config) { cfg.commandTimeout = d }
}

// WithWorkDir runs commands and resolves cached files inside dir.
func WithWorkDir(dir string) Option {
	return func(cfg *config) { cfg.workDir = dir }
}

// WithDryRun swaps the sandbox for a runner that echoes commands instead
// of executing them.
func WithDryRun() Option {
	return func(cfg *config) { cfg.dryRun = true }
}
