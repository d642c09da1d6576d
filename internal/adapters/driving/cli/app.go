package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/custodia-labs/sweep/internal/adapters/driven/events"
	"github.com/custodia-labs/sweep/internal/adapters/driven/lock"
	"github.com/custodia-labs/sweep/internal/adapters/driven/oauth"
	"github.com/custodia-labs/sweep/internal/adapters/driven/oauthstate"
	"github.com/custodia-labs/sweep/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sweep/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/sweep/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sweep/internal/adapters/driving/api"
	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/connectors/factory"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
	"github.com/custodia-labs/sweep/internal/core/services"
)

// app holds the wired service graph for one process.
type app struct {
	settings *domain.Settings
	logger   *zap.Logger

	integrationStore driven.IntegrationStore
	archiveStore     driven.ArchiveStore
	schedulerStore   driven.SchedulerStore
	states           driven.PendingAuthStateStore
	locker           driven.RefreshLocker
	publisher        driven.EventPublisher

	stateManager *services.StateManager
	oauth        *services.OAuthService
	integrations *services.IntegrationService
	webhooks     *services.WebhookService
	sources      *services.SourceRegistry

	closers []func() error
}

// newApp builds every adapter selected by s and the services on top of them.
// Call Close when done, even after an error.
func newApp(ctx context.Context, s *domain.Settings, logger *zap.Logger) (*app, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &app{settings: s, logger: logger}

	if err := a.openStorage(ctx); err != nil {
		return a, err
	}

	var rdb redis.UniversalClient
	if s.OAuth.StateStore == domain.StateStoreRedis || s.Locks.Driver == domain.LockRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		rdb = client
	}

	switch s.OAuth.StateStore {
	case domain.StateStoreRedis:
		a.states = oauthstate.NewRedisStore(rdb)
	default:
		mem := oauthstate.NewMemoryStore()
		a.closers = append(a.closers, mem.Close)
		a.states = mem
	}

	switch s.Locks.Driver {
	case domain.LockRedis:
		a.locker = lock.NewRedisLocker(rdb, s.Locks.TTL, s.Locks.Wait, logger)
	default:
		a.locker = lock.NewLocalLocker()
	}

	switch s.Events.Driver {
	case domain.EventsKafka:
		a.publisher = events.NewKafkaPublisher(s.Events.KafkaBrokers, s.Events.KafkaTopic, logger)
	case domain.EventsAsynq:
		a.publisher = events.NewAsynqPublisher(asynq.RedisClientOpt{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		}, s.Events.AsynqQueue, logger)
	default:
		a.publisher = events.NewLogPublisher(logger)
	}
	a.closers = append(a.closers, a.publisher.Close)

	configs := connectors.NewConfigRegistry(s)
	tokens := oauth.NewClient(&http.Client{Timeout: s.Connectors.HTTPTimeout})
	connectorFactory := factory.NewWithBuiltins(s, configs, tokens)

	a.stateManager = services.NewStateManager(a.states)
	a.oauth = services.NewOAuthService(configs, a.stateManager, tokens, a.integrationStore, connectorFactory, s, logger)
	a.integrations = services.NewIntegrationService(a.integrationStore, a.archiveStore, connectorFactory, a.locker, s, logger)
	a.webhooks = services.NewWebhookService(factory.NewWebhookRegistry(s), a.publisher, logger)
	a.sources = services.NewSourceRegistry(connectorFactory, configs, s)
	return a, nil
}

func (a *app) openStorage(ctx context.Context) error {
	s := a.settings
	switch s.Storage.Driver {
	case domain.StorageSQLite:
		store, err := sqlite.NewStore(s.Storage.SQLiteDir)
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.integrationStore = store.IntegrationStore()
		a.archiveStore = store.ArchiveStore()
		a.schedulerStore = store.SchedulerStore()
	case domain.StoragePostgres:
		store, err := postgres.NewStore(ctx, s.Storage.PostgresDSN, a.logger)
		if err != nil {
			return fmt.Errorf("opening postgres store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.integrationStore = store.IntegrationStore()
		a.archiveStore = store.ArchiveStore()
		// Task bookkeeping is per instance; each replica runs its own loop.
		a.schedulerStore = memory.NewSchedulerStore()
	case domain.StorageMemory:
		a.integrationStore = memory.NewIntegrationStore()
		a.archiveStore = memory.NewArchiveStore()
		a.schedulerStore = memory.NewSchedulerStore()
	default:
		return fmt.Errorf("%w: unknown storage driver %q", domain.ErrConfiguration, s.Storage.Driver)
	}
	return nil
}

// apiServices exposes the services to the HTTP adapter.
func (a *app) apiServices() api.Services {
	return api.Services{
		OAuth:        a.oauth,
		Integrations: a.integrations,
		Webhooks:     a.webhooks,
		Sources:      a.sources,
	}
}

// scheduler builds the background task runner.
func (a *app) scheduler() *services.Scheduler {
	return services.NewScheduler(a.settings.Scheduler, a.schedulerStore, a.integrations, a.stateManager, a.logger)
}

// Close releases adapters in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// withApp builds the app for a command and closes it afterwards.
func withApp(ctx context.Context, fn func(*app) error) (err error) {
	a, err := newApp(ctx, &settings, baseLogger)
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err != nil {
		return err
	}
	return fn(a)
}
