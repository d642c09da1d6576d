package domain

import (
	"fmt"
	"strings"
	"time"
)

// StorageDriver selects the integration and archive store.
type StorageDriver string

// Available storage drivers.
const (
	// StorageMemory keeps everything in process memory. Tests and development only.
	StorageMemory StorageDriver = "memory"

	// StorageSQLite uses an embedded SQLite file. Single-instance deployments.
	StorageSQLite StorageDriver = "sqlite"

	// StoragePostgres uses a shared PostgreSQL database.
	StoragePostgres StorageDriver = "postgres"
)

// IsValid returns true if the driver is recognised.
func (d StorageDriver) IsValid() bool {
	switch d {
	case StorageMemory, StorageSQLite, StoragePostgres:
		return true
	default:
		return false
	}
}

// StateStoreDriver selects where pending OAuth states live.
type StateStoreDriver string

// Available state store drivers.
const (
	// StateStoreMemory is process-local. Not safe behind a load balancer.
	StateStoreMemory StateStoreDriver = "memory"

	// StateStoreRedis is shared across instances.
	StateStoreRedis StateStoreDriver = "redis"
)

// IsValid returns true if the driver is recognised.
func (d StateStoreDriver) IsValid() bool {
	return d == StateStoreMemory || d == StateStoreRedis
}

// LockDriver selects how token refreshes are serialised.
type LockDriver string

// Available lock drivers.
const (
	LockLocal LockDriver = "local"
	LockRedis LockDriver = "redis"
)

// IsValid returns true if the driver is recognised.
func (d LockDriver) IsValid() bool {
	return d == LockLocal || d == LockRedis
}

// EventDriver selects where verified webhook events are published.
type EventDriver string

// Available event drivers.
const (
	EventsLog   EventDriver = "log"
	EventsKafka EventDriver = "kafka"
	EventsAsynq EventDriver = "asynq"
)

// IsValid returns true if the driver is recognised.
func (d EventDriver) IsValid() bool {
	switch d {
	case EventsLog, EventsKafka, EventsAsynq:
		return true
	default:
		return false
	}
}

// ServerSettings configures the HTTP server.
type ServerSettings struct {
	Addr string
	// PublicURL is the externally reachable base URL, used for OAuth
	// redirects and webhook callbacks.
	PublicURL string
	// SettingsURL is where browsers land after an authorization attempt.
	SettingsURL string
	// APIToken, when set, must accompany every authenticated API call.
	APIToken        string
	MaxWebhookBytes int64
	ShutdownTimeout time.Duration
}

// LogSettings configures the process logger.
type LogSettings struct {
	Level  string
	Format string
}

// StorageSettings configures persistence.
type StorageSettings struct {
	Driver      StorageDriver
	SQLiteDir   string
	PostgresDSN string
}

// RedisSettings configures the shared redis connection.
type RedisSettings struct {
	Addr     string
	Password string
	DB       int
}

// OAuthSettings configures the authorization handshake.
type OAuthSettings struct {
	StateStore StateStoreDriver
}

// LockSettings configures refresh serialisation.
type LockSettings struct {
	Driver LockDriver
	// TTL bounds how long a crashed holder can block others.
	TTL time.Duration
	// Wait bounds how long a caller waits for the lock.
	Wait time.Duration
	// RefreshSkew treats a token expiring later than now+RefreshSkew as
	// already refreshed by another caller.
	RefreshSkew time.Duration
}

// EventSettings configures event publishing.
type EventSettings struct {
	Driver       EventDriver
	KafkaBrokers []string
	KafkaTopic   string
	AsynqQueue   string
}

// ConnectorSettings configures outbound provider calls.
type ConnectorSettings struct {
	HTTPTimeout time.Duration
	// RateLimit is requests per second per source.
	RateLimit float64
	RateBurst int
}

// ProviderSettings overrides the built-in provider defaults.
// Secrets normally arrive through the environment.
type ProviderSettings struct {
	ClientID      string
	ClientSecret  string
	WebhookSecret string
	Scopes        []string
	UserScopes    []string
	AuthURL       string
	TokenURL      string
	RedirectURI   string
	// APIBase replaces the provider API root. Used by tests and proxies.
	APIBase string
	// TeamID is the Figma team used when authorize names none.
	TeamID string
}

// Settings is the complete service configuration.
type Settings struct {
	Server     ServerSettings
	Log        LogSettings
	Storage    StorageSettings
	Redis      RedisSettings
	OAuth      OAuthSettings
	Locks      LockSettings
	Events     EventSettings
	Connectors ConnectorSettings
	Scheduler  SchedulerConfig
	Providers  map[Source]ProviderSettings
}

// DefaultSettings returns sensible defaults for a single-node deployment.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Addr:            ":8080",
			PublicURL:       "http://localhost:8080",
			SettingsURL:     "http://localhost:3000/settings/integrations",
			MaxWebhookBytes: 1 << 20,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageSettings{
			Driver: StorageSQLite,
		},
		Redis: RedisSettings{
			Addr: "localhost:6379",
		},
		OAuth: OAuthSettings{
			StateStore: StateStoreMemory,
		},
		Locks: LockSettings{
			Driver:      LockLocal,
			TTL:         30 * time.Second,
			Wait:        10 * time.Second,
			RefreshSkew: 5 * time.Minute,
		},
		Events: EventSettings{
			Driver:     EventsLog,
			KafkaTopic: "sweep.webhook-events",
			AsynqQueue: "webhooks",
		},
		Connectors: ConnectorSettings{
			HTTPTimeout: 30 * time.Second,
			RateLimit:   10,
			RateBurst:   20,
		},
		Scheduler: DefaultSchedulerConfig(),
		Providers: map[Source]ProviderSettings{},
	}
}

// Provider returns the overrides for a source (zero value if none).
func (s *Settings) Provider(source Source) ProviderSettings {
	if s.Providers == nil {
		return ProviderSettings{}
	}
	return s.Providers[source]
}

// CallbackURL is the OAuth redirect URI registered with a provider.
func (s *Settings) CallbackURL(source Source) string {
	if p := s.Provider(source); p.RedirectURI != "" {
		return p.RedirectURI
	}
	return strings.TrimRight(s.Server.PublicURL, "/") + "/api/integrations/" + source.Slug() + "/callback"
}

// WebhookURL is where a provider delivers change notifications.
func (s *Settings) WebhookURL(source Source) string {
	return strings.TrimRight(s.Server.PublicURL, "/") + "/api/webhooks/" + source.Slug()
}

// Validate checks driver selections and their required settings.
func (s *Settings) Validate() error {
	if !s.Storage.Driver.IsValid() {
		return fmt.Errorf("%w: unknown storage driver %q", ErrConfiguration, s.Storage.Driver)
	}
	if s.Storage.Driver == StoragePostgres && s.Storage.PostgresDSN == "" {
		return fmt.Errorf("%w: storage.postgres_dsn is required for the postgres driver", ErrConfiguration)
	}
	if !s.OAuth.StateStore.IsValid() {
		return fmt.Errorf("%w: unknown oauth state store %q", ErrConfiguration, s.OAuth.StateStore)
	}
	if !s.Locks.Driver.IsValid() {
		return fmt.Errorf("%w: unknown lock driver %q", ErrConfiguration, s.Locks.Driver)
	}
	if !s.Events.Driver.IsValid() {
		return fmt.Errorf("%w: unknown event driver %q", ErrConfiguration, s.Events.Driver)
	}
	if s.Events.Driver == EventsKafka && len(s.Events.KafkaBrokers) == 0 {
		return fmt.Errorf("%w: events.kafka.brokers is required for the kafka driver", ErrConfiguration)
	}
	if s.needsRedis() && s.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is required", ErrConfiguration)
	}
	if s.Server.PublicURL == "" {
		return fmt.Errorf("%w: server.public_url is required", ErrConfiguration)
	}
	return nil
}

func (s *Settings) needsRedis() bool {
	return s.OAuth.StateStore == StateStoreRedis ||
		s.Locks.Driver == LockRedis ||
		s.Events.Driver == EventsAsynq
}
