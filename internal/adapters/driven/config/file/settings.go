package file

import (
	"errors"
	"time"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// Apply overlays every configured key onto settings. Keys absent from both
// the file and the environment leave the existing value untouched.
// All parse errors are reported together.
func (s *ConfigStore) Apply(settings *domain.Settings) error {
	a := &applier{store: s}

	a.str("server.addr", &settings.Server.Addr)
	a.str("server.public_url", &settings.Server.PublicURL)
	a.str("server.settings_url", &settings.Server.SettingsURL)
	a.str("server.api_token", &settings.Server.APIToken)
	a.int64("server.max_webhook_bytes", &settings.Server.MaxWebhookBytes)
	a.duration("server.shutdown_timeout", &settings.Server.ShutdownTimeout)

	a.str("log.level", &settings.Log.Level)
	a.str("log.format", &settings.Log.Format)

	var storageDriver string
	if a.str("storage.driver", &storageDriver) {
		settings.Storage.Driver = domain.StorageDriver(storageDriver)
	}
	a.str("storage.sqlite_dir", &settings.Storage.SQLiteDir)
	a.str("storage.postgres_dsn", &settings.Storage.PostgresDSN)

	a.str("redis.addr", &settings.Redis.Addr)
	a.str("redis.password", &settings.Redis.Password)
	a.int("redis.db", &settings.Redis.DB)

	var stateStore string
	if a.str("oauth.state_store", &stateStore) {
		settings.OAuth.StateStore = domain.StateStoreDriver(stateStore)
	}

	var lockDriver string
	if a.str("locks.driver", &lockDriver) {
		settings.Locks.Driver = domain.LockDriver(lockDriver)
	}
	a.duration("locks.ttl", &settings.Locks.TTL)
	a.duration("locks.wait", &settings.Locks.Wait)
	a.duration("locks.refresh_skew", &settings.Locks.RefreshSkew)

	var eventDriver string
	if a.str("events.driver", &eventDriver) {
		settings.Events.Driver = domain.EventDriver(eventDriver)
	}
	a.strings("events.kafka.brokers", &settings.Events.KafkaBrokers)
	a.str("events.kafka.topic", &settings.Events.KafkaTopic)
	a.str("events.asynq.queue", &settings.Events.AsynqQueue)

	a.duration("connectors.http_timeout", &settings.Connectors.HTTPTimeout)
	a.float("connectors.rate_limit", &settings.Connectors.RateLimit)
	a.int("connectors.rate_burst", &settings.Connectors.RateBurst)

	a.bool("scheduler.enabled", &settings.Scheduler.Enabled)
	if settings.Scheduler.TaskConfigs == nil {
		settings.Scheduler.TaskConfigs = make(map[string]domain.TaskConfig)
	}
	for _, taskID := range []string{domain.TaskIDWebhookRenewal, domain.TaskIDTokenRefresh, domain.TaskIDStateSweep} {
		cfg := settings.Scheduler.TaskConfigs[taskID]
		prefix := "scheduler." + taskID + "."
		a.bool(prefix+"enabled", &cfg.Enabled)
		a.duration(prefix+"interval", &cfg.Interval)
		a.duration(prefix+"window", &cfg.Window)
		settings.Scheduler.TaskConfigs[taskID] = cfg
	}

	if settings.Providers == nil {
		settings.Providers = make(map[domain.Source]domain.ProviderSettings)
	}
	for _, source := range domain.AllSources() {
		p := settings.Providers[source]
		prefix := "providers." + source.Slug() + "."
		set := false
		set = a.str(prefix+"client_id", &p.ClientID) || set
		set = a.str(prefix+"client_secret", &p.ClientSecret) || set
		set = a.str(prefix+"webhook_secret", &p.WebhookSecret) || set
		set = a.strings(prefix+"scopes", &p.Scopes) || set
		set = a.strings(prefix+"user_scopes", &p.UserScopes) || set
		set = a.str(prefix+"auth_url", &p.AuthURL) || set
		set = a.str(prefix+"token_url", &p.TokenURL) || set
		set = a.str(prefix+"redirect_uri", &p.RedirectURI) || set
		set = a.str(prefix+"api_base", &p.APIBase) || set
		set = a.str(prefix+"team_id", &p.TeamID) || set
		if set {
			settings.Providers[source] = p
		}
	}

	return errors.Join(a.errs...)
}

// applier collects parse errors while copying values into settings.
// Each setter reports whether the key was present.
type applier struct {
	store *ConfigStore
	errs  []error
}

func (a *applier) str(key string, dst *string) bool {
	v, ok := a.store.GetString(key)
	if ok {
		*dst = v
	}
	return ok
}

func (a *applier) strings(key string, dst *[]string) bool {
	v, ok := a.store.GetStringSlice(key)
	if ok {
		*dst = v
	}
	return ok
}

func (a *applier) int(key string, dst *int) bool {
	v, ok, err := a.store.GetInt(key)
	return a.keep(ok, err, func() { *dst = v })
}

func (a *applier) int64(key string, dst *int64) bool {
	v, ok, err := a.store.GetInt(key)
	return a.keep(ok, err, func() { *dst = int64(v) })
}

func (a *applier) float(key string, dst *float64) bool {
	v, ok, err := a.store.GetFloat(key)
	return a.keep(ok, err, func() { *dst = v })
}

func (a *applier) bool(key string, dst *bool) bool {
	v, ok, err := a.store.GetBool(key)
	return a.keep(ok, err, func() { *dst = v })
}

func (a *applier) duration(key string, dst *time.Duration) bool {
	v, ok, err := a.store.GetDuration(key)
	return a.keep(ok, err, func() { *dst = v })
}

func (a *applier) keep(ok bool, err error, set func()) bool {
	if err != nil {
		a.errs = append(a.errs, err)
		return false
	}
	if ok {
		set()
	}
	return ok
}
