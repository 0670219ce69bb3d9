// Package config loads process configuration from flags, CONTENTGRAPH_*
// environment variables and an optional config file.
package config

import (
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	docstore "github.com/hanpama/contentgraph/internal/docstore"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "CONTENTGRAPH"

type Config struct {
	Server  Server
	Store   Store
	Session Session
	GraphQL GraphQL
	Log     Log
	Metrics Metrics
	OTel    OTel
}

type Server struct {
	Addr         string
	Path         string
	Origins      []string
	Pretty       bool
	Timeout      time.Duration
	MaxBodyBytes int64
	GraphiQL     bool
}

type Store struct {
	Driver        string
	BadgerDir     string
	PostgresURL   string
	SQLitePath    string
	CacheMaxItems int64
}

type Session struct {
	CookieName string
	Lifetime   time.Duration
	Secure     bool
	SameSite   string
}

type GraphQL struct {
	MaxConcurrency int
}

type Log struct {
	Level  string
	Format string
}

type Metrics struct {
	Enabled bool
}

type OTel struct {
	Endpoint string
	Service  string
}

// RegisterFlags defines every key on fs with its default and binds it to v.
func RegisterFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.String("server.addr", ":4000", "listen address")
	fs.String("server.path", "/graphql", "GraphQL endpoint path")
	fs.StringSlice("server.origins", []string{"http://localhost:3000"}, "origins allowed to make credentialed cross-origin requests")
	fs.Bool("server.pretty", false, "indent JSON responses")
	fs.Duration("server.timeout", 10*time.Second, "default per-request timeout")
	fs.Int64("server.max-body-bytes", 1<<20, "maximum request body size")
	fs.Bool("server.graphiql", true, "serve the GraphiQL IDE")

	fs.String("store.driver", docstore.DriverBadger, "document store driver: badger, postgres or sqlite")
	fs.String("store.badger.dir", "", "badger data directory; empty runs in memory")
	fs.String("store.postgres.url", "", "postgres connection string")
	fs.String("store.sqlite.path", "contentgraph.db", "sqlite database file")
	fs.Int64("store.cache.max-items", 10000, "document read cache size; 0 disables the cache")

	fs.String("session.cookie-name", "api-session-id", "session cookie name")
	fs.Duration("session.lifetime", 24*time.Hour, "session lifetime")
	fs.Bool("session.secure", false, "set the Secure attribute on the session cookie")
	fs.String("session.same-site", "lax", "SameSite attribute: lax, strict or none")

	fs.Int("graphql.max-concurrency", 16, "resolvers run at once for one batch")

	fs.String("log.level", "info", "log level")
	fs.String("log.format", "json", "log format: json or console")

	fs.Bool("metrics.enabled", true, "serve prometheus metrics at /metrics")

	fs.String("otel.endpoint", "", "OTLP/gRPC collector endpoint; empty disables tracing")
	fs.String("otel.service", "contentgraph", "service name reported to the tracer")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v.BindPFlags(fs)
}

// Load reads the optional config file and returns the validated Config.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", file)
		}
	}
	c := &Config{
		Server: Server{
			Addr:         v.GetString("server.addr"),
			Path:         v.GetString("server.path"),
			Origins:      splitList(v.GetStringSlice("server.origins")),
			Pretty:       v.GetBool("server.pretty"),
			Timeout:      v.GetDuration("server.timeout"),
			MaxBodyBytes: v.GetInt64("server.max-body-bytes"),
			GraphiQL:     v.GetBool("server.graphiql"),
		},
		Store: Store{
			Driver:        v.GetString("store.driver"),
			BadgerDir:     v.GetString("store.badger.dir"),
			PostgresURL:   v.GetString("store.postgres.url"),
			SQLitePath:    v.GetString("store.sqlite.path"),
			CacheMaxItems: v.GetInt64("store.cache.max-items"),
		},
		Session: Session{
			CookieName: v.GetString("session.cookie-name"),
			Lifetime:   v.GetDuration("session.lifetime"),
			Secure:     v.GetBool("session.secure"),
			SameSite:   v.GetString("session.same-site"),
		},
		GraphQL: GraphQL{MaxConcurrency: v.GetInt("graphql.max-concurrency")},
		Log:     Log{Level: v.GetString("log.level"), Format: v.GetString("log.format")},
		Metrics: Metrics{Enabled: v.GetBool("metrics.enabled")},
		OTel:    OTel{Endpoint: v.GetString("otel.endpoint"), Service: v.GetString("otel.service")},
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		return errors.Errorf("server.path %q must start with /", c.Server.Path)
	}
	if c.Server.Timeout < 0 {
		return errors.New("server.timeout must not be negative")
	}
	if c.Server.MaxBodyBytes < 0 {
		return errors.New("server.max-body-bytes must not be negative")
	}
	if len(c.Server.Origins) == 0 {
		return errors.New("server.origins must list at least one origin")
	}
	switch c.Store.Driver {
	case docstore.DriverBadger:
	case docstore.DriverPostgres:
		if c.Store.PostgresURL == "" {
			return errors.New("store.postgres.url is required for the postgres driver")
		}
	case docstore.DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite.path is required for the sqlite driver")
		}
	default:
		return errors.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Store.CacheMaxItems < 0 {
		return errors.New("store.cache.max-items must not be negative")
	}
	if c.Session.CookieName == "" {
		return errors.New("session.cookie-name must not be empty")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("session.lifetime must be positive")
	}
	if _, err := c.Session.SameSiteMode(); err != nil {
		return err
	}
	if strings.EqualFold(c.Session.SameSite, "none") && !c.Session.Secure {
		return errors.New("session.same-site none requires session.secure")
	}
	if c.GraphQL.MaxConcurrency <= 0 {
		return errors.New("graphql.max-concurrency must be positive")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errors.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

// SameSiteMode maps the configured SameSite value to http.SameSite.
func (s Session) SameSiteMode() (http.SameSite, error) {
	switch strings.ToLower(s.SameSite) {
	case "lax", "":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	}
	return 0, errors.Errorf("unknown session.same-site %q", s.SameSite)
}

// StoreOptions converts the store section for docstore.Open.
func (c *Config) StoreOptions() docstore.Options {
	return docstore.Options{
		Driver:      c.Store.Driver,
		BadgerDir:   c.Store.BadgerDir,
		PostgresURL: c.Store.PostgresURL,
		SQLitePath:  c.Store.SQLitePath,
		CacheItems:  c.Store.CacheMaxItems,
	}
}

// splitList accepts both repeated values and comma-separated environment
// values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
