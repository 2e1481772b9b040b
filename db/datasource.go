package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/kcmvp/basemodel/app"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	UserKey     = "${user}"
	PasswordKey = "${password}"
	HostKey     = "${host}"
	// DefaultName is the registry name of the default datasource.
	DefaultName = "default"
	configKey   = "datasource"
)

// registry holds the named connection pools. The configured ones are opened
// by load, once.
type registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
	once  sync.Once
	err   error
}

var (
	pools = &registry{conns: map[string]Conn{}}

	// sqlLogger, when set, enables SQL logging for all datasources opened afterwards.
	sqlLogger *zap.Logger
)

// SetSQLLogger turns on SQL logging for every datasource opened after the call.
func SetSQLLogger(l *zap.Logger) {
	sqlLogger = l
}

// DataSource is the configuration of one named connection pool, read from the
// `datasource.<name>` section of application.yml.
type DataSource struct {
	Driver   string   `mapstructure:"driver" yaml:"driver"`
	User     string   `mapstructure:"user" yaml:"user"`
	Password string   `mapstructure:"password" yaml:"password"`
	Host     string   `mapstructure:"host" yaml:"host"`
	URL      string   `mapstructure:"url" yaml:"url"`
	Scripts  []string `mapstructure:"scripts" yaml:"scripts"`
	LogSQL   bool     `mapstructure:"log_sql" yaml:"log_sql"`
	MaxOpen  int      `mapstructure:"max_open" yaml:"max_open"`
	MaxIdle  int      `mapstructure:"max_idle" yaml:"max_idle"`
}

// credentials pairs each URL placeholder with the field filling it.
func (ds DataSource) credentials() [][2]string {
	return [][2]string{{UserKey, ds.User}, {PasswordKey, ds.Password}, {HostKey, ds.Host}}
}

// DSN returns URL with ${user}, ${password} and ${host} filled in.
func (ds DataSource) DSN() string {
	pairs := lo.FlatMap(ds.credentials(), func(c [2]string, _ int) []string { return c[:] })
	return strings.NewReplacer(pairs...).Replace(ds.URL)
}

// DSNChecked is DSN for a URL that is set and whose placeholders all have a
// value. URL formats differ per driver, so the URL itself is not parsed.
func (ds DataSource) DSNChecked() (string, error) {
	if strings.TrimSpace(ds.URL) == "" {
		return "", errors.New("url is empty")
	}
	missing := lo.FilterMap(ds.credentials(), func(c [2]string, _ int) (string, bool) {
		return c[0], strings.Contains(ds.URL, c[0]) && c[1] == ""
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("url uses %s without a value", strings.Join(missing, ", "))
	}
	return ds.DSN(), nil
}

// Open connects to cfg, pings it and runs its init scripts.
func Open(ctx context.Context, cfg DataSource) (Conn, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("driver is required")
	}
	dsn, err := cfg.DSNChecked()
	if err != nil {
		return nil, fmt.Errorf("invalid dsn: %w", err)
	}
	raw, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpen > 0 {
		raw.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		raw.SetMaxIdleConns(cfg.MaxIdle)
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	var conn Conn = raw
	switch {
	case sqlLogger != nil:
		conn = WithSQLLogger(conn, sqlLogger)
	case cfg.LogSQL:
		conn = WithSQLLogger(conn, app.Logger())
	}

	for _, script := range cfg.Scripts {
		b, err := os.ReadFile(script)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("read script %s: %w", script, err)
		}
		if _, err := conn.ExecContext(ctx, string(b)); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("exec script %s: %w", script, err)
		}
	}
	return conn, nil
}

// Register adds conn to the registry under name, replacing (not closing) any
// previous entry. An empty name means DefaultName.
func Register(name string, conn Conn) {
	pools.mu.Lock()
	defer pools.mu.Unlock()
	pools.conns[lo.CoalesceOrEmpty(name, DefaultName)] = conn
}

// load opens every datasource declared under `datasource` in the configuration.
func (r *registry) load() error {
	r.once.Do(func() {
		res := app.Config()
		if res.IsError() {
			r.err = res.Error()
			return
		}
		var cfgs map[string]DataSource
		if err := res.MustGet().UnmarshalKey(configKey, &cfgs); err != nil {
			r.err = fmt.Errorf("read %s config: %w", configKey, err)
			return
		}
		for name, cfg := range cfgs {
			conn, err := Open(context.Background(), cfg)
			if err != nil {
				r.err = fmt.Errorf("datasource %q: %w", name, err)
				return
			}
			Register(name, conn)
		}
	})
	return r.err
}

// GetDS returns a registered datasource by name, loading the configured ones
// on first use. An empty name means DefaultName.
func GetDS(name string) (Conn, bool) {
	_ = pools.load()
	pools.mu.RLock()
	defer pools.mu.RUnlock()
	conn, ok := pools.conns[lo.CoalesceOrEmpty(name, DefaultName)]
	return conn, ok
}

// DefaultDS returns the default datasource if registered.
func DefaultDS() (Conn, bool) {
	return GetDS(DefaultName)
}

// InitErr reports the error, if any, met while loading the configured datasources.
func InitErr() error {
	return pools.load()
}

// CloseDataSource closes the named datasource and drops it from the registry.
func CloseDataSource(name string) error {
	name = lo.CoalesceOrEmpty(name, DefaultName)
	pools.mu.Lock()
	conn, ok := pools.conns[name]
	delete(pools.conns, name)
	pools.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.Close()
}

// CloseAllDataSources closes every registered datasource and empties the
// registry. Close errors are joined.
func CloseAllDataSources() error {
	pools.mu.Lock()
	conns := pools.conns
	pools.conns = map[string]Conn{}
	pools.mu.Unlock()
	return errors.Join(lo.FilterMap(lo.Values(conns), func(c Conn, _ int) (error, bool) {
		err := c.Close()
		return err, err != nil
	})...)
}
