package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Options configure the seclang tool itself, not the compiled rules.
type Options struct {
	Rules   []string
	Logging LoggingOptions
	Metrics MetricsOptions
	Server  ServerOptions
	Publish PublishOptions

	baseDir string
}

type LoggingOptions struct {
	Level          string
	Format         string
	DiagnosticsLog string
}

type MetricsOptions struct {
	Enabled bool
	Listen  string
}

type ServerOptions struct {
	Listen string
}

type PublishOptions struct {
	Redis RedisOptions
}

type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

const envPrefix = "SECLANG"

// Load reads options from path (optional), the environment and defaults,
// in that order of precedence: environment > file > defaults.
func Load(path string) (*Options, error) {
	v := viper.New()

	v.SetDefault("rules", []string{})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.diagnostics_log", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9464")
	v.SetDefault("server.listen", "127.0.0.1:8088")
	v.SetDefault("publish.redis.addr", "")
	v.SetDefault("publish.redis.password", "")
	v.SetDefault("publish.redis.db", 0)
	v.SetDefault("publish.redis.key_prefix", "seclang")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	opts := &Options{}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		opts.baseDir = filepath.Dir(absPath)
	}

	if v.InConfig("publish.redis.password") {
		return nil, fmt.Errorf("publish.redis.password is not allowed in config files (use %s_PUBLISH_REDIS_PASSWORD)", envPrefix)
	}

	opts.Rules = v.GetStringSlice("rules")
	opts.Logging = LoggingOptions{
		Level:          v.GetString("logging.level"),
		Format:         v.GetString("logging.format"),
		DiagnosticsLog: v.GetString("logging.diagnostics_log"),
	}
	opts.Metrics = MetricsOptions{
		Enabled: v.GetBool("metrics.enabled"),
		Listen:  v.GetString("metrics.listen"),
	}
	opts.Server = ServerOptions{Listen: v.GetString("server.listen")}
	opts.Publish = PublishOptions{Redis: RedisOptions{
		Addr:      v.GetString("publish.redis.addr"),
		Password:  v.GetString("publish.redis.password"),
		DB:        v.GetInt("publish.redis.db"),
		KeyPrefix: v.GetString("publish.redis.key_prefix"),
	}}

	return opts, nil
}

func (o *Options) BaseDir() string {
	return o.baseDir
}

func (o *Options) ResolvePath(p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	base := o.baseDir
	if base == "" {
		base = "."
	}
	return filepath.Join(base, p)
}

// RuleFiles expands the configured rule globs, keeping configuration order.
func (o *Options) RuleFiles() ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, pattern := range o.Rules {
		matches, err := filepath.Glob(o.ResolvePath(pattern))
		if err != nil {
			return nil, fmt.Errorf("rules pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("rules pattern %q matched no files", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	return files, nil
}
