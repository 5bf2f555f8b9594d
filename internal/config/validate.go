package config

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
)

type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s)", len(v.Problems))
}

// Validate checks everything except rule files, which need a compile.
func (o *Options) Validate() error {
	v := &ValidationError{}

	if len(o.Rules) == 0 {
		v.Add("rules must list at least one file or glob")
	}
	for i, pattern := range o.Rules {
		if strings.TrimSpace(pattern) == "" {
			v.Add("rules[%d] is empty", i)
		}
	}

	switch strings.ToLower(o.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		v.Add("logging.level must be trace|debug|info|warn|error")
	}
	switch o.Logging.Format {
	case "json", "console":
	default:
		v.Add("logging.format must be json|console")
	}

	if o.Metrics.Enabled {
		if err := validateListen(o.Metrics.Listen); err != nil {
			v.Add("metrics.listen invalid: %v", err)
		}
	}
	if err := validateListen(o.Server.Listen); err != nil {
		v.Add("server.listen invalid: %v", err)
	}

	if o.Publish.Redis.Addr != "" {
		if err := validateListen(o.Publish.Redis.Addr); err != nil {
			v.Add("publish.redis.addr invalid: %v", err)
		}
		if o.Publish.Redis.DB < 0 {
			v.Add("publish.redis.db must be >= 0")
		}
		if o.Publish.Redis.KeyPrefix == "" {
			v.Add("publish.redis.key_prefix is required")
		}
	}

	if len(v.Problems) > 0 {
		sort.Strings(v.Problems)
		return v
	}
	return nil
}

func validateListen(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("address is required")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return err
	}
	return nil
}
