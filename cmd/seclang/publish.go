package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/klyr/seclang/internal/config"
	"github.com/klyr/seclang/internal/rules"
	"github.com/klyr/seclang/internal/store"
)

func newPublishCmd() *cobra.Command {
	var configPath string
	var filePath string

	cmd := &cobra.Command{
		Use:   "publish [FILES...]",
		Short: "Compile rule files and publish the rule set",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(configPath, args)
			if err != nil {
				return err
			}
			defer s.Close()

			var pub store.Publisher
			switch {
			case filePath != "":
				pub = store.FileStore{Path: filePath}
			case s.opts.Publish.Redis.Addr != "":
				redisStore := newRedisStore(s.opts.Publish.Redis)
				defer func() { _ = redisStore.Close() }()
				pub = redisStore
			default:
				return errors.New("publish.redis.addr or --file is required")
			}

			rs, err := s.compile()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			err = publish(ctx, pub, rs)
			s.metrics.ObservePublish(err)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "published rule set %s (%d rules)\n", rs.ID, len(rs.Active()))
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&filePath, "file", "", "Write the record to this file instead of Redis")

	return cmd
}

func newRedisStore(opts config.RedisOptions) *store.RedisStore {
	return store.NewRedisStore(opts.Addr, opts.Password, opts.DB, opts.KeyPrefix)
}

func publish(ctx context.Context, pub store.Publisher, rs *rules.RuleSet) error {
	rec, err := store.NewRecord(rs, time.Now())
	if err != nil {
		return err
	}
	if err := pub.Publish(ctx, rec); err != nil {
		return fmt.Errorf("publish rule set: %w", err)
	}
	return nil
}
