package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"CrudAPI/internal/cache"
	"CrudAPI/internal/config"
	"CrudAPI/internal/db"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Manage the redis count cache",
	}
	cacheFlushCmd = &cobra.Command{
		Use:   "flush",
		Short: "Drop every cached count",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			db.InitRedis(cfg.CountCache.Addr)
			defer db.CloseRedis()
			c := cache.NewCountCache(db.RDB, cfg.CountCache.TTL)
			if c == nil {
				return errors.New("REDIS_ADDR is not set")
			}
			if err := c.Flush(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "count cache flushed")
			return nil
		},
	}
)

func init() {
	cacheCmd.AddCommand(cacheFlushCmd)
}
