package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"CrudAPI/internal/config"
	"CrudAPI/internal/logger"
	"CrudAPI/internal/model"
	"CrudAPI/internal/serializer"
)

var (
	debug bool

	rootCmd = &cobra.Command{
		Use:           "crudapi",
		Short:         "REST CRUD API generated from YAML model declarations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetDebug(debug)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd, checkCmd, migrateCmd, sqlCmd, cacheCmd)
	// bare "crudapi" serves
	rootCmd.RunE = serveCmd.RunE
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadModels builds the registry and serializers every subcommand starts from.
func loadModels(cfg *config.Config) (*model.Registry, *serializer.Set, error) {
	reg, err := model.InitRegistry(cfg.ModelsDir)
	if err != nil {
		return nil, nil, err
	}
	sers, err := serializer.NewSet(reg.Models, serializer.DefaultRules())
	if err != nil {
		return nil, nil, fmt.Errorf("serializer error: %w", err)
	}
	return reg, sers, nil
}
