package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"CrudAPI/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load, link and validate the model declarations without serving",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		reg, sers, err := loadModels(cfg)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, name := range reg.Names() {
			m := reg.Models[name]
			s, _ := sers.For(name)
			fmt.Fprintf(out, "%-20s /%s (table %s, %d fields)\n", name, m.Collection, m.Table, len(s.Fields()))
		}
		fmt.Fprintf(out, "%d models OK\n", len(reg.Models))
		return nil
	},
}
