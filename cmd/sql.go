package main

import (
	"fmt"
	"net/url"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/spf13/cobra"

	"CrudAPI/internal/config"
	"CrudAPI/internal/query"
	"CrudAPI/internal/store"
)

var (
	sqlParams = map[string]*string{}

	sqlCmd = &cobra.Command{
		Use:   "sql <model>",
		Short: "Print the SQL a collection request would run",
		Args:  cobra.ExactArgs(1),
		RunE:  printSQL,
	}
)

func init() {
	for _, name := range []string{"filter", "order_by", "limit", "page", "per_page"} {
		flag := strings.ReplaceAll(name, "_", "-")
		sqlParams[name] = sqlCmd.Flags().String(flag, "", "same as the ?"+name+"= query parameter")
	}
}

func printSQL(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfig()
	reg, sers, err := loadModels(cfg)
	if err != nil {
		return err
	}
	m, ok := reg.Get(args[0])
	if !ok {
		if m, ok = reg.ByCollection(args[0]); !ok {
			return fmt.Errorf("unknown model %q", args[0])
		}
	}
	ser, _ := sers.For(m.Name)

	values := url.Values{}
	for name, v := range sqlParams {
		if *v != "" {
			values.Set(name, *v)
		}
	}
	params, err := query.ParseParams(values, query.ParamConfig{
		DefaultPerPage: cfg.Paging.DefaultPerPage,
		MaxPerPage:     cfg.Paging.MaxPerPage,
	})
	if err != nil {
		return err
	}
	q, err := query.Build(store.SelectQuery(m), m, ser, params)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	show := func(label string, sb sq.SelectBuilder) error {
		s, a, err := sb.PlaceholderFormat(sq.Dollar).ToSql()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "-- %s\n%s;\n-- args: %v\n", label, s, a)
		return nil
	}
	if !q.Paged() {
		return show("list", q.List())
	}
	if err := show("count", q.CountQuery()); err != nil {
		return err
	}
	return show("page", q.PageQuery())
}
