package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kcmvp/basemodel/db"
	"github.com/kcmvp/basemodel/internal"
	"github.com/kcmvp/basemodel/model"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type options struct {
	ds     string
	table  string
	pk     string
	where  []string
	data   string
	limit  int
	offset int
	order  string
	desc   bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "basemodel",
		Short: "basemodel runs model operations against a configured datasource.",
		Long: `basemodel reads the datasources from application.yml and runs get, list,
insert, update, delete, count, fields and dropdown against one table.
Results are printed as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.ds, "ds", db.DefaultName, "datasource name")
	pf.StringVar(&opts.table, "table", "", "table name")
	pf.StringVar(&opts.pk, "pk", "id", "primary key column")
	_ = root.MarkPersistentFlagRequired("table")

	root.AddCommand(
		fieldsCmd(opts),
		getCmd(opts),
		listCmd(opts),
		countCmd(opts),
		insertCmd(opts),
		updateCmd(opts),
		deleteCmd(opts),
		dropdownCmd(opts),
	)
	return root
}

func (o *options) model() (*model.Model, error) {
	opts := []model.Option{model.Table(o.table), model.PrimaryKey(o.pk)}
	if o.ds == db.DefaultName {
		return model.NewDefault(opts...)
	}
	conn, ok := db.GetDS(o.ds)
	if !ok {
		if err := db.InitErr(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("datasource %q is not configured", o.ds)
	}
	return model.New(db.New(conn), opts...), nil
}

// filters merges the --where flags. Each is either column=value or a JSON
// object whose keys may carry an operator, e.g. {"age >": 30}.
func (o *options) filters() (map[string]any, error) {
	where := map[string]any{}
	for _, w := range o.where {
		if strings.HasPrefix(strings.TrimSpace(w), "{") {
			obj, err := internal.DecodeObject([]byte(w))
			if err != nil {
				return nil, fmt.Errorf("--where %s: %w", w, err)
			}
			where = lo.Assign(where, obj)
			continue
		}
		k, v, ok := strings.Cut(w, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("--where %q: want column=value or a JSON object", w)
		}
		where[strings.TrimSpace(k)] = v
	}
	return where, nil
}

func (o *options) body() (map[string]any, error) {
	if o.data == "" {
		return nil, fmt.Errorf("--data is required")
	}
	return internal.DecodeObject([]byte(o.data))
}

func whereFlag(cmd *cobra.Command, o *options) {
	cmd.Flags().StringArrayVarP(&o.where, "where", "w", nil, "filter as column=value or a JSON object, repeatable")
}

func dataFlag(cmd *cobra.Command, o *options) {
	cmd.Flags().StringVarP(&o.data, "data", "d", "", "record as a JSON object")
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func fieldsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List the columns of the table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := o.model()
			if err != nil {
				return err
			}
			fields, err := m.ListFields(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, fields)
		},
	}
}

func getCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print the row with the given primary key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := o.model()
			if err != nil {
				return err
			}
			row, err := m.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if row.IsAbsent() {
				return fmt.Errorf("%w: %s %s", db.ErrNoData, o.table, args[0])
			}
			return printJSON(cmd, row.MustGet())
		},
	}
}

func listCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the rows matching the filters.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := o.model()
			if err != nil {
				return err
			}
			where, err := o.filters()
			if err != nil {
				return err
			}
			m.Limit(o.limit, o.offset)
			if o.order != "" {
				m.OrderBy(o.order, lo.Ternary(o.desc, "desc", "asc"))
			}
			var rows []db.Row
			if len(where) == 0 {
				rows, err = m.GetAll(cmd.Context())
			} else {
				rows, err = m.GetAll(cmd.Context(), where)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		},
	}
	whereFlag(cmd, o)
	cmd.Flags().IntVar(&o.limit, "limit", 0, "maximum number of rows")
	cmd.Flags().IntVar(&o.offset, "offset", 0, "rows to skip")
	cmd.Flags().StringVar(&o.order, "order", "", "column to order by")
	cmd.Flags().BoolVar(&o.desc, "desc", false, "descending order")
	return cmd
}

func countCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count the rows matching the filters.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := o.model()
			if err != nil {
				return err
			}
			where, err := o.filters()
			if err != nil {
				return err
			}
			var n int64
			if len(where) == 0 {
				n, err = m.CountAll(cmd.Context())
			} else {
				n, err = m.CountAllResults(cmd.Context(), where)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, n)
		},
	}
	whereFlag(cmd, o)
	return cmd
}

func insertCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert a record and print its id.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := o.model()
			if err != nil {
				return err
			}
			data, err := o.body()
			if err != nil {
				return err
			}
			id, err := m.Insert(cmd.Context(), data)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"id": id})
		},
	}
	dataFlag(cmd, o)
	return cmd
}

func updateCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update the row with the given primary key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := o.model()
			if err != nil {
				return err
			}
			data, err := o.body()
			if err != nil {
				return err
			}
			n, err := m.Update(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"affected": n})
		},
	}
	dataFlag(cmd, o)
	return cmd
}

func deleteCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete the row with the given primary key, or the rows matching the filters.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := o.model()
			if err != nil {
				return err
			}
			where, err := o.filters()
			if err != nil {
				return err
			}
			var n int64
			switch {
			case len(args) == 1 && len(where) > 0:
				return fmt.Errorf("pass either an id or --where, not both")
			case len(args) == 1:
				n, err = m.Delete(cmd.Context(), args[0])
			case len(where) > 0:
				n, err = m.Delete(cmd.Context(), where)
			default:
				n, err = m.Delete(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"affected": n})
		},
	}
	whereFlag(cmd, o)
	return cmd
}

func dropdownCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dropdown [key] <value>",
		Short: "Print a key to value mapping. The key defaults to the primary key.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := o.model()
			if err != nil {
				return err
			}
			opts, err := m.Dropdown(cmd.Context(), args[0], args[1:]...)
			if err != nil {
				return err
			}
			return printJSON(cmd, opts)
		},
	}
}
