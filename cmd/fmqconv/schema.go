package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/helmut-steiner/finalmq/internal/observe"
)

func newSchemaCmd(a *app) *cobra.Command {
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the loaded type registry",
	}
	schemaCmd.AddCommand(newSchemaListCmd(a), newSchemaShowCmd(a))
	return schemaCmd
}

func newTable(cmd *cobra.Command, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func newSchemaListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered structs and enums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := newTable(cmd, table.Row{"Type", "Kind", "Members", "Description"})
			tw.SetColumnConfigs([]table.ColumnConfig{
				{Name: "Members", Align: text.AlignRight},
				{Name: "Description", WidthMax: 60, WidthMaxEnforcer: text.WrapText},
			})
			for _, name := range a.reg.StructNames() {
				sd, _ := a.reg.FindStruct(name)
				tw.AppendRow(table.Row{name, "struct", sd.NumFields(), sd.Description})
			}
			for _, name := range a.reg.EnumNames() {
				ed, _ := a.reg.FindEnum(name)
				tw.AppendRow(table.Row{name, "enum", len(ed.Entries), ed.Description})
			}
			tw.Render()
			return nil
		},
	}
}

func newSchemaShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show TYPE",
		Short: "Show the fields of a struct or the entries of an enum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if sd, ok := a.reg.FindStruct(name); ok {
				tw := newTable(cmd, table.Row{"#", "Field", "Kind", "Type", "Description"})
				for _, fd := range sd.Fields {
					tw.AppendRow(table.Row{fd.Index, fd.Name, fd.Kind.String(), fd.TypeName, fd.Description})
				}
				tw.Render()
				return nil
			}
			if ed, ok := a.reg.FindEnum(name); ok {
				tw := newTable(cmd, table.Row{"Name", "Value", "Description"})
				for _, e := range ed.Entries {
					tw.AppendRow(table.Row{e.Name, strconv.Itoa(int(e.Value)), e.Description})
				}
				tw.Render()
				return nil
			}
			return fmt.Errorf("type %q not found", name)
		},
	}
}

// printMetrics 以表格输出本次运行累计的计数器
func printMetrics(cmd *cobra.Command) error {
	samples, err := observe.Snapshot()
	if err != nil {
		return err
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.ErrOrStderr())
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Metric", "Labels", "Value"})
	tw.SetColumnConfigs([]table.ColumnConfig{{Name: "Value", Align: text.AlignRight}})
	for _, s := range samples {
		tw.AppendRow(table.Row{s.Name, s.Labels, s.Value})
	}
	tw.Render()
	return nil
}
