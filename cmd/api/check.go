package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/GregMSThompson/gridboard/internal/config"
	"github.com/GregMSThompson/gridboard/internal/layout"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/widget"
)

func newCheckCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check [dashboards.yaml]",
		Short: "Validate dashboard definitions and print their placed layout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := config.Load(cfgFile, cmd.Flags())
				if err != nil {
					return err
				}
				path = cfg.DashboardsPath
			}
			defs, err := config.LoadDashboards(path)
			if err != nil {
				return err
			}
			problems := check(cmd.OutOrStdout(), defs, widget.Default())
			if strict && problems > 0 {
				return fmt.Errorf("%d problem(s) found", problems)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on unknown widget types or overlapping widgets")
	return cmd
}

// check writes one table per dashboard and returns the number of problems:
// unknown widget types plus overlapping pairs.
func check(w io.Writer, defs []models.DashboardConfig, registry *widget.Registry) int {
	problems := 0
	for _, def := range defs {
		placed := def.Clone()
		layout.Arrange(placed.Widgets, placed.Columns)

		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetTitle(fmt.Sprintf("%s (%d columns)", def.ID, placed.Columns))
		t.AppendHeader(table.Row{"widget", "type", "x", "y", "w", "h", "source", "status"})
		for _, wc := range placed.Widgets {
			status := "ok"
			if _, ok := registry.Lookup(wc.Type); !ok {
				status = "unknown type"
				problems++
			}
			source := "-"
			if wc.Query != nil {
				source = string(wc.Query.SourceType)
			}
			t.AppendRow(table.Row{wc.ID, wc.Type, wc.Layout.X, wc.Layout.Y, wc.Layout.W, wc.Layout.H, source, status})
		}
		t.Render()

		for _, o := range layout.Overlaps(placed.Widgets) {
			fmt.Fprintf(w, "warning: %s overlaps %s\n", o.A, o.B)
			problems++
		}
	}
	return problems
}
