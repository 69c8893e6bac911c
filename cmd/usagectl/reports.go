package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/sakif/usage-dashboard/internal/app"
	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/kpi"
	"github.com/sakif/usage-dashboard/internal/model"
	"github.com/sakif/usage-dashboard/internal/schema"
)

func newIngestCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.csv>...",
		Short: "Append weekly reports to the master tables",
		Long:  "Ingest one or more weekly CSV exports. A report whose week is already stored is skipped.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				var failed int
				for _, path := range args {
					if err := ingestFile(cmd, a, path); err != nil {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", filepath.Base(path), err)
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d reports not ingested", failed, len(args))
				}
				return nil
			})
		},
	}
}

func ingestFile(cmd *cobra.Command, a *app.App, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := a.Dashboard.Upload(cmd.Context(), filepath.Base(path), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: week %s, %d users, %d models, %d tools\n",
		res.Filename, res.ReportDate, res.Users, res.Models, res.Tools)
	return nil
}

func newReportsCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:     "reports",
		Aliases: []string{"ls"},
		Short:   "List stored report weeks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				reports := a.Dashboard.Reports()
				if len(reports) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no reports stored")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "WEEK\tUSERS\tMODELS\tTOOLS")
				for _, r := range reports {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", r.Date, r.Users, r.Models, r.Tools)
				}
				return w.Flush()
			})
		},
	}
}

func newDeleteCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <YYYY-MM-DD>",
		Short: "Delete every row of one report week",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := model.ParseDate(args[0])
			if err != nil {
				return fmt.Errorf("report date must be YYYY-MM-DD: %w", err)
			}
			return withApp(cmd, open, func(a *app.App) error {
				res, err := a.Dashboard.DeleteReport(cmd.Context(), day)
				if errors.Is(err, apperror.ErrNotFound) {
					return fmt.Errorf("no report stored for week %s", day)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted week %s: %d users, %d models, %d tools\n",
					day, res.Users, res.Models, res.Tools)
				return nil
			})
		},
	}
}

// filterFlags are shared by the commands that read a filtered view.
type filterFlags struct {
	pmOnly   bool
	from, to string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.pmOnly, "pm-only", false, "keep only users listed in PM_EMAILS_FILE")
	cmd.Flags().StringVar(&f.from, "from", "", "first report week to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "last report week to include (YYYY-MM-DD)")
}

func (f *filterFlags) build(a *app.App) (model.Filter, error) {
	return a.Dashboard.Filter(f.pmOnly, f.from, f.to)
}

func newKPIsCommand(open opener) *cobra.Command {
	var flags filterFlags
	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Show the latest-week KPIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				f, err := flags.build(a)
				if err != nil {
					return err
				}
				kpis := a.Dashboard.KPIs(f)
				if len(kpis) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no user data for the selected weeks")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "KPI\tWEEK %s\tCHANGE\n", kpis[0].Week)
				for _, k := range kpis {
					fmt.Fprintf(w, "%s\t%s\t%s\n", k.Name, kpi.Format(k), kpi.FormatChange(k.Change))
				}
				return w.Flush()
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newShowCommand(open opener) *cobra.Command {
	var (
		flags filterFlags
		limit int
	)
	kinds := lo.Map(schema.Kinds(), func(k schema.Kind, _ int) string { return string(k) })

	cmd := &cobra.Command{
		Use:       "show <table>",
		Short:     "Print a master table",
		Long:      fmt.Sprintf("Print the newest rows of a master table. Tables: %v.", kinds),
		Args:      cobra.ExactArgs(1),
		ValidArgs: kinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := schema.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(a *app.App) error {
				f, err := flags.build(a)
				if err != nil {
					return err
				}
				view, err := a.Dashboard.Table(kind, f, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), view.Frame.String())
				fmt.Fprintf(cmd.OutOrStdout(), "(%d of %d rows)\n", view.Frame.Len(), view.Total)
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows to print")
	return cmd
}
