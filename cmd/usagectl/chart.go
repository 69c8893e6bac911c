package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/usage-dashboard/internal/app"
	"github.com/sakif/usage-dashboard/internal/chart"
	"github.com/sakif/usage-dashboard/internal/llm"
	"github.com/sakif/usage-dashboard/internal/schema"
	"github.com/sakif/usage-dashboard/internal/service"
)

const (
	termWidth  = 72
	termHeight = 16
)

func newBackendsCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List code generation backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tMODEL\tCREDENTIAL")
				for _, b := range a.Charts.Backends() {
					cred := "missing"
					if b.Configured {
						cred = "set"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Label, b.Model, cred)
				}
				return w.Flush()
			})
		},
	}
}

func newChartCommand(open opener) *cobra.Command {
	var (
		flags       filterFlags
		table       string
		backend     string
		showCode    bool
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "chart <request>",
		Short: "Generate a chart from a natural-language request",
		Long: "Ask a backend for chart code, run it on a master table and draw the result. " +
			"With --interactive, each following line is sent as feedback to refine the chart; an empty line quits.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				f, err := flags.build(a)
				if err != nil {
					return err
				}
				res, err := a.Charts.Generate(cmd.Context(), service.GenerateInput{
					Table:   table,
					Backend: backend,
					Request: strings.Join(args, " "),
					Filter:  f,
				})
				if err != nil {
					return err
				}
				printChart(cmd.OutOrStdout(), res, showCode)
				if !interactive {
					return nil
				}
				return refineLoop(cmd, a, os.Stdin, showCode)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&table, "table", "t", string(schema.Users), "master table to chart")
	cmd.Flags().StringVarP(&backend, "backend", "b", string(llm.Gemini), "generation backend")
	cmd.Flags().BoolVar(&showCode, "show-code", false, "print the generated code")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "read feedback lines and refine the chart")
	return cmd
}

func refineLoop(cmd *cobra.Command, a *app.App, in io.Reader, showCode bool) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "feedback> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		feedback := strings.TrimSpace(scanner.Text())
		if feedback == "" {
			return nil
		}
		res, err := a.Charts.Refine(cmd.Context(), feedback)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "refine failed: %v\n", err)
			continue
		}
		printChart(out, res, showCode)
	}
}

func printChart(w io.Writer, res *service.ChartResult, showCode bool) {
	if showCode && res.Code != "" {
		fmt.Fprintf(w, "--- code ---\n%s\n------------\n", res.Code)
	}
	if res.Error != "" {
		fmt.Fprintln(w, res.Error)
		return
	}
	fmt.Fprintln(w, chart.RenderTerminal(res.Figure, termWidth, termHeight))
}

func newRenderCommand(open opener) *cobra.Command {
	var (
		flags filterFlags
		table string
		saved string
	)

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Run chart code without calling a backend",
		Long: "Run chart code from a file (or stdin when the file is \"-\") on a master table, " +
			"or re-run a saved chart with --saved.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (saved == "") == (len(args) == 0) {
				return fmt.Errorf("give either a code file or --saved <id>")
			}
			return withApp(cmd, open, func(a *app.App) error {
				f, err := flags.build(a)
				if err != nil {
					return err
				}

				if saved != "" {
					res, err := a.Charts.Replay(cmd.Context(), saved, f)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", res.Chart.Name, res.Chart.Table)
					fmt.Fprintln(cmd.OutOrStdout(), chart.RenderTerminal(res.Figure, termWidth, termHeight))
					return nil
				}

				code, err := readCode(args[0])
				if err != nil {
					return err
				}
				fig, err := a.Charts.RenderCode(cmd.Context(), schema.Kind(table), f, code)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), chart.RenderTerminal(fig, termWidth, termHeight))
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&table, "table", "t", string(schema.Users), "master table to run the code on")
	cmd.Flags().StringVar(&saved, "saved", "", "id of a saved chart to re-run")
	return cmd
}

func readCode(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
