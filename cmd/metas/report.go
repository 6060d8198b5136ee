package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	service "github.com/anuntech/metas/internal/app"
	"github.com/anuntech/metas/internal/domain/model"
	"github.com/anuntech/metas/internal/domain/progress"
	"github.com/anuntech/metas/internal/domain/types"
)

// Progress bands used to color the overall column.
const (
	bandDone = 99
	bandMid  = 50
)

//nolint:gochecknoglobals // shared console palette
var (
	doneColor = color.New(color.FgGreen, color.Bold)
	midColor  = color.New(color.FgYellow)
	lowColor  = color.New(color.FgRed)
)

// periodFlags binds --year and --month, defaulting to the current month.
type periodFlags struct {
	year, month int
}

func (p *periodFlags) bind(cmd *cobra.Command) {
	now := time.Now().UTC()
	cmd.Flags().IntVar(&p.year, "year", now.Year(), "Period year")
	cmd.Flags().IntVar(&p.month, "month", int(now.Month()), "Period month, 1-12")
}

func (p *periodFlags) period() (model.Period, error) {
	return model.NewPeriod(p.month, p.year)
}

func newReportCmd(c *cli) *cobra.Command {
	var (
		pf         periodFlags
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the progress of every unit for a period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			period, err := pf.period()
			if err != nil {
				return err
			}
			window, err := types.ParseWindow(start, end)
			if err != nil {
				return err
			}

			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			svc := service.New(store, store, service.WithLogger(c.log.Named("engine")))
			sum, err := svc.Progress(ctx, period, window)
			if err != nil {
				return err
			}
			return renderReport(cmd.OutOrStdout(), sum)
		},
	}
	pf.bind(cmd)
	cmd.Flags().StringVar(&start, "start", "", "Window start, YYYY-MM-DD (default first day of month)")
	cmd.Flags().StringVar(&end, "end", "", "Window end, YYYY-MM-DD (default last day of month)")
	return cmd
}

// renderReport writes one row per unit and metric.
func renderReport(w io.Writer, sum service.Summary) error {
	if _, err := fmt.Fprintf(w, "Period %s (%s to %s)\n", sum.Period,
		sum.Window.Start.Format(time.DateOnly), sum.Window.End.Format(time.DateOnly)); err != nil {
		return err
	}
	if len(sum.Units) == 0 {
		_, err := fmt.Fprintln(w, "No tiers or records for this period.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Unit", "Level", "Metric", "Actual", "Targets", "Overall"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, u := range sum.Units {
		name, lvl := u.Unit, u.ActiveLevel.String()
		if u.Synthetic {
			name += " *"
		}
		if lvl == "" {
			lvl = "-"
		}
		if len(u.Metrics) == 0 {
			data = append(data, []string{name, lvl, "-", "-", "-", "-"})
			continue
		}
		for _, m := range u.Metrics {
			data = append(data, []string{
				name,
				lvl,
				string(m.Metric),
				strconv.FormatFloat(m.Actual, 'f', 2, 64),
				formatTargets(m.Tiers),
				colorOverall(m.Overall),
			})
		}
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if sum.TotalComputed {
		_, err := fmt.Fprintln(w, "* Total computed from unit records")
		return err
	}
	return nil
}

func formatTargets(tiers []progress.TierProgress) string {
	parts := make([]string, 0, len(tiers))
	for _, t := range tiers {
		parts = append(parts, fmt.Sprintf("%s:%s %d%%", t.Level, strconv.FormatFloat(t.Target, 'f', -1, 64), t.Percent))
	}
	return strings.Join(parts, " ")
}

func colorOverall(overall int) string {
	text := strconv.Itoa(overall) + "%"
	switch {
	case overall >= bandDone:
		return doneColor.Sprint(text)
	case overall >= bandMid:
		return midColor.Sprint(text)
	default:
		return lowColor.Sprint(text)
	}
}
