package main

import (
	"fmt"

	"github.com/spf13/cobra"

	service "github.com/anuntech/metas/internal/app"
	"github.com/anuntech/metas/internal/domain/model"
	"github.com/anuntech/metas/internal/seed"
)

func newSeedCmd(c *cli) *cobra.Command {
	var (
		pf     periodFlags
		units  int
		levels int
		seedN  uint64
		report bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load deterministic demo ladders and records into the store",
		Long: `Generate goal ladders and performance records for a period and write them
through the engine, so they are validated like any other write.

The same flags always produce the same data, so seeding twice overwrites
rather than duplicates. With the memory driver the data only lives for the
command, so pass --report to see it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			period, err := pf.period()
			if err != nil {
				return err
			}

			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			svc := service.New(store, store, service.WithLogger(c.log.Named("engine")))
			stats, err := seed.Run(ctx, svc, seed.Config{
				Period: period,
				Units:  units,
				Levels: levels,
				Seed:   seedN,
			}, c.log.Named("seed"))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "seeded %s: %d units, %d tiers, %d records\n",
				period, stats.Units, stats.TiersWritten, stats.RecordsWritten); err != nil {
				return err
			}
			if !report {
				return nil
			}
			sum, err := svc.Progress(ctx, period, model.DateRange{})
			if err != nil {
				return err
			}
			return renderReport(out, sum)
		},
	}
	pf.bind(cmd)
	cmd.Flags().IntVar(&units, "units", 5, "Number of units besides Total")
	cmd.Flags().IntVar(&levels, "levels", 6, "Tiers per ladder, 1-6")
	cmd.Flags().Uint64Var(&seedN, "seed", seed.DefaultSeed, "Generator seed")
	cmd.Flags().BoolVar(&report, "report", false, "Print the period report after seeding")
	return cmd
}
