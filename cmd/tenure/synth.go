package main

import (
	"github.com/spf13/cobra"

	"github.com/okian/tenure/internal/synth"
	"github.com/okian/tenure/pkg/logger"
)

func newSynthCmd(opts *rootOptions) *cobra.Command {
	cfg := synth.DefaultConfig()
	var (
		out  string
		load bool
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generate a synthetic telco customer table, or replay one against a server",
		Example: `  tenure synth -n 3000 -o data/telco.csv
  tenure synth --load --url http://localhost:9080 --analyses 50`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if load {
				_, err := synth.Run(ctx, cfg, opts.log.Named("synth"))
				return err
			}

			customers, err := synth.Generate(ctx, cfg.Customers, cfg.Seed, cfg.Workers)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				return synth.WriteCSV(cmd.OutOrStdout(), customers)
			}
			if err := synth.WriteFile(out, customers); err != nil {
				return err
			}
			opts.log.Info(ctx, "wrote synthetic customers",
				logger.String("path", out),
				logger.Int("customers", len(customers)),
			)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&cfg.Customers, "customers", "n", cfg.Customers, "customers per table")
	flags.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent generators and submitters")
	flags.StringVarP(&out, "out", "o", "", "output CSV path; stdout when empty")
	flags.BoolVar(&load, "load", false, "submit tables to a running server instead of writing CSV")
	flags.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "server base URL for --load")
	flags.IntVar(&cfg.Analyses, "analyses", cfg.Analyses, "tables to submit with --load")
	flags.StringVar(&cfg.Strata, "strata", cfg.Strata, "stratification column sent with --load")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	flags.DurationVar(&cfg.Wait, "wait", cfg.Wait, "how long to wait for submitted jobs")
	flags.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "job status poll interval")
	return cmd
}
