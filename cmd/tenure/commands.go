package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/okian/tenure/internal/adapters/dataset"
	"github.com/okian/tenure/internal/adapters/report"
	app "github.com/okian/tenure/internal/app"
	"github.com/okian/tenure/internal/config"
	"github.com/okian/tenure/internal/domain/fit"
	"github.com/okian/tenure/internal/domain/model"
	"github.com/okian/tenure/internal/domain/survival"
	"github.com/okian/tenure/pkg/logger"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	input       string
	durationCol string
	eventCol    string
	logLevel    string

	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "tenure",
		Short:         "Customer survival analysis: Kaplan-Meier curves, C-index and hazard ratios",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			if opts.durationCol != "" {
				cfg.DurationCol = opts.durationCol
			}
			if opts.eventCol != "" {
				cfg.EventCol = opts.eventCol
			}
			level := cfg.LogLevel
			if opts.logLevel != "" {
				level = opts.logLevel
			}
			if err := logger.Init(logger.WithOutput(cmd.ErrOrStderr()), logger.WithLevel(level)); err != nil {
				return err
			}
			opts.cfg = cfg
			opts.log = logger.Get()
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.input, "input", "i", "", "customer table (CSV with a header row); not used by synth")
	flags.StringVar(&opts.durationCol, "duration", "", "duration column (default from config)")
	flags.StringVar(&opts.eventCol, "event", "", "event column (default from config)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(newReportCmd(opts), newCurveCmd(opts), newConcordanceCmd(opts), newSynthCmd(opts))
	return root
}

// requireInput fails commands that read a customer table when --input is unset.
func (o *rootOptions) requireInput() error {
	if o.input == "" {
		return errors.New(`required flag "input" not set`)
	}
	return nil
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		coefficients string
		out          string
		strata       string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write hazard ratios, the C-index summary and survival curves",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := opts.cfg
			if coefficients == "" {
				coefficients = cfg.CoefficientsPath
			}
			if coefficients == "" {
				return fmt.Errorf("%w: pass --coefficients or set coefficients_path", app.ErrNoFitter)
			}
			if cmd.Flags().Changed("strata") {
				cfg.StrataCol = strata
			}

			if err := opts.requireInput(); err != nil {
				return err
			}
			schema := cfg.Schema()
			obs, err := dataset.LoadFile(opts.input, schema)
			if err != nil {
				return err
			}

			p := app.NewPipeline(fit.NewFileFitter(coefficients),
				app.WithStrataWorkers(cfg.StrataWorkers),
				app.WithConcordanceCheck(cfg.ConcordanceWorkers),
				app.WithPipelineLogger(opts.log),
			)
			rep, err := p.Run(ctx, schema.Dataset(obs, cfg.StrataCol))
			if err != nil {
				return err
			}
			rep.ID = uuid.NewString()

			paths, err := report.WriteDir(out, rep)
			if err != nil {
				return err
			}
			for _, path := range paths {
				opts.log.Info(ctx, "wrote report file", logger.String("path", path))
			}
			return report.WriteSummary(cmd.OutOrStdout(), rep.Summary())
		},
	}

	cmd.Flags().StringVarP(&coefficients, "coefficients", "c", "", "coefficient file (YAML or JSON)")
	cmd.Flags().StringVarP(&out, "out", "o", "reports", "output directory")
	cmd.Flags().StringVar(&strata, "strata", "", "column to stratify curves by; empty disables")
	return cmd
}

func newCurveCmd(opts *rootOptions) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Print the Kaplan-Meier curve as CSV, optionally per stratum",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireInput(); err != nil {
				return err
			}
			cfg := opts.cfg
			schema := dataset.Schema{DurationCol: cfg.DurationCol, EventCol: cfg.EventCol, IDCol: cfg.IDCol}
			if by != "" {
				schema.Extra = []string{by}
			}
			obs, err := dataset.LoadFile(opts.input, schema)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if by == "" {
				return writeOverall(w, obs)
			}
			st, err := app.StratifiedCurves(cmd.Context(), obs, by, cfg.StrataWorkers)
			if err != nil {
				return err
			}
			return report.WriteStrata(w, st)
		},
	}

	cmd.Flags().StringVar(&by, "by", "", "column to stratify by")
	return cmd
}

func writeOverall(w io.Writer, obs []model.Observation) error {
	c, err := survival.EstimateCurve(model.Durations(obs), model.Events(obs))
	if err != nil {
		return err
	}
	return report.WriteCurve(w, c)
}

// concordanceOutput is the JSON printed by the concordance command.
type concordanceOutput struct {
	N           int            `json:"n"`
	Concordance survival.Index `json:"concordance"`
}

func newConcordanceCmd(opts *rootOptions) *cobra.Command {
	var (
		riskCol  string
		pairwise int
	)

	cmd := &cobra.Command{
		Use:   "concordance",
		Short: "Compute Harrell's C-index of a risk column",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireInput(); err != nil {
				return err
			}
			cfg := opts.cfg
			schema := dataset.Schema{
				DurationCol: cfg.DurationCol,
				EventCol:    cfg.EventCol,
				Numeric:     []string{riskCol},
			}
			obs, err := dataset.LoadFile(opts.input, schema)
			if err != nil {
				return err
			}

			risk := make([]float64, len(obs))
			for i := range obs {
				v, ok := obs[i].NumericValue(riskCol)
				if !ok {
					return fmt.Errorf("line %d: %w: missing %s", i+2, survival.ErrInvalidRisk, riskCol)
				}
				risk[i] = v
			}

			durations, events := model.Durations(obs), model.Events(obs)
			idx, err := survival.Concordance(durations, events, risk)
			if err != nil {
				return err
			}
			if pairwise > 0 {
				ref, err := survival.PairwiseConcordance(cmd.Context(), durations, events, risk, pairwise)
				if err != nil {
					return err
				}
				if ref != idx {
					return fmt.Errorf("%w: sweep %+v, pairwise %+v", app.ErrConcordanceMismatch, idx, ref)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(concordanceOutput{N: len(obs), Concordance: idx})
		},
	}

	cmd.Flags().StringVarP(&riskCol, "risk", "r", "risk", "risk score column")
	cmd.Flags().IntVar(&pairwise, "pairwise", 0, "cross-check with the pairwise count on N workers")
	return cmd
}
