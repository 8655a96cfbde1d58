package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chronic-risk-monitor/internal/alerting"
	"github.com/chronic-risk-monitor/internal/app"
	"github.com/chronic-risk-monitor/internal/domain"
	"github.com/chronic-risk-monitor/internal/export"
	"github.com/chronic-risk-monitor/internal/pipeline"
	"github.com/chronic-risk-monitor/internal/setup"
)

type loader func() (*domain.Config, *logrus.Logger, error)

func inferCmd(load loader) *cobra.Command {
	var (
		record  domain.PatientRecord
		smoking string
		reading domain.DynamicReading
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Assess one set of patient attributes and vitals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			record.ID = 1
			record.SmokingHistory = domain.SmokingHistory(smoking)
			if err := record.Validate(); err != nil {
				return err
			}
			reading.PatientID = record.ID

			vector, err := domain.NewCompositeFeatureVector(record, reading)
			if err != nil {
				return err
			}

			p, err := pipeline.LoadFromDir(cfg.Models.Dir, logger)
			if err != nil {
				return err
			}
			prediction, err := p.InferRisk(vector)
			if err != nil {
				return err
			}

			risk := domain.PatientRisk{Vector: vector, Prediction: prediction}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(risk)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), alerting.Summary(risk))
			return err
		},
	}

	cmd.Flags().IntVar(&record.Gender, "gender", 0, "Gender code (0 or 1)")
	cmd.Flags().IntVar(&record.Age, "age", 0, "Age in years")
	cmd.Flags().BoolVar(&record.HeartDisease, "heart-disease", false, "Patient has heart disease")
	cmd.Flags().StringVar(&smoking, "smoking", string(domain.SMOKING_NEVER), "Smoking history category")
	cmd.Flags().Float64Var(&reading.BMI, "bmi", 0, "Body mass index")
	cmd.Flags().Float64Var(&reading.HbA1cLevel, "hba1c", 0, "HbA1c level")
	cmd.Flags().IntVar(&reading.GlucoseLevel, "glucose", 0, "Blood glucose level")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the prediction as JSON")
	_ = cmd.MarkFlagRequired("age")
	_ = cmd.MarkFlagRequired("bmi")
	_ = cmd.MarkFlagRequired("hba1c")
	_ = cmd.MarkFlagRequired("glucose")
	return cmd
}

func tickCmd(load loader) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run monitor ticks once, without serving, and print each roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("count must be positive, got %d", count)
			}
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			for i := 0; i < count; i++ {
				result, err := a.Monitor.RunTick(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), alerting.RosterSummary(result.Snapshot.Tick(), result.Risks))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "Number of ticks to run")
	return cmd
}

func exportCmd(load loader) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run one tick and write the admin table as an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.Monitor.RunTick(cmd.Context()); err != nil {
				return err
			}
			view, err := a.Views.Admin(cmd.Context())
			if err != nil {
				return err
			}

			if out == "" {
				out = export.Filename(view.Tick)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			if err := export.WriteAdminWorkbook(f, view); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d patients, %d at risk)\n", out, len(view.Patients), len(view.HighRisk))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default risk-monitor-tick-N.xlsx)")
	return cmd
}

func migrateCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres patient record schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			return app.Migrate(cmd.Context(), cfg, logger, true)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			return app.Migrate(cmd.Context(), cfg, logger, false)
		},
	})
	return cmd
}

func mcpRegisterCmd() *cobra.Command {
	var opts setup.Options

	cmd := &cobra.Command{
		Use:   "mcp-register",
		Short: "Register mcp-server with the desktop MCP client",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := setup.Register(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s in %s\n", setup.ServerName, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.ConfigPath, "client-config", "", "Client config file (default: platform location)")
	cmd.Flags().StringVar(&opts.BinaryPath, "binary", "", "Path to the mcp-server binary (default: search PATH)")
	cmd.Flags().StringVar(&opts.ModelsDir, "models", "", "Model artifact directory passed to the server")
	cmd.Flags().StringVar(&opts.Source, "source", "local", "Live-state source: local or redis")
	cmd.Flags().StringVar(&opts.RedisURL, "redis-url", "", "Redis URL for the redis source")
	return cmd
}
