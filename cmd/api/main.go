package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcclellann/staffLoan/pkg/auth"
	"github.com/mcclellann/staffLoan/pkg/batch"
	"github.com/mcclellann/staffLoan/pkg/config"
	"github.com/mcclellann/staffLoan/pkg/ledger"
	"github.com/mcclellann/staffLoan/pkg/logger"
	"github.com/mcclellann/staffLoan/pkg/report"
	"github.com/mcclellann/staffLoan/pkg/store"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var cfg *config.Config

	root := &cobra.Command{
		Use:          "staffloan",
		Short:        "Staff payroll and loan portal",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			var err error
			if cfg, err = config.Load(configPath); err != nil {
				return err
			}
			return logger.Init(cfg.Log)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./staffloan.{toml,yaml,json})")

	cfgFn := func() *config.Config { return cfg }
	root.AddCommand(
		newServeCmd(cfgFn),
		newImportCmd(cfgFn),
		newReportCmd(cfgFn),
		newAdminCmd(cfgFn),
	)
	return root
}

// openStore opens the storage backend named by the config.
func openStore(cfg *config.Config) (store.Storage, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return store.NewPostgresStore(cfg.Database.DSN)
	default:
		return store.NewSQLiteStore(cfg.Database.DSN)
	}
}

func newServeCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web portal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	for _, key := range cfg.InsecureDefaults() {
		logger.Warn(ctx, "development default in use; override it before deploying", slog.String("setting", key))
	}

	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize %s store: %w", cfg.Database.Driver, err)
	}
	defer s.Close()

	if _, err := auth.NewAccounts(s).EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return err
	}

	server, err := NewServer(s, cfg)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server starting", slog.String("addr", cfg.HTTP.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newImportCmd(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Ingest a payment or loan CSV batch",
	}
	run := func(ingest func(*batch.Processor) ingestFunc) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			s, err := openStore(cfg())
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := ingest(batch.NewProcessor(s))(cmd.Context(), f)
			if res != nil {
				for _, n := range res.Notices {
					fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", n.Level, n.Message)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created=%d repaid=%d skipped=%d\n", res.Created, res.Repaid, res.Skipped)
			}
			return err
		}
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "payments <file.csv>",
			Short: "Import payments (columns: staff_id, amount, month)",
			Args:  cobra.ExactArgs(1),
			RunE:  run(func(p *batch.Processor) ingestFunc { return p.IngestPaymentBatch }),
		},
		&cobra.Command{
			Use:   "loans <file.csv>",
			Short: "Import loans and repayments (columns: staff_id, amount, status)",
			Args:  cobra.ExactArgs(1),
			RunE:  run(func(p *batch.Processor) ingestFunc { return p.IngestLoanBatch }),
		},
	)
	return cmd
}

func newReportCmd(cfg func() *config.Config) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:       "report {payments|loans}",
		Short:     "Write a PDF report",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"payments", "loans"},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cfg())
			if err != nil {
				return err
			}
			defer s.Close()

			l := ledger.NewLedger(s)
			title, filename := report.PaymentsTitle, report.PaymentsFilename
			var lines []string
			if args[0] == "loans" {
				title, filename = report.LoansTitle, report.LoansFilename
				loans, err := l.LoansForReport(cmd.Context())
				if err != nil {
					return err
				}
				lines = report.LoanLines(loans)
			} else {
				payments, err := l.PaymentsForReport(cmd.Context())
				if err != nil {
					return err
				}
				lines = report.PaymentLines(payments)
			}

			if output == "" {
				output = filename
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := report.RenderPDF(f, title, lines, cfg().Report.LinesPerPage); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d lines to %s\n", len(lines), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default payments_report.pdf or loans_report.pdf)")
	return cmd
}

func newAdminCmd(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin account maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the configured admin account if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := cfg()
			s, err := openStore(c)
			if err != nil {
				return err
			}
			defer s.Close()

			created, err := auth.NewAccounts(s).EnsureAdmin(cmd.Context(), c.Admin.Email, c.Admin.Password)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s\n", c.Admin.Email)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s already exists\n", c.Admin.Email)
			}
			return nil
		},
	})
	return cmd
}
