// Package cli wires haven's commands: the API server and the offline
// fixture tools.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/havenhealth/haven/internal/config"
	"github.com/havenhealth/haven/internal/core/matching"
	debuglog "github.com/havenhealth/haven/internal/log"
	"github.com/havenhealth/haven/internal/plugins/db/sqlitedb"
	restapi "github.com/havenhealth/haven/internal/server"
)

type rootFlags struct {
	configPath string
	envFiles   []string
	logLevel   int
}

func (f *rootFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configPath, f.envFiles...)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	debuglog.SetLevel(debuglog.LevelFromInt(cfg.LogLevel))
	return cfg, nil
}

// NewRootCmd builds the haven command tree.
func NewRootCmd(version string) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "haven",
		Short:         "Backend for the haven therapy app",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to YAML config file (default ~/.config/haven/config.yaml)")
	root.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, ".env files to load (default .env)")
	root.PersistentFlags().IntVar(&flags.logLevel, "log-level", 0, "Debug log level: 0 off, 1 basic, 2 detailed, 3 trace, 4 wire")

	root.AddCommand(
		serveCmd(flags),
		seedCmd(flags),
		scoreCmd(),
		versionCmd(version),
	)
	return root
}

// Execute runs the root command and reports errors on stderr.
func Execute(version string) error {
	err := NewRootCmd(version).Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "haven: %v\n", err)
	}
	return err
}

func serveCmd(flags *rootFlags) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			app, err := NewApp(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			router := restapi.NewRouter(app.Services, restapi.RouterOptions{
				AllowedOrigins: cfg.Server.AllowedOrigins,
				JWTSecret:      cfg.Auth.JWTSecret,
				RequestLog:     cfg.LogLevel > 0,
			})
			serveErr := restapi.Serve(ctx, cfg.Server.Address, router, cfg.Server.ShutdownTimeout)

			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return errors.Join(serveErr, app.Close(closeCtx))
		},
	}
	cmd.Flags().StringVarP(&address, "address", "a", "", "Listen address (overrides config)")
	return cmd
}

func seedCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixtures.yaml>",
		Short: "Load YAML fixtures into the local SQLite store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Store.Backend != config.StoreSQLite {
				return fmt.Errorf("seed only supports the %s store, not %q", config.StoreSQLite, cfg.Store.Backend)
			}
			fixtures, err := sqlitedb.LoadFixtures(args[0])
			if err != nil {
				return err
			}
			store, err := sqlitedb.Open(cfg.Store.SQLitePath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err = store.Seed(cmd.Context(), fixtures); err != nil {
				return err
			}
			counts := fixtures.Counts()
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %s:", cfg.Store.SQLitePath)
			for _, kind := range []string{"therapists", "user_assessments", "clinical_profiles", "mood_entries", "wellness_goals"} {
				fmt.Fprintf(cmd.OutOrStdout(), " %s=%d", kind, counts[kind])
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

// scoreCmd ranks therapists for one user without a server or network,
// using an in-memory store loaded from fixtures.
func scoreCmd() *cobra.Command {
	var (
		limit   int
		asJSON  bool
		explain bool
	)
	cmd := &cobra.Command{
		Use:   "score <fixtures.yaml> <user-id>",
		Short: "Rank therapists for a user from a fixtures file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixtures, err := sqlitedb.LoadFixtures(args[0])
			if err != nil {
				return err
			}
			store, err := sqlitedb.Open(":memory:")
			if err != nil {
				return err
			}
			defer store.Close()
			if err = store.Seed(cmd.Context(), fixtures); err != nil {
				return err
			}

			scores, err := matching.NewService(store).Match(cmd.Context(), args[1], limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(scores)
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tTHERAPIST\tSCORE\tCLINICAL\tCULTURAL\tEXPERIENCE\tCOMMUNICATION")
			for i, s := range scores {
				fmt.Fprintf(w, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
					i+1, s.TherapistName, s.FinalScore, s.ClinicalMatch, s.CulturalMatch, s.ExperienceMatch, s.CommunicationMatch)
				if explain && len(s.Reasoning) > 0 {
					fmt.Fprintf(w, "\t  %s\t\t\t\t\t\n", strings.Join(s.Reasoning, "; "))
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n therapists (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full scores as JSON")
	cmd.Flags().BoolVar(&explain, "explain", false, "Print the reasoning under each therapist")
	return cmd
}

func versionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
