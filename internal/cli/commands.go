package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/finsightlab/finsight/internal/config"
	"github.com/finsightlab/finsight/internal/display"
	"github.com/finsightlab/finsight/internal/server"
)

const version = "1.0.0"

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	var mgr *config.Manager

	rootCmd := &cobra.Command{
		Use:   "finsight",
		Short: "FinSight - AI-powered stock comparison",
		Long: `FinSight fetches market data and fundamentals for a pair of stocks,
generates an AI comparison, and answers follow-up questions about it.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			m, loaded, err := loadManagedConfig(cfg)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			mgr = m
			*cfg = *loaded
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Debug = true
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cfg)
		},
	}

	rootCmd.AddCommand(newServeCmd(cfg, &mgr))
	rootCmd.AddCommand(newCompareCmd(cfg))
	rootCmd.AddCommand(newQuoteCmd(cfg))
	rootCmd.AddCommand(newNewsCmd(cfg))
	rootCmd.AddCommand(newChatCmd(cfg))
	rootCmd.AddCommand(newConfigCmd(cfg, &mgr))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	return rootCmd
}

// Execute runs the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, display.Error(err))
		os.Exit(1)
	}
}

func newServeCmd(cfg *config.Config, mgr **config.Manager) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer app.Close()

			// Pick up config file edits without a restart.
			if m := *mgr; m != nil {
				err := m.Watch(ctx, func(next config.Config) {
					log.Printf("config reloaded from %s", m.Path())
					app.svc.ApplyConfig(&next)
				})
				if err != nil {
					log.Printf("config watch unavailable: %v", err)
				}
			}

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = cfg.HTTPListenAddr
			}
			return server.New(app.svc, addr).ListenAndServe(ctx)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (defaults to config)")
	return cmd
}

func newCompareCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "compare SYMBOL_A SYMBOL_B",
		Short: "Compare two stocks and print the AI analysis",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer app.Close()

			fmt.Println(progressStyle.Render(fmt.Sprintf("Fetching data and generating analysis for %s vs %s...", args[0], args[1])))
			cmp, err := app.svc.Compare(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(display.Comparison(cmp))
			return nil
		},
	}
}

func newQuoteCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote SYMBOL",
		Short: "Show the consolidated snapshot for one stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer app.Close()

			snap, err := app.svc.Snapshot(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(display.Snapshot(snap))

			if history, _ := cmd.Flags().GetBool("history"); history {
				series, err := app.svc.Candles(ctx, snap.Symbol)
				if err != nil {
					return err
				}
				fmt.Println(display.CandleSummary(series))
			}
			return nil
		},
	}
	cmd.Flags().Bool("history", false, "Include price history summary")
	return cmd
}

func newNewsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "news SYMBOL",
		Short: "Show recent company news",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer app.Close()

			enrich, _ := cmd.Flags().GetBool("enrich")
			news, err := app.svc.News(ctx, args[0], enrich)
			if err != nil {
				return err
			}
			fmt.Println(display.News(news))
			return nil
		},
	}
	cmd.Flags().Bool("enrich", false, "Fetch full article text from source pages")
	return cmd
}

func newChatCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive comparison session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cfg)
		},
	}
}

func newConfigCmd(cfg *config.Config, mgr **config.Manager) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := *cfg
			shown.FinnhubAPIKey = maskSecret(shown.FinnhubAPIKey)
			shown.GoogleAPIKey = maskSecret(shown.GoogleAPIKey)
			data, err := json.MarshalIndent(shown, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := *mgr
			if m == nil {
				var err error
				if m, _, err = loadManagedConfig(cfg); err != nil {
					return err
				}
			}
			fmt.Println(m.Path())
			return nil
		},
	})

	return configCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("FinSight v%s\n", version)
		},
	}
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
