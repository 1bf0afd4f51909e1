package api

import (
	"context"
	"edgerelay/conf"
	"edgerelay/internal/middleware"
	"edgerelay/internal/webhook"
	"edgerelay/pkg/logger"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// NewRootCmd edgerelay 命令行
func NewRootCmd() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:   "edgerelay",
		Short: "edgerelay - webhook trade decision relay",
		Long: `edgerelay receives trade decisions from an automation platform,
sizes the position from a risk percentage and places entry, stop loss and take profit orders.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.LoadConfig(cfgPath); err != nil {
				return err
			}
			if err := conf.ApplyEnv(&conf.AppConfig); err != nil {
				return err
			}
			logger.InitLogger(&conf.AppConfig.Log, conf.AppConfig.AppName)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(&conf.AppConfig)
		},
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPlanCmd())

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "conf/config.yaml", "Configuration file path")
	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(&conf.AppConfig)
		},
	}
}

// newPlanCmd 只生成订单计划，不下单
func newPlanCmd() *cobra.Command {
	var (
		file    string
		balance string
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build and print the order plan for a webhook document without placing orders",
		Long: `Parse a webhook document, resolve instrument rules and print the resulting order plan.
Example: edgerelay plan -f decision.json --balance 10000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, &conf.AppConfig, file, balance)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Webhook document (JSON)")
	cmd.Flags().StringVar(&balance, "balance", "", "Account balance to size with (fetched from the exchange if empty)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runServe(cfg *conf.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	defer logger.Sync()

	app, err := NewApp(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.Rules.StartInstrumentSyncWorker(ctx, cfg.Exchange.InstrumentTTL)

	logger.Infof("edgerelay starting, exchange=%s testnet=%v async=%v", app.Exchange.Name(), cfg.Exchange.Testnet, cfg.Webhook.Async)
	srv := NewServer(cfg)
	srv.RegisterOnShutdown(func() {
		cancel()
		app.Close()
	})
	srv.Run(middleware.NewMiddleware(cfg), app.InitRouter(cfg))
	return nil
}

func runPlan(cmd *cobra.Command, cfg *conf.Config, file, balance string) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	var bal *decimal.Decimal
	if balance != "" {
		b, err := decimal.NewFromString(balance)
		if err != nil {
			return fmt.Errorf("invalid balance %q: %w", balance, err)
		}
		bal = &b
	} else if err := cfg.Validate(); err != nil {
		return err
	}

	d, err := webhook.ParseTradeDecision(raw, decimal.NewFromFloat(cfg.Risk.DefaultRiskPerTradePct))
	if err != nil {
		return err
	}
	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Canceller.Stop()

	p, err := app.Relay.Preview(cmd.Context(), d, bal)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
