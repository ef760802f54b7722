// Command dxlstream-demo is a thin sample program exercising the dxlstream
// Channel, in the spirit of the teacher's main.go (cobra root + subcommands,
// logrus formatting). It is an external collaborator per spec.md §1, not
// part of the core library's budget.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dxlstream/auth"
	"dxlstream/channel"
	"dxlstream/internal/httpx"
	"dxlstream/internal/tokencache"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var cfgPath string
	rootCmd := &cobra.Command{
		Use:          "dxlstream-demo",
		Short:        "Sample consumer for a dxlstream Channel",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.json", "Path to config file")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadDemoConfig(cfgPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config OK")
			return nil
		},
	}

	consumeCmd := &cobra.Command{
		Use:   "consume",
		Short: "Run the consume loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadDemoConfig(cfgPath)
			if err != nil {
				return err
			}
			return runDemo(cfg)
		},
	}

	rootCmd.AddCommand(checkCmd, consumeCmd)
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalf("%v", err)
	}
}

func runDemo(cfg demoConfig) error {
	var strategy channel.Strategy
	switch cfg.AuthMode {
	case "basic":
		b, err := auth.NewBasic(cfg.BaseURL, cfg.User, cfg.Password, httpx.TransportOptions{})
		if err != nil {
			return fmt.Errorf("build basic auth: %w", err)
		}
		if cfg.TokenCachePath != "" {
			store, err := tokencache.Open(cfg.TokenCachePath)
			if err != nil {
				logrus.Warnf("token cache unavailable, continuing in-memory: %v", err)
			} else {
				b.UseCache(store, cfg.BaseURL+"|"+cfg.User)
			}
		}
		strategy = b
	case "oauth2":
		o, err := auth.NewOAuth2(cfg.BaseURL, cfg.ClientID, cfg.ClientSecret, cfg.Scope, "client_credentials", cfg.Audience, httpx.TransportOptions{})
		if err != nil {
			return fmt.Errorf("build oauth2 auth: %w", err)
		}
		strategy = o
	default:
		return fmt.Errorf("unknown authMode %q", cfg.AuthMode)
	}

	ch, err := channel.New(cfg.BaseURL,
		channel.WithAuth(strategy),
		channel.WithConsumerGroup(cfg.ConsumerGroup),
	)
	if err != nil {
		return fmt.Errorf("build channel: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	process := func(ctx context.Context, records []any) (bool, error) {
		for _, rec := range records {
			logrus.Infof("record: %v", rec)
		}
		return true, nil
	}

	go func() {
		<-ctx.Done()
		done := make(chan struct{})
		ch.Stop(func() { close(done) })
		<-done
	}()

	return ch.Run(ctx, process, channel.RunOptions{
		Topics:             cfg.Topics,
		WaitBetweenQueries: 2 * time.Second,
	})
}
